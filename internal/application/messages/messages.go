// Package messages holds the buyer- and merchant-facing texts of the gateway.
package messages

import "fmt"

type Key string

const (
	NewCustomer          Key = "new_customer"
	TxIDNotUnique        Key = "tx_id_not_unique"
	TryAgainLater        Key = "try_again_later"
	ConnectionTimedOut   Key = "connection_timed_out"
	ConfigurationError   Key = "configuration_error"
	PaymentFailed        Key = "payment_failed"
	PaymentDeclined      Key = "payment_declined"
	PaymentCancelled     Key = "payment_cancelled"
	PaymentCancelledUser Key = "payment_cancelled_user"
	PaymentError         Key = "payment_error"
	GeneralFailure       Key = "general_failure"
	ThankYou             Key = "thank_you"

	NotePaid              Key = "note_paid"
	NoteDeclined          Key = "note_declined"
	NoteCancelled         Key = "note_cancelled"
	NoteFailed            Key = "note_failed"
	NoteStatus            Key = "note_status"
	NoteReceiptFailed     Key = "note_receipt_failed"
	NoteCancelledByBuyer  Key = "note_cancelled_by_buyer"
	NoteRefunded          Key = "note_refunded"
	NoteRefundedInstant   Key = "note_refunded_instant"
	NoteRefundIssuer      Key = "note_refund_issuer"
	NoteRefundError       Key = "note_refund_error"
	NoteTimedOut          Key = "note_timed_out"
	OAuthSucceeded        Key = "oauth_succeeded"
	OAuthFailed           Key = "oauth_failed"
	OAuthNoCode           Key = "oauth_no_code"
	OAuthClose            Key = "oauth_close"
)

var catalogs = map[string]map[Key]string{
	"en": {
		NewCustomer:          "(new customer)",
		TxIDNotUnique:        "Order number already used, please create a new order",
		TryAgainLater:        "Could not initialize payment, try again later",
		ConnectionTimedOut:   "Bluecode connection timed out, try again later.",
		ConfigurationError:   "The plugin configuration data is incorrect",
		PaymentFailed:        "Bluecode payment failed",
		PaymentDeclined:      "Order payment via Bluecode declined",
		PaymentCancelled:     "Order payment via Bluecode cancelled",
		PaymentCancelledUser: "Bluecode payment was cancelled by user",
		PaymentError:         "Order payment via Bluecode failed",
		GeneralFailure:       "General failure",
		ThankYou:             "Thank you for your purchase!",

		NotePaid:             "Order successfully paid with Bluecode, Transaction ID %s",
		NoteDeclined:         "Order payment via Bluecode declined, Transaction ID %s",
		NoteCancelled:        "Order payment via Bluecode cancelled, Transaction ID %s",
		NoteFailed:           "Order payment via Bluecode failed, errorcode '%s'",
		NoteStatus:           "Order status is %s",
		NoteReceiptFailed:    "Receipt could not be created, transaction ID %s",
		NoteCancelledByBuyer: "Order cancelled by customer",
		NoteRefunded:         "Refunded %s - Reason: %s",
		NoteRefundedInstant:  "Refunded %s - Refund ID: %s - Reason: %s",
		NoteRefundIssuer:     "Refund failed: Issuer does not support automatic refund",
		NoteRefundError:      "Refund returned error: %s",
		NoteTimedOut:         "Bluecode payment timed out and was cancelled",
		OAuthSucceeded:       "Token successfully retrieved, authorization succeeded",
		OAuthFailed:          "Token could not be retrieved, authorization failed",
		OAuthNoCode:          "No code obtained, authorization failed",
		OAuthClose:           "Close",
	},
	"de": {
		NewCustomer:          "(Neukunde)",
		TxIDNotUnique:        "Bestellnummer bereits verwendet, bitte legen Sie eine neue Bestellung an",
		TryAgainLater:        "Zahlung konnte nicht gestartet werden, bitte später erneut versuchen",
		ConnectionTimedOut:   "Zeitüberschreitung der Bluecode-Verbindung, bitte später erneut versuchen.",
		ConfigurationError:   "Die Konfigurationsdaten des Plugins sind fehlerhaft",
		PaymentFailed:        "Bluecode-Zahlung fehlgeschlagen",
		PaymentDeclined:      "Zahlung der Bestellung über Bluecode abgelehnt",
		PaymentCancelled:     "Zahlung der Bestellung über Bluecode abgebrochen",
		PaymentCancelledUser: "Bluecode-Zahlung wurde vom Benutzer abgebrochen",
		PaymentError:         "Zahlung der Bestellung über Bluecode fehlgeschlagen",
		GeneralFailure:       "Allgemeiner Fehler",
		ThankYou:             "Vielen Dank für Ihren Einkauf!",

		NotePaid:             "Bestellung erfolgreich mit Bluecode bezahlt, Transaktions-ID %s",
		NoteDeclined:         "Zahlung über Bluecode abgelehnt, Transaktions-ID %s",
		NoteCancelled:        "Zahlung über Bluecode abgebrochen, Transaktions-ID %s",
		NoteFailed:           "Zahlung über Bluecode fehlgeschlagen, Fehlercode '%s'",
		NoteStatus:           "Bestellstatus ist %s",
		NoteReceiptFailed:    "Beleg konnte nicht erstellt werden, Transaktions-ID %s",
		NoteCancelledByBuyer: "Bestellung vom Kunden abgebrochen",
		NoteRefunded:         "Erstattet %s - Grund: %s",
		NoteRefundedInstant:  "Erstattet %s - Erstattungs-ID: %s - Grund: %s",
		NoteRefundIssuer:     "Erstattung fehlgeschlagen: Herausgeber unterstützt keine automatische Erstattung",
		NoteRefundError:      "Erstattung lieferte Fehler: %s",
		NoteTimedOut:         "Bluecode-Zahlung wegen Zeitüberschreitung abgebrochen",
		OAuthSucceeded:       "Token erfolgreich abgerufen, Autorisierung erfolgreich",
		OAuthFailed:          "Token konnte nicht abgerufen werden, Autorisierung fehlgeschlagen",
		OAuthNoCode:          "Kein Code erhalten, Autorisierung fehlgeschlagen",
		OAuthClose:           "Schließen",
	},
}

// Catalog resolves message keys for one language.
type Catalog struct {
	lang string
}

// New returns the catalog for lang, falling back to English.
func New(lang string) Catalog {
	if _, ok := catalogs[lang]; !ok {
		lang = "en"
	}
	return Catalog{lang: lang}
}

// Language is the resolved language code.
func (c Catalog) Language() string {
	if c.lang == "" {
		return "en"
	}
	return c.lang
}

// Text returns the message for key.
func (c Catalog) Text(key Key) string {
	if s, ok := catalogs[c.Language()][key]; ok {
		return s
	}
	return catalogs["en"][key]
}

// Format fills the message's verbs with args.
func (c Catalog) Format(key Key, args ...any) string {
	return fmt.Sprintf(c.Text(key), args...)
}
