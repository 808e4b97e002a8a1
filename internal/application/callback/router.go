// Package callback applies provider verdicts that arrive after checkout: the
// buyer's browser redirect, the server-to-server notification, and the
// worker's periodic re-sync. All three re-fetch the authoritative status and
// share one mapping onto the order, guarded by "only if still pending".
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cassiomorais/bluecode/internal/application"
	"github.com/cassiomorais/bluecode/internal/application/messages"
	"github.com/cassiomorais/bluecode/internal/application/receipt"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Channel string

const (
	ChannelRedirect Channel = "redirect"
	ChannelNotify   Channel = "notify"
	ChannelSweep    Channel = "sweep"
)

// serverGeneralFailure is noted when a failed payment carries no code and
// no buyer is around to read a localized text.
const serverGeneralFailure = "GENERAL FAILURE"

const notifySchema = `{
  "type": "object",
  "required": ["merchant_tx_id"],
  "properties": {
    "merchant_tx_id": {"type": "string", "minLength": 1},
    "acquirer_tx_id": {"type": "string"},
    "state": {"type": "string"}
  }
}`

// Provider is what the router needs from the provider facade.
type Provider interface {
	Merchant(ctx context.Context) (*settings.MerchantConfig, error)
	Status(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error)
	Receipt(ctx context.Context, r *bluecode.ReceiptRequest) (int, error)
}

// Verdict is the result of applying one callback.
type Verdict struct {
	OrderID int64
	// State is the provider's payment.state, empty when it could not be read.
	State string
	// Applied is set when this call moved the order out of pending.
	Applied bool
	// Notice is shown to the buyer. Only redirects carry one.
	Notice      string
	RedirectURL string
}

// Event describes a verdict that moved an order out of pending.
type Event struct {
	OrderID      int64
	MerchantTxID string
	AcquirerTxID string
	State        string
	Channel      Channel
	At           time.Time
}

// EventPublisher forwards applied verdicts to downstream consumers.
type EventPublisher interface {
	PublishVerdict(ctx context.Context, e Event) error
}

type Option func(*Router)

// WithEvents publishes every applied verdict.
func WithEvents(p EventPublisher) Option {
	return func(r *Router) { r.events = p }
}

// WithClock overrides the time source used on receipts and events.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

type notifyBody struct {
	MerchantTxID string `json:"merchant_tx_id"`
	AcquirerTxID string `json:"acquirer_tx_id"`
}

// Router maps provider verdicts onto orders.
type Router struct {
	orders   order.Store
	txRepo   transaction.Repository
	provider Provider
	locker   application.Locker
	events   EventPublisher
	schema   *gojsonschema.Schema
	shop     receipt.Shop
	catalog  messages.Catalog
	now      func() time.Time
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewRouter builds a Router. locker may be nil, in which case callbacks for
// the same order are not serialised and only the pending guard applies.
func NewRouter(
	orders order.Store,
	txRepo transaction.Repository,
	provider Provider,
	locker application.Locker,
	shop receipt.Shop,
	catalog messages.Catalog,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *Router {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(notifySchema))
	if err != nil {
		panic(fmt.Sprintf("callback: invalid notify schema: %v", err))
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	r := &Router{
		orders:   orders,
		txRepo:   txRepo,
		provider: provider,
		locker:   locker,
		schema:   schema,
		shop:     shop,
		catalog:  catalog,
		now:      time.Now,
		metrics:  metrics,
		logger:   observability.Component(logger, "callback"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleRedirect handles the buyer returning from the provider. It never
// fails because of the provider: the buyer is always sent somewhere.
func (r *Router) HandleRedirect(ctx context.Context, orderID int64, state string) (*Verdict, error) {
	ctx, span := observability.Tracer().Start(ctx, "callback.redirect")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.String("bluecode.redirect_state", state))

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	release := r.lock(ctx, orderID)
	defer release()

	if state == "cancel" {
		return r.buyerCancelled(ctx, o), nil
	}

	v, err := r.apply(ctx, ChannelRedirect, o, "")
	if err != nil {
		r.logger.Warn().Err(err).Int64("order_id", orderID).Msg("status unavailable on redirect")
		span.SetStatus(codes.Error, err.Error())
		r.record(ChannelRedirect, "", false)
		return &Verdict{
			OrderID:     orderID,
			Notice:      r.catalog.Text(messages.PaymentFailed),
			RedirectURL: o.CancelURL,
		}, nil
	}
	return v, nil
}

// HandleNotify handles the provider's server-to-server notification. The
// body only identifies the payment; its state is re-read from the provider.
func (r *Router) HandleNotify(ctx context.Context, body []byte) (*Verdict, error) {
	ctx, span := observability.Tracer().Start(ctx, "callback.notify")
	defer span.End()

	n, err := r.parseNotify(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	orderID, err := strconv.ParseInt(n.MerchantTxID, 10, 64)
	if err != nil || orderID <= 0 {
		return nil, domainErrors.NewValidationError("merchant_tx_id", "must be an order id")
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	release := r.lock(ctx, orderID)
	defer release()

	v, err := r.apply(ctx, ChannelNotify, o, n.AcquirerTxID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.record(ChannelNotify, "", false)
		return nil, err
	}
	return v, nil
}

// Resync re-reads the status of an order whose callbacks may have been lost.
func (r *Router) Resync(ctx context.Context, orderID int64) (*Verdict, error) {
	ctx, span := observability.Tracer().Start(ctx, "callback.resync")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	release := r.lock(ctx, orderID)
	defer release()

	v, err := r.apply(ctx, ChannelSweep, o, "")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.record(ChannelSweep, "", false)
		return nil, err
	}
	return v, nil
}

func (r *Router) parseNotify(body []byte) (*notifyBody, error) {
	result, err := r.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, domainErrors.NewValidationError("body", "must be a JSON object")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, domainErrors.NewValidationError(first.Field(), first.Description())
	}
	var n notifyBody
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, domainErrors.NewValidationError("body", err.Error())
	}
	return &n, nil
}

// lock serialises callbacks for one order. A lock that cannot be taken is
// logged and skipped; the pending guard still prevents double transitions.
func (r *Router) lock(ctx context.Context, orderID int64) func() {
	if r.locker == nil {
		return func() {}
	}
	release, err := r.locker.Acquire(ctx, "bluecode:order:"+strconv.FormatInt(orderID, 10))
	if err != nil {
		r.logger.Warn().Err(err).Int64("order_id", orderID).Msg("order lock unavailable, continuing unlocked")
		return func() {}
	}
	return func() { release(context.WithoutCancel(ctx)) }
}

// buyerCancelled handles a buyer who aborted on the provider's page. The
// provider is never asked to cancel here: the request is unauthenticated and
// only the reconciler cancels. The status is re-read instead, so a payment
// that completed anyway is still applied, and one that is still open leaves
// the order pending for notify or the sweeper to settle.
func (r *Router) buyerCancelled(ctx context.Context, o *order.Order) *Verdict {
	logger := observability.ForOrder(r.logger, o.ID, strconv.FormatInt(o.ID, 10))
	notice := r.catalog.Text(messages.PaymentCancelledUser)

	if o.Status != order.StatusPending {
		logger.Info().Str("order_status", string(o.Status)).Msg("buyer cancel ignored, order not pending")
		r.record(ChannelRedirect, "", false)
		return &Verdict{OrderID: o.ID, RedirectURL: o.ReturnURL}
	}

	v, err := r.apply(ctx, ChannelRedirect, o, "")
	if err != nil {
		logger.Warn().Err(err).Msg("status unavailable on buyer cancel")
		r.record(ChannelRedirect, "", false)
		return &Verdict{OrderID: o.ID, Notice: notice, RedirectURL: o.CancelURL}
	}
	if !transaction.State(v.State).IsTerminal() {
		r.note(ctx, o.ID, r.catalog.Text(messages.NoteCancelledByBuyer))
		v.Notice = notice
		v.RedirectURL = o.CancelURL
	}
	return v
}

// apply fetches the provider status and maps it onto the order.
func (r *Router) apply(ctx context.Context, ch Channel, o *order.Order, fallbackAcquirerID string) (*Verdict, error) {
	merchantTxID := strconv.FormatInt(o.ID, 10)
	logger := observability.ForOrder(r.logger, o.ID, merchantTxID).With().Str("channel", string(ch)).Logger()

	res, err := r.provider.Status(ctx, merchantTxID)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if !res.OK() || res.Payment == nil {
		return nil, fmt.Errorf("fetch status: %w", &domainErrors.ProviderError{Result: res.Result, ErrorCode: res.ErrorCode})
	}

	p := res.Payment
	acquirerID := p.AcquirerTxID
	if acquirerID == "" {
		acquirerID = fallbackAcquirerID
	}
	redirect := ch == ChannelRedirect
	v := &Verdict{OrderID: o.ID, State: p.State, RedirectURL: o.ReturnURL}

	switch p.State {
	case string(transaction.StateApproved):
		r.note(ctx, o.ID, r.catalog.Format(messages.NotePaid, acquirerID))
		v.Applied = r.markPaid(ctx, o.ID, acquirerID)
		if v.Applied {
			r.sendReceipt(ctx, o, acquirerID)
		}
		r.syncTransaction(ctx, merchantTxID, transaction.StateApproved, res.Result, "", acquirerID)

	case string(transaction.StateDeclined), string(transaction.StateCancelled):
		noticeKey, noteKey := messages.PaymentDeclined, messages.NoteDeclined
		if p.State == string(transaction.StateCancelled) {
			noticeKey, noteKey = messages.PaymentCancelled, messages.NoteCancelled
		}
		if redirect {
			v.Notice = r.catalog.Text(noticeKey)
		}
		v.RedirectURL = o.CancelURL
		r.note(ctx, o.ID, r.catalog.Format(noteKey, acquirerID))
		v.Applied = r.transition(ctx, o.ID, order.StatusFailed)
		r.syncTransaction(ctx, merchantTxID, transaction.State(p.State), res.Result, p.Code, "")

	case string(transaction.StateError), string(transaction.StateFailure):
		code := p.Code
		if code == "" {
			code = serverGeneralFailure
			if redirect {
				code = r.catalog.Text(messages.GeneralFailure)
			}
		}
		if redirect {
			v.Notice = r.catalog.Text(messages.PaymentError)
		}
		v.RedirectURL = o.CancelURL
		r.note(ctx, o.ID, r.catalog.Format(messages.NoteFailed, code))
		v.Applied = r.transition(ctx, o.ID, order.StatusFailed)
		r.syncTransaction(ctx, merchantTxID, transaction.State(p.State), res.Result, p.Code, "")

	default:
		// Still open at the provider. The sweeper asks again on its next run
		// so it leaves no note.
		if ch != ChannelSweep {
			r.note(ctx, o.ID, r.catalog.Format(messages.NoteStatus, p.State))
		}
	}

	logger.Info().Str("state", p.State).Bool("applied", v.Applied).Msg("provider verdict applied")
	r.record(ch, p.State, v.Applied)
	if v.Applied {
		r.publish(ctx, Event{OrderID: o.ID, MerchantTxID: merchantTxID, AcquirerTxID: acquirerID, State: p.State, Channel: ch})
	}
	return v, nil
}

// markPaid reports whether this call moved the order to paid.
func (r *Router) markPaid(ctx context.Context, orderID int64, acquirerID string) bool {
	err := r.orders.MarkPaid(ctx, orderID, acquirerID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, domainErrors.ErrOrderNotPending):
		return false
	}
	r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to mark order paid")
	return false
}

// transition reports whether this call moved the order to status.
func (r *Router) transition(ctx context.Context, orderID int64, status order.Status) bool {
	err := r.orders.SetStatus(ctx, orderID, status)
	switch {
	case err == nil:
		return true
	case errors.Is(err, domainErrors.ErrOrderNotPending):
		return false
	}
	r.logger.Error().Err(err).Int64("order_id", orderID).Str("status", string(status)).Msg("failed to update order status")
	return false
}

func (r *Router) note(ctx context.Context, orderID int64, text string) {
	if err := r.orders.AddNote(ctx, orderID, text); err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to add order note")
	}
}

// sendReceipt is best effort. A failure is left as a note for the merchant.
func (r *Router) sendReceipt(ctx context.Context, o *order.Order, acquirerID string) {
	merchant, err := r.provider.Merchant(ctx)
	if err == nil {
		var code int
		code, err = r.provider.Receipt(ctx, receipt.BuildReceipt(receipt.Input{
			Order:        o,
			BranchID:     merchant.BranchID,
			AcquirerTxID: acquirerID,
			Shop:         r.shop,
			Notes:        r.catalog.Text(messages.ThankYou),
			At:           r.now(),
		}))
		if err == nil && code != 200 {
			err = fmt.Errorf("receipt rejected with http %d", code)
		}
	}
	if err != nil {
		r.logger.Warn().Err(err).Int64("order_id", o.ID).Msg("receipt not created")
		r.note(ctx, o.ID, r.catalog.Format(messages.NoteReceiptFailed, acquirerID))
	}
}

// syncTransaction mirrors the verdict onto the transaction record. Terminal
// records are left alone.
func (r *Router) syncTransaction(ctx context.Context, merchantTxID string, st transaction.State, result, errorCode, acquirerID string) {
	tx, err := r.txRepo.GetByMerchantTxID(ctx, merchantTxID)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrTransactionNotFound) {
			r.logger.Error().Err(err).Str("merchant_tx_id", merchantTxID).Msg("failed to load transaction")
		}
		return
	}
	if tx.IsTerminal() {
		return
	}

	if st == transaction.StateApproved {
		err = tx.MarkApproved(acquirerID)
	} else {
		err = tx.MarkFailed(st, result, errorCode)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("merchant_tx_id", merchantTxID).Msg("transaction not updated")
		return
	}
	if err := r.txRepo.Update(ctx, tx); err != nil {
		r.logger.Error().Err(err).Str("merchant_tx_id", merchantTxID).Msg("failed to update transaction")
	}
}

// publish is best effort; the order is already updated.
func (r *Router) publish(ctx context.Context, e Event) {
	if r.events == nil {
		return
	}
	e.At = r.now()
	if err := r.events.PublishVerdict(ctx, e); err != nil {
		r.logger.Warn().Err(err).Int64("order_id", e.OrderID).Str("state", e.State).Msg("failed to publish verdict")
	}
}

func (r *Router) record(ch Channel, state string, applied bool) {
	if state == "" {
		state = "unavailable"
	}
	r.metrics.CallbackVerdicts.WithLabelValues(string(ch), state, strconv.FormatBool(applied)).Inc()
}
