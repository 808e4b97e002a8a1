package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/bluecode/internal/application/messages"
	"github.com/cassiomorais/bluecode/internal/application/receipt"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/cassiomorais/bluecode/pkg/saga"
	"github.com/rs/zerolog"
)

// timeoutErrorCode is reported to the mini-app when polling ran out.
const timeoutErrorCode = "9999"

// CheckoutError carries the buyer-facing notice for a failed checkout.
type CheckoutError struct {
	Notice string
	Err    error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("%s: %v", e.Notice, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// ProcessResult tells the storefront where to send the buyer.
type ProcessResult struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect"`
}

// InitData is what the mini-app needs to hand the payment to the wallet.
type InitData struct {
	Checkin string `json:"checkin"`
	Success string `json:"success"`
	Fail    string `json:"fail"`
	Cancel  string `json:"cancel"`
}

// InitResult is the mini-app init_payment reply. State is 1 on success.
type InitResult struct {
	State int       `json:"state"`
	Error string    `json:"error"`
	Data  *InitData `json:"data,omitempty"`
}

// CheckoutConfig holds the storefront identity used when registering.
type CheckoutConfig struct {
	PublicBaseURL string
	Shop          receipt.Shop
}

// CheckoutService starts payments for storefront orders.
type CheckoutService struct {
	orders     order.Store
	txRepo     transaction.Repository
	txManager  TransactionManager
	provider   Provider
	reconciler *Reconciler
	cfg        CheckoutConfig
	catalog    messages.Catalog
	now        func() time.Time
	logger     zerolog.Logger
}

func NewCheckoutService(
	orders order.Store,
	txRepo transaction.Repository,
	txManager TransactionManager,
	provider Provider,
	reconciler *Reconciler,
	cfg CheckoutConfig,
	catalog messages.Catalog,
	logger zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:     orders,
		txRepo:     txRepo,
		txManager:  txManager,
		provider:   provider,
		reconciler: reconciler,
		cfg:        cfg,
		catalog:    catalog,
		now:        time.Now,
		logger:     observability.Component(logger, "checkout"),
	}
}

// IsMiniApp reports whether the request comes from a wallet's embedded
// browser.
func IsMiniApp(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "bluecode") || strings.Contains(ua, "huawei wallet")
}

// ProcessPayment is called when the buyer places the order. Inside a mini-app
// the payment is started by the wallet script instead, so the buyer is only
// routed to the right page.
func (s *CheckoutService) ProcessPayment(ctx context.Context, orderID int64, userAgent string) (*ProcessResult, error) {
	if IsMiniApp(userAgent) {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == order.StatusCompleted {
			return &ProcessResult{Result: "success", Redirect: o.ReturnURL}, nil
		}
		return &ProcessResult{Result: "success", Redirect: o.PaymentURL}, nil
	}

	out, _, err := s.initiate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, &CheckoutError{Notice: out.Message, Err: out.AsError()}
	}
	return &ProcessResult{Result: "success", Redirect: out.CheckinCode}, nil
}

// InitPayment registers the payment for the mini-app and returns the raw
// verdict instead of a redirect.
func (s *CheckoutService) InitPayment(ctx context.Context, orderID int64) (*InitResult, error) {
	out, urls, err := s.initiate(ctx, orderID)
	if err != nil {
		var ce *CheckoutError
		if errors.As(err, &ce) {
			return &InitResult{State: 0, Error: ce.Notice}, nil
		}
		return nil, err
	}

	switch out.Kind {
	case OutcomeSuccess:
		data := &InitData{
			Checkin: out.CheckinCode,
			Success: urls.Success,
			Fail:    urls.Failure,
			Cancel:  urls.Cancel,
		}
		if out.Polled && out.Final != nil && out.Final.Payment != nil {
			p := out.Final.Payment
			data.Success, data.Fail, data.Cancel = p.ReturnURLSuccess, p.ReturnURLFailure, p.ReturnURLCancel
		}
		return &InitResult{State: 1, Data: data}, nil
	case OutcomeTimeout:
		return &InitResult{State: 0, Error: fmt.Sprintf("%s (%s)", out.Message, timeoutErrorCode)}, nil
	}
	if out.ErrorCode != "" {
		return &InitResult{State: 0, Error: fmt.Sprintf("%s (%s)", out.Result, out.ErrorCode)}, nil
	}
	return &InitResult{State: 0, Error: out.Message}, nil
}

// initiate registers the order with the provider and reconciles the reply.
// Registration and bookkeeping run as a saga so a payment we fail to record
// is cancelled at the provider again.
func (s *CheckoutService) initiate(ctx context.Context, orderID int64) (*Outcome, CallbackURLs, error) {
	urls := NewCallbackURLs(s.cfg.PublicBaseURL, orderID)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, urls, err
	}
	if o.Currency != settings.SupportedCurrency {
		return nil, urls, domainErrors.NewDomainError("unsupported_currency", "order currency "+o.Currency+" is not supported", domainErrors.ErrUnsupportedCurrency)
	}
	if o.Status != order.StatusPending {
		return nil, urls, domainErrors.ErrOrderNotPending
	}

	merchant, err := s.provider.Merchant(ctx)
	if err != nil {
		return nil, urls, s.notice(err)
	}

	merchantTxID := strconv.FormatInt(o.ID, 10)
	logger := observability.ForOrder(s.logger, o.ID, merchantTxID)

	customerID := ""
	if !o.IsGuest() {
		customerID = strconv.FormatInt(o.CustomerID, 10)
	}
	req := bluecode.RegisterRequest{
		MerchantTxID: merchantTxID,
		SlipDateTime: s.now(),
		Currency:     o.Currency,
		Amount:       bluecode.DecimalToMinorUnits(o.Total),
		BranchID:     merchant.BranchID,
		Terminal:     s.cfg.Shop.URL,
		Slip: receipt.BuildPurpose(merchant.PurposeTemplate, receipt.PurposeData{
			OrderID:    o.Number,
			ShopName:   s.cfg.Shop.Name,
			CustomerID: customerID,
		}, s.catalog.Text(messages.NewCustomer)),
		CallbackURL:      urls.Notify,
		ReturnURLSuccess: urls.Success,
		ReturnURLFailure: urls.Failure,
		ReturnURLCancel:  urls.Cancel,
	}

	var out *Outcome
	sg := saga.New("register-payment").
		AddStep(saga.Step{
			Name: "register",
			Execute: func(ctx context.Context) error {
				reg, err := s.provider.Register(ctx, req)
				if err != nil {
					return err
				}
				out = s.reconciler.Reconcile(ctx, merchantTxID, reg)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if out == nil || !out.OK() {
					return nil
				}
				logger.Warn().Msg("cancelling registered payment that could not be recorded")
				_, err := s.provider.Cancel(ctx, merchantTxID)
				return err
			},
		}).
		AddStep(saga.Step{
			Name: "record-transaction",
			Execute: func(ctx context.Context) error {
				return s.record(ctx, o.ID, merchantTxID, out)
			},
		})

	if err := sg.Execute(ctx); err != nil {
		logger.Error().Err(err).Msg("payment registration failed")
		return nil, urls, s.notice(err)
	}
	return out, urls, nil
}

// record stores the attempt. A retry for an order whose previous attempt is
// still open overwrites it; a finished attempt is left alone.
func (s *CheckoutService) record(ctx context.Context, orderID int64, merchantTxID string, out *Outcome) error {
	tx, err := transaction.New(merchantTxID, orderID)
	if err != nil {
		return err
	}
	if err := applyOutcome(tx, out); err != nil {
		return err
	}

	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		err := s.txRepo.Create(ctx, tx)
		if !errors.Is(err, domainErrors.ErrTransactionExists) {
			return err
		}
		existing, err := s.txRepo.GetByMerchantTxID(ctx, merchantTxID)
		if err != nil {
			return err
		}
		if existing.IsTerminal() {
			s.logger.Info().Str("merchant_tx_id", merchantTxID).Str("state", string(existing.State)).Msg("transaction already final, not overwritten")
			return nil
		}
		tx.ID = existing.ID
		tx.CreatedAt = existing.CreatedAt
		return s.txRepo.Update(ctx, tx)
	})
}

func applyOutcome(tx *transaction.Transaction, out *Outcome) error {
	if out.Polled {
		if err := tx.MarkProcessing(out.TTL, out.PollInterval); err != nil {
			return err
		}
	}
	switch st := out.TransactionState(); st {
	case transaction.StateRegistered:
		return tx.MarkRegistered(out.CheckinCode)
	case transaction.StateApproved:
		tx.CheckinCode = out.CheckinCode
		acquirerTxID := ""
		if out.Final != nil && out.Final.Payment != nil {
			acquirerTxID = out.Final.Payment.AcquirerTxID
		}
		return tx.MarkApproved(acquirerTxID)
	case transaction.StateTimedOut:
		return tx.TransitionTo(st)
	default:
		return tx.MarkFailed(st, out.Result, out.ErrorCode)
	}
}

// notice wraps err with the buyer-facing text. Internals never reach the
// buyer.
func (s *CheckoutService) notice(err error) error {
	switch {
	case errors.Is(err, domainErrors.ErrOrderNotFound),
		errors.Is(err, domainErrors.ErrOrderNotPending),
		errors.Is(err, domainErrors.ErrUnsupportedCurrency):
		return err
	case errors.Is(err, domainErrors.ErrTimeout):
		return &CheckoutError{Notice: s.catalog.Text(messages.ConnectionTimedOut), Err: err}
	}
	return &CheckoutError{Notice: s.catalog.Text(messages.ConfigurationError), Err: err}
}
