package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/bluecode/internal/application"
	"github.com/cassiomorais/bluecode/internal/application/messages"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// defaultPollInterval is used when the provider omits check_status_in.
const defaultPollInterval = time.Second

// OutcomeKind is the final verdict of one reconciliation.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeTerminalError OutcomeKind = "terminal_error"
	OutcomeTimeout       OutcomeKind = "timeout"
)

// Outcome is what the checkout flow acts on after registering a payment.
type Outcome struct {
	Kind        OutcomeKind
	CheckinCode string
	Result      string
	ErrorCode   string
	// Message is the buyer-facing notice for failed outcomes.
	Message string
	// Final is the last provider response seen, for callers that want the
	// raw status instead of a redirect.
	Final *bluecode.Envelope
	// Polled is set when the provider answered PROCESSING.
	Polled       bool
	Polls        int
	TTL          time.Duration
	PollInterval time.Duration
	// Err is set when the provider could not be reached during polling.
	Err error
}

// OK reports a successful outcome.
func (o *Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// AsError returns the outcome as an error, nil on success.
func (o *Outcome) AsError() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeTimeout:
		return fmt.Errorf("%w: %s", domainErrors.ErrTimeout, o.Message)
	}
	if o.Err != nil {
		return o.Err
	}
	return &domainErrors.ProviderError{Result: o.Result, ErrorCode: o.ErrorCode, Message: o.Message}
}

// TransactionState maps the outcome onto the transaction record.
func (o *Outcome) TransactionState() transaction.State {
	switch o.Kind {
	case OutcomeSuccess:
		if st, ok := transaction.ParseState(o.Final.PaymentState()); ok && st == transaction.StateApproved {
			return st
		}
		return transaction.StateRegistered
	case OutcomeTimeout:
		return transaction.StateTimedOut
	}
	if st, ok := transaction.ParseState(o.Final.PaymentState()); ok && st.IsTerminal() && st != transaction.StateApproved {
		return st
	}
	return transaction.StateError
}

// StatusChecker is what the reconciler needs from the provider. StatusOnce
// must not retry: the poll loop is already bounded by the provider's ttl.
type StatusChecker interface {
	StatusOnce(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error)
	Cancel(ctx context.Context, merchantTxID string) (bool, error)
}

// Reconciler turns a register response into a final verdict, polling the
// provider while it reports PROCESSING.
type Reconciler struct {
	provider StatusChecker
	clock    application.Clock
	catalog  messages.Catalog
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewReconciler(provider StatusChecker, clock application.Clock, catalog messages.Catalog, metrics *observability.Metrics, logger zerolog.Logger) *Reconciler {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Reconciler{
		provider: provider,
		clock:    clock,
		catalog:  catalog,
		metrics:  metrics,
		logger:   observability.Component(logger, "reconciler"),
	}
}

// Reconcile returns once the payment is registered, rejected, or the
// provider's polling budget ran out. On timeout the payment is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, merchantTxID string, reg *bluecode.RegisterResult) *Outcome {
	ctx, span := observability.Tracer().Start(ctx, "payment.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("bluecode.merchant_tx_id", merchantTxID))

	out := r.reconcile(ctx, merchantTxID, reg)

	span.SetAttributes(
		attribute.String("bluecode.outcome", string(out.Kind)),
		attribute.Int("bluecode.polls", out.Polls),
	)
	if !out.OK() {
		span.SetStatus(codes.Error, out.Message)
	}
	r.metrics.ReconcileOutcomes.WithLabelValues(string(out.Kind)).Inc()
	if out.Polled {
		r.metrics.ReconcilePolls.Observe(float64(out.Polls))
	}
	r.logger.Info().
		Str("merchant_tx_id", merchantTxID).
		Str("outcome", string(out.Kind)).
		Str("result", out.Result).
		Str("error_code", out.ErrorCode).
		Int("polls", out.Polls).
		Msg("reconciliation finished")
	return out
}

func (r *Reconciler) reconcile(ctx context.Context, merchantTxID string, reg *bluecode.RegisterResult) *Outcome {
	if reg == nil {
		return &Outcome{Kind: OutcomeTerminalError, Message: r.catalog.Text(messages.TryAgainLater)}
	}
	env := &reg.Envelope
	if env.OK() {
		return &Outcome{Kind: OutcomeSuccess, CheckinCode: reg.CheckinCode(), Result: env.Result, Final: env}
	}
	if !env.Processing() {
		return r.rejected(env)
	}

	out := &Outcome{Polled: true}
	if env.Status != nil {
		out.TTL = env.Status.TTLDuration()
		out.PollInterval = env.Status.Interval()
	}
	if out.PollInterval <= 0 {
		out.PollInterval = defaultPollInterval
	}

	r.metrics.ActivePolls.Inc()
	defer r.metrics.ActivePolls.Dec()

	deadline := r.clock.Now().Add(out.TTL)
	var last *bluecode.Envelope
	for now := r.clock.Now(); !now.After(deadline); now = r.clock.Now() {
		if err := r.clock.Sleep(ctx, out.PollInterval); err != nil {
			break
		}
		res, err := r.provider.StatusOnce(ctx, merchantTxID)
		out.Polls++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			r.logger.Error().Err(err).Str("merchant_tx_id", merchantTxID).Msg("status poll failed")
			out.Kind = OutcomeTerminalError
			out.Err = err
			out.Message = r.catalog.Text(messages.ConfigurationError)
			return out
		}
		if !res.Processing() {
			last = &res.Envelope
			break
		}
	}

	if last == nil {
		r.cancel(ctx, merchantTxID)
		out.Kind = OutcomeTimeout
		out.Result = bluecode.ResultProcessing
		out.Message = r.catalog.Text(messages.ConnectionTimedOut)
		return out
	}

	out.Final = last
	out.Result = last.Result
	out.ErrorCode = last.ErrorCode
	if last.OK() {
		switch last.PaymentState() {
		case string(transaction.StateRegistered), string(transaction.StateApproved):
			out.Kind = OutcomeSuccess
			out.CheckinCode = last.Payment.CheckinCode
			return out
		}
	}
	out.Kind = OutcomeTerminalError
	out.Message = r.rejectionMessage(last)
	return out
}

func (r *Reconciler) rejected(env *bluecode.Envelope) *Outcome {
	return &Outcome{
		Kind:      OutcomeTerminalError,
		Result:    env.Result,
		ErrorCode: env.ErrorCode,
		Message:   r.rejectionMessage(env),
		Final:     env,
	}
}

func (r *Reconciler) rejectionMessage(env *bluecode.Envelope) string {
	switch {
	case env.ErrorCode == bluecode.ErrorCodeTxIDNotUnique:
		return r.catalog.Text(messages.TxIDNotUnique)
	case env.ErrorCode != "":
		return fmt.Sprintf("%s (%s)", env.Result, env.ErrorCode)
	default:
		return r.catalog.Text(messages.TryAgainLater)
	}
}

// cancel abandons a timed-out payment. Its outcome does not matter.
func (r *Reconciler) cancel(ctx context.Context, merchantTxID string) {
	ok, err := r.provider.Cancel(context.WithoutCancel(ctx), merchantTxID)
	if err != nil || !ok {
		r.logger.Warn().Err(err).Bool("accepted", ok).Str("merchant_tx_id", merchantTxID).Msg("cancel after timeout not accepted")
	}
}
