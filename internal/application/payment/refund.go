package payment

import (
	"context"
	"fmt"

	"github.com/cassiomorais/bluecode/internal/application/messages"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RefundResult reports whether the provider accepted a refund and the note
// written to the order.
type RefundResult struct {
	Refunded bool   `json:"refunded"`
	Note     string `json:"note"`
}

// RefundService returns money for paid orders.
type RefundService struct {
	orders   order.Store
	provider Provider
	catalog  messages.Catalog
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewRefundService(orders order.Store, provider Provider, catalog messages.Catalog, metrics *observability.Metrics, logger zerolog.Logger) *RefundService {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &RefundService{
		orders:   orders,
		provider: provider,
		catalog:  catalog,
		metrics:  metrics,
		logger:   observability.Component(logger, "refunds"),
	}
}

// Refund asks the provider to return amount of the order's payment. A nil
// amount refunds the order total. Provider failures end up as order notes
// and a false result, not as errors.
func (s *RefundService) Refund(ctx context.Context, orderID int64, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.TransactionID == "" {
		return nil, domainErrors.NewDomainError("not_refundable", "order has no settled payment", domainErrors.ErrNotRefundable)
	}

	value := o.Total
	if amount != nil {
		value = *amount
	}
	if !value.IsPositive() || value.GreaterThan(o.Total) {
		return nil, domainErrors.NewValidationError("amount", "must be positive and not exceed the order total")
	}

	logger := observability.ForOrder(s.logger, o.ID, "").With().Str("acquirer_tx_id", o.TransactionID).Logger()

	res, err := s.provider.Refund(ctx, o.TransactionID, bluecode.DecimalToMinorUnits(value), reason)
	var note string
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("refund call failed")
		s.metrics.Refunds.WithLabelValues("error").Inc()
		note = s.catalog.Format(messages.NoteRefundError, err.Error())
	case res.OK():
		s.metrics.Refunds.WithLabelValues("success").Inc()
		if res.InstantRefund != nil {
			note = s.catalog.Format(messages.NoteRefundedInstant, fmt.Sprint(res.InstantRefund.RefundableAmount), res.InstantRefund.EndToEndID, reason)
		} else {
			note = s.catalog.Format(messages.NoteRefunded, value.StringFixed(2), reason)
		}
	case res.ErrorCode == bluecode.ErrorCodeIssuerFailure:
		s.metrics.Refunds.WithLabelValues("issuer_failure").Inc()
		note = s.catalog.Text(messages.NoteRefundIssuer)
	default:
		s.metrics.Refunds.WithLabelValues("rejected").Inc()
		note = s.catalog.Format(messages.NoteRefundError, fmt.Sprintf("%s (%s)", res.Result, res.ErrorCode))
	}

	if err := s.orders.AddNote(ctx, o.ID, note); err != nil {
		logger.Error().Err(err).Msg("failed to add refund note")
	}
	refunded := err == nil && res.OK()
	logger.Info().Bool("refunded", refunded).Str("amount", value.StringFixed(2)).Msg("refund processed")
	return &RefundResult{Refunded: refunded, Note: note}, nil
}
