package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/bluecode/internal/application/callback"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TransactionStore is the part of transaction.Repository the sweeper uses.
type TransactionStore interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error)
	GetByMerchantTxID(ctx context.Context, merchantTxID string) (*transaction.Transaction, error)
	Update(ctx context.Context, tx *transaction.Transaction) error
	Touch(ctx context.Context, merchantTxID string, at time.Time) error
}

// Resyncer re-reads the provider status of one order.
type Resyncer interface {
	Resync(ctx context.Context, orderID int64) (*callback.Verdict, error)
}

// Cleaner purges expired idempotency keys.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type SweeperConfig struct {
	Interval    time.Duration
	StaleAfter  time.Duration
	BatchSize   int
	Concurrency int
	// GiveUpAfter closes attempts still open this long after they were
	// created. Zero keeps asking forever.
	GiveUpAfter time.Duration
}

// Sweeper periodically re-syncs orders whose redirect and notification were
// both lost, so they still leave pending. Every checked attempt is touched,
// so attempts the provider keeps open rotate to the back of the queue instead
// of filling every batch.
type Sweeper struct {
	txs     TransactionStore
	resync  Resyncer
	cleaner Cleaner
	cfg     SweeperConfig
	now     func() time.Time
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewSweeper(txs TransactionStore, resync Resyncer, cleaner Cleaner, cfg SweeperConfig, metrics *observability.Metrics, logger zerolog.Logger) *Sweeper {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		txs:     txs,
		resync:  resync,
		cleaner: cleaner,
		cfg:     cfg,
		now:     time.Now,
		metrics: metrics,
		logger:  observability.Component(logger, "sweeper"),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n, err := s.SweepOnce(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("sweep failed")
			continue
		}
		if n > 0 {
			s.logger.Info().Int("resynced", n).Msg("sweep finished")
		}
		if s.cleaner != nil {
			if removed, err := s.cleaner.Cleanup(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("idempotency cleanup failed")
			} else if removed > 0 {
				s.logger.Debug().Int64("removed", removed).Msg("expired idempotency keys removed")
			}
		}
	}
}

// SweepOnce re-syncs one batch of stale transactions and returns how many
// were looked at. Failures on single orders are logged, not returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := s.now()
	defer func() {
		s.metrics.WorkerProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	stale, err := s.txs.ListStale(ctx, start.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	// Several attempts may exist for one order; resync each order once.
	seen := make(map[int64]bool, len(stale))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, tx := range stale {
		if seen[tx.OrderID] {
			continue
		}
		seen[tx.OrderID] = true
		g.Go(func() error {
			s.resyncOne(gCtx, tx)
			s.settle(gCtx, tx)
			return nil
		})
	}
	g.Wait()
	return len(seen), nil
}

func (s *Sweeper) resyncOne(ctx context.Context, tx *transaction.Transaction) {
	logger := observability.ForOrder(s.logger, tx.OrderID, tx.MerchantTxID)

	v, err := s.resync.Resync(ctx, tx.OrderID)
	switch {
	case errors.Is(err, domainErrors.ErrOrderNotFound):
		logger.Warn().Msg("stale transaction without order")
		s.metrics.WorkerSweeps.WithLabelValues("orphaned").Inc()
	case err != nil:
		logger.Warn().Err(err).Msg("resync failed")
		s.metrics.WorkerSweeps.WithLabelValues("error").Inc()
	default:
		logger.Debug().Str("state", v.State).Bool("applied", v.Applied).Msg("resynced")
		status := "unchanged"
		if v.Applied {
			status = "applied"
		}
		s.metrics.WorkerSweeps.WithLabelValues(status).Inc()
	}
}

// settle touches an attempt that is still open after the resync, or closes it
// once it is older than GiveUpAfter. The record is re-read because the resync
// may already have finished it.
func (s *Sweeper) settle(ctx context.Context, stale *transaction.Transaction) {
	logger := observability.ForOrder(s.logger, stale.OrderID, stale.MerchantTxID)

	tx, err := s.txs.GetByMerchantTxID(ctx, stale.MerchantTxID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to reload transaction")
		return
	}
	if tx.IsTerminal() {
		return
	}

	now := s.now()
	if s.cfg.GiveUpAfter > 0 && now.Sub(tx.CreatedAt) >= s.cfg.GiveUpAfter {
		if err := tx.Abandon(); err != nil {
			logger.Warn().Err(err).Msg("transaction not abandoned")
			return
		}
		if err := s.txs.Update(ctx, tx); err != nil {
			logger.Error().Err(err).Msg("failed to abandon transaction")
			return
		}
		logger.Warn().Str("state", string(tx.State)).Time("created_at", tx.CreatedAt).Msg("transaction abandoned without verdict")
		s.metrics.WorkerSweeps.WithLabelValues("abandoned").Inc()
		return
	}

	if err := s.txs.Touch(ctx, tx.MerchantTxID, now); err != nil {
		logger.Warn().Err(err).Msg("failed to touch transaction")
	}
}
