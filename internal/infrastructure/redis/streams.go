package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/bluecode/internal/application/callback"
	"github.com/redis/go-redis/v9"
)

const (
	VerdictStream = "bluecode:verdicts"

	// verdictStreamMaxLen caps the stream; consumers are expected to keep up.
	verdictStreamMaxLen = 10000
)

// VerdictProducer publishes applied provider verdicts for storefront
// consumers (fulfilment, mailing) that react to paid or failed orders.
type VerdictProducer struct {
	client *redis.Client
	stream string
}

func NewVerdictProducer(client *redis.Client) *VerdictProducer {
	return &VerdictProducer{client: client, stream: VerdictStream}
}

func (p *VerdictProducer) PublishVerdict(ctx context.Context, e callback.Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: verdictStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"order_id":       e.OrderID,
			"merchant_tx_id": e.MerchantTxID,
			"acquirer_tx_id": e.AcquirerTxID,
			"state":          e.State,
			"channel":        string(e.Channel),
			"timestamp":      e.At.UTC().Format(time.RFC3339),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish verdict: %w", err)
	}
	return nil
}
