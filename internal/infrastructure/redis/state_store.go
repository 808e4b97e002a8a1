package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const oauthStatePrefix = "bluecode:oauth_state:"

// OAuthStateStore keeps single-use OAuth2 state values until they are
// consumed or expire.
type OAuthStateStore struct {
	client *redis.Client
}

func NewOAuthStateStore(client *redis.Client) *OAuthStateStore {
	return &OAuthStateStore{client: client}
}

func (s *OAuthStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, oauthStatePrefix+state, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// Consume deletes state and reports whether it was still valid.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, oauthStatePrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return true, nil
}
