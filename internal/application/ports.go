package application

import (
	"context"
	"time"
)

// Locker serialises work on a key across processes. The returned release
// function is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// StateStore keeps single-use OAuth2 state values.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume deletes state and reports whether it existed.
	Consume(ctx context.Context, state string) (bool, error)
}

// Clock abstracts wall time so polling can be tested without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
