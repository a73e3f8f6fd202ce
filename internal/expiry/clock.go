// Package expiry computes token expiration state from the credential store.
package expiry

import (
	"context"
	"time"

	"github.com/spec-kit/marketplace-client/internal/credstore"
)

// Clock answers expiration questions for the persisted token.
type Clock struct {
	store credstore.Store
	now   func() time.Time
}

// NewClock builds a Clock over the given store.
func NewClock(store credstore.Store) *Clock {
	return NewClockAt(store, time.Now)
}

// NewClockAt builds a Clock with an injected time source.
func NewClockAt(store credstore.Store, now func() time.Time) *Clock {
	return &Clock{store: store, now: now}
}

// IsExpired reports whether a stored expiration exists and has passed.
// A missing or unparseable expiration is trusted rather than treated as
// instantly invalid.
func (c *Clock) IsExpired(ctx context.Context) bool {
	expiresAt, ok := c.ExpiresAt(ctx)
	if !ok {
		return false
	}
	return !expiresAt.After(c.now())
}

// TimeRemaining returns how long until the stored expiration, or zero when
// none is stored or it has already passed.
func (c *Clock) TimeRemaining(ctx context.Context) time.Duration {
	expiresAt, ok := c.ExpiresAt(ctx)
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StoreExpiration persists an expiration the given number of minutes from now.
func (c *Clock) StoreExpiration(ctx context.Context, minutes int) time.Time {
	expiresAt := c.now().Add(time.Duration(minutes) * time.Minute)
	c.store.Set(ctx, credstore.KeyTokenExpiresAt, expiresAt.Format(time.RFC3339))
	return expiresAt
}

// ExpiresAt returns the stored expiration timestamp, if any.
func (c *Clock) ExpiresAt(ctx context.Context) (time.Time, bool) {
	raw, ok := c.store.Get(ctx, credstore.KeyTokenExpiresAt)
	if !ok {
		return time.Time{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return expiresAt, true
}
