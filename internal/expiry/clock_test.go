package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/marketplace-client/internal/credstore"
)

func fixedClock(store credstore.Store, at time.Time) *Clock {
	return NewClockAt(store, func() time.Time { return at })
}

func TestClock_NoExpirationStored(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(credstore.NewMemory(), time.Now())

	if clock.IsExpired(ctx) {
		t.Error("missing expiration must be trusted, not treated as expired")
	}
	if remaining := clock.TimeRemaining(ctx); remaining != 0 {
		t.Errorf("expected zero remaining, got %v", remaining)
	}
}

func TestClock_StoreExpirationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := fixedClock(store, now)

	expiresAt := clock.StoreExpiration(ctx, 480)
	if want := now.Add(480 * time.Minute); !expiresAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, expiresAt)
	}

	stored, ok := clock.ExpiresAt(ctx)
	if !ok || !stored.Equal(expiresAt.Truncate(time.Second)) {
		t.Errorf("expected stored expiration %v, got %v (present=%v)", expiresAt, stored, ok)
	}
	if clock.IsExpired(ctx) {
		t.Error("future expiration reported as expired")
	}
	if remaining := clock.TimeRemaining(ctx); remaining != 480*time.Minute {
		t.Errorf("expected 480m remaining, got %v", remaining)
	}
}

func TestClock_PastExpiration(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.Set(ctx, credstore.KeyTokenExpiresAt, now.Add(-time.Minute).Format(time.RFC3339))
	clock := fixedClock(store, now)

	if !clock.IsExpired(ctx) {
		t.Error("past expiration not reported as expired")
	}
	if remaining := clock.TimeRemaining(ctx); remaining != 0 {
		t.Errorf("expected zero remaining, got %v", remaining)
	}
}

func TestClock_ExpirationExactlyNow(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.Set(ctx, credstore.KeyTokenExpiresAt, now.Format(time.RFC3339))
	clock := fixedClock(store, now)

	if !clock.IsExpired(ctx) {
		t.Error("expiration equal to now must count as expired")
	}
}

func TestClock_UnparseableExpirationTrusted(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	store.Set(ctx, credstore.KeyTokenExpiresAt, "not-a-timestamp")
	clock := fixedClock(store, time.Now())

	if clock.IsExpired(ctx) {
		t.Error("unparseable expiration treated as expired")
	}
	if _, ok := clock.ExpiresAt(ctx); ok {
		t.Error("unparseable expiration reported as present")
	}
}
