package credstore

import "context"

// Persisted credential keys. Values are plain strings; callers own the
// serialization of anything structured.
const (
	KeyToken          = "token"
	KeyTokenExpiresAt = "token_expires_at"
	KeyIdentity       = "user"
	KeyPendingEmail   = "pendingVerificationEmail"
)

// Store is durable key/value storage for session credentials. Get reports
// absence via the boolean; implementations never surface storage errors to
// callers — an unreachable backend behaves as an empty store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
	Close() error
}

// Noop is a Store for contexts without durable storage; every read reports
// absent and writes are dropped.
type Noop struct{}

// NewNoop returns the no-op store.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) Get(context.Context, string) (string, bool) { return "", false }

func (Noop) Set(context.Context, string, string) {}

func (Noop) Remove(context.Context, string) {}

func (Noop) Close() error { return nil }
