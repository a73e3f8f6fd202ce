package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/credstore"
	"github.com/spec-kit/marketplace-client/internal/events"
	"github.com/spec-kit/marketplace-client/pkg/util"
)

// startBackgroundLocked starts the revalidation loop (at most one per
// authenticated identity) and schedules the expiry warning. Caller holds mu.
func (m *Manager) startBackgroundLocked() {
	if m.closed || m.identity == nil {
		return
	}
	if m.revalidateCancel == nil {
		ctx, cancel := context.WithCancel(m.baseCtx)
		m.revalidateCancel = cancel
		go m.revalidateLoop(ctx)
	}
	m.scheduleWarningLocked()
}

// stopBackgroundLocked cancels the revalidation loop and the warning timer.
// Caller holds mu.
func (m *Manager) stopBackgroundLocked() {
	if m.revalidateCancel != nil {
		m.revalidateCancel()
		m.revalidateCancel = nil
	}
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
}

func (m *Manager) revalidateLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RevalidateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.revalidateOnce(ctx) {
				return
			}
		}
	}
}

// revalidateOnce confirms the held token with the backend. Only an explicit
// unauthorized result (or a locally detected expiration) revokes the
// session; transport failures and other errors are inconclusive and the
// loop fails open. Returns false when the loop should stop.
func (m *Manager) revalidateOnce(ctx context.Context) bool {
	if !m.IsAuthenticated() {
		return false
	}

	token, ok := m.store.Get(ctx, credstore.KeyToken)
	if !ok {
		m.revoke(ctx, "token missing from store")
		return false
	}

	_, err := m.gateway.WhoAmI(ctx, token)
	if err == nil {
		return true
	}
	if util.HasCode(err, util.CodeUnauthorized) || util.HasCode(err, util.CodeSessionExpired) {
		m.revoke(ctx, "token no longer accepted")
		return false
	}

	m.logger.Debug("revalidation inconclusive", zap.Error(err))
	return true
}

// revoke announces the revocation and runs the full logout teardown. Errors
// on this path are swallowed; the only observable outcome is the transition
// to anonymous.
func (m *Manager) revoke(ctx context.Context, reason string) {
	m.logger.Info("session revoked", zap.String("reason", reason))
	m.publish(ctx, events.EventRevoked, events.RevokedPayload{Reason: reason})
	m.Logout(ctx)
}

// scheduleWarningLocked arms a one-shot notification ahead of token expiry,
// replacing any previous schedule. Fires immediately when the lead time has
// already passed. Caller holds mu.
func (m *Manager) scheduleWarningLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.identity == nil || m.tokenExpiresAt.IsZero() {
		return
	}

	expiresAt := m.tokenExpiresAt
	delay := time.Until(expiresAt) - m.cfg.ExpiryWarningLead()
	if delay < 0 {
		delay = 0
	}
	m.warnTimer = time.AfterFunc(delay, func() {
		m.publish(m.baseCtx, events.EventExpiryWarning, events.ExpiryWarningPayload{ExpiresAt: expiresAt})
	})
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	err := m.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		m.logger.Warn("event handler failed",
			zap.String("event", string(eventType)),
			zap.Error(err))
	}
}
