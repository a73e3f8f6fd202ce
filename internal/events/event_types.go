package events

import "time"

// EventType enumerates session lifecycle notifications.
type EventType string

const (
	EventLoggedIn      EventType = "session_logged_in"
	EventLoggedOut     EventType = "session_logged_out"
	EventRevoked       EventType = "session_revoked"
	EventExpiryWarning EventType = "session_expiry_warning"
)

// Event is a notification emitted by the session manager.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ExpiryWarningPayload carries the token expiration the warning refers to.
type ExpiryWarningPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokedPayload explains why the session was torn down.
type RevokedPayload struct {
	Reason string `json:"reason"`
}

// LoggedInPayload identifies the authenticated identity.
type LoggedInPayload struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
}
