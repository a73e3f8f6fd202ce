package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcher_PublishReachesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []Event

	d.Subscribe(EventExpiryWarning, func(_ context.Context, event Event) error {
		seen = append(seen, event)
		return nil
	})
	d.Subscribe(EventLoggedOut, func(_ context.Context, event Event) error {
		t.Error("handler for a different type must not fire")
		return nil
	})

	expiresAt := time.Now().Add(time.Hour)
	err := d.Publish(context.Background(), Event{
		ID:      "1",
		Type:    EventExpiryWarning,
		Payload: ExpiryWarningPayload{ExpiresAt: expiresAt},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("expected one event, got %d", len(seen))
	}
	payload := seen[0].Payload.(ExpiryWarningPayload)
	if !payload.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expected %v, got %v", expiresAt, payload.ExpiresAt)
	}
}

func TestDispatcher_HandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	fired := false

	d.Subscribe(EventRevoked, func(context.Context, Event) error {
		return errors.New("handler failure")
	})
	d.Subscribe(EventRevoked, func(context.Context, Event) error {
		fired = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventRevoked})
	if err == nil {
		t.Error("expected handler error surfaced to the publisher")
	}
	if !fired {
		t.Error("expected second handler to run despite first failing")
	}
}
