package observability

import "testing"

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/auth/login", 200)
	m.RecordRequest("/auth/login", 200)
	m.RecordRequest("/auth/me", 401)
	m.RecordError("/auth/login", "REJECTED")

	if got := m.RequestCount("/auth/login", 200); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := m.RequestCount("/auth/me", 401); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := m.ErrorCount("/auth/login", "REJECTED"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/auth/login", 200)
	m.RecordError("/auth/login", "REJECTED")
	if m.RequestCount("/auth/login", 200) != 0 {
		t.Error("nil metrics must report zero")
	}
}
