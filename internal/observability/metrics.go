package observability

import (
	"strconv"
	"sync"
)

// Metrics provides basic in-memory counters for gateway traffic.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for completed gateway calls.
func (m *Metrics) RecordRequest(operation string, status int) {
	if m == nil {
		return
	}
	key := operation + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(operation, code string) {
	if m == nil {
		return
	}
	key := operation + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RequestCount returns the counter for an operation/status pair.
func (m *Metrics) RequestCount(operation string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[operation+"|"+strconv.Itoa(status)]
}

// ErrorCount returns the counter for an operation/code pair.
func (m *Metrics) ErrorCount(operation, code string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount[operation+"|"+code]
}
