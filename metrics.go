package go_mtpc

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector is the hook for collecting transport metrics. It lets
// applications plug in their own backend (Prometheus, StatsD, logging)
// for production monitoring.
//
// All methods are safe for concurrent use and must be non-blocking.
type MetricsCollector interface {
	// IncrementDialAttempt counts one connection attempt to the DC.
	IncrementDialAttempt(dcID DcId)

	// IncrementDialFailure counts one failed connection attempt by error
	// category ("timeout", "socket", "proxy", "no-options").
	IncrementDialFailure(dcID DcId, errorType string)

	// RecordDialLatency records the round-trip time of a successful dial.
	RecordDialLatency(dcID DcId, rtt time.Duration)

	// SetActiveSessions updates the gauge of currently open sessions.
	SetActiveSessions(count int)

	// IncrementQueriesSent counts one query handed to a session.
	IncrementQueriesSent(dcID DcId)

	// IncrementQueriesAcked counts one query acknowledged by the server.
	IncrementQueriesAcked(dcID DcId)
}

// NopMetrics discards everything. Used when no collector is configured.
type NopMetrics struct{}

func (NopMetrics) IncrementDialAttempt(DcId)             {}
func (NopMetrics) IncrementDialFailure(DcId, string)     {}
func (NopMetrics) RecordDialLatency(DcId, time.Duration) {}
func (NopMetrics) SetActiveSessions(int)                 {}
func (NopMetrics) IncrementQueriesSent(DcId)             {}
func (NopMetrics) IncrementQueriesAcked(DcId)            {}

// InMemoryMetrics is a simple in-memory MetricsCollector for development
// and tests.
type InMemoryMetrics struct {
	mu             sync.RWMutex
	dialAttempts   map[int32]uint64
	dialFailures   map[string]uint64
	dialLatency    map[int32]*dialLatencyStats
	queriesSent    map[int32]uint64
	queriesAcked   map[int32]uint64
	activeSessions int32
}

type dialLatencyStats struct {
	count      uint64
	totalNanos uint64
	minNanos   uint64
	maxNanos   uint64
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		dialAttempts: make(map[int32]uint64),
		dialFailures: make(map[string]uint64),
		dialLatency:  make(map[int32]*dialLatencyStats),
		queriesSent:  make(map[int32]uint64),
		queriesAcked: make(map[int32]uint64),
	}
}

// IncrementDialAttempt implements MetricsCollector.
func (m *InMemoryMetrics) IncrementDialAttempt(dcID DcId) {
	m.mu.Lock()
	m.dialAttempts[dcID.RawID()]++
	m.mu.Unlock()
}

// IncrementDialFailure implements MetricsCollector.
func (m *InMemoryMetrics) IncrementDialFailure(dcID DcId, errorType string) {
	m.mu.Lock()
	m.dialFailures[errorType]++
	m.mu.Unlock()
}

// RecordDialLatency implements MetricsCollector.
func (m *InMemoryMetrics) RecordDialLatency(dcID DcId, rtt time.Duration) {
	nanos := uint64(rtt.Nanoseconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.dialLatency[dcID.RawID()]
	if stats == nil {
		stats = &dialLatencyStats{minNanos: nanos, maxNanos: nanos}
		m.dialLatency[dcID.RawID()] = stats
	}
	stats.count++
	stats.totalNanos += nanos
	if nanos < stats.minNanos {
		stats.minNanos = nanos
	}
	if nanos > stats.maxNanos {
		stats.maxNanos = nanos
	}
}

// SetActiveSessions implements MetricsCollector.
func (m *InMemoryMetrics) SetActiveSessions(count int) {
	atomic.StoreInt32(&m.activeSessions, int32(count))
}

// IncrementQueriesSent implements MetricsCollector.
func (m *InMemoryMetrics) IncrementQueriesSent(dcID DcId) {
	m.mu.Lock()
	m.queriesSent[dcID.RawID()]++
	m.mu.Unlock()
}

// IncrementQueriesAcked implements MetricsCollector.
func (m *InMemoryMetrics) IncrementQueriesAcked(dcID DcId) {
	m.mu.Lock()
	m.queriesAcked[dcID.RawID()]++
	m.mu.Unlock()
}

// DialAttempts returns the attempt count for a DC.
func (m *InMemoryMetrics) DialAttempts(dcID DcId) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dialAttempts[dcID.RawID()]
}

// DialFailures returns the failure count for an error category.
func (m *InMemoryMetrics) DialFailures(errorType string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dialFailures[errorType]
}

// AvgDialLatency returns the average dial RTT for a DC, or 0 with no
// measurements.
func (m *InMemoryMetrics) AvgDialLatency(dcID DcId) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := m.dialLatency[dcID.RawID()]
	if stats == nil || stats.count == 0 {
		return 0
	}
	return time.Duration(stats.totalNanos / stats.count)
}

// ActiveSessions returns the session gauge.
func (m *InMemoryMetrics) ActiveSessions() int {
	return int(atomic.LoadInt32(&m.activeSessions))
}

// QueriesSent returns the sent-query count for a DC.
func (m *InMemoryMetrics) QueriesSent(dcID DcId) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queriesSent[dcID.RawID()]
}

// QueriesAcked returns the acknowledged-query count for a DC.
func (m *InMemoryMetrics) QueriesAcked(dcID DcId) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queriesAcked[dcID.RawID()]
}

// Reset clears all metrics.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	m.dialAttempts = make(map[int32]uint64)
	m.dialFailures = make(map[string]uint64)
	m.dialLatency = make(map[int32]*dialLatencyStats)
	m.queriesSent = make(map[int32]uint64)
	m.queriesAcked = make(map[int32]uint64)
	m.mu.Unlock()
	atomic.StoreInt32(&m.activeSessions, 0)
}
