package go_mtpc

import (
	"testing"
	"time"
)

func TestInMemoryMetricsCounters(t *testing.T) {
	m := NewInMemoryMetrics()
	dc := InternalDcId(2)

	m.IncrementDialAttempt(dc)
	m.IncrementDialAttempt(dc)
	m.IncrementDialFailure(dc, "timeout")
	m.IncrementQueriesSent(dc)
	m.IncrementQueriesAcked(dc)
	m.SetActiveSessions(3)

	if m.DialAttempts(dc) != 2 {
		t.Fatalf("expected 2 attempts, got %d", m.DialAttempts(dc))
	}
	if m.DialFailures("timeout") != 1 {
		t.Fatalf("expected 1 timeout failure, got %d", m.DialFailures("timeout"))
	}
	if m.DialFailures("socket") != 0 {
		t.Fatal("unrelated category must stay zero")
	}
	if m.QueriesSent(dc) != 1 || m.QueriesAcked(dc) != 1 {
		t.Fatal("query counters wrong")
	}
	if m.ActiveSessions() != 3 {
		t.Fatalf("expected 3 sessions, got %d", m.ActiveSessions())
	}
}

func TestInMemoryMetricsLatency(t *testing.T) {
	m := NewInMemoryMetrics()
	dc := InternalDcId(2)

	if m.AvgDialLatency(dc) != 0 {
		t.Fatal("no measurements must read as 0")
	}
	m.RecordDialLatency(dc, 100*time.Millisecond)
	m.RecordDialLatency(dc, 300*time.Millisecond)

	if avg := m.AvgDialLatency(dc); avg != 200*time.Millisecond {
		t.Fatalf("expected 200ms average, got %v", avg)
	}
}

func TestInMemoryMetricsReset(t *testing.T) {
	m := NewInMemoryMetrics()
	dc := InternalDcId(2)

	m.IncrementDialAttempt(dc)
	m.RecordDialLatency(dc, time.Second)
	m.SetActiveSessions(5)
	m.Reset()

	if m.DialAttempts(dc) != 0 || m.AvgDialLatency(dc) != 0 || m.ActiveSessions() != 0 {
		t.Fatal("reset did not clear metrics")
	}
}

func TestNopMetricsIsSafe(t *testing.T) {
	var m MetricsCollector = NopMetrics{}
	m.IncrementDialAttempt(InternalDcId(2))
	m.IncrementDialFailure(InternalDcId(2), "timeout")
	m.RecordDialLatency(InternalDcId(2), time.Second)
	m.SetActiveSessions(1)
	m.IncrementQueriesSent(InternalDcId(2))
	m.IncrementQueriesAcked(InternalDcId(2))
}
