package go_mtpc

import (
	"net"
	"sync"
	"time"
)

// ConnectionMode selects the transport framing used on the wire.
type ConnectionMode int

const (
	// CONNECTION_MODE_TCP is plain TCP with intermediate framing.
	CONNECTION_MODE_TCP ConnectionMode = iota
	// CONNECTION_MODE_OBFUSCATED_TCP is obfuscated TCP framing, required
	// by options carrying DC_OPTION_OBFUSCATED_TCP_ONLY.
	CONNECTION_MODE_OBFUSCATED_TCP
	// CONNECTION_MODE_HTTP tunnels frames over HTTP.
	CONNECTION_MODE_HTTP
)

func (m ConnectionMode) String() string {
	switch m {
	case CONNECTION_MODE_TCP:
		return "tcp"
	case CONNECTION_MODE_OBFUSCATED_TCP:
		return "obfuscated-tcp"
	case CONNECTION_MODE_HTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ConnectionStats accumulates connect outcomes for one endpoint. The RTT
// average is running-weighted: avg = (avg*(n-1) + rtt) / n, where n counts
// successes only.
type ConnectionStats struct {
	mu           sync.Mutex
	successCount int64
	failureCount int64
	avgRtt       float64
	lastSuccess  time.Time
}

// NewConnectionStats creates zeroed stats.
func NewConnectionStats() *ConnectionStats {
	return &ConnectionStats{}
}

// RecordSuccess folds one successful connect and its RTT into the average.
func (s *ConnectionStats) RecordSuccess(rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successCount++
	n := float64(s.successCount)
	s.avgRtt = (s.avgRtt*(n-1) + float64(rtt.Milliseconds())) / n
	s.lastSuccess = time.Now()
}

// RecordFailure counts one failed connect attempt.
func (s *ConnectionStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
}

// SuccessRate returns successes / attempts, or 0 with no attempts.
func (s *ConnectionStats) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.successCount + s.failureCount
	if total == 0 {
		return 0
	}
	return float64(s.successCount) / float64(total)
}

// AverageRtt returns the running-weighted RTT average in milliseconds.
func (s *ConnectionStats) AverageRtt() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgRtt
}

// Counts returns the raw success and failure counters.
func (s *ConnectionStats) Counts() (success, failure int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successCount, s.failureCount
}

// RawConnection is an established transport connection before session
// binding. Connections age out: a raw connection older than
// CONNECTION_MAX_AGE must not be handed to a new session, because NAT
// bindings and server-side state cannot be assumed to survive that long.
type RawConnection struct {
	dcID      DcId
	mode      ConnectionMode
	conn      net.Conn
	stats     *ConnectionStats
	createdAt time.Time
	isMedia   bool

	mu     sync.Mutex
	closed bool
}

// NewRawConnection wraps an established net.Conn.
func NewRawConnection(dcID DcId, mode ConnectionMode, conn net.Conn, stats *ConnectionStats, isMedia bool) *RawConnection {
	return &RawConnection{
		dcID:      dcID,
		mode:      mode,
		conn:      conn,
		stats:     stats,
		createdAt: time.Now(),
		isMedia:   isMedia,
	}
}

// DcId returns the DC this connection reaches.
func (c *RawConnection) DcId() DcId { return c.dcID }

// Mode returns the transport framing.
func (c *RawConnection) Mode() ConnectionMode { return c.mode }

// IsMedia reports whether the connection was requested for media traffic.
func (c *RawConnection) IsMedia() bool { return c.isMedia }

// Conn exposes the underlying net.Conn.
func (c *RawConnection) Conn() net.Conn { return c.conn }

// Stats returns the endpoint stats this connection reports into.
func (c *RawConnection) Stats() *ConnectionStats { return c.stats }

// Age returns the time since the connection was established.
func (c *RawConnection) Age() time.Duration {
	return time.Since(c.createdAt)
}

// IsValid reports whether the connection is still usable: open and
// younger than CONNECTION_MAX_AGE.
func (c *RawConnection) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && time.Since(c.createdAt) < CONNECTION_MAX_AGE
}

// Close closes the underlying connection. Idempotent.
func (c *RawConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	Debug("closing raw connection to %s (%s)", c.dcID, c.mode)
	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *RawConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
