package go_mtpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// ConnectionCreator establishes raw connections to datacenters. It owns
// the network-availability flag, the DC option directory with its
// per-endpoint statistics, the optional SOCKS5 proxy, and a dial circuit
// breaker per DC.
//
// The network generation counts actual availability flips. Sessions
// remember the generation their last failure happened under; a later
// generation means conditions changed and a retry is worth it.
type ConnectionCreator struct {
	mu          sync.Mutex
	networkFlag bool
	generation  uint32
	mainDcID    DcId

	options *DcOptionsSet

	proxyAddr string
	proxyAuth *proxy.Auth

	connectTimeout time.Duration

	breakers map[int32]*CircuitBreaker
	dcStats  map[int32]*ConnectionStats

	metrics MetricsCollector
}

// NewConnectionCreator creates a creator with the network considered
// available, an empty option directory and no proxy.
func NewConnectionCreator() *ConnectionCreator {
	return &ConnectionCreator{
		networkFlag:    true,
		mainDcID:       MainDcId(),
		options:        NewDcOptionsSet(),
		connectTimeout: CONNECT_TIMEOUT,
		breakers:       make(map[int32]*CircuitBreaker),
		dcStats:        make(map[int32]*ConnectionStats),
		metrics:        NopMetrics{},
	}
}

// SetNetworkFlag updates network availability. The generation is bumped
// only when the value actually changes; redundant sets are no-ops.
func (c *ConnectionCreator) SetNetworkFlag(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.networkFlag == available {
		return
	}
	c.networkFlag = available
	c.generation++
	Info("network flag changed to %v, generation %d", available, c.generation)
}

// NetworkFlag reports current network availability.
func (c *ConnectionCreator) NetworkFlag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.networkFlag
}

// NetworkGeneration returns the flip counter.
func (c *ConnectionCreator) NetworkGeneration() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetMainDcId records which DC PingMainDc targets.
func (c *ConnectionCreator) SetMainDcId(dcID DcId) {
	c.mu.Lock()
	c.mainDcID = dcID
	c.mu.Unlock()
}

// OnDcOptions merges a fresh option list into the directory. Existing
// endpoint statistics are kept for endpoints that survive the update.
func (c *ConnectionCreator) OnDcOptions(options DcOptions) {
	c.options.AddOptions(options)
	Debug("DC options updated, %d endpoints known", c.options.Len())
}

// SetProxy configures a SOCKS5 proxy for all future dials. An empty
// address removes the proxy.
func (c *ConnectionCreator) SetProxy(addr string, auth *proxy.Auth) {
	c.mu.Lock()
	c.proxyAddr = addr
	c.proxyAuth = auth
	c.mu.Unlock()
	if addr == "" {
		Info("proxy removed")
	} else {
		Info("SOCKS5 proxy set to %s", addr)
	}
}

// SetConnectTimeout overrides the per-attempt connect timeout.
func (c *ConnectionCreator) SetConnectTimeout(timeout time.Duration) {
	c.mu.Lock()
	c.connectTimeout = timeout
	c.mu.Unlock()
}

// SetMetrics installs a metrics collector. Pass nil to disable.
func (c *ConnectionCreator) SetMetrics(collector MetricsCollector) {
	c.mu.Lock()
	if collector == nil {
		collector = NopMetrics{}
	}
	c.metrics = collector
	c.mu.Unlock()
}

// Metrics returns the installed collector.
func (c *ConnectionCreator) Metrics() MetricsCollector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Options exposes the DC option directory.
func (c *ConnectionCreator) Options() *DcOptionsSet { return c.options }

func (c *ConnectionCreator) breakerFor(dcID DcId) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[dcID.RawID()]
	if !ok {
		cb = NewCircuitBreaker(5, 30*time.Second)
		c.breakers[dcID.RawID()] = cb
	}
	return cb
}

func (c *ConnectionCreator) statsFor(dcID DcId) *ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.dcStats[dcID.RawID()]
	if !ok {
		st = NewConnectionStats()
		c.dcStats[dcID.RawID()] = st
	}
	return st
}

// RequestRawConnection dials the best known endpoint of the DC and
// returns an established raw connection.
//
// Failure taxonomy: ErrNoNetwork when the network flag is down (no dial
// is attempted), NoDcOptionsError when the directory has no usable
// endpoint, TimeoutError when the attempt exceeds the connect timeout,
// ProxyError when the SOCKS5 hop fails, SocketError for everything else
// on the wire.
func (c *ConnectionCreator) RequestRawConnection(ctx context.Context, dcID DcId, allowMediaOnly, isMedia bool) (*RawConnection, error) {
	c.mu.Lock()
	network := c.networkFlag
	timeout := c.connectTimeout
	proxyAddr := c.proxyAddr
	proxyAuth := c.proxyAuth
	metrics := c.metrics
	c.mu.Unlock()

	if !network {
		return nil, ErrNoNetwork
	}

	option, idx, ok := c.options.FindBestOption(dcID, allowMediaOnly)
	if !ok {
		metrics.IncrementDialFailure(dcID, "no-options")
		return nil, &NoDcOptionsError{Dc: dcID}
	}

	metrics.IncrementDialAttempt(dcID)

	var conn net.Conn
	var rtt time.Duration
	err := c.breakerFor(dcID).Execute(func() error {
		var dialErr error
		conn, rtt, dialErr = dialEndpoint(ctx, option.Addr(), timeout, proxyAddr, proxyAuth)
		return dialErr
	})
	if err != nil {
		c.options.RecordFailure(idx)
		c.statsFor(dcID).RecordFailure()
		metrics.IncrementDialFailure(dcID, dialErrorType(err))
		Warning("dial to %s for %s failed: %v", option.Addr(), dcID, err)
		return nil, err
	}

	c.options.RecordSuccess(idx, float64(rtt.Milliseconds()))
	stats := c.statsFor(dcID)
	stats.RecordSuccess(rtt)
	metrics.RecordDialLatency(dcID, rtt)

	mode := CONNECTION_MODE_TCP
	if option.IsObfuscatedTcpOnly() {
		mode = CONNECTION_MODE_OBFUSCATED_TCP
	}
	Debug("connected to %s for %s in %v (%s)", option.Addr(), dcID, rtt, mode)
	return NewRawConnection(dcID, mode, conn, stats, isMedia), nil
}

// PingMainDc dials the main DC, measures the connect round trip and
// closes the connection. Used as a cheap reachability probe.
func (c *ConnectionCreator) PingMainDc(ctx context.Context) (time.Duration, error) {
	c.mu.Lock()
	mainDC := c.mainDcID
	c.mu.Unlock()

	start := time.Now()
	conn, err := c.RequestRawConnection(ctx, mainDC, false, false)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	_ = conn.Close()
	return rtt, nil
}

// dialEndpoint performs one connect attempt, directly or through the
// configured SOCKS5 proxy, and reports the observed round trip.
func dialEndpoint(ctx context.Context, addr string, timeout time.Duration, proxyAddr string, proxyAuth *proxy.Auth) (net.Conn, time.Duration, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if proxyAddr != "" {
		forward := &net.Dialer{Timeout: timeout}
		socks, err := proxy.SOCKS5("tcp", proxyAddr, proxyAuth, forward)
		if err != nil {
			return nil, 0, &ProxyError{Reason: "SOCKS5 setup failed", Err: err}
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, 0, &ProxyError{Reason: "SOCKS5 dialer lacks context support", Err: nil}
		}
		conn, err := cd.DialContext(dialCtx, "tcp", addr)
		if err != nil {
			if isTimeout(err) {
				return nil, 0, &TimeoutError{Window: timeout}
			}
			return nil, 0, &ProxyError{Reason: "SOCKS5 dial failed", Err: err}
		}
		return conn, time.Since(start), nil
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, &TimeoutError{Window: timeout}
		}
		return nil, 0, &SocketError{Reason: "connect failed", Err: err}
	}
	return conn, time.Since(start), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func dialErrorType(err error) string {
	var te *TimeoutError
	var pe *ProxyError
	var se *SocketError
	switch {
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &pe):
		return "proxy"
	case errors.As(err, &se):
		return "socket"
	default:
		return "other"
	}
}
