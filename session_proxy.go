package go_mtpc

import (
	"sync"
)

// SessionClass separates traffic kinds onto independent sessions, so a
// saturated upload stream cannot starve interactive queries.
type SessionClass int

const (
	// SESSION_CLASS_MAIN carries interactive queries.
	SESSION_CLASS_MAIN SessionClass = iota
	// SESSION_CLASS_DOWNLOAD carries bulk downloads.
	SESSION_CLASS_DOWNLOAD
	// SESSION_CLASS_UPLOAD carries bulk uploads.
	SESSION_CLASS_UPLOAD

	sessionClassCount
)

func (c SessionClass) String() string {
	switch c {
	case SESSION_CLASS_MAIN:
		return "main"
	case SESSION_CLASS_DOWNLOAD:
		return "download"
	case SESSION_CLASS_UPLOAD:
		return "upload"
	default:
		return "unknown"
	}
}

// SessionProxy owns up to one session per class for a single DC.
// Sessions are created lazily on first use and live independently: the
// state or load of one class never affects another.
type SessionProxy struct {
	dcID    DcId
	creator *ConnectionCreator

	mu       sync.Mutex
	sessions [sessionClassCount]*Session
	closed   bool
}

// NewSessionProxy creates a proxy with no sessions yet.
func NewSessionProxy(creator *ConnectionCreator, dcID DcId) *SessionProxy {
	return &SessionProxy{dcID: dcID, creator: creator}
}

// DcId returns the proxy's datacenter.
func (p *SessionProxy) DcId() DcId { return p.dcID }

// GetSession returns the session for the class, creating it on first
// use. Returns nil after Close.
func (p *SessionProxy) GetSession(class SessionClass) *Session {
	if class < 0 || class >= sessionClassCount {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.sessions[class] == nil {
		p.sessions[class] = NewSession(p.creator, p.dcID)
		Debug("created %s session for %s", class, p.dcID)
	}
	return p.sessions[class]
}

// Send routes a query to the class's session. The query is queued even
// when no connection exists yet; on a closed proxy the callback fires
// with ErrSessionClosed.
func (p *SessionProxy) Send(class SessionClass, query *NetQuery, callback NetQueryCallback) {
	session := p.GetSession(class)
	if session == nil {
		if callback != nil {
			callback(query, nil, ErrSessionClosed)
		}
		return
	}
	session.Send(query, callback)
}

// IsHighLoaded reports whether the class's session is above the unacked
// threshold. A class with no session yet carries no load.
func (p *SessionProxy) IsHighLoaded(class SessionClass) bool {
	p.mu.Lock()
	var session *Session
	if class >= 0 && class < sessionClassCount {
		session = p.sessions[class]
	}
	p.mu.Unlock()
	return session != nil && session.IsHighLoaded()
}

// Close closes every created session. Idempotent.
func (p *SessionProxy) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var open []*Session
	for i, s := range p.sessions {
		if s != nil {
			open = append(open, s)
			p.sessions[i] = nil
		}
	}
	p.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

// SessionMultiProxy fans sessions out across datacenters, one
// SessionProxy per DC created on demand.
type SessionMultiProxy struct {
	creator *ConnectionCreator

	mu      sync.Mutex
	proxies map[int32]*SessionProxy
	closed  bool
}

// NewSessionMultiProxy creates an empty multi-proxy.
func NewSessionMultiProxy(creator *ConnectionCreator) *SessionMultiProxy {
	return &SessionMultiProxy{
		creator: creator,
		proxies: make(map[int32]*SessionProxy),
	}
}

// ProxyFor returns the per-DC proxy, creating it on first use. The id
// must be exact.
func (m *SessionMultiProxy) ProxyFor(dcID DcId) (*SessionProxy, error) {
	if !dcID.IsExact() {
		return nil, &InvalidDcIdError{Dc: dcID}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	p, ok := m.proxies[dcID.RawID()]
	if !ok {
		p = NewSessionProxy(m.creator, dcID)
		m.proxies[dcID.RawID()] = p
	}
	return p, nil
}

// ProxyCount returns the number of created per-DC proxies.
func (m *SessionMultiProxy) ProxyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proxies)
}

// Close closes every proxy. Idempotent.
func (m *SessionMultiProxy) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	proxies := make([]*SessionProxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		proxies = append(proxies, p)
	}
	m.proxies = make(map[int32]*SessionProxy)
	m.mu.Unlock()

	for _, p := range proxies {
		p.Close()
	}
}
