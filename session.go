package go_mtpc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
)

// SessionState is the lifecycle phase of a Session.
type SessionState int

const (
	// SESSION_EMPTY means no connection exists and none is being made.
	SESSION_EMPTY SessionState = iota
	// SESSION_CONNECTING means a connect attempt is in flight.
	SESSION_CONNECTING
	// SESSION_READY means queries flow over an established connection.
	SESSION_READY
	// SESSION_CLOSED is terminal.
	SESSION_CLOSED
)

func (s SessionState) String() string {
	switch s {
	case SESSION_EMPTY:
		return "empty"
	case SESSION_CONNECTING:
		return "connecting"
	case SESSION_READY:
		return "ready"
	case SESSION_CLOSED:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is a logical message stream to one datacenter. Send never
// fails: queries are queued while no connection exists and flushed once
// one is established. Queries that were written but not yet acknowledged
// stay in the sent set; the size of that set defines load.
type Session struct {
	dcID    DcId
	creator *ConnectionCreator

	mu        sync.Mutex
	state     SessionState
	conn      *RawConnection
	pending   []*NetQuery
	sent      map[int64]*NetQuery
	callbacks map[int64]NetQueryCallback
	queryMsg  map[int64]int64 // query id -> message id
	lastMsgID int64
	failedGen uint32
	hasFailed bool
}

// NewSession creates an empty session bound to a DC.
func NewSession(creator *ConnectionCreator, dcID DcId) *Session {
	return &Session{
		dcID:      dcID,
		creator:   creator,
		state:     SESSION_EMPTY,
		sent:      make(map[int64]*NetQuery),
		callbacks: make(map[int64]NetQueryCallback),
		queryMsg:  make(map[int64]int64),
	}
}

// DcId returns the session's datacenter.
func (s *Session) DcId() DcId { return s.dcID }

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// nextMsgID generates the next outgoing message id: unix time in the
// high 32 bits, strictly greater than every id issued before, and
// divisible by 4 as client-originated ids must be.
func (s *Session) nextMsgID() int64 {
	id := time.Now().Unix() << 32
	if id <= s.lastMsgID {
		id = s.lastMsgID + 4
	}
	id &^= 3
	if id <= s.lastMsgID {
		id = s.lastMsgID + 4
	}
	s.lastMsgID = id
	return id
}

// Send queues a query. It never fails: with no connection the query
// waits in the pending queue; on a closed session the callback is
// invoked immediately with ErrSessionClosed.
func (s *Session) Send(query *NetQuery, callback NetQueryCallback) {
	s.mu.Lock()
	if s.state == SESSION_CLOSED {
		s.mu.Unlock()
		if callback != nil {
			callback(query, nil, ErrSessionClosed)
		}
		return
	}
	if callback != nil {
		s.callbacks[query.ID] = callback
	}
	if s.state == SESSION_READY && s.conn != nil && !s.conn.IsValid() {
		// Aged-out or closed connection: drop it and fall back to
		// queueing. The next Connect establishes a fresh one.
		stale := s.conn
		s.conn = nil
		s.state = SESSION_EMPTY
		s.pending = append(s.pending, query)
		s.mu.Unlock()
		_ = stale.Close()
		Debug("discarded stale connection to %s, queued %s", s.dcID, query)
		return
	}
	if s.state == SESSION_READY && s.conn != nil {
		err := s.writeQueryLocked(query)
		s.mu.Unlock()
		if err != nil {
			Warning("write of %s failed, requeued: %v", query, err)
		}
		return
	}
	s.pending = append(s.pending, query)
	s.mu.Unlock()
	Debug("queued %s while %s", query, s.State())
}

// writeQueryLocked frames and writes one query, moving it to the sent
// set on success and to the pending queue on failure. A query handed to
// this function is always tracked afterwards, in exactly one of the two
// sets. Caller holds mu.
func (s *Session) writeQueryLocked(query *NetQuery) error {
	if s.conn == nil || !s.conn.IsValid() {
		s.pending = append(s.pending, query)
		return ErrConnectionStale
	}
	msgID := s.nextMsgID()
	frame := acquireBuffer(12 + len(query.Payload))
	binary.LittleEndian.PutUint64(frame[0:8], uint64(msgID))
	binary.LittleEndian.PutUint32(frame[8:12], uint32(len(query.Payload)))
	copy(frame[12:], query.Payload)
	_, err := s.conn.Conn().Write(frame)
	releaseBuffer(frame)
	if err != nil {
		s.pending = append(s.pending, query)
		return err
	}
	s.sent[msgID] = query
	s.queryMsg[query.ID] = msgID
	s.creator.Metrics().IncrementQueriesSent(s.dcID)
	return nil
}

// Connect establishes the underlying connection and flushes the pending
// queue. A failure records the network generation so NeedsReconnect can
// tell whether retrying is worthwhile.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	var stale *RawConnection
	switch s.state {
	case SESSION_CLOSED:
		s.mu.Unlock()
		return ErrSessionClosed
	case SESSION_CONNECTING:
		s.mu.Unlock()
		return nil
	case SESSION_READY:
		if s.conn != nil && s.conn.IsValid() {
			s.mu.Unlock()
			return nil
		}
		// Ready in name only: the connection aged out or died.
		stale = s.conn
		s.conn = nil
	}
	s.state = SESSION_CONNECTING
	s.mu.Unlock()

	if stale != nil {
		Debug("replacing stale connection to %s", s.dcID)
		_ = stale.Close()
	}

	conn, err := s.creator.RequestRawConnection(ctx, s.dcID, false, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SESSION_CLOSED {
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSessionClosed
	}
	if err != nil {
		s.state = SESSION_EMPTY
		s.failedGen = s.creator.NetworkGeneration()
		s.hasFailed = true
		return err
	}

	s.conn = conn
	s.state = SESSION_READY
	Info("session to %s ready", s.dcID)

	s.flushPendingLocked()
	return nil
}

// flushPendingLocked writes queued queries in submission order. On a
// write failure the failing query is requeued by writeQueryLocked and
// the unflushed tail is put back behind it, so every query stays
// tracked in either the pending queue or the sent set. Caller holds mu.
func (s *Session) flushPendingLocked() {
	pending := s.pending
	s.pending = nil
	for i, q := range pending {
		if werr := s.writeQueryLocked(q); werr != nil {
			s.pending = append(s.pending, pending[i+1:]...)
			Warning("flush to %s stopped after %d of %d queries, rest requeued: %v",
				s.dcID, i, len(pending), werr)
			return
		}
	}
}

// OnAck removes an acknowledged message from the sent set.
func (s *Session) OnAck(msgID int64) {
	s.mu.Lock()
	q, ok := s.sent[msgID]
	if ok {
		delete(s.sent, msgID)
		delete(s.queryMsg, q.ID)
	}
	s.mu.Unlock()
	if ok {
		s.creator.Metrics().IncrementQueriesAcked(s.dcID)
	}
}

// OnResult completes an acknowledged query with its result, firing the
// registered callback.
func (s *Session) OnResult(msgID int64, result []byte) {
	s.mu.Lock()
	q, ok := s.sent[msgID]
	var cb NetQueryCallback
	if ok {
		delete(s.sent, msgID)
		delete(s.queryMsg, q.ID)
		cb = s.callbacks[q.ID]
		delete(s.callbacks, q.ID)
	}
	s.mu.Unlock()
	if cb != nil {
		cb(q, result, nil)
	}
}

// IsHighLoaded reports whether strictly more than the high-load
// threshold of queries are sent but not yet acknowledged.
func (s *Session) IsHighLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent) > SESSION_HIGH_LOAD_THRESHOLD
}

// SentCount returns the number of sent-unacknowledged queries.
func (s *Session) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// PendingCount returns the number of queued, unsent queries.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// NeedsReconnect reports whether a new connect attempt could behave
// differently from the last failed one: either the session never failed,
// or the network generation moved past the one the failure was seen
// under.
func (s *Session) NeedsReconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SESSION_EMPTY {
		return false
	}
	if !s.hasFailed {
		return true
	}
	return s.creator.NetworkGeneration() > s.failedGen
}

// Close tears the session down. Idempotent. Pending and sent queries
// are completed with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == SESSION_CLOSED {
		s.mu.Unlock()
		return
	}
	s.state = SESSION_CLOSED
	conn := s.conn
	s.conn = nil

	var failed []*NetQuery
	failed = append(failed, s.pending...)
	for _, q := range s.sent {
		failed = append(failed, q)
	}
	s.pending = nil
	s.sent = make(map[int64]*NetQuery)
	s.queryMsg = make(map[int64]int64)

	cbs := make(map[int64]NetQueryCallback, len(s.callbacks))
	for id, cb := range s.callbacks {
		cbs[id] = cb
	}
	s.callbacks = make(map[int64]NetQueryCallback)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, q := range failed {
		if cb := cbs[q.ID]; cb != nil {
			cb(q, nil, ErrSessionClosed)
		}
	}
	Info("session to %s closed", s.dcID)
}
