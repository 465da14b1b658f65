package go_mtpc

import (
	"fmt"
	"sync/atomic"
)

// NetQuery is one request payload bound for a datacenter. The tag is a
// caller-chosen diagnostic label carried through logs; it has no wire
// meaning.
type NetQuery struct {
	ID        int64
	Payload   []byte
	DcID      DcId
	NeedsAuth bool
	Tag       int32
}

// NetQueryCallback receives the query result. Exactly one of result and
// err is meaningful. Callbacks run on the worker goroutine that completed
// the query and must not block.
type NetQueryCallback func(query *NetQuery, result []byte, err error)

var netQueryCounter int64

// NewNetQuery builds a query with a process-unique id.
func NewNetQuery(payload []byte, dcID DcId, needsAuth bool, tag int32) *NetQuery {
	return &NetQuery{
		ID:        atomic.AddInt64(&netQueryCounter, 1),
		Payload:   payload,
		DcID:      dcID,
		NeedsAuth: needsAuth,
		Tag:       tag,
	}
}

func (q *NetQuery) String() string {
	return fmt.Sprintf("NetQuery{id=%d, dc=%s, tag=%d, %d bytes}", q.ID, q.DcID, q.Tag, len(q.Payload))
}
