package go_mtpc

import (
	"sort"
	"sync"
	"time"
)

// DispatchFunc is the downstream target queries are released to once
// their delay elapses.
type DispatchFunc func(query *NetQuery, callback NetQueryCallback)

type delayedQuery struct {
	query    *NetQuery
	callback NetQueryCallback
	readyAt  time.Time
	seq      uint64
}

// DelayDispatcher holds queries back for a per-query delay before
// releasing them downstream. Release order follows deadlines, not
// submission order: a query with a shorter delay overtakes an earlier
// one still waiting. Ties release in submission order.
//
// A single worker goroutine sleeps until the earliest deadline; both
// close forms are terminal.
type DelayDispatcher struct {
	defaultDelay time.Duration
	dispatch     DispatchFunc

	mu     sync.Mutex
	queue  []*delayedQuery
	seq    uint64
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewDelayDispatcher starts the worker. A nil dispatch releases queries
// straight to their callbacks; defaultDelay of 0 falls back to
// DEFAULT_DISPATCH_DELAY.
func NewDelayDispatcher(defaultDelay time.Duration, dispatch DispatchFunc) *DelayDispatcher {
	if defaultDelay <= 0 {
		defaultDelay = DEFAULT_DISPATCH_DELAY
	}
	d := &DelayDispatcher{
		defaultDelay: defaultDelay,
		dispatch:     dispatch,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go d.run()
	return d
}

// Send schedules a query with the default delay and no callback.
func (d *DelayDispatcher) Send(query *NetQuery) {
	d.SendWithCallbackAndDelay(query, nil, d.defaultDelay)
}

// SendWithCallback schedules a query with the default delay.
func (d *DelayDispatcher) SendWithCallback(query *NetQuery, callback NetQueryCallback) {
	d.SendWithCallbackAndDelay(query, callback, d.defaultDelay)
}

// SendWithCallbackAndDelay schedules a query for release after the given
// delay. Non-blocking. After close the query is discarded without any
// callback, matching the terminal discard semantics of CloseSilent.
func (d *DelayDispatcher) SendWithCallbackAndDelay(query *NetQuery, callback NetQueryCallback, delay time.Duration) {
	entry := &delayedQuery{
		query:    query,
		callback: callback,
		readyAt:  time.Now().Add(delay),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		Debug("dropped %s submitted after dispatcher close", query)
		return
	}
	entry.seq = d.seq
	d.seq++
	d.queue = append(d.queue, entry)
	sort.SliceStable(d.queue, func(i, j int) bool {
		return d.queue[i].readyAt.Before(d.queue[j].readyAt)
	})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// PendingCount returns the number of queries still waiting.
func (d *DelayDispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// CloseSilent stops the worker and discards every waiting query without
// invoking any callback. Terminal and idempotent.
func (d *DelayDispatcher) CloseSilent() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	dropped := len(d.queue)
	d.queue = nil
	d.mu.Unlock()

	close(d.done)
	if dropped > 0 {
		Debug("dispatcher closed silently, %d queries discarded", dropped)
	}
}

// Close stops the worker and completes every waiting query's callback
// with ErrDispatcherClosed. Terminal and idempotent.
func (d *DelayDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	waiting := d.queue
	d.queue = nil
	d.mu.Unlock()

	close(d.done)
	for _, e := range waiting {
		if e.callback != nil {
			e.callback(e.query, nil, ErrDispatcherClosed)
		}
	}
}

// run is the worker: sleep until the head deadline, release everything
// due, repeat. New submissions wake it early when they shorten the head.
func (d *DelayDispatcher) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		var due []*delayedQuery
		now := time.Now()
		for len(d.queue) > 0 && !d.queue[0].readyAt.After(now) {
			due = append(due, d.queue[0])
			d.queue = d.queue[1:]
		}
		var wait time.Duration
		hasHead := len(d.queue) > 0
		if hasHead {
			wait = time.Until(d.queue[0].readyAt)
		}
		d.mu.Unlock()

		for _, e := range due {
			if d.dispatch != nil {
				d.dispatch(e.query, e.callback)
			} else if e.callback != nil {
				e.callback(e.query, nil, nil)
			}
		}
		if len(due) > 0 {
			continue
		}

		if hasHead {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-d.wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			case <-d.done:
				return
			}
		} else {
			select {
			case <-d.wake:
			case <-d.done:
				return
			}
		}
	}
}
