package go_mtpc

import (
	"sync"
)

// ChangesToken identifies one registered change. Tokens are dense from 1
// and keep increasing across Clear for the lifetime of the processor.
type ChangesToken uint64

type changeEntry[T any] struct {
	value    T
	finished bool
}

// ChangesProcessor collects changes that complete out of order and
// releases them strictly in registration order. A change becomes
// releasable when finished, but is only released once every change
// registered before it has been released too.
//
// Released entries are kept at the head of the internal buffer until
// compaction reclaims them, so late Finish calls on already-released
// tokens stay cheap no-ops.
type ChangesProcessor[T any] struct {
	mu         sync.Mutex
	onChanges  func([]T)
	offset     ChangesToken // token of entries[0]
	readyIndex int          // released entries still held at the head
	entries    []changeEntry[T]
}

// NewChangesProcessor creates a processor delivering released batches to
// onChanges. Delivery is synchronous under the caller of Finish; the
// callback must not call back into the processor.
func NewChangesProcessor[T any](onChanges func([]T)) *ChangesProcessor[T] {
	return &ChangesProcessor[T]{
		onChanges: onChanges,
		offset:    1,
	}
}

// Add registers a change and returns its token.
func (p *ChangesProcessor[T]) Add(value T) ChangesToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, changeEntry[T]{value: value})
	return p.offset + ChangesToken(len(p.entries)) - 1
}

// Finish marks a change as complete and releases the longest finished
// prefix, if any. Unknown and already-released tokens are ignored.
func (p *ChangesProcessor[T]) Finish(token ChangesToken) {
	p.mu.Lock()

	if token < p.offset || token >= p.offset+ChangesToken(len(p.entries)) {
		p.mu.Unlock()
		return
	}
	idx := int(token - p.offset)
	if idx < p.readyIndex {
		p.mu.Unlock()
		return
	}
	p.entries[idx].finished = true

	var batch []T
	for p.readyIndex < len(p.entries) && p.entries[p.readyIndex].finished {
		batch = append(batch, p.entries[p.readyIndex].value)
		p.readyIndex++
	}
	p.compactLocked()

	onChanges := p.onChanges
	p.mu.Unlock()

	if len(batch) > 0 && onChanges != nil {
		onChanges(batch)
	}
}

// compactLocked drops the released prefix once it dominates the buffer.
func (p *ChangesProcessor[T]) compactLocked() {
	if p.readyIndex >= CHANGES_COMPACT_MIN_READY && p.readyIndex*2 > len(p.entries) {
		p.entries = append([]changeEntry[T](nil), p.entries[p.readyIndex:]...)
		p.offset += ChangesToken(p.readyIndex)
		p.readyIndex = 0
	}
}

// Clear drops every entry, released or not, without delivering anything.
// Token numbering continues where it left off.
func (p *ChangesProcessor[T]) Clear() {
	p.mu.Lock()
	p.offset += ChangesToken(len(p.entries))
	p.entries = nil
	p.readyIndex = 0
	p.mu.Unlock()
}

// PendingCount returns the number of registered, not yet released
// changes.
func (p *ChangesProcessor[T]) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) - p.readyIndex
}

// NextToken returns the token the next Add will assign.
func (p *ChangesProcessor[T]) NextToken() ChangesToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset + ChangesToken(len(p.entries))
}
