package go_mtpc

import (
	"testing"
)

func TestChangesReleasedInRegistrationOrder(t *testing.T) {
	var batches [][]string
	p := NewChangesProcessor[string](func(batch []string) {
		batches = append(batches, batch)
	})

	t1 := p.Add("one")
	t2 := p.Add("two")
	t3 := p.Add("three")
	if t1 != 1 || t2 != 2 || t3 != 3 {
		t.Fatalf("tokens must be dense from 1, got %d %d %d", t1, t2, t3)
	}

	// Finishing out of order releases nothing while the head is open.
	p.Finish(t3)
	p.Finish(t2)
	if len(batches) != 0 {
		t.Fatalf("premature release: %v", batches)
	}
	if p.PendingCount() != 3 {
		t.Fatalf("expected 3 pending, got %d", p.PendingCount())
	}

	// Finishing the head releases the whole finished prefix at once.
	p.Finish(t1)
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	want := []string{"one", "two", "three"}
	for i, v := range want {
		if batches[0][i] != v {
			t.Fatalf("expected %v, got %v", want, batches[0])
		}
	}
	if p.PendingCount() != 0 {
		t.Fatalf("expected nothing pending, got %d", p.PendingCount())
	}
}

func TestChangesTokensContinueAcrossClear(t *testing.T) {
	p := NewChangesProcessor[int](nil)

	p.Add(10)
	p.Add(20)
	p.Clear()

	if p.PendingCount() != 0 {
		t.Fatal("clear must drop everything")
	}
	if next := p.NextToken(); next != 3 {
		t.Fatalf("token numbering must continue after clear, got %d", next)
	}
	if token := p.Add(30); token != 3 {
		t.Fatalf("expected token 3 after clear, got %d", token)
	}
}

func TestChangesFinishOnClearedTokenIsNoop(t *testing.T) {
	var released int
	p := NewChangesProcessor[int](func(batch []int) {
		released += len(batch)
	})

	t1 := p.Add(1)
	p.Clear()
	p.Finish(t1)

	if released != 0 {
		t.Fatal("cleared entries must never be released")
	}
}

func TestChangesDoubleFinishIsNoop(t *testing.T) {
	var released int
	p := NewChangesProcessor[int](func(batch []int) {
		released += len(batch)
	})

	t1 := p.Add(1)
	p.Finish(t1)
	p.Finish(t1)

	if released != 1 {
		t.Fatalf("expected exactly 1 release, got %d", released)
	}
}

func TestChangesCompactionKeepsSemantics(t *testing.T) {
	var released []int
	p := NewChangesProcessor[int](func(batch []int) {
		released = append(released, batch...)
	})

	// Drive enough in-order completions to trigger head compaction, then
	// verify later tokens still resolve correctly.
	var tokens []ChangesToken
	for i := 1; i <= 20; i++ {
		tokens = append(tokens, p.Add(i))
	}
	for i := 0; i < 15; i++ {
		p.Finish(tokens[i])
	}
	if len(released) != 15 {
		t.Fatalf("expected 15 released, got %d", len(released))
	}

	// Late finish of an already-released token stays a no-op after
	// compaction dropped its entry.
	p.Finish(tokens[0])
	if len(released) != 15 {
		t.Fatal("compacted token resurfaced")
	}

	for i := 15; i < 20; i++ {
		p.Finish(tokens[i])
	}
	if len(released) != 20 {
		t.Fatalf("expected 20 released, got %d", len(released))
	}
	for i, v := range released {
		if v != i+1 {
			t.Fatalf("release order broken at %d: %v", i, released)
		}
	}

	if p.NextToken() != 21 {
		t.Fatalf("token numbering drifted after compaction: %d", p.NextToken())
	}
}

func TestChangesCompactionTriggersAtFiveDelivered(t *testing.T) {
	p := NewChangesProcessor[int](nil)

	var tokens []ChangesToken
	for i := 1; i <= 8; i++ {
		tokens = append(tokens, p.Add(i))
	}

	// Four delivered entries stay below the compaction floor.
	for i := 0; i < 4; i++ {
		p.Finish(tokens[i])
	}
	p.mu.Lock()
	offset, ready := p.offset, p.readyIndex
	p.mu.Unlock()
	if offset != 1 || ready != 4 {
		t.Fatalf("compacted too early: offset=%d readyIndex=%d", offset, ready)
	}

	// The fifth delivery reaches the floor and the majority condition,
	// so the delivered head is dropped.
	p.Finish(tokens[4])
	p.mu.Lock()
	offset, ready = p.offset, p.readyIndex
	held := len(p.entries)
	p.mu.Unlock()
	if ready != 0 || offset != 6 || held != 3 {
		t.Fatalf("expected compaction at 5 delivered: offset=%d readyIndex=%d held=%d",
			offset, ready, held)
	}
	if p.NextToken() != 9 {
		t.Fatalf("token numbering drifted: %d", p.NextToken())
	}
}

func TestChangesInterleavedAddFinish(t *testing.T) {
	var released []string
	p := NewChangesProcessor[string](func(batch []string) {
		released = append(released, batch...)
	})

	a := p.Add("a")
	b := p.Add("b")
	p.Finish(b)
	c := p.Add("c")
	p.Finish(a)

	// a and b release together; c stays pending.
	if len(released) != 2 || released[0] != "a" || released[1] != "b" {
		t.Fatalf("unexpected releases: %v", released)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("expected c pending, got %d", p.PendingCount())
	}

	p.Finish(c)
	if len(released) != 3 || released[2] != "c" {
		t.Fatalf("unexpected releases: %v", released)
	}
}
