package go_mtpc

import (
	"testing"
)

func TestAcquireBufferSizeClasses(t *testing.T) {
	tests := []struct {
		name        string
		requested   int
		expectedCap int
	}{
		{"tiny", 16, 512},
		{"scratch", 512, 512},
		{"packet", 1024, 4096},
		{"full-packet", 4096, 4096},
		{"media", 16384, 65536},
		{"max-pooled", 65536, 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := acquireBuffer(tt.requested)
			if len(buf) != tt.requested {
				t.Errorf("expected length %d, got %d", tt.requested, len(buf))
			}
			if cap(buf) != tt.expectedCap {
				t.Errorf("expected capacity %d, got %d", tt.expectedCap, cap(buf))
			}
			releaseBuffer(buf)
		})
	}
}

func TestAcquireBufferOversized(t *testing.T) {
	buf := acquireBuffer(100000)
	if len(buf) != 100000 {
		t.Fatalf("expected length 100000, got %d", len(buf))
	}
	// Not pooled; release must still be safe.
	releaseBuffer(buf)
}

func TestBufferReuseDoesNotAlias(t *testing.T) {
	buf := acquireBuffer(32)
	for i := range buf {
		buf[i] = 0xFF
	}
	releaseBuffer(buf)

	a := acquireBuffer(32)
	b := acquireBuffer(32)
	defer releaseBuffer(a)
	defer releaseBuffer(b)

	a[0] = 1
	b[0] = 2
	if a[0] != 1 {
		t.Fatal("live buffers share backing storage")
	}
}
