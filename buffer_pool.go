package go_mtpc

import (
	"sync"
)

// bufferPool manages reusable byte slices to reduce GC pressure on the
// packet hot path. Uses sync.Pool with size-based buckets.
//
// Size classes (power of 2 for efficient growth):
//   - 512 bytes:  scratch buffers (IVs, message keys, small frames)
//   - 4096 bytes: typical encrypted packet bodies
//   - 65536 bytes: large media frames
type bufferPool struct {
	pool512 sync.Pool
	pool4K  sync.Pool
	pool64K sync.Pool
}

var globalBufferPool = &bufferPool{
	pool512: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 512)
			return &buf
		},
	},
	pool4K: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 4096)
			return &buf
		},
	},
	pool64K: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 65536)
			return &buf
		},
	},
}

// acquireBuffer returns a slice of exactly size bytes backed by a pooled
// allocation. Oversized requests fall back to a plain make and are not
// pooled on release.
func acquireBuffer(size int) []byte {
	switch {
	case size <= 512:
		buf := globalBufferPool.pool512.Get().(*[]byte)
		return (*buf)[:size]
	case size <= 4096:
		buf := globalBufferPool.pool4K.Get().(*[]byte)
		return (*buf)[:size]
	case size <= 65536:
		buf := globalBufferPool.pool64K.Get().(*[]byte)
		return (*buf)[:size]
	default:
		return make([]byte, size)
	}
}

// releaseBuffer returns a buffer obtained from acquireBuffer to its pool.
// The caller must not use the slice afterwards.
func releaseBuffer(buf []byte) {
	c := cap(buf)
	full := buf[:c]
	switch c {
	case 512:
		globalBufferPool.pool512.Put(&full)
	case 4096:
		globalBufferPool.pool4K.Put(&full)
	case 65536:
		globalBufferPool.pool64K.Put(&full)
	}
}
