package optimize

import (
	"sync"
)

// BytePool recycles fixed-size byte slices across hot I/O loops. Every
// Get returns a slice of exactly the configured size; Put discards
// slices whose capacity shrank below it.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool of size-byte slices.
func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a slice of the pool's configured size.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)[:p.size]
}

// Put returns a slice to the pool.
func (p *BytePool) Put(b []byte) {
	if cap(b) >= p.size {
		p.pool.Put(b[:p.size])
	}
}

// Size returns the slice size this pool hands out.
func (p *BytePool) Size() int {
	return p.size
}
