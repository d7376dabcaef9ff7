// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool provides reusable receive staging buffers. A message copied
// out of the receive pool can be as large as the pool itself, so the default
// buffer size equals the pool extent: a buffer from this pool always fits.
package pool

import "sync"

// BytePool hands out fixed-size byte buffers with reuse.
type BytePool struct {
	size int
	p    sync.Pool
}

// NewBytePool creates a pool of buffers of the given size.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.p.New = func() any {
		return make([]byte, size)
	}
	return bp
}

// Size returns the buffer size this pool hands out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of len Size.
func (b *BytePool) GetBuffer() []byte {
	return b.p.Get().([]byte)
}

// PutBuffer returns a buffer to the pool. Foreign buffers are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.p.Put(buf[:b.size])
}
