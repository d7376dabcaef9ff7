// File: pool/bytepool_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytePoolBufferSize(t *testing.T) {
	bp := NewBytePool(4096)
	assert.Equal(t, 4096, bp.Size())

	buf := bp.GetBuffer()
	assert.Len(t, buf, 4096)
	bp.PutBuffer(buf)
}

func TestBytePoolRestoresLength(t *testing.T) {
	bp := NewBytePool(64)
	buf := bp.GetBuffer()

	// A truncated slice of the right capacity comes back at full length.
	bp.PutBuffer(buf[:10])
	got := bp.GetBuffer()
	assert.Len(t, got, 64)
}

func TestBytePoolDropsForeignBuffers(t *testing.T) {
	bp := NewBytePool(64)
	bp.PutBuffer(make([]byte, 128))

	buf := bp.GetBuffer()
	assert.Len(t, buf, 64)
}
