// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// BytePool hands out fixed-size byte buffers backed by sync.Pool.
// Buffers returned through PutBuffer are recycled; foreign slices are
// dropped so the pool never holds a buffer of the wrong capacity.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool of buffers of exactly size bytes.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Size reports the fixed buffer size of this pool.
func (b *BytePool) Size() int {
	return b.size
}

// GetBuffer returns a buffer from the pool.
func (b *BytePool) GetBuffer() []byte {
	return *b.pool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.pool.Put(&buf)
}
