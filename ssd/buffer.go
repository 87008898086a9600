package ssd

import "sync"

// Buffer is the DRAM write buffer: a bounded pool of byte credits shared
// by every partition. Allocation is all-or-nothing; a short allocation
// is the host's signal to retry.
type Buffer struct {
	mu        sync.Mutex
	size      uint64
	remaining uint64
}

// NewBuffer creates a full buffer of the given byte size.
func NewBuffer(size uint64) *Buffer {
	return &Buffer{
		size:      size,
		remaining: size,
	}
}

// Allocate takes size bytes from the pool. Returns size on success, 0
// when the remaining space is insufficient.
func (b *Buffer) Allocate(size uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size > b.remaining {
		return 0
	}
	b.remaining -= size
	return size
}

// Release returns size bytes to the pool.
func (b *Buffer) Release(size uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remaining+size > b.size {
		return false
	}
	b.remaining += size
	return true
}

// Refill resets the buffer to completely free.
func (b *Buffer) Refill() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remaining = b.size
}

// Remaining returns the currently free byte count.
func (b *Buffer) Remaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.remaining
}

// Size returns the total byte capacity.
func (b *Buffer) Size() uint64 {
	return b.size
}
