package media

import (
	"math/bits"
	"sync/atomic"
)

// Ring is a bounded lock-free queue of samples between exactly one
// writer and one reader goroutine.
//
// The writer never blocks and never overwrites unread samples,
// Write returns less than asked when the ring is full.
type Ring struct {
	buf  []int16
	mask uint64

	head atomic.Uint64 // written so far, stored by the writer only
	_    [56]byte
	tail atomic.Uint64 // read so far, stored by the reader only
}

// NewRing makes a ring of at least size samples, the capacity is
// rounded up to the next power of two.
func NewRing(size int) *Ring {
	size = max(size, 2)
	n := 1 << bits.Len(uint(size-1))
	return &Ring{buf: make([]int16, n), mask: uint64(n - 1)}
}

func (r *Ring) Cap() int { return len(r.buf) }

// Len is the number of unread samples.
func (r *Ring) Len() int { return int(r.head.Load() - r.tail.Load()) }

func (r *Ring) Free() int { return len(r.buf) - r.Len() }

// Write copies as many samples as fit and returns their number.
func (r *Ring) Write(s []int16) int {
	head, tail := r.head.Load(), r.tail.Load()
	n := min(len(s), len(r.buf)-int(head-tail))
	if n <= 0 {
		return 0
	}
	i := head & r.mask
	c := copy(r.buf[i:], s[:n])
	copy(r.buf, s[c:n])
	r.head.Store(head + uint64(n))
	return n
}

// Read moves up to len(s) samples into s and returns their number.
func (r *Ring) Read(s []int16) int {
	tail, head := r.tail.Load(), r.head.Load()
	n := min(len(s), int(head-tail))
	if n <= 0 {
		return 0
	}
	i := tail & r.mask
	c := copy(s[:n], r.buf[i:])
	copy(s[c:n], r.buf)
	r.tail.Store(tail + uint64(n))
	return n
}
