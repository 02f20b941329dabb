// Package queue implements the bounded single-producer/single-consumer ring
// used to hand values between the audio thread and everything else without
// locks or allocation.
package queue

import (
	"errors"
	"sync/atomic"
)

// ErrFull is returned by Push when the ring has no free slot.
var ErrFull = errors.New("queue full")

// Ring is a lock-free SPSC queue. Exactly one goroutine may Push and exactly
// one goroutine may Pop.
type Ring[T any] struct {
	buf  []T
	mask uint64

	head atomic.Uint64 // next slot to read, owned by the consumer
	_    [56]byte
	tail atomic.Uint64 // next slot to write, owned by the producer
}

// NewRing creates a ring holding at least size elements. Capacity is rounded
// up to the next power of two.
func NewRing[T any](size int) *Ring[T] {
	n := 1
	for n < size {
		n <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Push appends v, returning ErrFull instead of blocking.
func (r *Ring[T]) Push(v T) error {
	tail := r.tail.Load()
	if tail-r.head.Load() > r.mask {
		return ErrFull
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return nil
}

// Pop removes the oldest value. ok is false when the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return v, false
	}
	idx := head & r.mask
	v = r.buf[idx]
	var zero T
	r.buf[idx] = zero
	r.head.Store(head + 1)
	return v, true
}

// Len is a racy estimate, fine for meters and tests.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
