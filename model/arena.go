package model

import (
	"errors"
	"sync/atomic"

	"go-loopcore/channel"
)

// ErrArenaFull is returned when every shared-state slot is in use.
var ErrArenaFull = errors.New("shared state arena full")

// Handle refers to a slot in the arena. A handle whose slot was released
// and reused resolves to nil.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Shared is the live state of one channel.
type Shared struct {
	channel.State
}

type slot struct {
	gen   atomic.Uint32
	state Shared
}

// Arena is a fixed pool of Shared slots. Alloc and release happen on the
// control thread; Resolve is safe from any thread.
type Arena struct {
	slots []slot
	free  []uint32
}

func NewArena(size int) *Arena {
	a := &Arena{
		slots: make([]slot, size),
		free:  make([]uint32, 0, size),
	}
	for i := size - 1; i >= 0; i-- {
		a.free = append(a.free, uint32(i))
	}
	return a
}

// Alloc takes a free slot and resets its state.
func (a *Arena) Alloc() (Handle, *Shared, error) {
	if len(a.free) == 0 {
		return Handle{}, nil, ErrArenaFull
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	s := &a.slots[idx]
	s.state.Reset()
	gen := s.gen.Add(1)
	return Handle{Index: idx, Gen: gen}, &s.state, nil
}

// Resolve returns the state behind h, or nil for a stale or zero handle.
func (a *Arena) Resolve(h Handle) *Shared {
	if int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if h.Gen == 0 || s.gen.Load() != h.Gen {
		return nil
	}
	return &s.state
}

// Free invalidates h and returns its slot to the pool. Only free handles
// that no published generation references; otherwise go through
// Store.ReleaseHandle.
func (a *Arena) Free(h Handle) {
	if a.Resolve(h) == nil {
		return
	}
	a.slots[h.Index].gen.Add(1)
	a.free = append(a.free, h.Index)
}

// InUse is the number of allocated slots.
func (a *Arena) InUse() int {
	return len(a.slots) - len(a.free)
}
