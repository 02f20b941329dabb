package model

import (
	"context"
	"sync/atomic"
	"time"
)

type retired struct {
	gen     *Generation
	epoch   uint64
	release []func()
}

// Store publishes generations to the audio thread.
//
// The audio thread brackets every render block with BeginCycle and EndCycle,
// which bump a render epoch to odd and back to even. A generation replaced
// by Publish is parked together with its release callbacks and the epoch
// observed right after the swap. It is safe to release once that epoch was
// even (no block in flight) or the epoch has moved on since (the block that
// might hold it has ended). Release callbacks always run on the control
// thread from Reclaim.
type Store struct {
	current atomic.Pointer[Generation]
	epoch   atomic.Uint64

	// control thread only
	version uint64
	retired []retired
	arena   *Arena
}

// NewStore publishes g as version 1 and allocates arenaSize shared slots.
func NewStore(g *Generation, arenaSize int) *Store {
	s := &Store{arena: NewArena(arenaSize)}
	s.version = 1
	g.Version = 1
	s.current.Store(g)
	return s
}

// Arena exposes the shared-state pool for allocation on the control thread.
func (s *Store) Arena() *Arena { return s.arena }

// Resolve returns the live state behind h, or nil if it was released.
func (s *Store) Resolve(h Handle) *Shared { return s.arena.Resolve(h) }

// Get returns the current generation for read-only use on the control side.
func (s *Store) Get() *Generation { return s.current.Load() }

// Publish makes g current. release runs once the previous generation can no
// longer be observed by the audio thread. Publish never waits.
func (s *Store) Publish(g *Generation, release ...func()) uint64 {
	s.version++
	g.Version = s.version
	old := s.current.Swap(g)
	e := s.epoch.Load()
	s.retired = append(s.retired, retired{gen: old, epoch: e, release: release})
	return g.Version
}

// ReleaseHandle returns a release callback freeing the arena slot h.
func (s *Store) ReleaseHandle(h Handle) func() {
	return func() { s.arena.Free(h) }
}

// Reclaim runs the release callbacks of every generation the audio thread is
// done with and returns how many were released.
func (s *Store) Reclaim() int {
	now := s.epoch.Load()
	n := 0
	keep := s.retired[:0]
	for _, r := range s.retired {
		if r.epoch%2 == 0 || now != r.epoch {
			for _, fn := range r.release {
				fn()
			}
			n++
			continue
		}
		keep = append(keep, r)
	}
	clear(s.retired[len(keep):])
	s.retired = keep
	return n
}

// Pending is the number of retired generations not yet reclaimed.
func (s *Store) Pending() int { return len(s.retired) }

// BeginCycle is called by the audio thread at the start of a block. The
// returned generation must not be used after EndCycle.
func (s *Store) BeginCycle() *Generation {
	s.epoch.Add(1)
	return s.current.Load()
}

// EndCycle closes the block opened by BeginCycle.
func (s *Store) EndCycle() {
	s.epoch.Add(1)
}

// Cycles is the number of completed render blocks.
func (s *Store) Cycles() uint64 {
	return s.epoch.Load() / 2
}

// WaitCycle blocks until at least one full render block has started and
// ended after the call, or ctx is done.
func (s *Store) WaitCycle(ctx context.Context) error {
	start := s.epoch.Load()
	// the next block to begin starts at an even epoch; wait for it to end
	target := start + 2
	if start%2 == 1 {
		target = start + 3
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for s.epoch.Load() < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
