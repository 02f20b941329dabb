package model

import (
	"errors"
	"testing"

	"go-loopcore/channel"
)

func TestArenaAllocResolveRelease(t *testing.T) {
	a := NewArena(2)

	h1, s1, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.Resolve(h1) != s1 {
		t.Error("Resolve did not return the allocated state")
	}
	if s1.Volume.Load() != 1 || s1.Play.Load() != channel.Off {
		t.Error("allocated state was not reset")
	}

	if _, _, err := a.Alloc(); err != nil {
		t.Fatalf("second Alloc: %v", err)
	}
	if _, _, err := a.Alloc(); !errors.Is(err, ErrArenaFull) {
		t.Errorf("Alloc on full arena = %v, want ErrArenaFull", err)
	}

	a.Free(h1)
	if a.Resolve(h1) != nil {
		t.Error("released handle still resolves")
	}
	h3, _, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc after release: %v", err)
	}
	if h3.Index != h1.Index || h3.Gen == h1.Gen {
		t.Errorf("reused slot handle = %+v, old %+v", h3, h1)
	}
	if a.Resolve(h1) != nil {
		t.Error("stale handle resolves to recycled slot")
	}
}

func TestArenaZeroHandle(t *testing.T) {
	a := NewArena(1)
	if a.Resolve(Handle{}) != nil {
		t.Error("zero handle resolved")
	}
	if a.Resolve(Handle{Index: 5, Gen: 1}) != nil {
		t.Error("out of range handle resolved")
	}
}

func TestStoreReleaseHandleDeferred(t *testing.T) {
	s := NewStore(&Generation{}, 1)
	h, _, err := s.Arena().Alloc()
	if err != nil {
		t.Fatal(err)
	}

	s.BeginCycle()
	s.Publish(&Generation{}, s.ReleaseHandle(h))
	s.Reclaim()
	if s.Resolve(h) == nil {
		t.Fatal("handle released while a block was in flight")
	}
	s.EndCycle()
	s.Reclaim()
	if s.Resolve(h) != nil {
		t.Error("handle still resolves after reclaim")
	}
}
