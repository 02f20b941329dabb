// Package scalar provides single-writer, multi-reader atomic cells for values
// that are updated continuously (meters, play positions, status flags) and
// read by other threads that tolerate staleness.
//
// Cells only expose Load and Store. Accumulation belongs in the writer's
// local state; only the final value is published.
package scalar

import (
	"math"
	"sync/atomic"
)

// Float32 is an atomic float32 cell.
type Float32 struct {
	bits atomic.Uint32
}

func NewFloat32(v float32) *Float32 {
	f := &Float32{}
	f.Store(v)
	return f
}

func (f *Float32) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *Float32) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

// Float64 is an atomic float64 cell.
type Float64 struct {
	bits atomic.Uint64
}

func NewFloat64(v float64) *Float64 {
	f := &Float64{}
	f.Store(v)
	return f
}

func (f *Float64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *Float64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Int is an atomic int cell (frame positions, trackers).
type Int struct {
	v atomic.Int64
}

func (i *Int) Load() int {
	return int(i.v.Load())
}

func (i *Int) Store(v int) {
	i.v.Store(int64(v))
}

// Bool is an atomic flag.
type Bool struct {
	v atomic.Bool
}

func (b *Bool) Load() bool {
	return b.v.Load()
}

func (b *Bool) Store(v bool) {
	b.v.Store(v)
}

// Enum holds a small enumerated value such as a channel status.
type Enum[T ~uint8] struct {
	v atomic.Uint32
}

func (e *Enum[T]) Load() T {
	return T(e.v.Load())
}

func (e *Enum[T]) Store(v T) {
	e.v.Store(uint32(v))
}
