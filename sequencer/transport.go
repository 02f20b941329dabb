package sequencer

import "go-loopcore/scalar"

// Status is the transport run state.
type Status uint8

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Boundary flags mark what kind of grid line a frame sits on. A first beat is
// also a bar and a beat.
type Boundary uint8

const (
	BoundaryBeat Boundary = 1 << iota
	BoundaryBar
	BoundaryFirstBeat
	BoundaryQuantize
)

func (b Boundary) Has(f Boundary) bool { return b&f != 0 }

// Event is a grid line crossed inside a render block.
type Event struct {
	Offset int // frame offset inside the block
	Beat   int
	Flags  Boundary
}

// maxEvents bounds the events reported per block. Quantize 8 at 999 BPM with
// a 4096-frame block stays well under it.
const maxEvents = 256

// Transport is the playhead. All writes happen on the audio thread; other
// threads read the scalars.
type Transport struct {
	status scalar.Enum[Status]
	frame  scalar.Int // position inside the loop
	beat   scalar.Int

	// elapsed counts frames since the last start or relocation. It never
	// wraps with the loop, so the MIDI clock grid stays continuous.
	elapsed int64

	events [maxEvents]Event
}

func NewTransport() *Transport {
	return &Transport{}
}

func (t *Transport) Status() Status { return t.status.Load() }
func (t *Transport) IsRunning() bool { return t.status.Load() == Running }
func (t *Transport) Frame() int     { return t.frame.Load() }
func (t *Transport) Beat() int      { return t.beat.Load() }

// Elapsed is the audio-thread view of the continuous frame counter.
func (t *Transport) Elapsed() int64 { return t.elapsed }

func (t *Transport) Start() {
	t.status.Store(Running)
}

func (t *Transport) Stop() {
	t.status.Store(Stopped)
}

// Rewind moves the playhead to the first beat.
func (t *Transport) Rewind() {
	t.frame.Store(0)
	t.beat.Store(0)
	t.elapsed = 0
}

// GoToBeat relocates the playhead. Out of range beats wrap into the loop.
func (t *Transport) GoToBeat(beat int, c Config) {
	if c.Beats > 0 {
		beat %= c.Beats
		if beat < 0 {
			beat += c.Beats
		}
	} else {
		beat = 0
	}
	f := beat * c.FramesInBeat()
	t.frame.Store(f)
	t.beat.Store(beat)
	t.elapsed = int64(f)
}

// Advance moves the playhead by frames and returns the grid lines crossed,
// in order. The returned slice aliases internal storage and is valid until
// the next call. Nothing moves while stopped.
func (t *Transport) Advance(c Config, frames int) []Event {
	if t.status.Load() != Running || frames <= 0 {
		return nil
	}
	loop := c.FramesInLoop()
	beatLen := c.FramesInBeat()
	if loop <= 0 || beatLen <= 0 {
		return nil
	}
	bar := c.FramesInBar()
	step := c.QuantizerStep()

	n := 0
	f := t.frame.Load()
	if f >= loop {
		f = 0
	}
	beat := t.beat.Load()

	for i := 0; i < frames; i++ {
		var flags Boundary
		if f%beatLen == 0 {
			flags |= BoundaryBeat
			beat = f / beatLen
			if bar > 0 && f%bar == 0 {
				flags |= BoundaryBar
			}
			if f == 0 {
				flags |= BoundaryFirstBeat
			}
		}
		if step > 0 && f%step == 0 {
			flags |= BoundaryQuantize
		}
		if flags != 0 && n < maxEvents {
			t.events[n] = Event{Offset: i, Beat: beat, Flags: flags}
			n++
		}
		f++
		if f >= loop {
			f = 0
		}
	}

	t.frame.Store(f)
	t.beat.Store(beat)
	t.elapsed += int64(frames)
	return t.events[:n]
}
