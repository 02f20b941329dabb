package midisync

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/action"
	"go-loopcore/sequencer"
)

const (
	// PulsesPerBeat is the MIDI clock resolution.
	PulsesPerBeat = 24

	// smoothing is the weight of each new sample in both low-pass filters.
	smoothing = 0.1
	// bpmChangePeriod is how much clock time passes between tempo requests.
	bpmChangePeriod = 1.0
)

// Synchronizer implements both clock roles. The slave path (Receive) is
// owned by the MIDI input thread, the master path (Advance, Send*) by the
// audio thread. Every method is a no-op outside its mode.
type Synchronizer struct {
	mode   Mode
	out    Sender
	poster action.Poster

	// slave state
	hasTimestamp  bool
	lastTimestamp float64
	lastDelta     float64
	lastBpm       float64
	sinceBpm      float64
}

// New creates a synchronizer. out may be nil when no MIDI output exists,
// poster may be nil outside slave mode.
func New(mode Mode, out Sender, poster action.Poster) *Synchronizer {
	return &Synchronizer{
		mode:    mode,
		out:     out,
		poster:  poster,
		lastBpm: sequencer.DefaultBpm,
	}
}

func (s *Synchronizer) Mode() Mode { return s.mode }

// Bpm is the current smoothed tempo estimate of the slave path.
func (s *Synchronizer) Bpm() float64 { return s.lastBpm }

// Reset forgets the clock history, e.g. after the input port changed.
func (s *Synchronizer) Reset() {
	s.hasTimestamp = false
	s.lastTimestamp = 0
	s.lastDelta = 0
	s.sinceBpm = 0
}

// Receive feeds one incoming message. timestamp is in seconds on a
// monotonic clock. Anything that is not clock, start, stop or song position
// is ignored, as are malformed messages.
func (s *Synchronizer) Receive(msg gomidi.Message, timestamp float64, beatsInLoop int) {
	if s.mode != Slave || len(msg) == 0 {
		return
	}
	switch msg[0] {
	case ClockByte:
		s.computeClock(timestamp)
	case StartByte:
		s.post(action.Action{Kind: action.StartTransport})
	case StopByte:
		s.post(action.Action{Kind: action.StopTransport})
	case SPPByte:
		spp, ok := decodeSPP(msg)
		if !ok || beatsInLoop <= 0 {
			return
		}
		s.post(action.Action{Kind: action.GoToBeat, Beat: ComputePosition(spp, beatsInLoop)})
	}
}

func (s *Synchronizer) computeClock(timestamp float64) {
	if !s.hasTimestamp {
		s.hasTimestamp = true
		s.lastTimestamp = timestamp
		return
	}

	raw := timestamp - s.lastTimestamp
	if raw <= 0 {
		return
	}
	s.lastTimestamp = timestamp

	if s.lastDelta == 0 {
		s.lastDelta = raw
	} else {
		s.lastDelta = raw*smoothing + s.lastDelta*(1-smoothing)
	}

	rawBpm := 60.0 / (PulsesPerBeat * s.lastDelta)
	s.lastBpm = rawBpm*smoothing + s.lastBpm*(1-smoothing)

	s.sinceBpm += s.lastDelta
	if s.sinceBpm > bpmChangePeriod {
		s.sinceBpm = 0
		s.post(action.Action{Kind: action.SetBpm, Bpm: s.lastBpm})
	}
}

func (s *Synchronizer) post(a action.Action) {
	if s.poster == nil {
		return
	}
	a.Thread = action.ThreadMidi
	s.poster.Post(a)
}

// decodeSPP reads the 14-bit song position. Data bytes must have bit 7
// clear.
func decodeSPP(msg gomidi.Message) (int, bool) {
	if len(msg) != 3 || msg[1]&0x80 != 0 || msg[2]&0x80 != 0 {
		return 0, false
	}
	return int(msg[1]) | int(msg[2])<<7, true
}

// ComputePosition converts a song position (in sixteenth notes) to a beat
// inside the loop.
func ComputePosition(spp, beatsInLoop int) int {
	if beatsInLoop <= 0 {
		return 0
	}
	return (spp / 4) % beatsInLoop
}

// Advance emits clock pulses for the frames [start, end) of the continuous
// transport timeline. Pulse k sits at frame floor(k*framesInBeat/24), which
// yields exactly 24 pulses per beat at any tempo.
func (s *Synchronizer) Advance(start, end int64, framesInBeat int) int {
	if s.mode != Master || s.out == nil || framesInBeat <= 0 || end <= start || start < 0 {
		return 0
	}
	f := int64(framesInBeat)
	k := (start*PulsesPerBeat + f - 1) / f
	n := 0
	for k*f/PulsesPerBeat < end {
		s.out.Send(clockPacket)
		n++
		k++
	}
	return n
}

// SendRewind sends song position zero.
func (s *Synchronizer) SendRewind() {
	s.send(rewindPacket)
}

func (s *Synchronizer) SendStart() {
	s.send(startPacket)
}

func (s *Synchronizer) SendStop() {
	s.send(stopPacket)
}

func (s *Synchronizer) send(p Packet) {
	if s.mode != Master || s.out == nil {
		return
	}
	s.out.Send(p)
}
