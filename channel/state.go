package channel

import "go-loopcore/scalar"

// State is the live runtime state of one channel. Playback and read-actions
// status plus the tracker are written by the audio thread only. The mix
// controls are written by the control thread only.
type State struct {
	Play        scalar.Enum[Status]
	Rec         scalar.Enum[Status] // read-actions status
	ReadActions scalar.Bool
	Tracker     scalar.Int // frame position inside the wave

	Volume            scalar.Float32
	Pan               scalar.Float32
	Pitch             scalar.Float32
	Mute              scalar.Bool
	Solo              scalar.Bool
	Arm               scalar.Bool
	InputMonitor      scalar.Bool
	OverdubProtection scalar.Bool
}

// Reset puts the state back to a freshly added channel.
func (s *State) Reset() {
	s.Play.Store(Off)
	s.Rec.Store(Off)
	s.ReadActions.Store(false)
	s.Tracker.Store(0)
	s.Volume.Store(1)
	s.Pan.Store(0.5)
	s.Pitch.Store(1)
	s.Mute.Store(false)
	s.Solo.Store(false)
	s.Arm.Store(false)
	s.InputMonitor.Store(false)
	s.OverdubProtection.Store(false)
}

// CopyControls copies the control-thread owned fields from src.
func (s *State) CopyControls(src *State) {
	s.Volume.Store(src.Volume.Load())
	s.Pan.Store(src.Pan.Load())
	s.Pitch.Store(src.Pitch.Load())
	s.Mute.Store(src.Mute.Load())
	s.Solo.Store(src.Solo.Load())
	s.InputMonitor.Store(src.InputMonitor.Load())
	s.OverdubProtection.Store(src.OverdubProtection.Load())
}

// Audible reports whether the mixer should sum this channel given the
// mixer's solo state.
func (s *State) Audible(hasSolos bool) bool {
	if s.Mute.Load() {
		return false
	}
	if hasSolos && !s.Solo.Load() {
		return false
	}
	return true
}
