// Package channel holds the per-channel playback and read-actions state
// machine. Every transition here runs on the audio thread; other threads
// request transitions through the engine and only read the scalars.
package channel

import "fmt"

// Status is shared by playback and read-actions state.
type Status uint8

const (
	Off    Status = iota // stopped
	Wait                 // armed, starts at the next boundary
	Play                 // running
	Ending               // stops at the next boundary
)

func (s Status) String() string {
	switch s {
	case Off:
		return "off"
	case Wait:
		return "wait"
	case Play:
		return "play"
	case Ending:
		return "ending"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Active reports whether the channel produces output.
func (s Status) Active() bool {
	return s == Play || s == Ending
}

// Mode is the sample player mode.
type Mode uint8

const (
	LoopBasic Mode = iota
	LoopOnce
	LoopRepeat
	LoopOnceBar
	SingleBasic
	SinglePress
	SingleRetrig
	SingleEndless
)

var modeNames = map[Mode]string{
	LoopBasic:     "loop-basic",
	LoopOnce:      "loop-once",
	LoopRepeat:    "loop-repeat",
	LoopOnceBar:   "loop-once-bar",
	SingleBasic:   "single-basic",
	SinglePress:   "single-press",
	SingleRetrig:  "single-retrig",
	SingleEndless: "single-endless",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// IsLoop reports whether the mode is tied to the sequencer grid.
func (m Mode) IsLoop() bool {
	return m <= LoopOnceBar
}

// ParseMode converts a mode name back to a Mode.
func ParseMode(s string) (Mode, bool) {
	for m, name := range modeNames {
		if name == s {
			return m, true
		}
	}
	return 0, false
}
