// Package action defines the transport and tempo requests that real-time and
// MIDI threads post to the control thread.
package action

import "fmt"

// Kind identifies a request.
type Kind uint8

const (
	StartTransport Kind = iota
	StopTransport
	GoToBeat
	SetBpm
)

func (k Kind) String() string {
	switch k {
	case StartTransport:
		return "start"
	case StopTransport:
		return "stop"
	case GoToBeat:
		return "goto-beat"
	case SetBpm:
		return "set-bpm"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Thread tags where a request came from.
type Thread uint8

const (
	ThreadMain Thread = iota
	ThreadAudio
	ThreadMidi
	ThreadEvent
)

func (t Thread) String() string {
	switch t {
	case ThreadMain:
		return "main"
	case ThreadAudio:
		return "audio"
	case ThreadMidi:
		return "midi"
	case ThreadEvent:
		return "event"
	}
	return "unknown"
}

// Action is a value type so it can travel through channels and rings
// without allocating.
type Action struct {
	Kind   Kind
	Beat   int
	Bpm    float64
	Thread Thread
}

func (a Action) String() string {
	switch a.Kind {
	case GoToBeat:
		return fmt.Sprintf("%s(%d) from %s", a.Kind, a.Beat, a.Thread)
	case SetBpm:
		return fmt.Sprintf("%s(%.2f) from %s", a.Kind, a.Bpm, a.Thread)
	}
	return fmt.Sprintf("%s from %s", a.Kind, a.Thread)
}

// Poster accepts requests without blocking. Post reports false when the
// request had to be dropped.
type Poster interface {
	Post(Action) bool
}

// Chan is a Poster backed by a buffered channel. Sends never block; a full
// channel drops the request.
type Chan chan Action

func (c Chan) Post(a Action) bool {
	select {
	case c <- a:
		return true
	default:
		return false
	}
}
