package engine

import (
	"go-loopcore/action"
	"go-loopcore/channel"
	"go-loopcore/model"
)

// NotificationKind says what changed.
type NotificationKind uint8

const (
	NoteChannelStatus NotificationKind = iota // play or read-actions status
	NoteTransport                             // started, stopped or relocated
	NoteBpm
	NoteStructure // a new generation was published
	NoteMidiIn    // a channel reacted to MIDI input
)

// Notification is a value type so the audio thread can queue it without
// allocating.
type Notification struct {
	Kind    NotificationKind
	Channel model.ID
	Play    channel.Status
	Rec     channel.Status
	Running bool
	Beat    int
	Bpm     float64
	Thread  action.Thread
}

// notify queues a notification from the audio thread.
func (e *Engine) notify(n Notification) {
	n.Thread = action.ThreadAudio
	if e.notes.Push(n) != nil {
		e.dropped.Store(e.dropped.Load() + 1)
	}
}

// post delivers a notification from the control side straight to the UI.
func (e *Engine) post(n Notification) {
	select {
	case e.updates <- n:
	default:
	}
}

// ChannelStatus implements mixer.StatusListener.
func (e *Engine) ChannelStatus(id model.ID, st channel.Status) {
	e.notify(Notification{Kind: NoteChannelStatus, Channel: id, Play: st})
}

// DrainNotifications forwards queued audio notifications to the UI channel.
// Run calls it periodically.
func (e *Engine) DrainNotifications() int {
	n := 0
	for {
		note, ok := e.notes.Pop()
		if !ok {
			return n
		}
		e.post(note)
		n++
	}
}

// Dropped counts audio notifications lost to a full queue.
func (e *Engine) Dropped() int { return e.dropped.Load() }
