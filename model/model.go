// Package model holds the structural render state and the store that
// publishes it to the audio thread.
package model

import (
	"go-loopcore/channel"
	"go-loopcore/scalar"
	"go-loopcore/sequencer"
)

// ID identifies channels, plugins and waves. Zero is never assigned.
type ID uint32

// ChannelType is the kind of channel.
type ChannelType uint8

const (
	ChannelSample ChannelType = iota
	ChannelMidi
	ChannelMaster
)

func (t ChannelType) String() string {
	switch t {
	case ChannelSample:
		return "sample"
	case ChannelMidi:
		return "midi"
	case ChannelMaster:
		return "master"
	}
	return "unknown"
}

// Reserved channel IDs
const (
	MasterOutID ID = 1
	MasterInID  ID = 2
)

// MidiOut is the MIDI output routing of a channel.
type MidiOut struct {
	Enabled bool
	Channel uint8 // 0-15
}

// Channel is one entry of a generation. It is immutable once published;
// edits go through Generation.Edit which replaces it with a copy.
type Channel struct {
	ID       ID
	ColumnID ID
	Position int
	Type     ChannelType
	Name     string
	Height   int
	Mode     channel.Mode
	Midi     MidiOut

	Wave    *Wave
	Plugins []*Plugin

	// Shared locates the live scalars of this channel in the store arena.
	Shared Handle
}

// Wave is an immutable block of interleaved float32 frames.
type Wave struct {
	ID       ID
	Name     string
	Data     []float32
	Channels int
	Rate     int
}

func (w *Wave) Frames() int {
	if w == nil || w.Channels <= 0 {
		return 0
	}
	return len(w.Data) / w.Channels
}

// Processor is the audio side of a plugin. Process works in place on
// interleaved stereo frames and must not allocate or block.
type Processor interface {
	Process(buf []float32, frames int, params []scalar.Float32)
	Close() error
}

// Plugin is shared by every generation that lists it. Its parameters and
// bypass flag change without a swap; adding, removing or reordering plugins
// requires a new generation.
type Plugin struct {
	ID     ID
	Name   string
	Bypass scalar.Bool
	Params []scalar.Float32
	Proc   Processor
}

// MixerConfig is the part of the mixer that changes through a swap.
type MixerConfig struct {
	InToOut         bool
	LimitOutput     bool
	AllowsOverdub   bool
	MaxFramesToRec  int
	RecTriggerLevel float32
}

// Generation is an immutable snapshot of everything render-affecting.
type Generation struct {
	Version   uint64
	Channels  []*Channel
	Mixer     MixerConfig
	Sequencer sequencer.Config
}

// Clone returns an editable copy. Channels are shared until edited.
func (g *Generation) Clone() *Generation {
	c := *g
	c.Version = 0
	c.Channels = make([]*Channel, len(g.Channels))
	copy(c.Channels, g.Channels)
	return &c
}

// Find returns the index and channel with id, or -1 and nil.
func (g *Generation) Find(id ID) (int, *Channel) {
	for i, ch := range g.Channels {
		if ch.ID == id {
			return i, ch
		}
	}
	return -1, nil
}

// Edit replaces the channel with id by a private copy and returns it. Only
// call on a generation that has not been published yet.
func (g *Generation) Edit(id ID) *Channel {
	i, ch := g.Find(id)
	if ch == nil {
		return nil
	}
	cp := *ch
	cp.Plugins = make([]*Plugin, len(ch.Plugins))
	copy(cp.Plugins, ch.Plugins)
	g.Channels[i] = &cp
	return &cp
}

// FindPlugin returns the plugin index inside the channel, or -1.
func (c *Channel) FindPlugin(id ID) int {
	for i, p := range c.Plugins {
		if p.ID == id {
			return i
		}
	}
	return -1
}
