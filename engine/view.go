package engine

import (
	"cmp"
	"slices"

	"go-loopcore/channel"
	"go-loopcore/model"
)

// PluginView is a read-only copy of a plugin's state.
type PluginView struct {
	ID     model.ID
	Name   string
	Bypass bool
	Params []float32
}

// ChannelView is a read-only copy of a channel for UIs. It holds values,
// never references into live state.
type ChannelView struct {
	ID       model.ID
	ColumnID model.ID
	Position int
	Type     model.ChannelType
	Name     string
	Height   int
	Mode     channel.Mode
	Midi     model.MidiOut

	HasWave    bool
	WaveFrames int
	Plugins    []PluginView

	Play              channel.Status
	Rec               channel.Status
	ReadActions       bool
	Tracker           int
	Volume            float32
	Pan               float32
	Pitch             float32
	Mute              bool
	Solo              bool
	Arm               bool
	InputMonitor      bool
	OverdubProtection bool
}

// Channel returns a view of one channel.
func (e *Engine) Channel(id model.ID) (ChannelView, error) {
	_, ch := e.store.Get().Find(id)
	if ch == nil {
		return ChannelView{}, notFound("channel", id)
	}
	return e.view(ch), nil
}

// Wave returns the wave a sample channel currently holds, or nil. Waves
// are immutable so the result may be kept.
func (e *Engine) Wave(id model.ID) (*model.Wave, error) {
	_, ch := e.store.Get().Find(id)
	if ch == nil {
		return nil, notFound("channel", id)
	}
	return ch.Wave, nil
}

// Channels returns every non-master channel ordered by column, then
// position.
func (e *Engine) Channels() []ChannelView {
	g := e.store.Get()
	var out []ChannelView
	for _, ch := range sortedChannels(g) {
		out = append(out, e.view(ch))
	}
	return out
}

// Master returns the master out or master in view.
func (e *Engine) Master(id model.ID) (ChannelView, error) {
	if id != model.MasterOutID && id != model.MasterInID {
		return ChannelView{}, invalid("not a master channel")
	}
	return e.Channel(id)
}

func (e *Engine) view(ch *model.Channel) ChannelView {
	v := ChannelView{
		ID:         ch.ID,
		ColumnID:   ch.ColumnID,
		Position:   ch.Position,
		Type:       ch.Type,
		Name:       ch.Name,
		Height:     ch.Height,
		Mode:       ch.Mode,
		Midi:       ch.Midi,
		HasWave:    ch.Wave != nil,
		WaveFrames: ch.Wave.Frames(),
	}
	for _, p := range ch.Plugins {
		pv := PluginView{ID: p.ID, Name: p.Name, Bypass: p.Bypass.Load()}
		for i := range p.Params {
			pv.Params = append(pv.Params, p.Params[i].Load())
		}
		v.Plugins = append(v.Plugins, pv)
	}

	// the slot may already be recycled if this generation is stale
	st := e.store.Resolve(ch.Shared)
	if st == nil {
		return v
	}
	v.Play = st.Play.Load()
	v.Rec = st.Rec.Load()
	v.ReadActions = st.ReadActions.Load()
	v.Tracker = st.Tracker.Load()
	v.Volume = st.Volume.Load()
	v.Pan = st.Pan.Load()
	v.Pitch = st.Pitch.Load()
	v.Mute = st.Mute.Load()
	v.Solo = st.Solo.Load()
	v.Arm = st.Arm.Load()
	v.InputMonitor = st.InputMonitor.Load()
	v.OverdubProtection = st.OverdubProtection.Load()
	return v
}

func sortedChannels(g *model.Generation) []*model.Channel {
	var chans []*model.Channel
	for _, ch := range g.Channels {
		if ch.Type != model.ChannelMaster {
			chans = append(chans, ch)
		}
	}
	slices.SortStableFunc(chans, func(a, b *model.Channel) int {
		if c := cmp.Compare(a.ColumnID, b.ColumnID); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return chans
}

func sortedColumn(g *model.Generation, column model.ID) []*model.Channel {
	var out []*model.Channel
	for _, ch := range sortedChannels(g) {
		if ch.ColumnID == column {
			out = append(out, ch)
		}
	}
	return out
}

func columnSize(g *model.Generation, column model.ID) int {
	return len(sortedColumn(g, column))
}
