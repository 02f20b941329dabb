package engine

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/action"
	"go-loopcore/channel"
	"go-loopcore/debug"
	"go-loopcore/midisync"
	"go-loopcore/model"
)

// Channel control limits
const (
	MinPitch = 0.1
	MaxPitch = 4.0
)

// AddChannel appends a channel to the bottom of column.
func (e *Engine) AddChannel(typ model.ChannelType, column model.ID) (model.ID, error) {
	if typ == model.ChannelMaster {
		return 0, invalid("master channels cannot be added")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	h, _, err := e.store.Arena().Alloc()
	if err != nil {
		return 0, fault.Wrap(err, fmsg.With("add channel"), ftag.With(KindExhausted))
	}
	id := e.newID()

	err = e.swap(func(g *model.Generation) ([]func(), error) {
		ch := &model.Channel{
			ID:       id,
			ColumnID: column,
			Position: columnSize(g, column),
			Type:     typ,
			Name:     fmt.Sprintf("%s %d", typ, id),
			Mode:     channel.SingleBasic,
			Shared:   h,
		}
		if typ == model.ChannelMidi {
			ch.Mode = channel.LoopBasic
		}
		g.Channels = append(g.Channels, ch)
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	debug.Log("channel", "added %s channel %d in column %d", typ, id, column)
	return id, nil
}

// RemoveChannel deletes a channel. Its plugins are closed and its shared
// state slot is recycled once the audio thread has moved on.
func (e *Engine) RemoveChannel(id model.ID) error {
	if id == model.MasterOutID || id == model.MasterInID {
		return invalid("master channels cannot be removed")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.swap(func(g *model.Generation) ([]func(), error) {
		i, ch := g.Find(id)
		if ch == nil {
			return nil, notFound("channel", id)
		}
		g.Channels = append(g.Channels[:i], g.Channels[i+1:]...)
		release := []func(){e.store.ReleaseHandle(ch.Shared)}
		for _, p := range ch.Plugins {
			release = append(release, closePlugin(p))
		}
		return release, nil
	})
	if err == nil {
		e.updateSolos()
		debug.Log("channel", "removed %d", id)
	}
	return err
}

// CloneChannel duplicates a channel right below the original. Plugins are
// cloned when their processor supports it.
func (e *Engine) CloneChannel(id model.ID) (model.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, srcState, err := e.find(id)
	if err != nil {
		return 0, err
	}
	if src.Type == model.ChannelMaster {
		return 0, invalid("master channels cannot be cloned")
	}
	h, st, err := e.store.Arena().Alloc()
	if err != nil {
		return 0, fault.Wrap(err, fmsg.With("clone channel"), ftag.With(KindExhausted))
	}
	st.CopyControls(&srcState.State)
	newID := e.newID()

	err = e.swap(func(g *model.Generation) ([]func(), error) {
		cp := *src
		cp.ID = newID
		cp.Shared = h
		cp.Position = src.Position + 1
		cp.Plugins = nil
		for _, p := range src.Plugins {
			if c := e.clonePlugin(p); c != nil {
				cp.Plugins = append(cp.Plugins, c)
			}
		}
		for _, ch := range g.Channels {
			if ch.ColumnID == src.ColumnID && ch.Position > src.Position {
				g.Edit(ch.ID).Position++
			}
		}
		i, _ := g.Find(id)
		g.Channels = append(g.Channels[:i+1], append([]*model.Channel{&cp}, g.Channels[i+1:]...)...)
		return nil, nil
	})
	if err != nil {
		e.store.Arena().Free(h)
		return 0, err
	}
	return newID, nil
}

// MoveChannel puts a channel at position inside column, shifting the
// channels around it.
func (e *Engine) MoveChannel(id, column model.ID, position int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.swap(func(g *model.Generation) ([]func(), error) {
		_, ch := g.Find(id)
		if ch == nil {
			return nil, notFound("channel", id)
		}
		if ch.Type == model.ChannelMaster {
			return nil, invalid("master channels cannot be moved")
		}
		oldColumn := ch.ColumnID

		var order []model.ID
		for _, c := range sortedColumn(g, column) {
			if c.ID != id {
				order = append(order, c.ID)
			}
		}
		position = max(0, min(position, len(order)))
		order = append(order[:position], append([]model.ID{id}, order[position:]...)...)

		for pos, cid := range order {
			c := g.Edit(cid)
			c.ColumnID = column
			c.Position = pos
		}
		if oldColumn != column {
			for pos, c := range sortedColumn(g, oldColumn) {
				if c.Position != pos {
					g.Edit(c.ID).Position = pos
				}
			}
		}
		return nil, nil
	})
}

// LoadWave assigns a wave to a sample channel.
func (e *Engine) LoadWave(id model.ID, w *model.Wave) error {
	if w == nil || w.Channels < 1 || w.Channels > 2 {
		return invalid("wave must be mono or stereo")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if w.ID == 0 {
		w.ID = e.newID()
	}
	return e.swap(func(g *model.Generation) ([]func(), error) {
		ch := g.Edit(id)
		if ch == nil {
			return nil, notFound("channel", id)
		}
		if ch.Type != model.ChannelSample {
			return nil, invalid("only sample channels hold waves")
		}
		ch.Wave = w
		if w.Name != "" {
			ch.Name = w.Name
		}
		return nil, nil
	})
}

// FreeWave stops a sample channel and drops its wave.
func (e *Engine) FreeWave(id model.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, _, err := e.find(id)
	if err != nil {
		return err
	}
	if ch.Type != model.ChannelSample {
		return invalid("only sample channels hold waves")
	}
	if err := e.push(request{kind: reqKill, ch: id}); err != nil {
		return err
	}
	return e.swap(func(g *model.Generation) ([]func(), error) {
		g.Edit(id).Wave = nil
		return nil, nil
	})
}

// Press, Release and Kill ask the audio thread for a status transition.

func (e *Engine) Press(id model.ID) error   { return e.request(reqPress, id) }
func (e *Engine) Release(id model.ID) error { return e.request(reqRelease, id) }
func (e *Engine) Kill(id model.ID) error    { return e.request(reqKill, id) }

// ToggleReadActions schedules or applies a read-actions change.
func (e *Engine) ToggleReadActions(id model.ID) error {
	return e.request(reqToggleReadActions, id)
}

// KillReadActions disables read actions immediately.
func (e *Engine) KillReadActions(id model.ID) error {
	return e.request(reqKillReadActions, id)
}

// PressFromMidi is Press for bound MIDI notes; it also flags MIDI activity
// to the UI.
func (e *Engine) PressFromMidi(id model.ID, velocity uint8) error {
	var err error
	if velocity == 0 {
		err = e.Release(id)
	} else {
		err = e.Press(id)
	}
	if err == nil {
		e.post(Notification{Kind: NoteMidiIn, Channel: id, Thread: action.ThreadMidi})
	}
	return err
}

func (e *Engine) request(kind reqKind, id model.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, err := e.find(id); err != nil {
		return err
	}
	return e.push(request{kind: kind, ch: id})
}

// SetVolume sets the channel gain, 0..1.
func (e *Engine) SetVolume(id model.ID, v float32) error {
	return e.light(id, func(st *model.Shared) { st.Volume.Store(clamp(v, 0, 1)) })
}

// SetPan sets the channel pan, 0 = left, 0.5 = centre, 1 = right.
func (e *Engine) SetPan(id model.ID, v float32) error {
	return e.light(id, func(st *model.Shared) { st.Pan.Store(clamp(v, 0, 1)) })
}

// SetPitch stores the playback rate for the resampler.
func (e *Engine) SetPitch(id model.ID, v float32) error {
	return e.light(id, func(st *model.Shared) { st.Pitch.Store(clamp(v, MinPitch, MaxPitch)) })
}

func (e *Engine) ToggleMute(id model.ID) error {
	return e.light(id, func(st *model.Shared) { st.Mute.Store(!st.Mute.Load()) })
}

func (e *Engine) ToggleSolo(id model.ID) error {
	err := e.light(id, func(st *model.Shared) { st.Solo.Store(!st.Solo.Load()) })
	if err == nil {
		e.mu.Lock()
		e.updateSolos()
		e.mu.Unlock()
	}
	return err
}

func (e *Engine) ToggleArm(id model.ID) error {
	return e.light(id, func(st *model.Shared) { st.Arm.Store(!st.Arm.Load()) })
}

func (e *Engine) SetInputMonitor(id model.ID, on bool) error {
	return e.light(id, func(st *model.Shared) { st.InputMonitor.Store(on) })
}

func (e *Engine) SetOverdubProtection(id model.ID, on bool) error {
	return e.light(id, func(st *model.Shared) { st.OverdubProtection.Store(on) })
}

// light applies a scalar update without a generation swap.
func (e *Engine) light(id model.ID, fn func(st *model.Shared)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, st, err := e.find(id)
	if err != nil {
		return err
	}
	fn(st)
	return nil
}

// updateSolos recomputes the mixer's has-solos flag. Callers hold e.mu.
func (e *Engine) updateSolos() {
	solos := false
	for _, ch := range e.store.Get().Channels {
		if st := e.store.Resolve(ch.Shared); st != nil && st.Solo.Load() {
			solos = true
			break
		}
	}
	e.mixer.HasSolos.Store(solos)
}

// SetSamplePlayerMode changes how a sample channel reacts to presses.
func (e *Engine) SetSamplePlayerMode(id model.ID, mode channel.Mode) error {
	if mode > channel.SingleEndless {
		return invalid("unknown sample player mode")
	}
	return e.edit(id, func(ch *model.Channel) error {
		if ch.Type != model.ChannelSample {
			return invalid("only sample channels have a player mode")
		}
		ch.Mode = mode
		return nil
	})
}

func (e *Engine) SetName(id model.ID, name string) error {
	return e.edit(id, func(ch *model.Channel) error {
		ch.Name = name
		return nil
	})
}

func (e *Engine) SetHeight(id model.ID, height int) error {
	return e.edit(id, func(ch *model.Channel) error {
		ch.Height = max(height, 0)
		return nil
	})
}

// SetMidiOut routes a MIDI channel to a MIDI output channel.
func (e *Engine) SetMidiOut(id model.ID, enabled bool, midiChannel uint8) error {
	if midiChannel > 15 {
		return invalid("midi channel must be 0-15")
	}
	return e.edit(id, func(ch *model.Channel) error {
		if ch.Type != model.ChannelMidi {
			return invalid("only midi channels have a midi output")
		}
		ch.Midi = model.MidiOut{Enabled: enabled, Channel: midiChannel}
		return nil
	})
}

// SendMidi sends a short message through a MIDI channel's output.
func (e *Engine) SendMidi(id model.ID, msg gomidi.Message) error {
	if len(msg) == 0 || len(msg) > 3 {
		return invalid("only short midi messages can be sent")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, _, err := e.find(id)
	if err != nil {
		return err
	}
	if ch.Type != model.ChannelMidi {
		return invalid("not a midi channel")
	}
	return e.push(request{kind: reqSendMidi, ch: id, packet: midisync.PacketOf(msg)})
}

// edit publishes a generation with one channel changed.
func (e *Engine) edit(id model.ID, fn func(ch *model.Channel) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.swap(func(g *model.Generation) ([]func(), error) {
		ch := g.Edit(id)
		if ch == nil {
			return nil, notFound("channel", id)
		}
		return nil, fn(ch)
	})
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}
