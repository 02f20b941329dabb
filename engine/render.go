package engine

import (
	"go-loopcore/midisync"
	"go-loopcore/mixer"
	"go-loopcore/model"
	"go-loopcore/sequencer"
)

type reqKind uint8

const (
	reqPress reqKind = iota
	reqRelease
	reqKill
	reqToggleReadActions
	reqKillReadActions
	reqStart
	reqStop
	reqRewind
	reqGoToBeat
	reqSendMidi
)

// request is a transition the control side asks the audio thread to make.
type request struct {
	kind   reqKind
	ch     model.ID
	beat   int
	packet midisync.Packet
}

// Render is the audio callback. out and in hold interleaved stereo frames;
// in may be nil. It never blocks or allocates.
func (e *Engine) Render(out, in []float32, frames int) {
	g := e.store.BeginCycle()
	defer e.store.EndCycle()

	frames = min(frames, e.mixer.BlockSize(), len(out)/mixer.Stereo)
	clear(out[:frames*mixer.Stereo])

	e.drainRequests(g)

	_, masterIn := g.Find(model.MasterInID)
	e.mixer.BeginBlock(in, frames, g.Mixer, masterIn)

	start := e.transport.Elapsed()
	events := e.transport.Advance(g.Sequencer, frames)
	if e.transport.IsRunning() {
		e.sync.Advance(start, start+int64(frames), g.Sequencer.FramesInBeat())
	}

	pos := 0
	for _, ev := range events {
		e.mixer.RenderChannels(out, pos, ev.Offset, g, e.store, e)
		e.onBoundary(g, ev)
		pos = ev.Offset
	}
	e.mixer.RenderChannels(out, pos, frames, g, e.store, e)

	_, masterOut := g.Find(model.MasterOutID)
	e.mixer.EndBlock(out, frames, g.Mixer, masterOut, e.store)
}

func (e *Engine) drainRequests(g *model.Generation) {
	for {
		r, ok := e.requests.Pop()
		if !ok {
			return
		}
		e.apply(g, r)
	}
}

func (e *Engine) apply(g *model.Generation, r request) {
	switch r.kind {
	case reqStart:
		e.transport.Start()
		e.sync.SendStart()
		e.notifyTransport()
		return
	case reqStop:
		e.transport.Stop()
		e.sync.SendStop()
		e.onSequencerStop(g)
		e.notifyTransport()
		return
	case reqRewind:
		e.transport.Rewind()
		e.sync.SendRewind()
		e.relocateLoops(g)
		e.notifyTransport()
		return
	case reqGoToBeat:
		e.transport.GoToBeat(r.beat, g.Sequencer)
		e.relocateLoops(g)
		e.notifyTransport()
		return
	}

	_, ch := g.Find(r.ch)
	if ch == nil {
		return
	}
	st := e.store.Resolve(ch.Shared)
	if st == nil {
		return
	}
	mode := modeFor(ch)

	var changed bool
	switch r.kind {
	case reqPress:
		quantized := e.transport.IsRunning() && g.Sequencer.Quantize > 0
		changed = st.Press(mode, quantized)
	case reqRelease:
		changed = st.Release(mode)
	case reqKill:
		wasPlaying := st.Play.Load().Active()
		changed = st.Kill()
		if wasPlaying {
			e.sendNotesOff(ch, st)
		}
	case reqToggleReadActions:
		changed = st.ToggleReadActions(e.transport.IsRunning())
	case reqKillReadActions:
		changed = st.KillReadActions()
	case reqSendMidi:
		e.sendChannelMidi(ch, r.packet)
	}
	if changed {
		e.notifyChannel(ch, st)
	}
}

// onBoundary applies grid-line transitions to every channel.
func (e *Engine) onBoundary(g *model.Generation, ev sequencer.Event) {
	for _, ch := range g.Channels {
		if ch.Type == model.ChannelMaster {
			continue
		}
		st := e.store.Resolve(ch.Shared)
		if st == nil {
			continue
		}
		mode := modeFor(ch)
		changed := false
		if ev.Flags.Has(sequencer.BoundaryFirstBeat) {
			changed = st.OnFirstBeat(mode) || changed
		}
		if ev.Flags.Has(sequencer.BoundaryBar) {
			changed = st.OnBar(mode) || changed
		}
		if ev.Flags.Has(sequencer.BoundaryQuantize) {
			changed = st.OnQuantize(mode) || changed
		}
		if changed {
			e.notifyChannel(ch, st)
		}
	}
}

func (e *Engine) onSequencerStop(g *model.Generation) {
	for _, ch := range g.Channels {
		if ch.Type == model.ChannelMaster {
			continue
		}
		st := e.store.Resolve(ch.Shared)
		if st == nil {
			continue
		}
		if ch.Type == model.ChannelMidi && st.Play.Load().Active() {
			e.sendNotesOff(ch, st)
		}
		if st.OnSequencerStop(modeFor(ch), e.cfg.StopLoopsOnHalt) {
			e.notifyChannel(ch, st)
		}
	}
}

// relocateLoops moves playing loops to where the playhead now is.
func (e *Engine) relocateLoops(g *model.Generation) {
	frame := e.transport.Frame()
	for _, ch := range g.Channels {
		if ch.Type != model.ChannelSample || !ch.Mode.IsLoop() {
			continue
		}
		st := e.store.Resolve(ch.Shared)
		if st == nil || !st.Play.Load().Active() {
			continue
		}
		if n := ch.Wave.Frames(); n > 0 {
			st.Tracker.Store(frame % n)
		}
	}
}

// sendNotesOff silences a MIDI channel that is enabled and audible.
func (e *Engine) sendNotesOff(ch *model.Channel, st *model.Shared) {
	if e.out == nil || ch.Type != model.ChannelMidi || !ch.Midi.Enabled || st.Mute.Load() {
		return
	}
	e.out.Send(e.allNotesOff[ch.Midi.Channel&0x0F])
}

// sendChannelMidi routes a message through the channel's MIDI output,
// rewriting the channel nibble of voice messages.
func (e *Engine) sendChannelMidi(ch *model.Channel, p midisync.Packet) {
	if e.out == nil || ch.Type != model.ChannelMidi || !ch.Midi.Enabled || p.Len == 0 {
		return
	}
	if p.Data[0] >= 0x80 && p.Data[0] < 0xF0 {
		p.Data[0] = p.Data[0]&0xF0 | ch.Midi.Channel&0x0F
	}
	e.out.Send(p)
}

func (e *Engine) notifyChannel(ch *model.Channel, st *model.Shared) {
	e.notify(Notification{
		Kind:    NoteChannelStatus,
		Channel: ch.ID,
		Play:    st.Play.Load(),
		Rec:     st.Rec.Load(),
	})
}

func (e *Engine) notifyTransport() {
	e.notify(Notification{
		Kind:    NoteTransport,
		Running: e.transport.IsRunning(),
		Beat:    e.transport.Beat(),
	})
}

var _ mixer.StatusListener = (*Engine)(nil)
