package engine

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-loopcore/debug"
	"go-loopcore/mixer"
	"go-loopcore/model"
)

// Meters is a snapshot of the mixer peak meters.
type Meters struct {
	OutL, OutR float32
	InL, InR   float32
}

func (e *Engine) Meters() Meters {
	m := e.mixer
	return Meters{
		OutL: m.PeakOutL.Load(),
		OutR: m.PeakOutR.Load(),
		InL:  m.PeakInL.Load(),
		InR:  m.PeakInR.Load(),
	}
}

// MixerConfig returns the mixer config of the current generation.
func (e *Engine) MixerConfig() model.MixerConfig {
	return e.store.Get().Mixer
}

func (e *Engine) SetInToOut(on bool) error {
	return e.editMixer(func(c *model.MixerConfig) { c.InToOut = on })
}

func (e *Engine) SetLimitOutput(on bool) error {
	return e.editMixer(func(c *model.MixerConfig) { c.LimitOutput = on })
}

func (e *Engine) SetAllowsOverdub(on bool) error {
	return e.editMixer(func(c *model.MixerConfig) { c.AllowsOverdub = on })
}

// SetRecTriggerLevel sets the input peak (0..1) that starts a take.
func (e *Engine) SetRecTriggerLevel(level float32) error {
	return e.editMixer(func(c *model.MixerConfig) { c.RecTriggerLevel = clamp(level, 0, 1) })
}

func (e *Engine) editMixer(fn func(c *model.MixerConfig)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swap(func(g *model.Generation) ([]func(), error) {
		fn(&g.Mixer)
		return nil, nil
	})
}

// IsRecordingInput reports whether an input take is armed or running.
func (e *Engine) IsRecordingInput() bool {
	return e.mixer.Recording.Load()
}

// StartInputRec arms input recording. At least one sample channel must be
// armed to receive the take.
func (e *Engine) StartInputRec() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.armedChannels()) == 0 {
		return invalid("no armed sample channel")
	}
	e.mixer.Recording.Store(true)
	debug.Log("rec", "input recording armed")
	return nil
}

// StopInputRec ends the take and writes it into every armed sample channel.
// It waits for one render cycle so the audio thread is done with the record
// buffer. It returns the channels that received the take.
func (e *Engine) StopInputRec(ctx context.Context) ([]model.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mixer.Recording.Load() {
		return nil, nil
	}
	e.mixer.Recording.Store(false)
	if err := e.store.WaitCycle(ctx); err != nil {
		return nil, fault.Wrap(err, fmsg.With("wait for audio thread"))
	}

	take := e.mixer.Recorded()
	if len(take) == 0 {
		debug.Log("rec", "input recording stopped, nothing captured")
		return nil, nil
	}
	cfg := e.store.Get().Mixer

	var filled []model.ID
	err := e.swap(func(g *model.Generation) ([]func(), error) {
		for _, id := range e.armedChannels() {
			ch := g.Edit(id)
			st := e.store.Resolve(ch.Shared)
			switch {
			case ch.Wave != nil && st.OverdubProtection.Load():
				continue
			case ch.Wave != nil && cfg.AllowsOverdub:
				ch.Wave = overdub(ch.Wave, take, e.cfg.SampleRate, e.newID())
			default:
				ch.Wave = &model.Wave{
					ID:       e.newID(),
					Name:     ch.Name,
					Data:     append([]float32(nil), take...),
					Channels: mixer.Stereo,
					Rate:     e.cfg.SampleRate,
				}
			}
			filled = append(filled, id)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	debug.Log("rec", "input take of %d frames written to %v", len(take)/mixer.Stereo, filled)
	return filled, nil
}

// armedChannels lists armed sample channels. Callers hold e.mu.
func (e *Engine) armedChannels() []model.ID {
	var ids []model.ID
	for _, ch := range e.store.Get().Channels {
		if ch.Type != model.ChannelSample {
			continue
		}
		if st := e.store.Resolve(ch.Shared); st != nil && st.Arm.Load() {
			ids = append(ids, ch.ID)
		}
	}
	return ids
}

// overdub sums take on top of w into a new stereo wave.
func overdub(w *model.Wave, take []float32, rate int, id model.ID) *model.Wave {
	frames := max(w.Frames(), len(take)/mixer.Stereo)
	data := make([]float32, frames*mixer.Stereo)
	for f := 0; f < w.Frames(); f++ {
		src := f * w.Channels
		data[f*2] = w.Data[src]
		if w.Channels == 2 {
			data[f*2+1] = w.Data[src+1]
		} else {
			data[f*2+1] = w.Data[src]
		}
	}
	for i, v := range take {
		data[i] += v
	}
	return &model.Wave{ID: id, Name: w.Name, Data: data, Channels: mixer.Stereo, Rate: rate}
}
