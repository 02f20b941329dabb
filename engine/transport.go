package engine

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/action"
	"go-loopcore/debug"
	"go-loopcore/midisync"
	"go-loopcore/model"
	"go-loopcore/sequencer"
)

// Start starts the transport. Starting a running transport does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if err := e.push(request{kind: reqStart}); err != nil {
		return err
	}
	e.running = true
	debug.Log("transport", "start")
	return nil
}

// Stop stops the transport. Stopping a stopped transport does nothing.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	if err := e.push(request{kind: reqStop}); err != nil {
		return err
	}
	e.running = false
	debug.Log("transport", "stop")
	return nil
}

// Toggle starts or stops the transport.
func (e *Engine) Toggle() error {
	if e.IsRunning() {
		return e.Stop()
	}
	return e.Start()
}

// IsRunning reports the requested transport state. The audio thread catches
// up at its next block.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Rewind moves the playhead to the first beat.
func (e *Engine) Rewind() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(request{kind: reqRewind})
}

// GoToBeat relocates the playhead to beat, wrapped into the loop.
func (e *Engine) GoToBeat(beat int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(request{kind: reqGoToBeat, beat: beat})
}

// CurrentBeat and CurrentFrame read the audio thread's playhead.
func (e *Engine) CurrentBeat() int  { return e.transport.Beat() }
func (e *Engine) CurrentFrame() int { return e.transport.Frame() }

// Bpm is the tempo of the current generation.
func (e *Engine) Bpm() float64 { return e.bpm.Load() }

// BeatsInLoop is safe to call from any thread.
func (e *Engine) BeatsInLoop() int { return e.beatsInLoop.Load() }

// SetBpm changes the tempo. In clock-slave mode the tempo follows the
// incoming clock and manual changes are rejected.
func (e *Engine) SetBpm(bpm float64) error {
	if e.sync.Mode() == midisync.Slave {
		return fault.New("tempo follows midi clock",
			fmsg.WithDesc("bpm is locked in clock-slave mode", "Tempo follows the incoming MIDI clock"),
			ftag.With(ftag.InvalidArgument))
	}
	return e.setBpm(bpm)
}

func (e *Engine) setBpm(bpm float64) error {
	if bpm <= 0 {
		return invalid("bpm must be positive")
	}
	bpm = sequencer.ClampBpm(bpm)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.Get().Sequencer.Bpm == bpm {
		return nil
	}
	err := e.swap(func(g *model.Generation) ([]func(), error) {
		g.Sequencer.Bpm = bpm
		return nil, nil
	})
	if err == nil {
		e.post(Notification{Kind: NoteBpm, Bpm: bpm, Thread: action.ThreadMain})
	}
	return err
}

// SetBeats changes the loop length.
func (e *Engine) SetBeats(beats, bars int) error {
	if beats < 1 || beats > sequencer.MaxBeats || bars < 1 || bars > sequencer.MaxBars || bars > beats {
		return invalid("beats must be 1-32 and bars between 1 and beats")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swap(func(g *model.Generation) ([]func(), error) {
		g.Sequencer.Beats = beats
		g.Sequencer.Bars = bars
		return nil, nil
	})
}

// SetQuantize sets quantizer steps per beat, 0 to disable.
func (e *Engine) SetQuantize(q int) error {
	if q < 0 || q > sequencer.MaxQuantize {
		return invalid("quantize must be 0-8")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swap(func(g *model.Generation) ([]func(), error) {
		g.Sequencer.Quantize = q
		return nil, nil
	})
}

// Sequencer returns the sequencer config of the current generation.
func (e *Engine) Sequencer() sequencer.Config {
	return e.store.Get().Sequencer
}

// ReceiveMidi feeds the clock-slave path. Call it from the MIDI input
// thread only; timestamp is in seconds.
func (e *Engine) ReceiveMidi(msg gomidi.Message, timestamp float64) {
	e.sync.Receive(msg, timestamp, e.beatsInLoop.Load())
}
