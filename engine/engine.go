// Package engine is the control facade of the loop core. Every change made
// by the UI, MIDI input or collaborators goes through an Engine, which turns
// it into either a scalar update, a request for the audio thread or a new
// generation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/action"
	"go-loopcore/channel"
	"go-loopcore/debug"
	"go-loopcore/midisync"
	"go-loopcore/mixer"
	"go-loopcore/model"
	"go-loopcore/queue"
	"go-loopcore/scalar"
	"go-loopcore/sequencer"
)

// KindExhausted tags errors caused by a full queue or arena.
const KindExhausted ftag.Kind = "RESOURCE_EXHAUSTED"

// Config holds everything fixed at construction.
type Config struct {
	SampleRate  int
	BlockSize   int
	MaxChannels int
	QueueSize   int
	Sync        midisync.Mode
	Sequencer   sequencer.Config
	Mixer       model.MixerConfig

	// StopLoopsOnHalt kills playing loops when the sequencer stops.
	StopLoopsOnHalt bool
}

// DefaultConfig returns a 44.1 kHz setup with 512-frame blocks.
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		BlockSize:       512,
		MaxChannels:     64,
		QueueSize:       256,
		Sequencer:       sequencer.DefaultConfig(44100),
		Mixer:           model.MixerConfig{MaxFramesToRec: 44100 * 60, LimitOutput: true},
		StopLoopsOnHalt: true,
	}
}

// Deps are the collaborators the engine talks to.
type Deps struct {
	// MidiOut receives clock and channel MIDI from the audio thread. It may
	// be nil.
	MidiOut midisync.Sender
}

// Engine owns the store, the audio-thread components and the queues
// between them.
type Engine struct {
	cfg Config

	// mu serialises the control side: publishes, reclaims and request
	// pushes all happen under it.
	mu sync.Mutex

	store     *model.Store
	mixer     *mixer.Mixer
	transport *sequencer.Transport
	sync      *midisync.Synchronizer
	out       midisync.Sender

	requests *queue.Ring[request]      // control -> audio
	notes    *queue.Ring[Notification] // audio -> control loop
	updates  chan Notification
	actions  action.Chan

	nextID      model.ID
	running     bool // requested transport state
	beatsInLoop scalar.Int
	bpm         scalar.Float64
	dropped     scalar.Int

	allNotesOff [16]midisync.Packet
}

// New builds an engine with an empty channel list plus the two master
// channels.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fault.New("invalid audio config",
			fmsg.WithDesc("sample rate and block size must be positive", "Check the audio section of the config"),
			ftag.With(ftag.InvalidArgument))
	}
	if cfg.MaxChannels < 2 {
		cfg.MaxChannels = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	cfg.Sequencer.SampleRate = cfg.SampleRate
	cfg.Sequencer.Bpm = sequencer.ClampBpm(cfg.Sequencer.Bpm)
	if cfg.Sequencer.Beats <= 0 {
		cfg.Sequencer.Beats = sequencer.DefaultBeats
	}
	if cfg.Sequencer.Bars <= 0 {
		cfg.Sequencer.Bars = sequencer.DefaultBars
	}

	e := &Engine{
		cfg:       cfg,
		mixer:     mixer.New(cfg.BlockSize, cfg.Mixer.MaxFramesToRec),
		transport: sequencer.NewTransport(),
		out:       deps.MidiOut,
		requests:  queue.NewRing[request](cfg.QueueSize),
		notes:     queue.NewRing[Notification](cfg.QueueSize),
		updates:   make(chan Notification, cfg.QueueSize),
		actions:   make(action.Chan, cfg.QueueSize),
		nextID:    model.MasterInID,
	}
	e.sync = midisync.New(cfg.Sync, deps.MidiOut, e.actions)
	for ch := range e.allNotesOff {
		e.allNotesOff[ch] = midisync.PacketOf(gomidi.ControlChange(uint8(ch), 123, 0))
	}

	g := &model.Generation{Mixer: cfg.Mixer, Sequencer: cfg.Sequencer}
	e.store = model.NewStore(g, cfg.MaxChannels)
	for _, m := range []struct {
		id   model.ID
		name string
	}{{model.MasterOutID, "master out"}, {model.MasterInID, "master in"}} {
		h, _, err := e.store.Arena().Alloc()
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("allocate master channel"))
		}
		g.Channels = append(g.Channels, &model.Channel{
			ID:     m.id,
			Type:   model.ChannelMaster,
			Name:   m.name,
			Shared: h,
		})
	}
	e.afterPublish(g)

	debug.Log("engine", "created rate=%d block=%d sync=%s", cfg.SampleRate, cfg.BlockSize, cfg.Sync)
	return e, nil
}

// Config returns the construction config.
func (e *Engine) Config() Config { return e.cfg }

// Actions is where MIDI and other threads post transport requests. The
// control loop applies them in order.
func (e *Engine) Actions() action.Poster { return e.actions }

// Notifications delivers status changes to a UI. Slow readers miss updates
// rather than stall the engine.
func (e *Engine) Notifications() <-chan Notification { return e.updates }

// Mixer exposes the meters and render flags for reading.
func (e *Engine) Mixer() *mixer.Mixer { return e.mixer }

// Synchronizer is exposed for the MIDI input thread.
func (e *Engine) Synchronizer() *midisync.Synchronizer { return e.sync }

// Run is the control loop. It applies posted actions, reclaims retired
// generations and forwards audio notifications until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	reclaim := time.NewTicker(50 * time.Millisecond)
	drain := time.NewTicker(time.Second / 60)
	defer reclaim.Stop()
	defer drain.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-e.actions:
			if err := e.Apply(a); err != nil {
				debug.Log("action", "%s failed: %v", a, err)
			}
		case <-reclaim.C:
			e.Reclaim()
		case <-drain.C:
			e.DrainNotifications()
		}
	}
}

// Apply runs one action on the calling (control) thread.
func (e *Engine) Apply(a action.Action) error {
	debug.Log("action", "%s", a)
	switch a.Kind {
	case action.StartTransport:
		return e.Start()
	case action.StopTransport:
		return e.Stop()
	case action.GoToBeat:
		return e.GoToBeat(a.Beat)
	case action.SetBpm:
		return e.setBpm(a.Bpm)
	}
	return fault.New("unknown action", ftag.With(ftag.InvalidArgument))
}

// Reclaim releases generations the audio thread no longer uses.
func (e *Engine) Reclaim() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Reclaim()
}

// WaitCycle blocks until the audio thread completed a block.
func (e *Engine) WaitCycle(ctx context.Context) error {
	return e.store.WaitCycle(ctx)
}

// Close releases everything still held. The audio driver must be stopped.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.store.Get().Clone()
	var release []func()
	for _, ch := range g.Channels {
		for _, p := range ch.Plugins {
			release = append(release, closePlugin(p))
		}
	}
	g.Channels = nil
	e.store.Publish(g, release...)
	e.store.Reclaim()
	debug.Log("engine", "closed")
	return nil
}

func (e *Engine) newID() model.ID {
	e.nextID++
	return e.nextID
}

// swap clones the current generation, lets edit change it and publishes the
// result. Callers hold e.mu.
func (e *Engine) swap(edit func(g *model.Generation) ([]func(), error)) error {
	g := e.store.Get().Clone()
	release, err := edit(g)
	if err != nil {
		return err
	}
	e.store.Publish(g, release...)
	e.afterPublish(g)
	e.post(Notification{Kind: NoteStructure, Thread: action.ThreadMain})
	return nil
}

func (e *Engine) afterPublish(g *model.Generation) {
	e.beatsInLoop.Store(g.Sequencer.Beats)
	e.bpm.Store(g.Sequencer.Bpm)
}

// push hands a request to the audio thread. Callers hold e.mu.
func (e *Engine) push(r request) error {
	if err := e.requests.Push(r); err != nil {
		return fault.Wrap(err, fmsg.With("audio request queue full"), ftag.With(KindExhausted))
	}
	return nil
}

// find looks up a channel in the current generation.
func (e *Engine) find(id model.ID) (*model.Channel, *model.Shared, error) {
	_, ch := e.store.Get().Find(id)
	if ch == nil {
		return nil, nil, notFound("channel", id)
	}
	st := e.store.Resolve(ch.Shared)
	if st == nil {
		return nil, nil, notFound("channel state", id)
	}
	return ch, st, nil
}

func notFound(what string, id model.ID) error {
	return fault.New(fmt.Sprintf("%s %d not found", what, id), ftag.With(ftag.NotFound))
}

func invalid(msg string) error {
	return fault.New(msg, ftag.With(ftag.InvalidArgument))
}

func closePlugin(p *model.Plugin) func() {
	return func() {
		if p.Proc == nil {
			return
		}
		if err := p.Proc.Close(); err != nil {
			debug.Log("plugin", "close %d: %v", p.ID, err)
		}
	}
}

// modeFor is the status machine mode a channel runs with. MIDI channels
// follow the grid like loops.
func modeFor(ch *model.Channel) channel.Mode {
	if ch.Type == model.ChannelMidi {
		return channel.LoopBasic
	}
	return ch.Mode
}
