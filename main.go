package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-loopcore/audio"
	"go-loopcore/audio/otodrv"
	"go-loopcore/config"
	"go-loopcore/debug"
	"go-loopcore/engine"
	"go-loopcore/midi"
	"go-loopcore/model"
	"go-loopcore/sequencer"
	"go-loopcore/theme"
	"go-loopcore/tui"
	"go-loopcore/wavefile"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Log.File != "" {
		if err := debug.Enable(cfg.Log.File); err != nil {
			return err
		}
		defer debug.Disable()
		if cfg.Log.Level != "" {
			if err := debug.SetLevel(cfg.Log.Level); err != nil {
				return fault.Wrap(err, fmsg.With("set log level"))
			}
		}
	}

	th := theme.New(nil)
	if cfg.UI.Palette != "" {
		palette, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MIDI output carries the master clock and channel MIDI
	var deps engine.Deps
	if cfg.Midi.ClockOut != "" {
		port, err := gomidi.FindOutPort(cfg.Midi.ClockOut)
		if err != nil {
			return err
		}
		out, err := midi.OpenOutput(port, cfg.Engine.QueueSize)
		if err != nil {
			return err
		}
		go out.Run(ctx)
		deps.MidiOut = out
	}

	eng, err := engine.New(engineConfig(cfg), deps)
	if err != nil {
		return err
	}
	defer eng.Close()
	for i := 0; i < cfg.Engine.Channels; i++ {
		if _, err := eng.AddChannel(model.ChannelSample, 1); err != nil {
			return err
		}
	}
	if err := loadSamples(eng, cfg); err != nil {
		return err
	}
	go eng.Run(ctx)

	if cfg.Midi.ClockIn != "" {
		port, err := gomidi.FindInPort(cfg.Midi.ClockIn)
		if err != nil {
			return err
		}
		clock, err := midi.ListenClock(port, eng)
		if err != nil {
			return err
		}
		defer clock.Close()
	}

	driver := openAudio(cfg)
	if err := driver.Start(eng.Render); err != nil {
		return err
	}
	defer driver.Stop()

	deviceMgr := midi.NewDeviceManager(cfg.AutoConnectControllers())
	surface := midi.NewSurface(eng, th, cfg.Midi.Bindings)
	go deviceMgr.Run(ctx)
	go surface.Run(ctx, deviceMgr.Events())

	debug.Log("main", "running rate=%d block=%d sync=%s", driver.SampleRate(), driver.BlockSize(), cfg.Midi.Sync)

	m := tui.NewModel(eng, surface, th)
	m.TakesDir = cfg.Engine.TakesDir
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// openAudio falls back to the headless driver when no sound card opens.
func openAudio(cfg *config.Config) audio.Driver {
	rate, block := cfg.Audio.SampleRate, cfg.Audio.BufferSize
	if !cfg.Audio.Headless {
		d, err := otodrv.New(rate, block)
		if err == nil {
			return d
		}
		debug.Warn("main", "audio output unavailable, running headless: %v", err)
	}
	return audio.NewHeadless(rate, block)
}

// loadSamples gives every configured WAV file a channel of its own.
func loadSamples(eng *engine.Engine, cfg *config.Config) error {
	for _, path := range cfg.Engine.Samples {
		w, err := wavefile.Load(path)
		if err != nil {
			return err
		}
		if w.Rate != cfg.Audio.SampleRate {
			debug.Warn("main", "%s is %d Hz, engine runs at %d Hz", path, w.Rate, cfg.Audio.SampleRate)
		}
		id, err := eng.AddChannel(model.ChannelSample, 1)
		if err != nil {
			return err
		}
		if err := eng.LoadWave(id, w); err != nil {
			return err
		}
	}
	return nil
}

func engineConfig(c *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.SampleRate = c.Audio.SampleRate
	ec.BlockSize = c.Audio.BufferSize
	ec.MaxChannels = c.Engine.MaxChannels
	ec.QueueSize = c.Engine.QueueSize
	ec.Sync = c.Midi.Sync
	ec.Sequencer = sequencer.Config{
		Bpm:        c.Sequencer.Bpm,
		Beats:      c.Sequencer.Beats,
		Bars:       c.Sequencer.Bars,
		Quantize:   c.Sequencer.Quantize,
		SampleRate: c.Audio.SampleRate,
	}
	ec.Mixer = model.MixerConfig{
		InToOut:         c.Mixer.InToOut,
		LimitOutput:     c.Mixer.LimitOutput,
		AllowsOverdub:   c.Mixer.AllowsOverdub,
		MaxFramesToRec:  c.MaxRecFrames(),
		RecTriggerLevel: c.Mixer.RecTriggerLevel,
	}
	ec.StopLoopsOnHalt = c.Mixer.StopLoopsOnHalt
	return ec
}
