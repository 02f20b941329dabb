package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Southclaws/fault/ftag"

	"go-loopcore/midisync"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sequencer.Bpm != 120 || cfg.Audio.SampleRate != 44100 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-loopcore", "config.json")
	cfg := DefaultConfig()
	cfg.Midi.Sync = midisync.Slave
	cfg.Midi.ClockIn = "IAC Driver Bus 1"
	cfg.Midi.Bindings = []Binding{{Note: 36, Slot: 1}}
	cfg.Sequencer.Bpm = 98.5
	if err := cfg.SaveFile(path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Midi.Sync != midisync.Slave {
		t.Errorf("Sync = %v, want %v", got.Midi.Sync, midisync.Slave)
	}
	if got.Midi.ClockIn != "IAC Driver Bus 1" || got.Sequencer.Bpm != 98.5 {
		t.Errorf("loaded = %+v", got)
	}
	if len(got.Midi.Bindings) != 1 || got.Midi.Bindings[0].Note != 36 {
		t.Errorf("Bindings = %v", got.Midi.Bindings)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"sequencer":{"bpm":90,"beats":8,"bars":2}}`), 0644)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sequencer.Beats != 8 || cfg.Audio.BufferSize != 512 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSync, "master")
	t.Setenv(EnvBpm, "140")
	t.Setenv(EnvHeadless, "true")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Midi.Sync != midisync.Master || cfg.Sequencer.Bpm != 140 || !cfg.Audio.Headless {
		t.Errorf("sync=%v bpm=%v headless=%v", cfg.Midi.Sync, cfg.Sequencer.Bpm, cfg.Audio.Headless)
	}
}

func TestBadInput(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"bad json", `{"audio":`, nil},
		{"bpm out of range", `{"sequencer":{"bpm":5,"beats":4,"bars":1}}`, nil},
		{"bars over beats", `{"sequencer":{"bpm":120,"beats":2,"bars":4}}`, nil},
		{"unknown sync mode", `{"midi":{"sync":"wordclock"}}`, nil},
		{"unknown log level", `{"log":{"level":"verbose"}}`, nil},
		{"bad binding", `{"midi":{"bindings":[{"note":36,"slot":0}]}}`, nil},
		{"bad env bpm", `{}`, map[string]string{EnvBpm: "fast"}},
		{"bad env sync", `{}`, map[string]string{EnvSync: "both"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.json")
			os.WriteFile(path, []byte(tt.file), 0644)

			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("LoadFile accepted bad input")
			}
			if ftag.Get(err) != ftag.InvalidArgument {
				t.Errorf("kind = %v, want %v", ftag.Get(err), ftag.InvalidArgument)
			}
		})
	}
}

func TestAddController(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddController(ControllerConfig{PortName: "Keystep", Type: ControllerKeyboard})
	cfg.AddController(ControllerConfig{PortName: "Keystep", Type: ControllerKeyboard, AutoConnect: true})

	if len(cfg.Midi.Controllers) != 2 {
		t.Fatalf("controllers = %d, want 2", len(cfg.Midi.Controllers))
	}
	if c := cfg.FindController("Keystep"); c == nil || !c.AutoConnect {
		t.Errorf("FindController = %+v", c)
	}
	if n := len(cfg.AutoConnectControllers()); n != 2 {
		t.Errorf("auto-connect controllers = %d, want 2", n)
	}
}
