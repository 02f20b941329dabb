// Package config loads and saves the user configuration kept in
// ~/.config/go-loopcore/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"

	"go-loopcore/midisync"
)

// Environment overrides, applied after the file is read.
const (
	EnvSync     = "LOOPCORE_SYNC"
	EnvBpm      = "LOOPCORE_BPM"
	EnvHeadless = "LOOPCORE_HEADLESS"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerKeyboard      ControllerType = "keyboard"
)

// ControllerConfig is a saved MIDI input device.
type ControllerConfig struct {
	PortName     string         `json:"portName"`
	Type         ControllerType `json:"type"`
	AutoConnect  bool           `json:"autoConnect"`
	InputChannel int            `json:"inputChannel,omitempty"` // keyboards: 1-16, 0 = omni
}

// Binding maps a note on a keyboard to the slot-th channel (1-based, in
// display order).
type Binding struct {
	Note uint8 `json:"note"`
	Slot int   `json:"slot"`
}

type AudioConfig struct {
	SampleRate int  `json:"sampleRate"`
	BufferSize int  `json:"bufferSize"`
	Headless   bool `json:"headless,omitempty"`
}

type MidiConfig struct {
	Sync        midisync.Mode      `json:"sync"`
	ClockIn     string             `json:"clockIn,omitempty"`
	ClockOut    string             `json:"clockOut,omitempty"`
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Bindings    []Binding          `json:"bindings,omitempty"`
}

type SequencerConfig struct {
	Bpm      float64 `json:"bpm"`
	Beats    int     `json:"beats"`
	Bars     int     `json:"bars"`
	Quantize int     `json:"quantize,omitempty"`
}

type MixerConfig struct {
	RecTriggerLevel float32 `json:"recTriggerLevel,omitempty"`
	MaxRecSeconds   int     `json:"maxRecSeconds"`
	LimitOutput     bool    `json:"limitOutput"`
	InToOut         bool    `json:"inToOut,omitempty"`
	AllowsOverdub   bool    `json:"allowsOverdub,omitempty"`
	StopLoopsOnHalt bool    `json:"stopLoopsOnHalt"`
}

type EngineConfig struct {
	MaxChannels int `json:"maxChannels"`
	QueueSize   int `json:"queueSize"`
	// Channels is how many empty sample channels to create at startup.
	Channels int `json:"channels"`
	// Samples are WAV files loaded into their own channels at startup.
	Samples []string `json:"samples,omitempty"`
	// TakesDir is where saved waves are written.
	TakesDir string `json:"takesDir,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // GIMP .gpl file
}

type LogConfig struct {
	Level string `json:"level,omitempty"`
	File  string `json:"file,omitempty"` // empty disables logging
}

// Config is the main configuration structure
type Config struct {
	Audio     AudioConfig     `json:"audio"`
	Midi      MidiConfig      `json:"midi"`
	Sequencer SequencerConfig `json:"sequencer"`
	Mixer     MixerConfig     `json:"mixer"`
	Engine    EngineConfig    `json:"engine"`
	UI        UIConfig        `json:"ui,omitempty"`
	Log       LogConfig       `json:"log,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{SampleRate: 44100, BufferSize: 512},
		Midi: MidiConfig{
			Controllers: []ControllerConfig{
				{PortName: "Launchpad X LPX MIDI", Type: ControllerLaunchpadX, AutoConnect: true},
			},
		},
		Sequencer: SequencerConfig{Bpm: 120, Beats: 4, Bars: 1},
		Mixer:     MixerConfig{MaxRecSeconds: 60, LimitOutput: true, StopLoopsOnHalt: true},
		Engine:    EngineConfig{MaxChannels: 64, QueueSize: 256, Channels: 8, TakesDir: "~/.config/go-loopcore/takes"},
		Log:       LogConfig{Level: "info"},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("find home directory"))
	}
	return filepath.Join(home, ".config", "go-loopcore"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if there
// is none. Environment overrides are applied either way.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := DefaultConfig()
		return cfg, cfg.applyEnv()
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Fields missing from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fault.Wrap(err, fmsg.With("read config"))
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fault.Wrap(err,
				fmsg.WithDesc("parse config", "The config file at "+path+" is not valid JSON"),
				ftag.With(ftag.InvalidArgument))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvSync); ok {
		m, err := midisync.ParseMode(v)
		if err != nil {
			return fault.Wrap(err, fmsg.With(EnvSync))
		}
		c.Midi.Sync = m
	}
	if v, ok := os.LookupEnv(EnvBpm); ok {
		bpm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fault.Wrap(err, fmsg.With(EnvBpm), ftag.With(ftag.InvalidArgument))
		}
		c.Sequencer.Bpm = bpm
	}
	if v, ok := os.LookupEnv(EnvHeadless); ok {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fault.Wrap(err, fmsg.With(EnvHeadless), ftag.With(ftag.InvalidArgument))
		}
		c.Audio.Headless = headless
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000:
		return bad("audio.sampleRate must be 8000-192000")
	case c.Audio.BufferSize < 16 || c.Audio.BufferSize > 8192:
		return bad("audio.bufferSize must be 16-8192")
	case c.Sequencer.Bpm < 20 || c.Sequencer.Bpm > 999:
		return bad("sequencer.bpm must be 20-999")
	case c.Sequencer.Beats < 1 || c.Sequencer.Beats > 32:
		return bad("sequencer.beats must be 1-32")
	case c.Sequencer.Bars < 1 || c.Sequencer.Bars > c.Sequencer.Beats:
		return bad("sequencer.bars must be between 1 and beats")
	case c.Sequencer.Quantize < 0 || c.Sequencer.Quantize > 8:
		return bad("sequencer.quantize must be 0-8")
	case c.Mixer.RecTriggerLevel < 0 || c.Mixer.RecTriggerLevel > 1:
		return bad("mixer.recTriggerLevel must be 0-1")
	case c.Engine.Channels < 0 || c.Engine.Channels+2 > c.Engine.MaxChannels:
		return bad("engine.channels must leave room for the master channels")
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return bad("log.level must be a logrus level (trace, debug, info, warn, error)")
		}
	}
	for _, b := range c.Midi.Bindings {
		if b.Note > 127 || b.Slot < 1 {
			return bad("midi.bindings need a note 0-127 and a slot from 1")
		}
	}
	return nil
}

func bad(msg string) error {
	return fault.New(msg, fmsg.WithDesc("invalid config", msg), ftag.With(ftag.InvalidArgument))
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create config directory"))
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	return os.WriteFile(path, data, 0644)
}

// MaxRecFrames converts the recording limit into frames.
func (c *Config) MaxRecFrames() int {
	return c.Mixer.MaxRecSeconds * c.Audio.SampleRate
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Midi.Controllers {
		if c.Midi.Controllers[i].PortName == portName {
			return &c.Midi.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	if existing := c.FindController(ctrl.PortName); existing != nil {
		*existing = ctrl
		return
	}
	c.Midi.Controllers = append(c.Midi.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Midi.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
