package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/config"
	"go-loopcore/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// portTimeout bounds a port scan. CoreMIDI can hang.
const portTimeout = 3 * time.Second

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	configs     []config.ControllerConfig
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	list func() (ins, outs []string)
	open func(cfg config.ControllerConfig, in, out string) (Controller, error)
}

// NewDeviceManager watches for the given controllers. Launchpads are picked
// up even when not configured.
func NewDeviceManager(configs []config.ControllerConfig) *DeviceManager {
	return &DeviceManager{
		configs:     configs,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		list:        listPorts,
		open:        openController,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		out[k] = v
	}
	return out
}

// Run polls the ports until ctx is done (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()
	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	type result struct{ ins, outs []string }
	ch := make(chan result, 1)
	go func() {
		ins, outs := dm.list()
		ch <- result{ins, outs}
	}()

	var ins, outs []string
	select {
	case r := <-ch:
		ins, outs = r.ins, r.outs
	case <-time.After(portTimeout):
		debug.Log("devices", "port scan timed out")
		return
	}

	seen := make(map[string]bool)
	for _, name := range ins {
		cfg, ok := dm.match(name)
		if !ok {
			continue
		}
		seen[name] = true

		dm.mu.RLock()
		_, exists := dm.controllers[name]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.open(cfg, name, matchOut(name, outs))
		if err != nil {
			debug.LogEvery(10, "devices", "open %s: %v", name, err)
			continue
		}
		dm.mu.Lock()
		dm.controllers[name] = c
		dm.mu.Unlock()
		debug.Log("devices", "connected %s (%s)", name, c.Type())
		dm.emit(DeviceEvent{Type: DeviceConnected, Controller: c, ID: name})
	}

	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seen[id] {
			c.Close()
			gone = append(gone, id)
		}
	}
	for _, id := range gone {
		delete(dm.controllers, id)
	}
	dm.mu.Unlock()
	for _, id := range gone {
		debug.Log("devices", "disconnected %s", id)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
		debug.Log("devices", "event for %s dropped", ev.ID)
	}
}

// match finds the auto-connect config for an input port. Configured names
// match by case-insensitive substring.
func (dm *DeviceManager) match(port string) (config.ControllerConfig, bool) {
	lower := strings.ToLower(port)
	for _, c := range dm.configs {
		if c.AutoConnect && c.PortName != "" && strings.Contains(lower, strings.ToLower(c.PortName)) {
			return c, true
		}
	}
	if isLaunchpad(lower) {
		return config.ControllerConfig{PortName: port, Type: config.ControllerLaunchpadX, AutoConnect: true}, true
	}
	return config.ControllerConfig{}, false
}

func matchOut(in string, outs []string) string {
	for _, o := range outs {
		if strings.EqualFold(o, in) {
			return o
		}
	}
	return ""
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

func listPorts() (ins, outs []string) {
	for _, p := range gomidi.GetInPorts() {
		ins = append(ins, p.String())
	}
	for _, p := range gomidi.GetOutPorts() {
		outs = append(outs, p.String())
	}
	return ins, outs
}

func openController(cfg config.ControllerConfig, in, out string) (Controller, error) {
	inPort, err := gomidi.FindInPort(in)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("find input "+in), ftag.With(ftag.NotFound))
	}
	switch cfg.Type {
	case config.ControllerKeyboard:
		return NewKeyboardController(in, inPort, cfg.InputChannel)
	case config.ControllerLaunchpadX, config.ControllerLaunchpadMini:
		if out == "" {
			return NewLaunchpadController(in, inPort, nil)
		}
		outPort, err := gomidi.FindOutPort(out)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("find output "+out), ftag.With(ftag.NotFound))
		}
		return NewLaunchpadController(in, inPort, outPort)
	}
	return nil, fault.New("unknown controller type "+string(cfg.Type), ftag.With(ftag.InvalidArgument))
}
