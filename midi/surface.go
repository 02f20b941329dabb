package midi

import (
	"context"
	"slices"
	"sync"
	"time"

	"go-loopcore/channel"
	"go-loopcore/config"
	"go-loopcore/debug"
	"go-loopcore/engine"
	"go-loopcore/model"
	"go-loopcore/theme"
)

// LED refresh rate
const ledFPS = 30

// Top-row buttons of a grid controller
const (
	buttonPlay   = 0
	buttonRewind = 1
)

// Engine is the part of the engine a surface drives.
type Engine interface {
	Channels() []engine.ChannelView
	PressFromMidi(id model.ID, velocity uint8) error
	Toggle() error
	Rewind() error
	IsRunning() bool
}

// Surface routes controller input to the engine and mirrors channel status
// on controller LEDs.
type Surface struct {
	eng      Engine
	theme    *theme.Theme
	bindings map[uint8]int // note -> slot

	mu          sync.Mutex
	controllers map[string]Controller
	prevLEDs    map[string]map[[2]int]LEDUpdate
}

func NewSurface(eng Engine, th *theme.Theme, bindings []config.Binding) *Surface {
	s := &Surface{
		eng:         eng,
		theme:       th,
		bindings:    make(map[uint8]int, len(bindings)),
		controllers: make(map[string]Controller),
		prevLEDs:    make(map[string]map[[2]int]LEDUpdate),
	}
	for _, b := range bindings {
		s.bindings[b.Note] = b.Slot
	}
	return s
}

// Attach starts reading c's events. Reading stops when c is closed.
func (s *Surface) Attach(c Controller) {
	s.mu.Lock()
	s.controllers[c.ID()] = c
	s.prevLEDs[c.ID()] = make(map[[2]int]LEDUpdate)
	s.mu.Unlock()

	go func() {
		for ev := range c.PadEvents() {
			s.HandlePad(ev)
		}
	}()
	go func() {
		for ev := range c.NoteEvents() {
			s.HandleNote(ev)
		}
	}()
}

// Controllers lists the attached controller IDs, sorted.
func (s *Surface) Controllers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.controllers))
	for id := range s.controllers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Detach forgets a controller. The caller closes it.
func (s *Surface) Detach(id string) {
	s.mu.Lock()
	delete(s.controllers, id)
	delete(s.prevLEDs, id)
	s.mu.Unlock()
}

// Run follows device events and refreshes LEDs until ctx is done.
func (s *Surface) Run(ctx context.Context, devices <-chan DeviceEvent) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-devices:
			if !ok {
				devices = nil
				continue
			}
			switch ev.Type {
			case DeviceConnected:
				s.Attach(ev.Controller)
			case DeviceDisconnected:
				s.Detach(ev.ID)
			}
		case <-ticker.C:
			s.FlushLEDs()
		}
	}
}

// HandlePad presses the channel under a grid pad, or runs a transport
// button on the top row.
func (s *Surface) HandlePad(ev PadEvent) {
	if ev.Row == 8 {
		if ev.Velocity == 0 {
			return
		}
		var err error
		switch ev.Col {
		case buttonPlay:
			err = s.eng.Toggle()
		case buttonRewind:
			err = s.eng.Rewind()
		}
		if err != nil {
			debug.Log("surface", "button %d: %v", ev.Col, err)
		}
		return
	}
	s.press(PadSlot(ev.Row, ev.Col), ev.Velocity)
}

// HandleNote presses the channel bound to a keyboard note.
func (s *Surface) HandleNote(ev NoteEvent) {
	if slot, ok := s.bindings[ev.Note]; ok {
		s.press(slot, ev.Velocity)
	}
}

func (s *Surface) press(slot int, velocity uint8) {
	chans := s.eng.Channels()
	if slot < 1 || slot > len(chans) {
		return
	}
	if err := s.eng.PressFromMidi(chans[slot-1].ID, velocity); err != nil {
		debug.Log("surface", "slot %d: %v", slot, err)
	}
}

// RenderLEDs is the full LED state for the current channels.
func (s *Surface) RenderLEDs() []LEDUpdate {
	var leds []LEDUpdate
	for i, ch := range s.eng.Channels() {
		row, col, ok := SlotPad(i + 1)
		if !ok {
			break
		}
		if ch.Type == model.ChannelSample && !ch.HasWave {
			continue
		}
		led := LEDUpdate{Row: row, Col: col, Color: s.theme.StatusRGB(ch.Play)}
		switch ch.Play {
		case channel.Wait:
			led.Channel = ChannelFlash
		case channel.Ending:
			led.Channel = ChannelPulse
		}
		leds = append(leds, led)
	}
	play := LEDUpdate{Row: 8, Col: buttonPlay, Color: s.theme.RGB(theme.RoleMuted)}
	if s.eng.IsRunning() {
		play.Color = s.theme.RGB(theme.RoleActive)
	}
	leds = append(leds, play, LEDUpdate{Row: 8, Col: buttonRewind, Color: s.theme.RGB(theme.RoleMuted)})
	return leds
}

// FlushLEDs sends only the LEDs that changed since the last flush to each
// controller.
func (s *Surface) FlushLEDs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.controllers) == 0 {
		return
	}

	leds := s.RenderLEDs()
	for id, c := range s.controllers {
		prev := s.prevLEDs[id]
		next := make(map[[2]int]LEDUpdate, len(leds))
		var updates []LEDUpdate
		for _, led := range leds {
			key := [2]int{led.Row, led.Col}
			next[key] = led
			if p, ok := prev[key]; !ok || p != led {
				updates = append(updates, led)
			}
		}
		for key := range prev {
			if _, ok := next[key]; !ok {
				updates = append(updates, LEDUpdate{Row: key[0], Col: key[1]})
			}
		}
		if len(updates) > 0 {
			if err := c.SetLEDBatch(updates); err != nil {
				debug.Log("led", "%s: %v", id, err)
			}
		}
		s.prevLEDs[id] = next
	}
}
