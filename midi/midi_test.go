package midi

import (
	"errors"
	"sync"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-loopcore/channel"
	"go-loopcore/config"
	"go-loopcore/engine"
	"go-loopcore/midisync"
	"go-loopcore/model"
	"go-loopcore/theme"
)

func TestPadSlots(t *testing.T) {
	tests := []struct {
		row, col, slot int
	}{
		{7, 0, 1},
		{7, 7, 8},
		{6, 0, 9},
		{0, 7, 64},
		{8, 0, 0},
		{3, 8, 0},
	}
	for _, tt := range tests {
		if got := PadSlot(tt.row, tt.col); got != tt.slot {
			t.Errorf("PadSlot(%d, %d) = %d, want %d", tt.row, tt.col, got, tt.slot)
		}
		if tt.slot == 0 {
			continue
		}
		row, col, ok := SlotPad(tt.slot)
		if !ok || row != tt.row || col != tt.col {
			t.Errorf("SlotPad(%d) = %d, %d, %v", tt.slot, row, col, ok)
		}
	}
	if _, _, ok := SlotPad(65); ok {
		t.Error("SlotPad(65) ok")
	}
}

func TestLaunchpadInput(t *testing.T) {
	lp := newLaunchpad("lp", nil)

	lp.handle(gomidi.NoteOn(0, 11, 100))
	lp.handle(gomidi.NoteOff(0, 88))
	lp.handle(gomidi.ControlChange(0, 91, 127))
	lp.handle(gomidi.NoteOn(0, 5, 100)) // outside the grid

	want := []PadEvent{
		{Row: 0, Col: 0, Velocity: 100},
		{Row: 7, Col: 7, Velocity: 0},
		{Row: 8, Col: 0, Velocity: 127},
	}
	for _, w := range want {
		select {
		case got := <-lp.PadEvents():
			if got != w {
				t.Errorf("pad event = %+v, want %+v", got, w)
			}
		default:
			t.Fatalf("missing pad event %+v", w)
		}
	}
	select {
	case ev := <-lp.PadEvents():
		t.Errorf("unexpected pad event %+v", ev)
	default:
	}
}

func TestLaunchpadLEDs(t *testing.T) {
	var sent []gomidi.Message
	lp := newLaunchpad("lp", func(m gomidi.Message) error {
		sent = append(sent, m)
		return nil
	})

	err := lp.SetLEDBatch([]LEDUpdate{
		{Row: 0, Col: 0, Color: [3]uint8{0, 255, 0}},
		{Row: 8, Col: 1, Color: [3]uint8{255, 0, 0}, Channel: ChannelFlash},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	var ch, key, vel uint8
	if !sent[0].GetNoteOn(&ch, &key, &vel) || key != 11 || vel != 21 {
		t.Errorf("grid led = %v", sent[0])
	}
	if !sent[1].GetControlChange(&ch, &key, &vel) || ch != ChannelFlash || key != 92 || vel != 5 {
		t.Errorf("top-row led = %v", sent[1])
	}

	sendErr := errors.New("port gone")
	lp.send = func(gomidi.Message) error { return sendErr }
	if err := lp.SetLEDBatch([]LEDUpdate{{}}); !errors.Is(err, sendErr) {
		t.Errorf("SetLEDBatch error = %v", err)
	}
}

func TestKeyboardChannelFilter(t *testing.T) {
	kb := newKeyboard("keys", 2)
	kb.handle(gomidi.NoteOn(0, 60, 100)) // channel 1, filtered
	kb.handle(gomidi.NoteOn(1, 62, 90))
	kb.handle(gomidi.NoteOn(1, 62, 0))

	want := []NoteEvent{{Note: 62, Velocity: 90, Channel: 1}, {Note: 62, Velocity: 0, Channel: 1}}
	for _, w := range want {
		select {
		case got := <-kb.NoteEvents():
			if got != w {
				t.Errorf("note event = %+v, want %+v", got, w)
			}
		default:
			t.Fatalf("missing note event %+v", w)
		}
	}
	kb.Close()
}

func TestOutputQueue(t *testing.T) {
	var sent []gomidi.Message
	o := NewOutput("test", func(m gomidi.Message) error {
		sent = append(sent, m)
		return nil
	}, 4)

	clock := midisync.PacketOf(gomidi.TimingClock())
	for i := 0; i < 6; i++ {
		o.Send(clock)
	}
	if o.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", o.Dropped())
	}
	if n := o.Flush(); n != 4 || len(sent) != 4 {
		t.Errorf("Flush() = %d, sent %d, want 4", n, len(sent))
	}
	if sent[0][0] != midisync.ClockByte {
		t.Errorf("sent %v, want clock", sent[0])
	}
}

type clockRecorder struct {
	msgs []gomidi.Message
	ts   []float64
}

func (c *clockRecorder) ReceiveMidi(msg gomidi.Message, ts float64) {
	c.msgs = append(c.msgs, msg)
	c.ts = append(c.ts, ts)
}

func TestClockInFiltersAndTimestamps(t *testing.T) {
	rec := &clockRecorder{}
	c := newClockIn(rec)

	c.handle(gomidi.TimingClock(), c.start.Add(500*time.Millisecond))
	c.handle(gomidi.NoteOn(0, 60, 100), c.start.Add(time.Second))
	c.handle(midisync.SongPosition(16), c.start.Add(time.Second))

	if len(rec.msgs) != 2 {
		t.Fatalf("forwarded %d messages, want 2", len(rec.msgs))
	}
	if rec.ts[0] != 0.5 || rec.ts[1] != 1 {
		t.Errorf("timestamps = %v", rec.ts)
	}
}

type fakeController struct {
	id     string
	typ    ControllerType
	pads   chan PadEvent
	notes  chan NoteEvent
	mu     sync.Mutex
	leds   []LEDUpdate
	closed bool
}

func newFakeController(id string) *fakeController {
	return &fakeController{id: id, typ: ControllerLaunchpad, pads: make(chan PadEvent, 8), notes: make(chan NoteEvent, 8)}
}

func (f *fakeController) ID() string                   { return f.id }
func (f *fakeController) Type() ControllerType         { return f.typ }
func (f *fakeController) PadEvents() <-chan PadEvent   { return f.pads }
func (f *fakeController) NoteEvents() <-chan NoteEvent { return f.notes }

func (f *fakeController) SetLEDBatch(u []LEDUpdate) error {
	f.mu.Lock()
	f.leds = append(f.leds, u...)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Close() error {
	if !f.closed {
		f.closed = true
		close(f.pads)
		close(f.notes)
	}
	return nil
}

func TestDeviceManagerHotPlug(t *testing.T) {
	ports := []string{"Launchpad X LPX MIDI", "Keystep 37", "IAC Bus"}
	opened := map[string]*fakeController{}

	dm := NewDeviceManager([]config.ControllerConfig{
		{PortName: "keystep", Type: config.ControllerKeyboard, AutoConnect: true},
	})
	dm.list = func() ([]string, []string) { return ports, ports }
	dm.open = func(cfg config.ControllerConfig, in, out string) (Controller, error) {
		if out != in {
			t.Errorf("out port for %q = %q", in, out)
		}
		c := newFakeController(in)
		opened[in] = c
		return c, nil
	}

	dm.scan()
	if len(dm.Controllers()) != 2 {
		t.Fatalf("connected %v, want launchpad and keystep", dm.Controllers())
	}
	for i := 0; i < 2; i++ {
		if ev := <-dm.Events(); ev.Type != DeviceConnected {
			t.Errorf("event %d = %+v", i, ev)
		}
	}

	dm.scan()
	select {
	case ev := <-dm.Events():
		t.Errorf("rescan produced %+v", ev)
	default:
	}

	ports = ports[1:]
	dm.scan()
	ev := <-dm.Events()
	if ev.Type != DeviceDisconnected || ev.ID != "Launchpad X LPX MIDI" {
		t.Errorf("event = %+v", ev)
	}
	if !opened["Launchpad X LPX MIDI"].closed {
		t.Error("disconnected controller not closed")
	}
	if len(dm.Controllers()) != 1 {
		t.Errorf("controllers = %v", dm.Controllers())
	}
}

type fakeEngine struct {
	mu      sync.Mutex
	chans   []engine.ChannelView
	presses []model.ID
	vels    []uint8
	toggles int
	running bool
}

func (f *fakeEngine) Channels() []engine.ChannelView { return f.chans }
func (f *fakeEngine) Toggle() error                  { f.toggles++; f.running = !f.running; return nil }
func (f *fakeEngine) Rewind() error                  { return nil }
func (f *fakeEngine) IsRunning() bool                { return f.running }

func (f *fakeEngine) PressFromMidi(id model.ID, v uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presses = append(f.presses, id)
	f.vels = append(f.vels, v)
	return nil
}

func TestSurfaceRouting(t *testing.T) {
	eng := &fakeEngine{chans: []engine.ChannelView{
		{ID: 10, Type: model.ChannelSample, HasWave: true},
		{ID: 11, Type: model.ChannelMidi},
	}}
	s := NewSurface(eng, theme.New(nil), []config.Binding{{Note: 36, Slot: 2}, {Note: 40, Slot: 9}})

	s.HandlePad(PadEvent{Row: 7, Col: 0, Velocity: 127})
	s.HandlePad(PadEvent{Row: 7, Col: 0, Velocity: 0})
	s.HandlePad(PadEvent{Row: 0, Col: 0, Velocity: 127}) // slot 57, empty
	s.HandleNote(NoteEvent{Note: 36, Velocity: 64})
	s.HandleNote(NoteEvent{Note: 40, Velocity: 64}) // bound to a missing slot
	s.HandlePad(PadEvent{Row: 8, Col: buttonPlay, Velocity: 127})

	wantIDs := []model.ID{10, 10, 11}
	wantVels := []uint8{127, 0, 64}
	if len(eng.presses) != len(wantIDs) {
		t.Fatalf("presses = %v, want %v", eng.presses, wantIDs)
	}
	for i := range wantIDs {
		if eng.presses[i] != wantIDs[i] || eng.vels[i] != wantVels[i] {
			t.Errorf("press %d = %d/%d, want %d/%d", i, eng.presses[i], eng.vels[i], wantIDs[i], wantVels[i])
		}
	}
	if eng.toggles != 1 {
		t.Errorf("toggles = %d, want 1", eng.toggles)
	}
}

func TestSurfaceLEDDiff(t *testing.T) {
	eng := &fakeEngine{chans: []engine.ChannelView{
		{ID: 10, Type: model.ChannelSample, HasWave: true, Play: channel.Play},
		{ID: 11, Type: model.ChannelSample}, // empty, no LED
		{ID: 12, Type: model.ChannelMidi, Play: channel.Wait},
	}}
	th := theme.New(nil)
	s := NewSurface(eng, th, nil)
	c := newFakeController("lp")
	s.mu.Lock()
	s.controllers[c.id] = c
	s.prevLEDs[c.id] = map[[2]int]LEDUpdate{}
	s.mu.Unlock()

	s.FlushLEDs()
	if len(c.leds) != 4 { // two channels and two buttons
		t.Fatalf("first flush sent %d leds, want 4: %+v", len(c.leds), c.leds)
	}
	if c.leds[1].Channel != ChannelFlash || [3]uint8(th.StatusRGB(channel.Wait)) != c.leds[1].Color {
		t.Errorf("waiting channel led = %+v", c.leds[1])
	}

	c.leds = nil
	s.FlushLEDs()
	if len(c.leds) != 0 {
		t.Errorf("unchanged flush sent %+v", c.leds)
	}

	eng.chans = eng.chans[:1]
	s.FlushLEDs()
	if len(c.leds) != 1 || c.leds[0] != (LEDUpdate{Row: 7, Col: 2}) {
		t.Errorf("removed channel leds = %+v", c.leds)
	}
}
