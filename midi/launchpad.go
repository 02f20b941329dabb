package midi

import (
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-loopcore/debug"
)

var ledSendCount atomic.Uint64

// LaunchpadController handles a Novation Launchpad X in programmer mode.
type LaunchpadController struct {
	id       string
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// Launchpad X sysex header, F0 00 20 29 02 0C ...
var lpHeader = []byte{0x00, 0x20, 0x29, 0x02, 0x0C}

// NewLaunchpadController creates and configures a Launchpad
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	var send func(gomidi.Message) error
	if outPort != nil {
		s, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("open launchpad output "+id))
		}
		send = s
	}
	lp := newLaunchpad(id, send)
	lp.setup()

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			lp.handle(msg)
		})
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("open launchpad input "+id))
		}
		lp.stopFunc = stop
	}
	return lp, nil
}

func newLaunchpad(id string, send func(gomidi.Message) error) *LaunchpadController {
	return &LaunchpadController{
		id:       id,
		send:     send,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}
}

func (lp *LaunchpadController) setup() {
	if lp.send == nil {
		return
	}
	sysex := func(body ...byte) gomidi.Message {
		return gomidi.SysEx(append(append([]byte{}, lpHeader...), body...))
	}
	lp.send(sysex(0x00, 0x7F))       // programmer mode
	lp.send(sysex(0x08, 0x7F))       // full brightness
	lp.send(sysex(0x0A, 0x01, 0x01)) // external LED feedback
}

// handle turns grid notes and top-row CCs into pad events, presses and
// releases alike.
func (lp *LaunchpadController) handle(msg gomidi.Message) {
	var channel, note, velocity, cc, value uint8
	row, col := -1, -1
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		row, col = noteToRowCol(note)
	case msg.GetNoteEnd(&channel, &note):
		row, col = noteToRowCol(note)
		velocity = 0
	case msg.GetControlChange(&channel, &cc, &value):
		row, col = ccToRowCol(cc)
		velocity = value
	}
	if row < 0 {
		return
	}
	select {
	case lp.padChan <- PadEvent{Row: row, Col: col, Velocity: velocity}:
	default:
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan
}

// SetLEDBatch sends one NoteOn per LED.
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		msg := gomidi.NoteOn(u.Channel, rowColToNote(u.Row, u.Col), mapRGBToLaunchpad(u.Color))
		if u.Row == 8 {
			msg = gomidi.ControlChange(u.Channel, rowColToNote(u.Row, u.Col), mapRGBToLaunchpad(u.Color))
		}
		if err := lp.send(msg); err != nil {
			return fault.Wrap(err, fmsg.With("send led update"))
		}
	}

	count := ledSendCount.Add(uint64(len(updates)))
	if count%100 < uint64(len(updates)) {
		debug.Log("lp-send", "batch count=%d (this batch=%d)", count, len(updates))
	}
	return nil
}

// launchpadPalette holds approximate RGB values of Launchpad X palette
// entries as {velocity, R, G, B}.
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},
	{5, 255, 0, 0},
	{7, 180, 60, 60},
	{9, 255, 100, 0},
	{11, 180, 80, 40},
	{13, 255, 200, 0},
	{19, 0, 100, 0},
	{21, 0, 255, 0},
	{37, 0, 200, 200},
	{43, 40, 60, 120},
	{45, 0, 100, 255},
	{49, 150, 0, 200},
	{53, 255, 80, 180},
	{84, 255, 150, 50},
	{97, 180, 180, 60},
	{119, 255, 255, 255},
}

// mapRGBToLaunchpad finds the nearest palette velocity for an RGB value
func mapRGBToLaunchpad(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := 1 << 30
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range launchpadPalette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = p[0]
		}
	}
	return best
}

func (lp *LaunchpadController) Close() error {
	if lp.send != nil {
		var updates []LEDUpdate
		for row := 0; row < 9; row++ {
			for col := 0; col < 9; col++ {
				if row == 8 && col == 8 {
					continue // no LED at 8,8
				}
				updates = append(updates, LEDUpdate{Row: row, Col: col})
			}
		}
		lp.SetLEDBatch(updates)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	close(lp.noteChan)
	return nil
}

// Launchpad X layout
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 = notes 19, 29, ... 89
// Top row:   Row 8 = CC 91-98

func rowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}

// Clip slots fill the grid left to right from the top row down.

// PadSlot returns the 1-based channel slot of a grid pad, or 0 for pads
// outside the 8x8 grid.
func PadSlot(row, col int) int {
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return 0
	}
	return (7-row)*8 + col + 1
}

// SlotPad is the inverse of PadSlot.
func SlotPad(slot int) (row, col int, ok bool) {
	if slot < 1 || slot > 64 {
		return 0, 0, false
	}
	slot--
	return 7 - slot/8, slot % 8, true
}
