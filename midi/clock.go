package midi

import (
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-loopcore/midisync"
)

// ClockReceiver takes clock, transport and song position messages with a
// timestamp in seconds.
type ClockReceiver interface {
	ReceiveMidi(msg gomidi.Message, timestamp float64)
}

// ClockIn forwards an input port to a ClockReceiver. Timestamps come from
// the monotonic clock when the message arrives.
type ClockIn struct {
	recv  ClockReceiver
	start time.Time
	stop  func()
}

// ListenClock starts forwarding messages from port. The driver's listener
// goroutine is the MIDI input thread.
func ListenClock(port drivers.In, recv ClockReceiver) (*ClockIn, error) {
	c := newClockIn(recv)
	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
		c.handle(msg, time.Now())
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("listen to clock input "+port.String()))
	}
	c.stop = stop
	return c, nil
}

func newClockIn(recv ClockReceiver) *ClockIn {
	return &ClockIn{recv: recv, start: time.Now()}
}

func (c *ClockIn) handle(msg gomidi.Message, now time.Time) {
	if len(msg) == 0 {
		return
	}
	switch msg[0] {
	case midisync.ClockByte, midisync.StartByte, midisync.StopByte, midisync.SPPByte:
		c.recv.ReceiveMidi(msg, now.Sub(c.start).Seconds())
	}
}

func (c *ClockIn) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return nil
}
