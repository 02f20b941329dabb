package midi

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-loopcore/debug"
	"go-loopcore/midisync"
	"go-loopcore/queue"
	"go-loopcore/scalar"
)

// outputPoll is how often queued packets are flushed to the port. It bounds
// the jitter added to outgoing clock pulses.
const outputPoll = time.Millisecond

// Output queues packets from the audio thread and writes them to a port on
// its own goroutine. Send never blocks; a full queue drops the packet.
type Output struct {
	name    string
	send    func(gomidi.Message) error
	ring    *queue.Ring[midisync.Packet]
	dropped scalar.Int
}

// OpenOutput opens port for writing.
func OpenOutput(port drivers.Out, size int) (*Output, error) {
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open midi output "+port.String()))
	}
	return NewOutput(port.String(), send, size), nil
}

// NewOutput wraps any send function.
func NewOutput(name string, send func(gomidi.Message) error, size int) *Output {
	return &Output{name: name, send: send, ring: queue.NewRing[midisync.Packet](size)}
}

func (o *Output) Name() string { return o.name }

// Send implements midisync.Sender. Call it from one goroutine only.
func (o *Output) Send(p midisync.Packet) bool {
	if o.ring.Push(p) != nil {
		o.dropped.Store(o.dropped.Load() + 1)
		return false
	}
	return true
}

// Dropped counts packets lost to a full queue.
func (o *Output) Dropped() int { return o.dropped.Load() }

// Run writes queued packets until ctx is done.
func (o *Output) Run(ctx context.Context) {
	ticker := time.NewTicker(outputPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.Flush()
			return
		case <-ticker.C:
			o.Flush()
		}
	}
}

// Flush writes everything queued so far and returns the packet count.
func (o *Output) Flush() int {
	n := 0
	for {
		p, ok := o.ring.Pop()
		if !ok {
			return n
		}
		if err := o.send(p.Message()); err != nil {
			debug.LogEvery(100, "midi-out", "%s: %v", o.name, err)
		}
		n++
	}
}

var _ midisync.Sender = (*Output)(nil)
