// Package audio defines the driver the engine renders into and a headless
// driver that runs the callback on a timer.
package audio

import (
	"runtime"
	"sync"
	"time"

	"github.com/Southclaws/fault"
)

// Channels is the interleaved channel count of every buffer.
const Channels = 2

// Callback renders frames into out. in holds captured input or is nil.
type Callback func(out, in []float32, frames int)

// Driver runs a Callback on the audio thread.
type Driver interface {
	SampleRate() int
	BlockSize() int
	Start(cb Callback) error
	Stop() error
}

var ErrStarted = fault.New("audio driver already started")

// Headless calls the callback in real time without a sound card. The output
// is discarded.
type Headless struct {
	rate  int
	block int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewHeadless(rate, block int) *Headless {
	return &Headless{rate: rate, block: block}
}

func (h *Headless) SampleRate() int { return h.rate }
func (h *Headless) BlockSize() int  { return h.block }

// Period is how long one block lasts.
func (h *Headless) Period() time.Duration {
	return time.Duration(h.block) * time.Second / time.Duration(h.rate)
}

func (h *Headless) Start(cb Callback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return ErrStarted
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(cb, h.stop, h.done)
	return nil
}

func (h *Headless) loop(cb Callback, stop, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)
	out := make([]float32, h.block*Channels)
	ticker := time.NewTicker(h.Period())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cb(out, nil, h.block)
		}
	}
}

// Stop waits for the callback in flight to return.
func (h *Headless) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return nil
	}
	close(h.stop)
	<-h.done
	h.stop, h.done = nil, nil
	return nil
}
