//go:build !headless

// Package otodrv plays the engine output through oto. oto is output only, so
// the callback always receives a nil input buffer.
package otodrv

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/ebitengine/oto/v3"

	"go-loopcore/audio"
)

type Driver struct {
	ctx   *oto.Context
	rate  int
	block int

	cb     atomic.Pointer[audio.Callback] // lock-free for Read
	reads  atomic.Int32                   // Reads in flight
	buf    []float32
	pos    int
	player *oto.Player
	mu     sync.Mutex // setup and control only
}

// New opens the sound card. Only one oto context may exist per process.
func New(rate, block int) (*Driver, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("open audio output", "Could not open the sound card"))
	}
	<-ready

	d := &Driver{ctx: ctx, rate: rate, block: block}
	d.buf = make([]float32, block*audio.Channels)
	d.pos = len(d.buf)
	return d, nil
}

func (d *Driver) SampleRate() int { return d.rate }
func (d *Driver) BlockSize() int  { return d.block }

func (d *Driver) Start(cb audio.Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return audio.ErrStarted
	}
	d.cb.Store(&cb)
	d.player = d.ctx.NewPlayer(d)
	d.player.Play()
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.detach()
	d.player.Pause()
	d.player.Close()
	d.player = nil
	return nil
}

// detach stops new Reads from rendering and waits for the one in flight.
// oto calls Read without holding the player lock, so Close alone does not
// guarantee the callback has returned.
func (d *Driver) detach() {
	d.cb.Store(nil)
	for d.reads.Load() != 0 {
		time.Sleep(100 * time.Microsecond)
	}
}

// Read is called by oto's mixing goroutine, which acts as the audio thread.
func (d *Driver) Read(p []byte) (int, error) {
	d.reads.Add(1)
	defer d.reads.Add(-1)
	cb := d.cb.Load()
	n := len(p) / 4 * 4
	if cb == nil {
		clear(p[:n])
		return n, nil
	}
	for i := 0; i < n; i += 4 {
		if d.pos == len(d.buf) {
			(*cb)(d.buf, nil, d.block)
			d.pos = 0
		}
		binary.LittleEndian.PutUint32(p[i:], math.Float32bits(d.buf[d.pos]))
		d.pos++
	}
	return n, nil
}

var _ audio.Driver = (*Driver)(nil)
