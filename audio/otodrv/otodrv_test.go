//go:build !headless

package otodrv

import (
	"testing"
	"time"

	"go-loopcore/audio"
)

func newTestDriver(block int) *Driver {
	d := &Driver{rate: 48000, block: block}
	d.buf = make([]float32, block*audio.Channels)
	d.pos = len(d.buf)
	return d
}

func TestReadRendersBlocks(t *testing.T) {
	d := newTestDriver(4)
	calls := 0
	var cb audio.Callback = func(out, in []float32, frames int) {
		calls++
		if in != nil || frames != 4 {
			t.Errorf("callback got in=%v frames=%d, want nil, 4", in, frames)
		}
		for i := range out {
			out[i] = 0.5
		}
	}
	d.cb.Store(&cb)

	p := make([]byte, 2*4*audio.Channels*4)
	if n, err := d.Read(p); n != len(p) || err != nil {
		t.Fatalf("Read() = %d, %v, want %d, nil", n, err, len(p))
	}
	if calls != 2 {
		t.Errorf("callback calls = %d, want 2", calls)
	}
}

func TestDetachWaitsForReadInFlight(t *testing.T) {
	d := newTestDriver(4)
	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	var cb audio.Callback = func(out, in []float32, frames int) {
		calls++
		if calls == 1 {
			close(entered)
			<-release
		}
	}
	d.cb.Store(&cb)

	readDone := make(chan struct{})
	go func() {
		d.Read(make([]byte, 4*audio.Channels*4))
		close(readDone)
	}()
	<-entered

	detached := make(chan struct{})
	go func() {
		d.detach()
		close(detached)
	}()
	select {
	case <-detached:
		t.Fatal("detach returned while the callback was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("detach did not return after the read finished")
	}
	<-readDone

	d.Read(make([]byte, 64))
	if calls != 1 {
		t.Errorf("callback calls after detach = %d, want 1", calls)
	}
}
