package mixer

import (
	"math"
	"testing"

	"go-loopcore/channel"
	"go-loopcore/model"
)

type fixture struct {
	arena *model.Arena
	gen   *model.Generation
	ended []channel.Status
}

func (f *fixture) Resolve(h model.Handle) *model.Shared { return f.arena.Resolve(h) }

func (f *fixture) ChannelStatus(id model.ID, st channel.Status) {
	f.ended = append(f.ended, st)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{arena: model.NewArena(8), gen: &model.Generation{}}
}

func (f *fixture) addChannel(t *testing.T, mode channel.Mode, wave *model.Wave) (*model.Channel, *model.Shared) {
	t.Helper()
	h, st, err := f.arena.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	ch := &model.Channel{ID: model.ID(len(f.gen.Channels) + 10), Type: model.ChannelSample, Mode: mode, Wave: wave, Shared: h}
	f.gen.Channels = append(f.gen.Channels, ch)
	return ch, st
}

func constWave(frames int, v float32) *model.Wave {
	data := make([]float32, frames)
	for i := range data {
		data[i] = v
	}
	return &model.Wave{Data: data, Channels: 1, Rate: 44100}
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestPanGains(t *testing.T) {
	tests := []struct {
		pan, l, r float32
	}{
		{0, 1, 0},
		{0.5, 1, 1},
		{1, 0, 1},
		{0.25, 1, 0.5},
	}
	for _, tt := range tests {
		l, r := panGains(tt.pan)
		if !approx(l, tt.l) || !approx(r, tt.r) {
			t.Errorf("panGains(%v) = %v, %v, want %v, %v", tt.pan, l, r, tt.l, tt.r)
		}
	}
}

func TestRenderSumsVolumeAndPan(t *testing.T) {
	f := newFixture(t)
	m := New(4, 16)
	_, st := f.addChannel(t, channel.LoopBasic, constWave(8, 0.5))
	st.Play.Store(channel.Play)
	st.Volume.Store(0.5)
	st.Pan.Store(0)

	out := make([]float32, 8)
	m.RenderChannels(out, 0, 4, f.gen, f, f)

	for i := 0; i < 4; i++ {
		if !approx(out[i*2], 0.25) || out[i*2+1] != 0 {
			t.Fatalf("frame %d = (%v, %v), want (0.25, 0)", i, out[i*2], out[i*2+1])
		}
	}
	if st.Tracker.Load() != 4 {
		t.Errorf("Tracker = %d, want 4", st.Tracker.Load())
	}
}

func TestMuteAndSolo(t *testing.T) {
	f := newFixture(t)
	m := New(2, 0)
	_, a := f.addChannel(t, channel.LoopBasic, constWave(4, 1))
	_, b := f.addChannel(t, channel.LoopBasic, constWave(4, 1))
	a.Play.Store(channel.Play)
	b.Play.Store(channel.Play)

	b.Solo.Store(true)
	m.HasSolos.Store(true)
	out := make([]float32, 4)
	m.RenderChannels(out, 0, 2, f.gen, f, f)
	if !approx(out[0], 1) {
		t.Errorf("soloed mix = %v, want 1", out[0])
	}
	if a.Tracker.Load() != 2 {
		t.Errorf("silenced channel tracker = %d, want 2", a.Tracker.Load())
	}

	b.Mute.Store(true)
	clear(out)
	m.RenderChannels(out, 0, 2, f.gen, f, f)
	if out[0] != 0 {
		t.Errorf("muted soloed mix = %v, want 0", out[0])
	}
}

func TestSingleStopsAtWaveEnd(t *testing.T) {
	f := newFixture(t)
	m := New(8, 0)
	_, st := f.addChannel(t, channel.SingleBasic, constWave(3, 1))
	st.Play.Store(channel.Play)

	out := make([]float32, 16)
	m.RenderChannels(out, 0, 8, f.gen, f, f)

	if st.Play.Load() != channel.Off {
		t.Errorf("status = %s, want off", st.Play.Load())
	}
	if out[2*2] != 1 || out[3*2] != 0 {
		t.Errorf("output around wave end = %v, %v", out[2*2], out[3*2])
	}
	if len(f.ended) != 1 || f.ended[0] != channel.Off {
		t.Errorf("notifications = %v, want [off]", f.ended)
	}
}

func TestLoopWrapsAtWaveEnd(t *testing.T) {
	f := newFixture(t)
	m := New(8, 0)
	_, st := f.addChannel(t, channel.LoopBasic, constWave(3, 1))
	st.Play.Store(channel.Play)

	out := make([]float32, 16)
	m.RenderChannels(out, 0, 8, f.gen, f, f)
	if st.Play.Load() != channel.Play || st.Tracker.Load() != 2 {
		t.Errorf("status=%s tracker=%d, want play 2", st.Play.Load(), st.Tracker.Load())
	}
	for i := 0; i < 8; i++ {
		if out[i*2] != 1 {
			t.Errorf("frame %d silent", i)
		}
	}
}

func TestPluginsAndBypass(t *testing.T) {
	f := newFixture(t)
	m := New(2, 0)
	ch, st := f.addChannel(t, channel.LoopBasic, constWave(4, 1))
	st.Play.Store(channel.Play)
	p := &model.Plugin{ID: 1, Params: GainParams(), Proc: Gain{}}
	p.Params[0].Store(0.25)
	ch.Plugins = []*model.Plugin{p}

	out := make([]float32, 4)
	m.RenderChannels(out, 0, 2, f.gen, f, f)
	if !approx(out[0], 0.25) {
		t.Errorf("gain plugin output = %v, want 0.25", out[0])
	}

	p.Bypass.Store(true)
	clear(out)
	m.RenderChannels(out, 0, 2, f.gen, f, f)
	if !approx(out[0], 1) {
		t.Errorf("bypassed output = %v, want 1", out[0])
	}
}

func TestEndBlockLimitAndMeters(t *testing.T) {
	f := newFixture(t)
	m := New(2, 0)
	out := []float32{1.5, -0.25, -3, 0.5}

	m.EndBlock(out, 2, model.MixerConfig{LimitOutput: true}, nil, f)
	want := []float32{1, -0.25, -1, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if m.PeakOutL.Load() != 1 || m.PeakOutR.Load() != 0.5 {
		t.Errorf("peaks = %v, %v, want 1, 0.5", m.PeakOutL.Load(), m.PeakOutR.Load())
	}
}

func TestInToOut(t *testing.T) {
	f := newFixture(t)
	m := New(2, 0)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := make([]float32, 4)

	m.BeginBlock(in, 2, model.MixerConfig{}, nil)
	m.EndBlock(out, 2, model.MixerConfig{}, nil, f)
	if out[0] != 0 {
		t.Error("input reached output without inToOut")
	}
	m.EndBlock(out, 2, model.MixerConfig{InToOut: true}, nil, f)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if !approx(m.PeakInL.Load(), 0.3) || !approx(m.PeakInR.Load(), 0.4) {
		t.Errorf("input peaks = %v, %v", m.PeakInL.Load(), m.PeakInR.Load())
	}
}

func TestRecordingTriggerAndLimit(t *testing.T) {
	m := New(4, 6)
	cfg := model.MixerConfig{RecTriggerLevel: 0.5, MaxFramesToRec: 6}
	quiet := make([]float32, 8)
	loud := []float32{0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9}

	m.Recording.Store(true)
	m.BeginBlock(quiet, 4, cfg, nil)
	if m.RecActive.Load() || m.InputTracker.Load() != 0 {
		t.Fatal("recording started below trigger level")
	}

	m.BeginBlock(loud, 4, cfg, nil)
	m.BeginBlock(loud, 4, cfg, nil)
	if !m.RecActive.Load() {
		t.Fatal("recording did not start above trigger level")
	}
	if got := m.InputTracker.Load(); got != 6 {
		t.Errorf("InputTracker = %d, want 6 (capped)", got)
	}
	if len(m.Recorded()) != 12 {
		t.Errorf("Recorded() len = %d, want 12", len(m.Recorded()))
	}

	m.Recording.Store(false)
	m.BeginBlock(loud, 4, cfg, nil)
	m.Recording.Store(true)
	m.BeginBlock(quiet, 4, cfg, nil)
	if m.InputTracker.Load() != 0 {
		t.Errorf("new take did not reset tracker: %d", m.InputTracker.Load())
	}
}

func TestInputMonitor(t *testing.T) {
	f := newFixture(t)
	m := New(2, 0)
	_, st := f.addChannel(t, channel.LoopBasic, nil)
	st.Arm.Store(true)
	st.InputMonitor.Store(true)

	m.BeginBlock([]float32{0.5, 0.5, 0.5, 0.5}, 2, model.MixerConfig{}, nil)
	out := make([]float32, 4)
	m.RenderChannels(out, 0, 2, f.gen, f, f)
	if !approx(out[0], 0.5) {
		t.Errorf("monitored input = %v, want 0.5", out[0])
	}
}
