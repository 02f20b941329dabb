// Package mixer holds the audio-thread owned buffers and meters and sums
// channels into the output block.
package mixer

import (
	"go-loopcore/channel"
	"go-loopcore/model"
	"go-loopcore/scalar"
)

// Stereo is the number of interleaved channels in every buffer.
const Stereo = 2

// Resolver maps a channel handle to its live state.
type Resolver interface {
	Resolve(model.Handle) *model.Shared
}

// StatusListener is told about playback changes caused by rendering.
// Implementations must not block or allocate.
type StatusListener interface {
	ChannelStatus(id model.ID, st channel.Status)
}

// Mixer is owned by the audio thread. Other threads read the meters and
// flags and must only call SetBlockSize while the driver is stopped.
type Mixer struct {
	in      []float32
	rec     []float32
	scratch []float32

	PeakOutL, PeakOutR scalar.Float32
	PeakInL, PeakInR   scalar.Float32
	InputTracker       scalar.Int

	// written by the control thread
	HasSolos  scalar.Bool
	Recording scalar.Bool

	// written by the audio thread
	RecActive scalar.Bool

	wasRecording bool
	blockSize    int
}

// New allocates buffers for blockSize frames and up to maxFramesToRec
// recorded input frames.
func New(blockSize, maxFramesToRec int) *Mixer {
	m := &Mixer{
		rec: make([]float32, maxFramesToRec*Stereo),
	}
	m.SetBlockSize(blockSize)
	return m
}

// SetBlockSize reallocates the per-block buffers.
func (m *Mixer) SetBlockSize(frames int) {
	if frames == m.blockSize && m.in != nil {
		return
	}
	m.blockSize = frames
	m.in = make([]float32, frames*Stereo)
	m.scratch = make([]float32, frames*Stereo)
}

func (m *Mixer) BlockSize() int { return m.blockSize }

// MaxRecFrames is the size of the record buffer in frames.
func (m *Mixer) MaxRecFrames() int { return len(m.rec) / Stereo }

// Recorded returns the input captured so far. Only read it after recording
// has stopped and a render cycle has passed.
func (m *Mixer) Recorded() []float32 {
	n := m.InputTracker.Load() * Stereo
	if n > len(m.rec) {
		n = len(m.rec)
	}
	return m.rec[:n]
}

// BeginBlock meters the input, captures it into the input scratch buffer and
// feeds the recorder. in may be nil for silence.
func (m *Mixer) BeginBlock(in []float32, frames int, cfg model.MixerConfig, masterIn *model.Channel) {
	frames = m.clampFrames(frames)
	buf := m.in[:frames*Stereo]
	if len(in) >= len(buf) {
		copy(buf, in)
	} else {
		clear(buf)
		copy(buf, in)
	}
	if masterIn != nil {
		processPlugins(masterIn, buf, frames)
	}

	peakL, peakR := peaks(buf)
	m.PeakInL.Store(peakL)
	m.PeakInR.Store(peakR)

	m.record(buf, frames, max(peakL, peakR), cfg)
}

func (m *Mixer) record(buf []float32, frames int, peak float32, cfg model.MixerConfig) {
	recording := m.Recording.Load()
	if recording && !m.wasRecording {
		m.InputTracker.Store(0)
		m.RecActive.Store(false)
	}
	m.wasRecording = recording
	if !recording {
		return
	}

	if !m.RecActive.Load() {
		if peak < cfg.RecTriggerLevel {
			return
		}
		m.RecActive.Store(true)
	}

	limit := m.MaxRecFrames()
	if cfg.MaxFramesToRec > 0 && cfg.MaxFramesToRec < limit {
		limit = cfg.MaxFramesToRec
	}
	pos := m.InputTracker.Load()
	n := min(frames, limit-pos)
	if n <= 0 {
		return
	}
	copy(m.rec[pos*Stereo:], buf[:n*Stereo])
	m.InputTracker.Store(pos + n)
}

// RenderChannels sums every active sample channel into out for the frames
// [start, end) of the block.
func (m *Mixer) RenderChannels(out []float32, start, end int, g *model.Generation, res Resolver, l StatusListener) {
	end = m.clampFrames(end)
	if end <= start {
		return
	}
	hasSolos := m.HasSolos.Load()
	for _, ch := range g.Channels {
		if ch.Type != model.ChannelSample {
			continue
		}
		st := res.Resolve(ch.Shared)
		if st == nil {
			continue
		}
		m.renderChannel(out, start, end, ch, st, hasSolos, l)
	}
}

func (m *Mixer) renderChannel(out []float32, start, end int, ch *model.Channel, st *model.Shared, hasSolos bool, l StatusListener) {
	frames := end - start
	buf := m.scratch[:frames*Stereo]
	clear(buf)

	active := st.Play.Load().Active() && ch.Wave.Frames() > 0
	monitor := st.Arm.Load() && st.InputMonitor.Load()
	if !active && !monitor {
		return
	}

	if active {
		m.readWave(buf, ch, st, l)
	}
	if monitor {
		in := m.in[start*Stereo : end*Stereo]
		for i := range buf {
			buf[i] += in[i]
		}
	}

	if !st.Audible(hasSolos) {
		return
	}
	processPlugins(ch, buf, frames)

	vol := st.Volume.Load()
	gl, gr := panGains(st.Pan.Load())
	gl *= vol
	gr *= vol
	dst := out[start*Stereo : end*Stereo]
	for i := 0; i < len(buf); i += Stereo {
		dst[i] += buf[i] * gl
		dst[i+1] += buf[i+1] * gr
	}
}

// readWave copies wave frames into buf starting at the tracker, handling the
// wave end according to the channel mode.
func (m *Mixer) readWave(buf []float32, ch *model.Channel, st *model.Shared, l StatusListener) {
	w := ch.Wave
	total := w.Frames()
	t := st.Tracker.Load()
	frames := len(buf) / Stereo

	for f := 0; f < frames; f++ {
		if t >= total {
			wrap, changed := st.OnWaveEnd(ch.Mode)
			if changed && l != nil {
				l.ChannelStatus(ch.ID, st.Play.Load())
			}
			if !wrap {
				t = 0
				break
			}
			t = 0
		}
		src := t * w.Channels
		if w.Channels == 1 {
			buf[f*Stereo] = w.Data[src]
			buf[f*Stereo+1] = w.Data[src]
		} else {
			buf[f*Stereo] = w.Data[src]
			buf[f*Stereo+1] = w.Data[src+1]
		}
		t++
	}
	st.Tracker.Store(t)
}

// EndBlock runs the master chain and updates the output meters.
func (m *Mixer) EndBlock(out []float32, frames int, cfg model.MixerConfig, masterOut *model.Channel, res Resolver) {
	frames = m.clampFrames(frames)
	buf := out[:frames*Stereo]

	if cfg.InToOut {
		for i, v := range m.in[:frames*Stereo] {
			buf[i] += v
		}
	}

	if masterOut != nil {
		processPlugins(masterOut, buf, frames)
		if st := res.Resolve(masterOut.Shared); st != nil {
			if st.Mute.Load() {
				clear(buf)
			} else if vol := st.Volume.Load(); vol != 1 {
				for i := range buf {
					buf[i] *= vol
				}
			}
		}
	}

	if cfg.LimitOutput {
		for i, v := range buf {
			if v > 1 {
				buf[i] = 1
			} else if v < -1 {
				buf[i] = -1
			}
		}
	}

	peakL, peakR := peaks(buf)
	m.PeakOutL.Store(peakL)
	m.PeakOutR.Store(peakR)
}

func (m *Mixer) clampFrames(frames int) int {
	if frames > m.blockSize {
		return m.blockSize
	}
	if frames < 0 {
		return 0
	}
	return frames
}

func processPlugins(ch *model.Channel, buf []float32, frames int) {
	for _, p := range ch.Plugins {
		if p.Proc == nil || p.Bypass.Load() {
			continue
		}
		p.Proc.Process(buf, frames, p.Params)
	}
}

// panGains maps pan 0..1 to left/right gains. Centre leaves both at unity.
func panGains(pan float32) (float32, float32) {
	l := 2 * (1 - pan)
	r := 2 * pan
	return min(l, 1), min(r, 1)
}

func peaks(buf []float32) (l, r float32) {
	for i := 0; i+1 < len(buf); i += Stereo {
		if v := abs(buf[i]); v > l {
			l = v
		}
		if v := abs(buf[i+1]); v > r {
			r = v
		}
	}
	return l, r
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
