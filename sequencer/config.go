package sequencer

// Tempo and grid limits
const (
	MinBpm      = 20.0
	MaxBpm      = 999.0
	DefaultBpm  = 120.0
	MaxBeats    = 32
	MaxBars     = 32
	MaxQuantize = 8

	DefaultBeats = 4
	DefaultBars  = 1
)

// Config is the part of the sequencer that lives inside a published
// generation. Changing any field means publishing a new generation.
type Config struct {
	Bpm        float64 `json:"bpm"`
	Beats      int     `json:"beats"`
	Bars       int     `json:"bars"`
	Quantize   int     `json:"quantize"` // 0 = off, otherwise steps per beat
	SampleRate int     `json:"-"`
}

// DefaultConfig returns a 4/4 one-bar loop at 120 BPM.
func DefaultConfig(sampleRate int) Config {
	return Config{
		Bpm:        DefaultBpm,
		Beats:      DefaultBeats,
		Bars:       DefaultBars,
		SampleRate: sampleRate,
	}
}

// ClampBpm keeps bpm inside the supported range.
func ClampBpm(bpm float64) float64 {
	if bpm < MinBpm {
		return MinBpm
	}
	if bpm > MaxBpm {
		return MaxBpm
	}
	return bpm
}

// FramesInBeat is the length of one quarter-note beat in frames.
func (c Config) FramesInBeat() int {
	if c.Bpm <= 0 || c.SampleRate <= 0 {
		return 0
	}
	return int(float64(c.SampleRate) * 60.0 / c.Bpm)
}

// FramesInBar is the length of one bar. Beats are spread evenly over Bars.
func (c Config) FramesInBar() int {
	if c.Bars <= 0 {
		return c.FramesInLoop()
	}
	return c.FramesInBeat() * (c.Beats / c.Bars)
}

// FramesInLoop is the length of the whole loop.
func (c Config) FramesInLoop() int {
	return c.FramesInBeat() * c.Beats
}

// QuantizerStep is the distance between quantizer ticks, 0 when quantize
// is off.
func (c Config) QuantizerStep() int {
	if c.Quantize <= 0 {
		return 0
	}
	return c.FramesInBeat() / c.Quantize
}
