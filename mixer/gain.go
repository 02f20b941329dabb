package mixer

import "go-loopcore/scalar"

// Gain is the built-in plugin: it scales the signal by its first parameter.
type Gain struct{}

// GainParams returns the default parameter set for a Gain plugin.
func GainParams() []scalar.Float32 {
	p := make([]scalar.Float32, 1)
	p[0].Store(1)
	return p
}

func (Gain) Process(buf []float32, frames int, params []scalar.Float32) {
	if len(params) == 0 {
		return
	}
	g := params[0].Load()
	for i := range buf[:frames*Stereo] {
		buf[i] *= g
	}
}

func (Gain) Close() error { return nil }
