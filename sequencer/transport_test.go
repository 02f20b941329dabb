package sequencer

import "testing"

func TestConfigDerivedLengths(t *testing.T) {
	c := Config{Bpm: 120, Beats: 4, Bars: 2, Quantize: 4, SampleRate: 48000}

	if got := c.FramesInBeat(); got != 24000 {
		t.Errorf("FramesInBeat() = %d, want 24000", got)
	}
	if got := c.FramesInBar(); got != 48000 {
		t.Errorf("FramesInBar() = %d, want 48000", got)
	}
	if got := c.FramesInLoop(); got != 96000 {
		t.Errorf("FramesInLoop() = %d, want 96000", got)
	}
	if got := c.QuantizerStep(); got != 6000 {
		t.Errorf("QuantizerStep() = %d, want 6000", got)
	}
}

func TestClampBpm(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5, MinBpm},
		{120, 120},
		{5000, MaxBpm},
	}
	for _, tt := range tests {
		if got := ClampBpm(tt.in); got != tt.want {
			t.Errorf("ClampBpm(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAdvanceStoppedDoesNothing(t *testing.T) {
	tr := NewTransport()
	c := Config{Bpm: 120, Beats: 4, Bars: 1, SampleRate: 100}

	if ev := tr.Advance(c, 1000); ev != nil {
		t.Errorf("Advance while stopped returned %d events", len(ev))
	}
	if tr.Frame() != 0 {
		t.Errorf("Frame() = %d, want 0", tr.Frame())
	}
}

func TestAdvanceReportsBoundaries(t *testing.T) {
	tr := NewTransport()
	// 50 frames per beat, 4 beats, 2 bars, quantize 2
	c := Config{Bpm: 120, Beats: 4, Bars: 2, Quantize: 2, SampleRate: 100}
	tr.Start()

	ev := tr.Advance(c, 200)

	var beats, bars, first, quant int
	for _, e := range ev {
		if e.Flags.Has(BoundaryBeat) {
			beats++
		}
		if e.Flags.Has(BoundaryBar) {
			bars++
		}
		if e.Flags.Has(BoundaryFirstBeat) {
			first++
			if e.Offset != 0 {
				t.Errorf("first beat offset = %d, want 0", e.Offset)
			}
		}
		if e.Flags.Has(BoundaryQuantize) {
			quant++
		}
	}
	if beats != 4 || bars != 2 || first != 1 || quant != 8 {
		t.Errorf("beats=%d bars=%d first=%d quant=%d, want 4 2 1 8", beats, bars, first, quant)
	}
	if tr.Frame() != 0 {
		t.Errorf("Frame() after full loop = %d, want 0", tr.Frame())
	}
	if tr.Elapsed() != 200 {
		t.Errorf("Elapsed() = %d, want 200", tr.Elapsed())
	}
}

func TestGoToBeatWraps(t *testing.T) {
	tr := NewTransport()
	c := Config{Bpm: 120, Beats: 4, Bars: 1, SampleRate: 100}

	tr.GoToBeat(6, c)
	if tr.Beat() != 2 || tr.Frame() != 100 {
		t.Errorf("GoToBeat(6) -> beat=%d frame=%d, want 2 100", tr.Beat(), tr.Frame())
	}
	tr.Rewind()
	if tr.Beat() != 0 || tr.Frame() != 0 || tr.Elapsed() != 0 {
		t.Errorf("Rewind left beat=%d frame=%d elapsed=%d", tr.Beat(), tr.Frame(), tr.Elapsed())
	}
}
