package channel

import "testing"

func newState(play Status) *State {
	s := &State{}
	s.Reset()
	s.Play.Store(play)
	return s
}

func TestPressLoop(t *testing.T) {
	tests := []struct {
		from Status
		want Status
	}{
		{Off, Wait},
		{Wait, Off},
		{Play, Ending},
		{Ending, Play},
	}
	for _, tt := range tests {
		s := newState(tt.from)
		s.Press(LoopBasic, false)
		if got := s.Play.Load(); got != tt.want {
			t.Errorf("loop press from %s = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestPressSingle(t *testing.T) {
	tests := []struct {
		mode      Mode
		from      Status
		quantized bool
		want      Status
	}{
		{SingleBasic, Off, false, Play},
		{SingleBasic, Off, true, Wait},
		{SingleBasic, Play, false, Off},
		{SingleBasic, Wait, false, Off},
		{SingleRetrig, Play, false, Play},
		{SingleEndless, Play, false, Ending},
		{SingleEndless, Ending, false, Play},
		{SinglePress, Play, false, Play},
	}
	for _, tt := range tests {
		s := newState(tt.from)
		s.Press(tt.mode, tt.quantized)
		if got := s.Play.Load(); got != tt.want {
			t.Errorf("%s press from %s (quantized=%v) = %s, want %s", tt.mode, tt.from, tt.quantized, got, tt.want)
		}
	}
}

func TestRetrigRewinds(t *testing.T) {
	s := newState(Play)
	s.Tracker.Store(500)
	if !s.Press(SingleRetrig, false) {
		t.Error("retrig press reported no change")
	}
	if s.Tracker.Load() != 0 {
		t.Errorf("Tracker = %d, want 0", s.Tracker.Load())
	}
}

func TestReleaseOnlySinglePress(t *testing.T) {
	for _, mode := range []Mode{LoopBasic, LoopOnce, SingleBasic, SingleEndless} {
		s := newState(Play)
		if s.Release(mode) {
			t.Errorf("Release(%s) changed state", mode)
		}
	}
	s := newState(Play)
	if !s.Release(SinglePress) || s.Play.Load() != Off {
		t.Errorf("SinglePress release left status %s, want off", s.Play.Load())
	}
}

func TestKill(t *testing.T) {
	s := newState(Off)
	if s.Kill() {
		t.Error("Kill on off channel reported a change")
	}

	for _, from := range []Status{Wait, Play, Ending} {
		s := newState(from)
		s.Tracker.Store(1234)
		if !s.Kill() {
			t.Errorf("Kill from %s reported no change", from)
		}
		if s.Play.Load() != Off || s.Tracker.Load() != 0 {
			t.Errorf("Kill from %s -> %s tracker=%d, want off 0", from, s.Play.Load(), s.Tracker.Load())
		}
	}
}

func TestBoundaries(t *testing.T) {
	s := newState(Wait)
	s.OnBar(LoopBasic)
	if s.Play.Load() != Wait {
		t.Errorf("LoopBasic started on bar")
	}
	s.OnFirstBeat(LoopBasic)
	if s.Play.Load() != Play {
		t.Errorf("LoopBasic on first beat = %s, want play", s.Play.Load())
	}

	s = newState(Wait)
	s.OnBar(LoopOnceBar)
	if s.Play.Load() != Play {
		t.Errorf("LoopOnceBar on bar = %s, want play", s.Play.Load())
	}

	s = newState(Ending)
	s.OnFirstBeat(LoopBasic)
	if s.Play.Load() != Off {
		t.Errorf("ending loop on first beat = %s, want off", s.Play.Load())
	}

	s = newState(Wait)
	s.OnFirstBeat(SingleBasic)
	if s.Play.Load() != Wait {
		t.Errorf("single channel started on first beat")
	}
	s.OnQuantize(SingleBasic)
	if s.Play.Load() != Play {
		t.Errorf("single on quantize = %s, want play", s.Play.Load())
	}
}

func TestWaveEnd(t *testing.T) {
	tests := []struct {
		mode     Mode
		from     Status
		wantWrap bool
		want     Status
	}{
		{LoopBasic, Play, true, Play},
		{LoopOnce, Play, false, Wait},
		{LoopOnce, Ending, false, Off},
		{SingleBasic, Play, false, Off},
		{SingleEndless, Play, true, Play},
		{SingleEndless, Ending, false, Off},
	}
	for _, tt := range tests {
		s := newState(tt.from)
		wrap, _ := s.OnWaveEnd(tt.mode)
		if wrap != tt.wantWrap || s.Play.Load() != tt.want {
			t.Errorf("%s wave end from %s = (%v, %s), want (%v, %s)", tt.mode, tt.from, wrap, s.Play.Load(), tt.wantWrap, tt.want)
		}
	}
}

func TestSequencerStop(t *testing.T) {
	s := newState(Play)
	s.OnSequencerStop(LoopBasic, true)
	if s.Play.Load() != Off {
		t.Errorf("playing loop after stop = %s, want off", s.Play.Load())
	}

	s = newState(Wait)
	s.OnSequencerStop(LoopBasic, true)
	if s.Play.Load() != Wait {
		t.Errorf("waiting loop after stop = %s, want wait", s.Play.Load())
	}

	s = newState(Play)
	s.OnSequencerStop(SingleBasic, true)
	if s.Play.Load() != Play {
		t.Errorf("single channel stopped by sequencer")
	}
}

func TestReadActions(t *testing.T) {
	s := newState(Off)

	s.ToggleReadActions(false)
	if !s.ReadActions.Load() || s.Rec.Load() != Play {
		t.Fatalf("toggle while stopped: read=%v rec=%s", s.ReadActions.Load(), s.Rec.Load())
	}

	s.ToggleReadActions(true)
	if s.Rec.Load() != Ending || !s.ReadActions.Load() {
		t.Fatalf("toggle while running: read=%v rec=%s, want true ending", s.ReadActions.Load(), s.Rec.Load())
	}
	s.OnFirstBeat(SingleBasic)
	if s.ReadActions.Load() || s.Rec.Load() != Off {
		t.Errorf("after first beat: read=%v rec=%s, want false off", s.ReadActions.Load(), s.Rec.Load())
	}

	s.ToggleReadActions(true)
	if s.Rec.Load() != Wait {
		t.Fatalf("rec = %s, want wait", s.Rec.Load())
	}
	if !s.KillReadActions() {
		t.Error("KillReadActions reported no change")
	}
	if s.ReadActions.Load() || s.Rec.Load() != Off {
		t.Errorf("after kill: read=%v rec=%s", s.ReadActions.Load(), s.Rec.Load())
	}
	if s.KillReadActions() {
		t.Error("second KillReadActions reported a change")
	}
}

func TestModeNames(t *testing.T) {
	for m := LoopBasic; m <= SingleEndless; m++ {
		got, ok := ParseMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
}
