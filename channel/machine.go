package channel

// Press handles a key press. quantized is true when the sequencer is running
// with the quantizer on, so single-shot starts wait for the next step.
// It returns true if the playback status changed or the channel rewound.
func (s *State) Press(mode Mode, quantized bool) bool {
	cur := s.Play.Load()

	if mode.IsLoop() {
		switch cur {
		case Off:
			return s.set(Wait)
		case Wait:
			return s.set(Off)
		case Play:
			return s.set(Ending)
		case Ending:
			return s.set(Play)
		}
		return false
	}

	switch cur {
	case Off:
		s.Tracker.Store(0)
		if quantized {
			return s.set(Wait)
		}
		return s.set(Play)
	case Wait:
		return s.set(Off)
	case Play:
		switch mode {
		case SingleBasic:
			s.Tracker.Store(0)
			return s.set(Off)
		case SingleRetrig:
			s.Tracker.Store(0)
			return true
		case SingleEndless:
			return s.set(Ending)
		}
	case Ending:
		return s.set(Play)
	}
	return false
}

// Release handles a key release. Only SinglePress reacts; every other mode,
// loops included, ignores it.
func (s *State) Release(mode Mode) bool {
	if mode != SinglePress {
		return false
	}
	switch s.Play.Load() {
	case Play, Wait:
		s.Tracker.Store(0)
		return s.set(Off)
	}
	return false
}

// Kill stops the channel immediately. It returns false when the channel was
// already off, in which case nothing happens.
func (s *State) Kill() bool {
	if s.Play.Load() == Off {
		return false
	}
	s.Tracker.Store(0)
	return s.set(Off)
}

// OnFirstBeat runs when the playhead crosses the first beat of the loop.
// Waiting loops start, ending loops stop, LoopRepeat restarts. Pending
// read-actions changes are applied here as well.
func (s *State) OnFirstBeat(mode Mode) bool {
	changed := s.applyRecBoundary()

	if !mode.IsLoop() {
		return changed
	}
	switch s.Play.Load() {
	case Wait:
		s.Tracker.Store(0)
		return s.set(Play) || changed
	case Ending:
		s.Tracker.Store(0)
		return s.set(Off) || changed
	case Play:
		if mode == LoopRepeat {
			s.Tracker.Store(0)
		}
	}
	return changed
}

// OnBar runs on every bar line. LoopOnceBar channels start here instead of
// waiting for the first beat.
func (s *State) OnBar(mode Mode) bool {
	if mode != LoopOnceBar {
		return false
	}
	if s.Play.Load() == Wait {
		s.Tracker.Store(0)
		return s.set(Play)
	}
	return false
}

// OnQuantize starts single-shot channels waiting on the quantizer.
func (s *State) OnQuantize(mode Mode) bool {
	if mode.IsLoop() {
		return false
	}
	if s.Play.Load() == Wait {
		s.Tracker.Store(0)
		return s.set(Play)
	}
	return false
}

// OnWaveEnd runs when the tracker reaches the end of the wave. It returns
// wrap=true when playback continues from the start.
func (s *State) OnWaveEnd(mode Mode) (wrap, changed bool) {
	cur := s.Play.Load()
	switch mode {
	case LoopBasic, LoopRepeat:
		return true, false
	case LoopOnce, LoopOnceBar:
		if cur == Ending {
			return false, s.set(Off)
		}
		return false, s.set(Wait)
	case SingleEndless:
		if cur == Play {
			return true, false
		}
	}
	return false, s.set(Off)
}

// OnSequencerStop runs when the transport stops. Loops that are playing are
// stopped when stopLoops is set; waiting loops stay armed.
func (s *State) OnSequencerStop(mode Mode, stopLoops bool) bool {
	if !mode.IsLoop() || !stopLoops {
		return false
	}
	if s.Play.Load().Active() {
		s.Tracker.Store(0)
		return s.set(Off)
	}
	return false
}

// ToggleReadActions flips whether recorded actions replay. With the
// sequencer running the change is scheduled for the next first beat.
func (s *State) ToggleReadActions(seqRunning bool) bool {
	if !seqRunning {
		on := !s.ReadActions.Load()
		s.ReadActions.Store(on)
		if on {
			s.Rec.Store(Play)
		} else {
			s.Rec.Store(Off)
		}
		return true
	}
	switch s.Rec.Load() {
	case Off:
		if s.ReadActions.Load() {
			s.Rec.Store(Ending)
		} else {
			s.Rec.Store(Wait)
		}
	case Wait:
		s.Rec.Store(Off)
	case Play:
		s.Rec.Store(Ending)
	case Ending:
		s.Rec.Store(Play)
	}
	return true
}

// KillReadActions turns read actions off immediately.
func (s *State) KillReadActions() bool {
	if !s.ReadActions.Load() && s.Rec.Load() == Off {
		return false
	}
	s.ReadActions.Store(false)
	s.Rec.Store(Off)
	return true
}

func (s *State) applyRecBoundary() bool {
	switch s.Rec.Load() {
	case Wait:
		s.ReadActions.Store(true)
		s.Rec.Store(Play)
		return true
	case Ending:
		s.ReadActions.Store(false)
		s.Rec.Store(Off)
		return true
	}
	return false
}

func (s *State) set(st Status) bool {
	if s.Play.Load() == st {
		return false
	}
	s.Play.Store(st)
	return true
}
