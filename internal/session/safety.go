package session

import (
	"time"

	"bp_monitor/internal/models"
)

// safePressureState is the only mutable state the safety filter touches.
// It is owned exclusively by the Session and reset at the start and end of
// every measurement.
type safePressureState struct {
	lastDisplayed    uint16
	haveDisplayed    bool
	lastRealUpdateAt time.Time
}

func (s *safePressureState) reset() {
	*s = safePressureState{}
}

// display computes the pressure value that may be shown for a raw device
// reading. While a measurement is in progress the displayed value moves
// toward the raw value by at most maxStep per update, and movements
// smaller than minStep are suppressed as jitter. Outside a measurement the
// raw value passes through unmodified.
//
// The bound exists because jitter or frame loss can otherwise produce a
// visually alarming pressure jump on a medical display.
func (s *safePressureState) display(raw uint16, phase models.MeasurementPhase, maxStep, minStep uint16, now time.Time) uint16 {
	if !s.haveDisplayed {
		s.lastDisplayed = raw
		s.haveDisplayed = true
		s.lastRealUpdateAt = now
		return raw
	}
	if !phase.Active() {
		if raw != s.lastDisplayed {
			s.lastRealUpdateAt = now
		}
		s.lastDisplayed = raw
		return raw
	}

	last := s.lastDisplayed
	var delta uint16
	up := raw >= last
	if up {
		delta = raw - last
	} else {
		delta = last - raw
	}
	switch {
	case delta == 0:
		return last
	case delta < minStep:
		// Sub-threshold jitter: hold the displayed value.
		return last
	case delta > maxStep:
		if up {
			s.lastDisplayed = last + maxStep
		} else {
			s.lastDisplayed = last - maxStep
		}
	default:
		s.lastDisplayed = raw
	}
	s.lastRealUpdateAt = now
	return s.lastDisplayed
}
