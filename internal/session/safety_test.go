package session

import (
	"testing"
	"time"

	"bp_monitor/internal/models"
)

func TestSafePressure_BoundsStepDuringMeasurement(t *testing.T) {
	var sp safePressureState
	now := time.Now()

	if got := sp.display(40, models.PhaseInflating, 8, 2, now); got != 40 {
		t.Fatalf("first reading passes through, got %d", got)
	}
	// Jump of 80 mmHg must be clamped to one max step.
	if got := sp.display(120, models.PhaseInflating, 8, 2, now); got != 48 {
		t.Fatalf("want 48, got %d", got)
	}
	// Downward jump clamps the same way.
	if got := sp.display(20, models.PhaseDeflating, 8, 2, now); got != 40 {
		t.Fatalf("want 40, got %d", got)
	}
}

func TestSafePressure_SuppressesJitter(t *testing.T) {
	var sp safePressureState
	now := time.Now()

	sp.display(100, models.PhaseDeflating, 8, 2, now)
	if got := sp.display(101, models.PhaseDeflating, 8, 2, now); got != 100 {
		t.Fatalf("1 mmHg jitter must hold the display, got %d", got)
	}
	if got := sp.display(98, models.PhaseDeflating, 8, 2, now); got != 98 {
		t.Fatalf("2 mmHg move is genuine, got %d", got)
	}
}

func TestSafePressure_PassthroughWhenNotMeasuring(t *testing.T) {
	var sp safePressureState
	now := time.Now()

	sp.display(90, models.PhaseComplete, 8, 2, now)
	if got := sp.display(0, models.PhaseComplete, 8, 2, now); got != 0 {
		t.Fatalf("outside a measurement raw value passes through, got %d", got)
	}
}

func TestSafePressure_ResetForgetsDisplayed(t *testing.T) {
	var sp safePressureState
	now := time.Now()

	sp.display(150, models.PhaseInflating, 8, 2, now)
	sp.reset()
	if got := sp.display(10, models.PhaseInflating, 8, 2, now); got != 10 {
		t.Fatalf("after reset the first reading passes through, got %d", got)
	}
}
