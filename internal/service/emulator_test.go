package service

import (
	"context"
	"testing"
	"time"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/protocol"
	"bp_monitor/internal/session"
)

type frameRecorder struct {
	frames [][]byte
}

func (r *frameRecorder) IngestFrame(frame []byte) {
	r.frames = append(r.frames, append([]byte(nil), frame...))
}

func TestDeviceEmulator_PlaysOneFullMeasurement(t *testing.T) {
	rec := &frameRecorder{}
	emu := NewDeviceEmulator(rec, EmulatorConfig{}, logger.Nop())

	emu.Run(context.Background(), time.Millisecond)

	if len(rec.frames) < 10 {
		t.Fatalf("suspiciously short emulation: %d frames", len(rec.frames))
	}

	first, err := protocol.Decode(rec.frames[0])
	if err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if _, ok := first.(models.DeviceInfo); !ok {
		t.Fatalf("first frame %T, want DeviceInfo", first)
	}

	last, err := protocol.Decode(rec.frames[len(rec.frames)-1])
	if err != nil {
		t.Fatalf("decode last frame: %v", err)
	}
	if _, ok := last.(models.FinalResult); !ok {
		t.Fatalf("last frame %T, want FinalResult", last)
	}

	// Pressure trace must rise to the target and fall afterwards.
	var peak uint16
	sawTarget := false
	for _, raw := range rec.frames[1 : len(rec.frames)-1] {
		ev, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		s, ok := ev.(models.PressureSample)
		if !ok {
			continue // interleaved heart-rate telemetry
		}
		if s.PressureMmHg > peak {
			peak = s.PressureMmHg
		}
		if s.PressureMmHg == DefaultTargetMmHg {
			sawTarget = true
		}
	}
	if !sawTarget || peak != DefaultTargetMmHg {
		t.Fatalf("peak %d, want inflation to %d", peak, DefaultTargetMmHg)
	}
}

func TestDeviceEmulator_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &frameRecorder{}
	emu := NewDeviceEmulator(rec, EmulatorConfig{}, logger.Nop())

	done := make(chan struct{})
	go func() {
		emu.Run(ctx, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("emulator did not stop on cancel")
	}
}

func TestEmulatorThroughPipeline_EndToEnd(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.ProgressThrottle = time.Millisecond
	sess := session.New(cfg, logger.Nop())
	t.Cleanup(sess.Close)
	events := &sessionEvents{}
	sess.Subscribe(events.collect)

	svc := NewService(sess, EmulatorConfig{}, logger.Nop())
	sess.Start()
	svc.Emulator.Run(context.Background(), time.Millisecond)

	var result models.BPMeasurement
	waitUntil(t, "measurement complete", func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		for _, ev := range events.events {
			if mc, ok := ev.(models.MeasurementComplete); ok {
				result = mc.Result
				return true
			}
		}
		return false
	})

	if result.SystolicMmHg != 120 || result.DiastolicMmHg != 78 {
		t.Fatalf("unexpected result %+v", result)
	}

	// Phase walk: every stage of the measurement must have been visited,
	// in order.
	want := []models.MeasurementPhase{
		models.PhaseWaiting,
		models.PhaseInflating,
		models.PhaseDeflating,
		models.PhaseAnalyzing,
		models.PhaseComplete,
	}
	events.mu.Lock()
	var phases []models.MeasurementPhase
	for _, ev := range events.events {
		if pc, ok := ev.(models.PhaseChanged); ok {
			phases = append(phases, pc.Phase)
		}
	}
	events.mu.Unlock()
	i := 0
	for _, ph := range phases {
		if i < len(want) && ph == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("phase walk %v missing stages %v", phases, want[i:])
	}
}
