package service

import (
	"sync"
	"testing"
	"time"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/protocol"
	"bp_monitor/internal/session"
)

// ---- Test doubles ----

type telemetryStub struct {
	mu     sync.Mutex
	events []models.DeviceEvent
}

func (t *telemetryStub) HandleTelemetry(ev models.DeviceEvent) {
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

func (t *telemetryStub) frames() []models.FrameType {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.FrameType
	for _, ev := range t.events {
		out = append(out, ev.Frame())
	}
	return out
}

type sessionEvents struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (c *sessionEvents) collect(ev models.SessionEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *sessionEvents) errors() []models.SessionError {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.SessionError
	for _, ev := range c.events {
		if e, ok := ev.(models.SessionError); ok {
			out = append(out, e)
		}
	}
	return out
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newPipelineFixture(t *testing.T) (*Pipeline, *session.Session, *sessionEvents, *telemetryStub) {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.ProgressThrottle = time.Millisecond
	sess := session.New(cfg, logger.Nop())
	t.Cleanup(sess.Close)
	events := &sessionEvents{}
	sess.Subscribe(events.collect)
	telem := &telemetryStub{}
	return NewPipeline(sess, telem, logger.Nop()), sess, events, telem
}

// ---- Tests ----

func TestPipeline_RoutesMeasurementAndTelemetry(t *testing.T) {
	pipe, sess, _, telem := newPipelineFixture(t)
	sess.Start()

	// One pressure frame split across two transport chunks, then two
	// telemetry frames in a single chunk.
	pressure := protocol.MarshalPressure(models.PressureSample{PressureMmHg: 80, PulseRateBpm: 70})
	pipe.IngestBytes(pressure[:3])
	pipe.IngestBytes(pressure[3:])

	var rest []byte
	rest = append(rest, protocol.MarshalHeartRate(models.HeartRateSample{HeartRateBpm: 66})...)
	rest = append(rest, protocol.MarshalBattery(models.BatteryStatus{BatteryPct: 55})...)
	pipe.IngestBytes(rest)

	waitUntil(t, "inflating phase", func() bool { return sess.Phase() == models.PhaseInflating })
	waitUntil(t, "telemetry routed", func() bool { return len(telem.frames()) == 2 })

	got := telem.frames()
	if got[0] != models.FrameHeartRate || got[1] != models.FrameBattery {
		t.Fatalf("telemetry frames %v", got)
	}
}

func TestPipeline_MalformedMeasurementFrameAbortsSession(t *testing.T) {
	pipe, sess, events, _ := newPipelineFixture(t)
	sess.Start()

	// Declared length matches the buffer but the pressure payload is
	// shorter than the frame contract requires.
	pipe.IngestFrame([]byte{0x01, 0x04, 0x00, 0x50, 0x00, 0x46})

	waitUntil(t, "decode failure surfaced", func() bool { return len(events.errors()) == 1 })
	if got := events.errors()[0].Kind; got != models.ErrDecodeFailure {
		t.Fatalf("want decode failure, got %s", got)
	}
	waitUntil(t, "session reset", func() bool { return sess.Phase() == models.PhaseIdle })
}

func TestPipeline_MalformedTelemetryFrameIsDropped(t *testing.T) {
	pipe, sess, events, _ := newPipelineFixture(t)
	sess.Start()
	pipe.IngestFrame(protocol.MarshalPressure(models.PressureSample{PressureMmHg: 80}))
	waitUntil(t, "inflating phase", func() bool { return sess.Phase() == models.PhaseInflating })

	// ECG frame with an odd trailing sample byte cannot decode, but it is
	// irrelevant to the running measurement and must not disturb it.
	pipe.IngestFrame([]byte{0x03, 0x09, 0x00, 0x40, 0x00, 0x7D, 0x00, 0x1E, 0x00, 0x00, 0x80})

	time.Sleep(20 * time.Millisecond)
	if errs := events.errors(); len(errs) != 0 {
		t.Fatalf("telemetry decode error leaked into session: %+v", errs)
	}
	if !sess.Active() {
		t.Fatalf("session must stay active")
	}
}

func TestPipeline_MeasurementDecodeErrorWhileIdleIsDropped(t *testing.T) {
	pipe, sess, events, _ := newPipelineFixture(t)

	pipe.IngestFrame([]byte{0x01, 0x04, 0x00, 0x50, 0x00, 0x46})

	time.Sleep(20 * time.Millisecond)
	if errs := events.errors(); len(errs) != 0 {
		t.Fatalf("idle session received errors: %+v", errs)
	}
	if sess.Phase() != models.PhaseIdle {
		t.Fatalf("phase %s, want IDLE", sess.Phase())
	}
}
