package service

import (
	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/protocol"
	"bp_monitor/internal/session"
)

// Pipeline connects the frame decoder to the measurement session and
// routes everything else to the telemetry sink.
//
// Decode-error policy: a malformed frame that would have advanced the
// measurement (pressure or final result) terminates the active session so
// the user is informed instead of the UI silently stalling; any other
// undecodable frame is logged and dropped without touching session state.
type Pipeline struct {
	sess      *session.Session
	telemetry Telemetry
	framer    *protocol.Framer
	log       *logger.Logger
}

// NewPipeline builds a pipeline around sess. telemetry may be nil, in
// which case non-measurement events are dropped.
func NewPipeline(sess *session.Session, telemetry Telemetry, log *logger.Logger) *Pipeline {
	return &Pipeline{
		sess:      sess,
		telemetry: telemetry,
		framer:    protocol.NewFramer(0),
		log:       log,
	}
}

// IngestBytes feeds an arbitrarily chunked transport stream through the
// framer and processes every complete frame found in it.
func (p *Pipeline) IngestBytes(chunk []byte) {
	if err := p.framer.Push(chunk); err != nil {
		p.log.Errorw("framer overflow, discarding stream buffer", "err", err)
		p.framer.Reset()
		return
	}
	for {
		frame, ok := p.framer.Next()
		if !ok {
			return
		}
		p.IngestFrame(frame)
	}
}

// IngestFrame decodes and routes one complete wire frame.
func (p *Pipeline) IngestFrame(frame []byte) {
	ev, err := protocol.Decode(frame)
	if err != nil {
		p.handleDecodeError(err)
		return
	}
	switch ev.Frame() {
	case models.FramePressure, models.FrameFinalResult, models.FrameError:
		p.sess.HandleDeviceEvent(ev)
	default:
		if p.telemetry != nil {
			p.telemetry.HandleTelemetry(ev)
		}
	}
}

func (p *Pipeline) handleDecodeError(err error) {
	de := protocol.AsDecodeError(err)
	if de != nil && measurementFrame(de.Frame) && p.sess.Active() {
		p.sess.ReportDecodeFailure(de.Reason)
		return
	}
	p.log.Warnw("dropping undecodable frame", "err", err)
}

func measurementFrame(t models.FrameType) bool {
	return t == models.FramePressure || t == models.FrameFinalResult
}

// TelemetryLog is the default telemetry sink: it logs events and discards
// them. Production deployments replace it with the host's storage/UI
// collaborator.
type TelemetryLog struct {
	log *logger.Logger
}

func NewTelemetryLog(log *logger.Logger) *TelemetryLog {
	return &TelemetryLog{log: log}
}

func (t *TelemetryLog) HandleTelemetry(ev models.DeviceEvent) {
	switch e := ev.(type) {
	case models.EcgChunk:
		t.log.Infow("ecg chunk",
			"heart_rate", e.HeartRateBpm,
			"sampling_hz", e.SamplingRateHz,
			"rhythm", e.Rhythm.String(),
			"samples", len(e.Samples),
			"lead_off", e.LeadOff,
		)
	case models.HeartRateSample:
		t.log.Infow("heart rate", "bpm", e.HeartRateBpm, "quality", protocol.Quality(e.QualityRaw), "irregular", e.Irregular)
	case models.DeviceInfo:
		t.log.Infow("device info", "model", e.Model, "firmware", e.Firmware, "battery_pct", e.BatteryPct, "charging", e.Charging)
	case models.BatteryStatus:
		t.log.Infow("battery", "pct", e.BatteryPct, "charging", e.Charging)
	default:
		t.log.Debugw("unhandled telemetry event", "frame", ev.Frame())
	}
}
