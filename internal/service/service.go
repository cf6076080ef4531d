package service

import (
	"context"
	"time"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/session"
)

// Frames is the inbound boundary of the core: raw device bytes in,
// decoded events routed to the session or the telemetry sink.
type Frames interface {
	// IngestFrame processes one complete wire frame.
	IngestFrame(frame []byte)
	// IngestBytes processes an arbitrarily chunked transport stream.
	IngestBytes(chunk []byte)
}

// Telemetry receives decoded events that are not part of the blood-pressure
// measurement (ECG chunks, heart rate, device/battery info). The real
// consumer lives outside this core; events are passed through untouched.
type Telemetry interface {
	HandleTelemetry(ev models.DeviceEvent)
}

// Emulator runs the synthetic device loop that feeds frames into the core.
// Stop via context cancellation.
type Emulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates the core's collaborating parts.
type Service struct {
	Frames
	Emulator
}

// NewService wires the decode pipeline and the device emulator around a
// measurement session.
func NewService(sess *session.Session, emuCfg EmulatorConfig, log *logger.Logger) *Service {
	pipe := NewPipeline(sess, NewTelemetryLog(log), log)
	return &Service{
		Frames:   pipe,
		Emulator: NewDeviceEmulator(pipe, emuCfg, log),
	}
}
