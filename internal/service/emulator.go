package service

import (
	"context"
	"time"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/protocol"
)

// Emulation constants: rates are per tick at the device's nominal 100 ms
// cadence.
const (
	InflateStepMmHg   = 12  // cuff pump rate
	DeflateStepMmHg   = 6   // valve release rate
	ResultAtMmHg      = 55  // pressure at which the device reports a result
	DefaultTargetMmHg = 180 // inflation target
	DefaultPulseBpm   = 72
	heartRateEvery    = 10 // interleave a heart-rate frame every N ticks
)

// EmulatorConfig tunes the synthetic measurement.
type EmulatorConfig struct {
	TargetMmHg uint16
	PulseBpm   uint16
}

func (c EmulatorConfig) withDefaults() EmulatorConfig {
	if c.TargetMmHg < 120 {
		c.TargetMmHg = DefaultTargetMmHg
	}
	if c.PulseBpm == 0 {
		c.PulseBpm = DefaultPulseBpm
	}
	return c
}

// DeviceEmulator plays one realistic blood-pressure measurement into a
// frame sink: inflate to target, deflate, report a final result. It exists
// so the whole decode/session path can run without hardware.
type DeviceEmulator struct {
	sink FrameSink
	cfg  EmulatorConfig
	log  *logger.Logger
}

// FrameSink consumes complete wire frames, one per call.
type FrameSink interface {
	IngestFrame(frame []byte)
}

// NewDeviceEmulator returns an emulator feeding sink.
func NewDeviceEmulator(sink FrameSink, cfg EmulatorConfig, log *logger.Logger) *DeviceEmulator {
	return &DeviceEmulator{sink: sink, cfg: cfg.withDefaults(), log: log}
}

// Run ticks at the given interval until the measurement finishes or ctx is
// canceled. One Run is one measurement.
func (e *DeviceEmulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	e.sink.IngestFrame(protocol.MarshalDeviceInfo(models.DeviceInfo{
		Model:      "BP01",
		BatteryPct: 87,
	}, 2, 4))

	pressure := uint16(0)
	deflating := false
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n++
			if !deflating {
				pressure += InflateStepMmHg
				if pressure >= e.cfg.TargetMmHg {
					pressure = e.cfg.TargetMmHg
					deflating = true
				}
			} else {
				if pressure < DeflateStepMmHg {
					pressure = 0
				} else {
					pressure -= DeflateStepMmHg
				}
			}

			e.sink.IngestFrame(protocol.MarshalPressure(models.PressureSample{
				PressureMmHg:    pressure,
				PulseRateBpm:    e.cfg.PulseBpm,
				IsDeflating:     deflating,
				IsPulseDetected: deflating,
				QualityRaw:      90,
			}))
			if n%heartRateEvery == 0 {
				e.sink.IngestFrame(protocol.MarshalHeartRate(models.HeartRateSample{
					HeartRateBpm: e.cfg.PulseBpm,
					QualityRaw:   85,
				}))
			}

			if deflating && pressure <= ResultAtMmHg {
				e.sink.IngestFrame(protocol.MarshalFinalResult(e.result()))
				e.log.Infow("emulated measurement finished", "target", e.cfg.TargetMmHg)
				return
			}
		}
	}
}

// result derives a plausible reading from the inflation target.
func (e *DeviceEmulator) result() models.FinalResult {
	sys := e.cfg.TargetMmHg * 2 / 3
	dia := sys - 42
	return models.FinalResult{
		SystolicMmHg:  sys,
		DiastolicMmHg: dia,
		MeanMmHg:      dia + (sys-dia)/3,
		PulseRateBpm:  e.cfg.PulseBpm,
		QualityRaw:    90,
	}
}
