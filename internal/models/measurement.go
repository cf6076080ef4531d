package models

import "time"

// MeasurementPhase is the session's current stage within one
// blood-pressure measurement cycle. Exactly one phase is active at a time;
// it is owned exclusively by the measurement session.
type MeasurementPhase string

const (
	PhaseIdle      MeasurementPhase = "IDLE"
	PhaseReady     MeasurementPhase = "READY"
	PhaseWaiting   MeasurementPhase = "WAITING"
	PhaseInflating MeasurementPhase = "INFLATING"
	PhaseDeflating MeasurementPhase = "DEFLATING"
	PhaseAnalyzing MeasurementPhase = "ANALYZING"
	PhaseComplete  MeasurementPhase = "COMPLETE"
	PhaseError     MeasurementPhase = "ERROR"
)

// Active reports whether the phase belongs to an in-progress measurement,
// i.e. the watchdog must be watching for stalled pressure updates.
func (p MeasurementPhase) Active() bool {
	switch p {
	case PhaseWaiting, PhaseInflating, PhaseDeflating, PhaseAnalyzing:
		return true
	}
	return false
}

// Terminal reports whether the phase ends the session lifecycle.
func (p MeasurementPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// BPMeasurement is the result of one completed measurement session.
// Created once per session, immutable thereafter; the core keeps no
// history beyond the current session's result.
type BPMeasurement struct {
	ID                 string        `json:"id"`
	SystolicMmHg       uint16        `json:"systolic_mmhg"`
	DiastolicMmHg      uint16        `json:"diastolic_mmhg"`
	MeanMmHg           uint16        `json:"mean_mmhg"`
	PulseRateBpm       uint16        `json:"pulse_rate_bpm"`
	IrregularHeartbeat bool          `json:"irregular_heartbeat"`
	Quality            SignalQuality `json:"quality"`
	Timestamp          time.Time     `json:"timestamp"`
}
