package models

// SessionErrorKind classifies errors surfaced to session subscribers.
// All kinds terminate the current session only; a new Start is always
// possible afterward.
type SessionErrorKind string

const (
	ErrDeviceReported  SessionErrorKind = "DEVICE_REPORTED"
	ErrWatchdogTimeout SessionErrorKind = "WATCHDOG_TIMEOUT"
	ErrDecodeFailure   SessionErrorKind = "DECODE_FAILURE"
)

// SessionEvent is one event emitted to session subscribers. Delivery order
// matches the arrival order of the device events that caused them.
type SessionEvent interface {
	sessionEvent()
}

// PhaseChanged announces a phase transition.
type PhaseChanged struct {
	Phase MeasurementPhase
}

// Progress carries a safety-filtered cuff pressure for display.
type Progress struct {
	PressureMmHg uint16
	Phase        MeasurementPhase
}

// MeasurementComplete carries the finished result.
type MeasurementComplete struct {
	Result BPMeasurement
}

// SessionError reports a session-terminating error.
type SessionError struct {
	Kind    SessionErrorKind
	Code    uint8 // device error code when Kind == ErrDeviceReported
	Message string
}

func (PhaseChanged) sessionEvent()        {}
func (Progress) sessionEvent()            {}
func (MeasurementComplete) sessionEvent() {}
func (SessionError) sessionEvent()        {}
