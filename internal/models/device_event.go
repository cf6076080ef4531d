package models

// FrameType identifies a device transmission unit on the wire.
type FrameType uint8

const (
	FramePressure    FrameType = 0x01
	FrameFinalResult FrameType = 0x02
	FrameEcg         FrameType = 0x03
	FrameHeartRate   FrameType = 0x04
	FrameDeviceInfo  FrameType = 0x05
	FrameBattery     FrameType = 0x06
	FrameError       FrameType = 0xEE
)

// DeviceEvent is one decoded frame from the device. Variants are immutable
// once constructed; the decoder never shares state between calls, so frames
// may be decoded concurrently.
type DeviceEvent interface {
	Frame() FrameType
}

// PressureSample is a live cuff-pressure reading during a measurement.
// Values are not range-checked at decode time: out-of-range pressures are
// valid transient artifacts during inflation and the session layer applies
// its own safety policy.
type PressureSample struct {
	PressureMmHg    uint16
	PulseRateBpm    uint16
	IsDeflating     bool
	IsPulseDetected bool
	QualityRaw      uint8
}

func (PressureSample) Frame() FrameType { return FramePressure }

// FinalResult is the completed blood-pressure measurement as reported by
// the device.
type FinalResult struct {
	SystolicMmHg       uint16
	DiastolicMmHg      uint16
	MeanMmHg           uint16
	PulseRateBpm       uint16
	IrregularHeartbeat bool
	QualityRaw         uint8
}

func (FinalResult) Frame() FrameType { return FrameFinalResult }

// EcgChunk is one chunk of ECG waveform data with its recording metadata.
type EcgChunk struct {
	HeartRateBpm   uint16
	SamplingRateHz uint16
	DurationSec    uint16
	LeadOff        bool
	Rhythm         RhythmKind
	Samples        []int16
}

func (EcgChunk) Frame() FrameType { return FrameEcg }

// HeartRateSample is a standalone real-time heart-rate reading.
type HeartRateSample struct {
	HeartRateBpm uint16
	QualityRaw   uint8
	Irregular    bool
}

func (HeartRateSample) Frame() FrameType { return FrameHeartRate }

// DeviceInfo describes the connected device hardware.
type DeviceInfo struct {
	Model      string // 4-char model code, padding trimmed
	Firmware   string // "major.minor"
	BatteryPct uint8
	Charging   bool
}

func (DeviceInfo) Frame() FrameType { return FrameDeviceInfo }

// BatteryStatus is a standalone battery report.
type BatteryStatus struct {
	BatteryPct uint8
	Charging   bool
}

func (BatteryStatus) Frame() FrameType { return FrameBattery }

// DeviceError is an error condition reported by the device itself.
type DeviceError struct {
	Code    uint8
	Message string
}

func (DeviceError) Frame() FrameType { return FrameError }

// RhythmKind classifies the heart rhythm detected in an ECG chunk. It is
// advisory metadata: unknown wire codes default to RhythmNormal.
type RhythmKind uint8

const (
	RhythmNormal RhythmKind = iota
	RhythmIrregular
	RhythmBradycardia
	RhythmTachycardia
	RhythmAfib
)

func (r RhythmKind) String() string {
	switch r {
	case RhythmNormal:
		return "NORMAL"
	case RhythmIrregular:
		return "IRREGULAR"
	case RhythmBradycardia:
		return "BRADYCARDIA"
	case RhythmTachycardia:
		return "TACHYCARDIA"
	case RhythmAfib:
		return "AFIB"
	default:
		return "NORMAL"
	}
}

// SignalQuality buckets the device's raw 0-100 quality score.
type SignalQuality string

const (
	QualityGood SignalQuality = "GOOD"
	QualityFair SignalQuality = "FAIR"
	QualityPoor SignalQuality = "POOR"
)
