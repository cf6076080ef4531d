package protocol

import (
	"fmt"

	"bp_monitor/internal/models"
)

// Frame encoders, used by the device emulator and by tests. Each produces
// one complete wire frame: [type u8][length u8][payload].

func frame(t models.FrameType, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, fmt.Errorf("protocol: payload %d bytes exceeds one-byte length field", len(payload))
	}
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, byte(t), byte(len(payload)))
	return append(buf, payload...), nil
}

func appendBE16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

// MarshalPressure encodes a live pressure sample frame.
func MarshalPressure(s models.PressureSample) []byte {
	var payload []byte
	payload = appendBE16(payload, s.PressureMmHg)
	payload = appendBE16(payload, s.PulseRateBpm)
	var flags byte
	if s.IsDeflating {
		flags |= 0x01
	}
	if s.IsPulseDetected {
		flags |= 0x02
	}
	payload = append(payload, flags, s.QualityRaw)
	buf, _ := frame(models.FramePressure, payload)
	return buf
}

// MarshalFinalResult encodes a completed-measurement frame.
func MarshalFinalResult(r models.FinalResult) []byte {
	var payload []byte
	payload = appendBE16(payload, r.SystolicMmHg)
	payload = appendBE16(payload, r.DiastolicMmHg)
	payload = appendBE16(payload, r.MeanMmHg)
	payload = appendBE16(payload, r.PulseRateBpm)
	var flags byte
	if r.IrregularHeartbeat {
		flags |= 0x01
	}
	payload = append(payload, flags, r.QualityRaw)
	buf, _ := frame(models.FrameFinalResult, payload)
	return buf
}

// MarshalEcgChunk encodes an ECG waveform chunk. Returns an error when the
// sample count would overflow the one-byte payload length.
func MarshalEcgChunk(c models.EcgChunk) ([]byte, error) {
	var payload []byte
	payload = appendBE16(payload, c.HeartRateBpm)
	payload = appendBE16(payload, c.SamplingRateHz)
	payload = appendBE16(payload, c.DurationSec)
	var flags byte
	if c.LeadOff {
		flags |= 0x01
	}
	payload = append(payload, flags, rhythmCode(c.Rhythm))
	for _, s := range c.Samples {
		payload = appendBE16(payload, uint16(int32(s)+32768))
	}
	return frame(models.FrameEcg, payload)
}

// MarshalHeartRate encodes a standalone heart-rate frame.
func MarshalHeartRate(h models.HeartRateSample) []byte {
	var payload []byte
	payload = appendBE16(payload, h.HeartRateBpm)
	var flags byte
	if h.Irregular {
		flags |= 0x01
	}
	payload = append(payload, h.QualityRaw, flags)
	buf, _ := frame(models.FrameHeartRate, payload)
	return buf
}

// MarshalDeviceInfo encodes a device-info frame. The model code is padded
// or truncated to 4 bytes.
func MarshalDeviceInfo(info models.DeviceInfo, fwMajor, fwMinor uint8) []byte {
	model := []byte(info.Model)
	for len(model) < 4 {
		model = append(model, ' ')
	}
	payload := append([]byte{}, model[:4]...)
	payload = append(payload, fwMajor, fwMinor, packBattery(info.BatteryPct, info.Charging))
	buf, _ := frame(models.FrameDeviceInfo, payload)
	return buf
}

// MarshalBattery encodes a battery status frame.
func MarshalBattery(b models.BatteryStatus) []byte {
	buf, _ := frame(models.FrameBattery, []byte{packBattery(b.BatteryPct, b.Charging)})
	return buf
}

// MarshalDeviceError encodes a device error frame.
func MarshalDeviceError(code uint8) []byte {
	buf, _ := frame(models.FrameError, []byte{code})
	return buf
}

func packBattery(pct uint8, charging bool) byte {
	b := pct & 0x7F
	if charging {
		b |= 0x80
	}
	return b
}

func rhythmCode(r models.RhythmKind) byte {
	switch r {
	case models.RhythmIrregular:
		return 0x01
	case models.RhythmBradycardia:
		return 0x02
	case models.RhythmTachycardia:
		return 0x03
	case models.RhythmAfib:
		return 0x04
	default:
		return 0x00
	}
}
