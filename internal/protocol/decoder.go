// Package protocol decodes the binary telemetry stream emitted by the
// blood-pressure/ECG device. Every frame is [type u8][length u8][payload];
// multi-byte fields are big-endian 16-bit pairs.
//
// Decode is a pure function over its input buffer: it holds no state, so
// independent frames may be decoded concurrently.
package protocol

import (
	"fmt"
	"strings"

	"bp_monitor/internal/models"
)

const headerLen = 2

// Physiological plausibility bounds for a completed measurement. A final
// result outside these is corrupt, not clinical data.
const (
	minSystolicMmHg  = 60
	maxSystolicMmHg  = 300
	minDiastolicMmHg = 40
	maxDiastolicMmHg = 200
)

// Signal quality thresholds for the raw 0-100 score. Shared by pressure,
// final-result and heart-rate frames.
const (
	qualityGoodMin = 80
	qualityFairMin = 60
)

// Quality buckets a raw device quality score.
func Quality(raw uint8) models.SignalQuality {
	switch {
	case raw >= qualityGoodMin:
		return models.QualityGood
	case raw >= qualityFairMin:
		return models.QualityFair
	default:
		return models.QualityPoor
	}
}

// deviceErrorMessages maps device-reported error codes to text. Codes not
// listed here map to a generic message rather than failing decode.
var deviceErrorMessages = map[uint8]string{
	0x01: "cuff leak or cuff too loose",
	0x02: "inflation timeout",
	0x03: "body movement during measurement",
	0x04: "signal too weak to analyze",
	0x05: "cuff pressure exceeded safe limit",
	0x06: "battery too low to measure",
	0x07: "pressure sensor fault",
}

// DeviceErrorMessage resolves a device error code to readable text.
func DeviceErrorMessage(code uint8) string {
	if msg, ok := deviceErrorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown device error (code %d)", code)
}

// rhythmFromCode maps the wire rhythm code. Rhythm is advisory metadata,
// so unknown codes fall back to normal instead of erroring.
func rhythmFromCode(code uint8) models.RhythmKind {
	switch code {
	case 0x01:
		return models.RhythmIrregular
	case 0x02:
		return models.RhythmBradycardia
	case 0x03:
		return models.RhythmTachycardia
	case 0x04:
		return models.RhythmAfib
	default:
		return models.RhythmNormal
	}
}

// Decode parses one raw frame into a typed DeviceEvent.
//
// The buffer must hold the 2-byte header followed by exactly the declared
// payload length. Violations return KindMalformed; unknown frame types
// return KindUnknownFrameType; a final result with impossible values
// returns KindOutOfRange. Decode never panics.
func Decode(buf []byte) (models.DeviceEvent, error) {
	if len(buf) < headerLen {
		return nil, &DecodeError{Kind: KindMalformed, Reason: fmt.Sprintf("frame shorter than header: %d bytes", len(buf))}
	}
	frame := models.FrameType(buf[0])
	declared := int(buf[1])
	payload := buf[headerLen:]
	if len(payload) != declared {
		return nil, malformed(frame, "declared payload %d bytes, got %d", declared, len(payload))
	}

	switch frame {
	case models.FramePressure:
		return decodePressure(payload)
	case models.FrameFinalResult:
		return decodeFinalResult(payload)
	case models.FrameEcg:
		return decodeEcg(payload)
	case models.FrameHeartRate:
		return decodeHeartRate(payload)
	case models.FrameDeviceInfo:
		return decodeDeviceInfo(payload)
	case models.FrameBattery:
		return decodeBattery(payload)
	case models.FrameError:
		return decodeDeviceError(payload)
	default:
		return nil, &DecodeError{Kind: KindUnknownFrameType, Frame: frame, Reason: "unrecognized frame type"}
	}
}

// be16 reads a big-endian 16-bit value at off.
func be16(payload []byte, off int) uint16 {
	return uint16(payload[off])<<8 | uint16(payload[off+1])
}

func decodePressure(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 6 {
		return nil, malformed(models.FramePressure, "need 6 payload bytes, got %d", len(payload))
	}
	flags := payload[4]
	// Values are deliberately not range-checked: transient over-pressure
	// during inflation is real data and the session layer filters it.
	return models.PressureSample{
		PressureMmHg:    be16(payload, 0),
		PulseRateBpm:    be16(payload, 2),
		IsDeflating:     flags&0x01 != 0,
		IsPulseDetected: flags&0x02 != 0,
		QualityRaw:      payload[5],
	}, nil
}

func decodeFinalResult(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 8 {
		return nil, malformed(models.FrameFinalResult, "need 8 payload bytes, got %d", len(payload))
	}
	res := models.FinalResult{
		SystolicMmHg:  be16(payload, 0),
		DiastolicMmHg: be16(payload, 2),
		MeanMmHg:      be16(payload, 4),
		PulseRateBpm:  be16(payload, 6),
		QualityRaw:    100,
	}
	if res.SystolicMmHg < minSystolicMmHg || res.SystolicMmHg > maxSystolicMmHg {
		return nil, &DecodeError{
			Kind:   KindOutOfRange,
			Frame:  models.FrameFinalResult,
			Reason: fmt.Sprintf("systolic %d outside [%d,%d]", res.SystolicMmHg, minSystolicMmHg, maxSystolicMmHg),
		}
	}
	if res.DiastolicMmHg < minDiastolicMmHg || res.DiastolicMmHg > maxDiastolicMmHg {
		return nil, &DecodeError{
			Kind:   KindOutOfRange,
			Frame:  models.FrameFinalResult,
			Reason: fmt.Sprintf("diastolic %d outside [%d,%d]", res.DiastolicMmHg, minDiastolicMmHg, maxDiastolicMmHg),
		}
	}
	if len(payload) >= 9 {
		res.IrregularHeartbeat = payload[8]&0x01 != 0
	}
	if len(payload) >= 10 {
		res.QualityRaw = payload[9]
	}
	return res, nil
}

func decodeEcg(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 8 {
		return nil, malformed(models.FrameEcg, "need 8 payload bytes, got %d", len(payload))
	}
	raw := payload[8:]
	if len(raw)%2 != 0 {
		return nil, malformed(models.FrameEcg, "odd sample byte count %d", len(raw))
	}
	samples := make([]int16, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		// Samples arrive as unsigned 16-bit centered on 32768.
		samples = append(samples, int16(int32(be16(raw, i))-32768))
	}
	return models.EcgChunk{
		HeartRateBpm:   be16(payload, 0),
		SamplingRateHz: be16(payload, 2),
		DurationSec:    be16(payload, 4),
		LeadOff:        payload[6]&0x01 != 0,
		Rhythm:         rhythmFromCode(payload[7]),
		Samples:        samples,
	}, nil
}

func decodeHeartRate(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 4 {
		return nil, malformed(models.FrameHeartRate, "need 4 payload bytes, got %d", len(payload))
	}
	return models.HeartRateSample{
		HeartRateBpm: be16(payload, 0),
		QualityRaw:   payload[2],
		Irregular:    payload[3]&0x01 != 0,
	}, nil
}

func decodeDeviceInfo(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 6 {
		return nil, malformed(models.FrameDeviceInfo, "need 6 payload bytes, got %d", len(payload))
	}
	info := models.DeviceInfo{
		Model:    strings.TrimRight(string(payload[:4]), " \x00"),
		Firmware: fmt.Sprintf("%d.%d", payload[4], payload[5]),
	}
	if len(payload) >= 7 {
		info.BatteryPct = payload[6] & 0x7F
		info.Charging = payload[6]&0x80 != 0
	}
	return info, nil
}

func decodeBattery(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 1 {
		return nil, malformed(models.FrameBattery, "empty battery payload")
	}
	return models.BatteryStatus{
		BatteryPct: payload[0] & 0x7F,
		Charging:   payload[0]&0x80 != 0,
	}, nil
}

func decodeDeviceError(payload []byte) (models.DeviceEvent, error) {
	if len(payload) < 1 {
		return nil, malformed(models.FrameError, "empty error payload")
	}
	code := payload[0]
	return models.DeviceError{Code: code, Message: DeviceErrorMessage(code)}, nil
}
