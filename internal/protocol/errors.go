package protocol

import (
	"fmt"

	"bp_monitor/internal/models"
)

// DecodeKind classifies decode failures.
type DecodeKind string

const (
	// KindMalformed covers short buffers, header/payload length mismatches
	// and structurally invalid payloads.
	KindMalformed DecodeKind = "MALFORMED"
	// KindUnknownFrameType is returned for frame types this decoder does
	// not know. Not fatal to the caller, but not decodable.
	KindUnknownFrameType DecodeKind = "UNKNOWN_FRAME_TYPE"
	// KindOutOfRange is returned when a final result carries
	// physiologically impossible values, which indicates frame corruption.
	KindOutOfRange DecodeKind = "OUT_OF_RANGE"
)

// DecodeError is a typed decode failure. Decode never panics; a single
// malformed frame must not take down the stream, so every failure comes
// back as a value the caller can log and drop.
type DecodeError struct {
	Kind   DecodeKind
	Frame  models.FrameType // frame type from the header, when readable
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Frame != 0 {
		return fmt.Sprintf("protocol: %s frame 0x%02x: %s", e.Kind, uint8(e.Frame), e.Reason)
	}
	return fmt.Sprintf("protocol: %s: %s", e.Kind, e.Reason)
}

func malformed(frame models.FrameType, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindMalformed, Frame: frame, Reason: fmt.Sprintf(format, args...)}
}

// AsDecodeError unwraps err into a *DecodeError, or returns nil.
func AsDecodeError(err error) *DecodeError {
	de, ok := err.(*DecodeError)
	if !ok {
		return nil
	}
	return de
}
