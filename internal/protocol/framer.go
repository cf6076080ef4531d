package protocol

import (
	"github.com/smallnest/ringbuffer"

	"bp_monitor/internal/models"
)

// DefaultFramerCapacity comfortably holds several seconds of frames at the
// device's 100 ms cadence.
const DefaultFramerCapacity = 4096

// Framer reassembles wire frames from an arbitrarily chunked byte stream.
// BLE transports deliver notification-sized slices that do not have to
// line up with frame boundaries; Push accepts whatever arrived and Next
// yields complete frames in order.
//
// A Framer is owned by a single reader goroutine, matching the one-reader-
// per-device transport model.
type Framer struct {
	rb      *ringbuffer.RingBuffer
	pending []byte
}

// NewFramer creates a framer buffering up to capacity bytes. Non-positive
// capacity uses DefaultFramerCapacity.
func NewFramer(capacity int) *Framer {
	if capacity <= 0 {
		capacity = DefaultFramerCapacity
	}
	return &Framer{rb: ringbuffer.New(capacity)}
}

// Push appends raw transport bytes to the framer.
func (f *Framer) Push(p []byte) error {
	_, err := f.rb.Write(p)
	return err
}

// Next extracts the next complete frame, or returns false when more bytes
// are needed. Bytes that cannot start a frame (unknown type values from a
// mid-stream connect or corruption) are skipped until a plausible header
// is found.
func (f *Framer) Next() ([]byte, bool) {
	for {
		if len(f.pending) < headerLen {
			b, err := f.rb.ReadByte()
			if err != nil {
				return nil, false
			}
			if len(f.pending) == 0 && !knownFrameType(b) {
				continue // resynchronize
			}
			f.pending = append(f.pending, b)
			continue
		}
		need := headerLen + int(f.pending[1])
		if len(f.pending) < need {
			b, err := f.rb.ReadByte()
			if err != nil {
				return nil, false
			}
			f.pending = append(f.pending, b)
			continue
		}
		out := f.pending
		f.pending = nil
		return out, true
	}
}

// Reset discards buffered bytes and any partial frame, for reuse across
// transport reconnects.
func (f *Framer) Reset() {
	f.rb.Reset()
	f.pending = nil
}

func knownFrameType(b byte) bool {
	switch models.FrameType(b) {
	case models.FramePressure, models.FrameFinalResult, models.FrameEcg,
		models.FrameHeartRate, models.FrameDeviceInfo, models.FrameBattery,
		models.FrameError:
		return true
	}
	return false
}
