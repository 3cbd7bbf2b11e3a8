package position

import (
	"fmt"
	"time"
)

const (
	sequenceBits = 15
	maxSequence  = 1<<sequenceBits - 1

	// MaxTimestamp is the largest millisecond timestamp a watermark can carry.
	MaxTimestamp = 1<<47 - 1
)

// Watermark packs a millisecond timestamp, a sequence and a completed flag into a single orderable value:
// 48 bits of timestamp, 15 bits of sequence and the lowest bit as completed flag.
type Watermark struct {
	timestamp int64
	sequence  uint16
	completed bool
	value     int64
}

// WatermarkOf creates a watermark for a timestamp in ms and a sequence number. Timestamps are clamped to
// [0, MaxTimestamp] and sequence numbers above 2^15-1 are truncated.
func WatermarkOf(timestampMs int64, sequence uint16) Watermark {
	if timestampMs < 0 {
		timestampMs = 0
	}
	if timestampMs > MaxTimestamp {
		timestampMs = MaxTimestamp
	}
	seq := sequence & maxSequence
	return Watermark{
		timestamp: timestampMs,
		sequence:  seq,
		value:     timestampMs<<16 | int64(seq)<<1,
	}
}

func WatermarkOfTimestamp(timestampMs int64) Watermark {
	return WatermarkOf(timestampMs, 0)
}

func WatermarkOfTime(t time.Time) Watermark {
	return WatermarkOfTimestamp(t.UnixMilli())
}

// WatermarkOfValue decodes an encoded watermark value.
func WatermarkOfValue(value int64) Watermark {
	return Watermark{
		timestamp: int64(uint64(value) >> 16),
		sequence:  uint16((value & 0xFFFF) >> 1),
		completed: value&1 == 1,
		value:     value,
	}
}

// Completed returns a copy of the watermark with the completed flag set.
func (w Watermark) Completed() Watermark {
	return Watermark{timestamp: w.timestamp, sequence: w.sequence, completed: true, value: w.value | 1}
}

func (w Watermark) IsCompleted() bool { return w.completed }
func (w Watermark) Timestamp() int64  { return w.timestamp }
func (w Watermark) Sequence() uint16  { return w.sequence }
func (w Watermark) Value() int64      { return w.value }

func (w Watermark) Time() time.Time {
	return time.UnixMilli(w.timestamp).UTC()
}

func (w Watermark) String() string {
	return fmt.Sprintf("Watermark{completed=%t, timestamp=%d, sequence=%d, value=%d, date=%s}",
		w.completed, w.timestamp, w.sequence, w.value, w.Time().Format(time.RFC3339Nano))
}
