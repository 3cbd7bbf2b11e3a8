package position

import (
	"fmt"
	"math"
	"time"
)

// Latency is the time based lag of a partition or of an aggregated log. Lower is the watermark timestamp (ms) of the
// last processed record, Upper the one of the last appended record. Key is the record key of the lower record.
type Latency struct {
	Lower int64
	Upper int64
	Lag   LogLag
	Key   string
}

// Available reports whether a lower timestamp could be determined. Without it the latency is meaningless.
func (l Latency) Available() bool {
	return l.Lower > 0
}

// Latency returns the distance between the upper and lower timestamps in ms, 0 when not available.
func (l Latency) Latency() int64 {
	if !l.Available() || l.Upper < l.Lower {
		return 0
	}
	return l.Upper - l.Lower
}

func (l Latency) Duration() time.Duration {
	return time.Duration(l.Latency()) * time.Millisecond
}

// AggregateLatency merges partition latencies: the oldest determinable lower timestamp wins, together with its key.
func AggregateLatency(latencies []Latency) Latency {
	lags := make([]LogLag, len(latencies))
	lower := int64(math.MaxInt64)
	upper := int64(0)
	key := ""
	for i, l := range latencies {
		lags[i] = l.Lag
		if l.Lower > 0 && l.Lower < lower {
			lower = l.Lower
			key = l.Key
		}
		if l.Upper > upper {
			upper = l.Upper
		}
	}
	if lower == math.MaxInt64 {
		lower = 0
	}
	return Latency{Lower: lower, Upper: upper, Lag: AggregateLag(lags), Key: key}
}

func (l Latency) String() string {
	if !l.Available() {
		return fmt.Sprintf("Latency{latency=NA, upper=%d, lag=%v}", l.Upper, l.Lag)
	}
	return fmt.Sprintf("Latency{latency=%.3fs, lower=%d, upper=%d, key=%s, lag=%v}",
		l.Duration().Seconds(), l.Lower, l.Upper, l.Key, l.Lag)
}
