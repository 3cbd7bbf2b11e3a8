package position

import "fmt"

// LogLag compares a committed position to the head of a partition, or of a whole log when aggregated.
type LogLag struct {
	LowerOffset int64
	UpperOffset int64
	Lag         int64
}

// NewLogLag creates the lag between a committed (lower) and a head (upper) offset. Offsets are read in two separate
// requests, so a head that appears to be behind the committed offset is reported as zero lag.
func NewLogLag(lower, upper int64) LogLag {
	if upper < lower {
		upper = lower
	}
	return LogLag{LowerOffset: lower, UpperOffset: upper, Lag: upper - lower}
}

// AggregateLag sums the lag of independent partitions. Offsets of different partitions are unrelated numberings,
// the lower and upper offsets of the result are therefore only the min and max reporting range.
func AggregateLag(lags []LogLag) LogLag {
	if len(lags) == 0 {
		return LogLag{}
	}

	res := LogLag{LowerOffset: lags[0].LowerOffset, UpperOffset: lags[0].UpperOffset}
	for _, l := range lags {
		res.Lag += l.Lag
		if l.LowerOffset < res.LowerOffset {
			res.LowerOffset = l.LowerOffset
		}
		if l.UpperOffset > res.UpperOffset {
			res.UpperOffset = l.UpperOffset
		}
	}
	return res
}

func (l LogLag) String() string {
	return fmt.Sprintf("LogLag{lag=%d, lower=%d, upper=%d}", l.Lag, l.LowerOffset, l.UpperOffset)
}
