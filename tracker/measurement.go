package tracker

import (
	"strconv"
	"time"

	"github.com/cloudhut/lagtracker/position"
)

// AllPartitions is the partition of a measurement that aggregates all partitions of a log.
const AllPartitions = -1

// Measurement is the latency of one partition of a consumer group at a point in time. It is the value of the
// records written to the output log.
type Measurement struct {
	TrackerID   string    `json:"trackerId"`
	Group       string    `json:"group"`
	Log         string    `json:"log"`
	Partition   int       `json:"partition"`
	Lag         int64     `json:"lag"`
	LowerOffset int64     `json:"lowerOffset"`
	UpperOffset int64     `json:"upperOffset"`
	Lower       int64     `json:"lower"`
	Upper       int64     `json:"upper"`
	LatencyMs   int64     `json:"latencyMs"`
	Key         string    `json:"key,omitempty"`
	MeasuredAt  time.Time `json:"measuredAt"`
}

func newMeasurement(id string, lpg position.LogPartitionGroup, latency position.Latency, at time.Time) Measurement {
	return Measurement{
		TrackerID:   id,
		Group:       lpg.Group,
		Log:         lpg.Name,
		Partition:   lpg.Partition,
		Lag:         latency.Lag.Lag,
		LowerOffset: latency.Lag.LowerOffset,
		UpperOffset: latency.Lag.UpperOffset,
		Lower:       latency.Lower,
		Upper:       latency.Upper,
		LatencyMs:   latency.Latency(),
		Key:         latency.Key,
		MeasuredAt:  at,
	}
}

func (m Measurement) IsAggregate() bool {
	return m.Partition == AllPartitions
}

// Available reports whether the lower timestamp is known.
func (m Measurement) Available() bool {
	return m.Lower > 0
}

// PartitionTag renders the partition as used in metric tags, "ALL" for aggregates.
func (m Measurement) PartitionTag() string {
	if m.IsAggregate() {
		return "ALL"
	}
	return strconv.Itoa(m.Partition)
}

// RecordKey is the key of the output record of this measurement.
func (m Measurement) RecordKey() string {
	return position.EncodeKey(m.Group, m.Log, m.Partition)
}
