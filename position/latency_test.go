package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatency(t *testing.T) {
	l := Latency{Lower: 1000, Upper: 3500, Lag: NewLogLag(1, 5), Key: "k"}
	assert.True(t, l.Available())
	assert.Equal(t, int64(2500), l.Latency())

	na := Latency{Lower: 0, Upper: 3500}
	assert.False(t, na.Available())
	assert.Equal(t, int64(0), na.Latency())
	assert.Contains(t, na.String(), "NA")
}

func TestAggregateLatency(t *testing.T) {
	latencies := []Latency{
		{Lower: 2000, Upper: 5000, Lag: NewLogLag(4, 10), Key: "p0"},
		{Lower: 0, Upper: 6000, Lag: NewLogLag(0, 3)},
		{Lower: 1500, Upper: 1500, Lag: NewLogLag(7, 7), Key: "p2"},
	}

	agg := AggregateLatency(latencies)
	assert.Equal(t, int64(1500), agg.Lower)
	assert.Equal(t, int64(6000), agg.Upper)
	assert.Equal(t, "p2", agg.Key)
	assert.Equal(t, int64(9), agg.Lag.Lag)
	assert.Equal(t, int64(4500), agg.Latency())

	none := AggregateLatency([]Latency{{Upper: 10}, {Upper: 20}})
	assert.False(t, none.Available())
	assert.Equal(t, int64(20), none.Upper)
}
