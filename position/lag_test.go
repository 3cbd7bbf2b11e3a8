package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogLag(t *testing.T) {
	lag := NewLogLag(4, 10)
	assert.Equal(t, int64(6), lag.Lag)
	assert.Equal(t, lag.UpperOffset-lag.LowerOffset, lag.Lag)

	// head read before the commit
	lag = NewLogLag(12, 10)
	assert.Equal(t, int64(0), lag.Lag)
	assert.Equal(t, lag.UpperOffset-lag.LowerOffset, lag.Lag)
}

func TestAggregateLag(t *testing.T) {
	tests := []struct {
		name string
		lags []LogLag
		want LogLag
	}{
		{
			name: "empty",
			lags: nil,
			want: LogLag{},
		},
		{
			name: "orders billing",
			lags: []LogLag{NewLogLag(4, 10), NewLogLag(7, 7)},
			want: LogLag{LowerOffset: 4, UpperOffset: 10, Lag: 6},
		},
		{
			name: "offsets are not averaged",
			lags: []LogLag{NewLogLag(100, 150), NewLogLag(2, 3), NewLogLag(0, 0)},
			want: LogLag{LowerOffset: 0, UpperOffset: 150, Lag: 51},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateLag(tt.lags))
		})
	}
}
