package command

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/cloudhut/lagtracker/position"
)

// LagCommand prints the offset lag of every consumer group of a log. Lower and upper are positions relative to the
// start of the partitions, the offsets are absolute.
type LagCommand struct {
	logName string
}

func (c *LagCommand) Name() string  { return "lag" }
func (c *LagCommand) Short() string { return "Print the lag of consumer groups" }

func (c *LagCommand) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.logName, "log-name", "l", "", "Log to inspect, all logs if omitted")
}

func (c *LagCommand) Execute(ctx context.Context, env *Env) error {
	names, err := resolveLogNames(ctx, env, c.logName)
	if err != nil {
		return err
	}

	t := newTable(env.Out, "LOG", "GROUP", "LAG", "LOWER", "UPPER", "LOWER_OFFSET", "UPPER_OFFSET")
	for _, name := range names {
		groups, err := allowedGroups(ctx, env, name)
		if err != nil {
			return err
		}
		starts, err := env.Manager.StartOffsets(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get start offsets of log '%v': %w", name, err)
		}

		for _, group := range groups {
			lags, err := env.Calculator.ComputeLagPerPartition(ctx, name, group)
			if err != nil {
				return err
			}
			lower, upper := relativePositions(lags, starts)
			all := position.AggregateLag(lags)
			t.row(name, group, formatInt(all.Lag), formatInt(lower), formatInt(upper),
				formatInt(all.LowerOffset), formatInt(all.UpperOffset))
		}
	}
	return t.flush()
}

// relativePositions sums the processed and the retained records over all partitions.
func relativePositions(lags []position.LogLag, starts []int64) (lower, upper int64) {
	for i, l := range lags {
		if i >= len(starts) {
			break
		}
		if processed := l.LowerOffset - starts[i]; processed > 0 {
			lower += processed
		}
		if retained := l.UpperOffset - starts[i]; retained > 0 {
			upper += retained
		}
	}
	return lower, upper
}
