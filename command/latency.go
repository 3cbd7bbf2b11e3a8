package command

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

type LatencyCommand struct {
	logName string
	verbose bool
}

func (c *LatencyCommand) Name() string  { return "latency" }
func (c *LatencyCommand) Short() string { return "Print the latency of consumer groups" }

func (c *LatencyCommand) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.logName, "log-name", "l", "", "Log to inspect, all logs if omitted")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "Print one row per partition")
}

func (c *LatencyCommand) Execute(ctx context.Context, env *Env) error {
	names, err := resolveLogNames(ctx, env, c.logName)
	if err != nil {
		return err
	}

	t := newTable(env.Out, "LOG", "GROUP", "PARTITION", "LATENCY", "LAG", "LOWER", "UPPER", "KEY")
	for _, name := range names {
		groups, err := allowedGroups(ctx, env, name)
		if err != nil {
			return err
		}
		for _, group := range groups {
			latencies, err := env.Calculator.ComputeLatency(ctx, name, group, nil)
			if err != nil {
				// a single log must be readable, when listing all logs some may hold foreign records
				if c.logName == "" && errors.Is(err, logstore.ErrUnsupportedRecordType) {
					env.Logger.Warn("skipping log without watermarks", zap.String("log", name), zap.String("group", group), zap.Error(err))
					continue
				}
				return err
			}

			latencyRow(t, name, group, "ALL", position.AggregateLatency(latencies))
			if !c.verbose {
				continue
			}
			for partition, l := range latencies {
				latencyRow(t, name, group, strconv.Itoa(partition), l)
			}
		}
	}
	return t.flush()
}

func latencyRow(t *table, name, group, partition string, l position.Latency) {
	latency := notAvailable
	if l.Available() {
		latency = l.Duration().String()
	}
	t.row(name, group, partition, latency, formatInt(l.Lag.Lag), formatTimestamp(l.Lower), formatTimestamp(l.Upper), l.Key)
}
