package command

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/checkpoint"
	"github.com/cloudhut/lagtracker/controller"
	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/prometheus"
	"github.com/cloudhut/lagtracker/record"
	"github.com/cloudhut/lagtracker/sink"
	"github.com/cloudhut/lagtracker/tracker"
)

// Command is one verb of the CLI. Flags are bound to the command's fields by RegisterFlags and read by Execute.
type Command interface {
	Name() string
	Short() string
	RegisterFlags(fs *pflag.FlagSet)
	Execute(ctx context.Context, env *Env) error
}

// Env holds everything a command needs. It is built once from the loaded configuration.
type Env struct {
	Manager     logstore.Manager
	Calculator  *lag.Calculator
	Controller  *controller.Controller
	Registry    *record.Registry
	Filter      *logstore.Filter
	Checkpoints checkpoint.Store

	// Defaults of the long running commands, flags take precedence
	Tracker  tracker.Config
	Exporter prometheus.Config
	Datadog  sink.DatadogConfig
	InfluxDB sink.InfluxDBConfig

	Logger *zap.Logger
	Out    io.Writer
}

// All returns every command of the CLI.
func All() []Command {
	return []Command{
		&LagCommand{},
		&LatencyCommand{},
		&PositionCommand{},
		&TrackerCommand{},
		&DatadogCommand{},
		&InfluxDBCommand{},
		&CatCommand{},
	}
}

// resolveLogNames returns the given log, or every allowed log if name is empty.
func resolveLogNames(ctx context.Context, env *Env, name string) ([]string, error) {
	if name != "" {
		exists, err := env.Manager.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: log '%v'", logstore.ErrNotFound, name)
		}
		return []string{name}, nil
	}

	all, err := env.Manager.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if env.Filter.IsLogAllowed(n) {
			names = append(names, n)
		}
	}
	return names, nil
}

func allowedGroups(ctx context.Context, env *Env, name string) ([]string, error) {
	groups, err := env.Calculator.Groups(ctx, name)
	if err != nil {
		return nil, err
	}
	allowed := make([]string, 0, len(groups))
	for _, g := range groups {
		if env.Filter.IsGroupAllowed(g) {
			allowed = append(allowed, g)
		}
	}
	return allowed, nil
}

// splitList splits a comma separated flag value, dropping empty elements.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
