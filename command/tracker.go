package command

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/prometheus"
	"github.com/cloudhut/lagtracker/sink"
	"github.com/cloudhut/lagtracker/tracker"
)

// trackerFlags are the flags shared by all commands running a tracker. Flags that are not set on the command line
// keep the value of the tracker configuration.
type trackerFlags struct {
	fs *pflag.FlagSet

	logNames    string
	outputLog   string
	interval    time.Duration
	count       int
	metricsAddr string
}

func (f *trackerFlags) register(fs *pflag.FlagSet) {
	f.fs = fs
	fs.StringVarP(&f.logNames, "log-name", "l", "", "Comma separated logs to track or 'all'")
	fs.StringVarP(&f.outputLog, "log-output", "o", "", "Log the measurements are appended to")
	fs.DurationVarP(&f.interval, "interval", "i", 60*time.Second, "Time between two measurements")
	fs.IntVarP(&f.count, "count", "c", tracker.Unbounded, "Number of measurements, -1 runs until interrupted")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics of the measurements on this host:port")
}

func (f *trackerFlags) config(defaults tracker.Config) tracker.Config {
	cfg := defaults
	if f.fs.Changed("log-name") {
		cfg.LogNames = splitList(f.logNames)
	}
	if f.fs.Changed("log-output") {
		cfg.OutputLog = f.outputLog
	}
	if f.fs.Changed("interval") {
		cfg.Interval = f.interval
	}
	if f.fs.Changed("count") {
		cfg.Count = f.count
	}
	return cfg
}

// run starts a tracker with the given outputs and, if requested, a metrics server. It blocks until the tracker
// terminates or ctx is cancelled.
func (f *trackerFlags) run(ctx context.Context, env *Env, requireOutputLog bool, outputs ...tracker.Output) error {
	cfg := f.config(env.Tracker)
	if requireOutputLog && cfg.OutputLog == "" {
		return fmt.Errorf("%w: --log-output is required", logstore.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", logstore.ErrInvalidArgument, err)
	}

	if cfg.OutputLog != "" {
		logOutput, err := tracker.NewLogOutput(ctx, env.Manager, cfg.OutputLog, env.Logger)
		if err != nil {
			return err
		}
		outputs = append([]tracker.Output{logOutput}, outputs...)
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	trackerCtx, stopMetrics := context.WithCancel(grpCtx)
	if f.metricsAddr != "" {
		exporterCfg, err := exporterConfig(env.Exporter, f.metricsAddr)
		if err != nil {
			stopMetrics()
			return err
		}
		exporter := prometheus.NewExporter(exporterCfg, env.Logger)
		exporter.InitializeMetrics(prom.DefaultRegisterer)
		prom.MustRegister(exporter)
		outputs = append(outputs, exporter)

		grp.Go(func() error {
			return prometheus.Serve(trackerCtx, exporterCfg, prom.DefaultGatherer, env.Logger)
		})
	}

	t := tracker.New(cfg, env.Manager, env.Calculator, env.Filter, env.Checkpoints, outputs, env.Logger)
	grp.Go(func() error {
		// the metrics server stops together with the tracker
		defer stopMetrics()
		return t.Run(trackerCtx)
	})
	return grp.Wait()
}

func exporterConfig(defaults prometheus.Config, addr string) (prometheus.Config, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return prometheus.Config{}, fmt.Errorf("%w: invalid --metrics-addr '%v': %v", logstore.ErrInvalidArgument, addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return prometheus.Config{}, fmt.Errorf("%w: invalid port in --metrics-addr '%v'", logstore.ErrInvalidArgument, addr)
	}
	cfg := defaults
	cfg.Host = host
	cfg.Port = port
	return cfg, cfg.Validate()
}

// TrackerCommand runs a tracker that appends its measurements to a log.
type TrackerCommand struct {
	flags trackerFlags
}

func (c *TrackerCommand) Name() string  { return "tracker" }
func (c *TrackerCommand) Short() string { return "Periodically measure latencies and append them to a log" }

func (c *TrackerCommand) RegisterFlags(fs *pflag.FlagSet) {
	c.flags.register(fs)
}

func (c *TrackerCommand) Execute(ctx context.Context, env *Env) error {
	return c.flags.run(ctx, env, true)
}

// DatadogCommand runs a tracker that pushes its measurements to Datadog, optionally also appending them to a log.
type DatadogCommand struct {
	flags  trackerFlags
	apiKey string
	tags   string
	site   string
}

func (c *DatadogCommand) Name() string  { return "datadog" }
func (c *DatadogCommand) Short() string { return "Periodically measure latencies and push them to Datadog" }

func (c *DatadogCommand) RegisterFlags(fs *pflag.FlagSet) {
	c.flags.register(fs)
	fs.StringVar(&c.apiKey, "api-key", "", "Datadog API key")
	fs.StringVar(&c.tags, "tags", "", "Comma separated tags added to every series")
	fs.StringVar(&c.site, "site", "", "Datadog site, e.g. datadoghq.eu")
}

func (c *DatadogCommand) Execute(ctx context.Context, env *Env) error {
	cfg := env.Datadog
	if c.apiKey != "" {
		cfg.APIKey = c.apiKey
	}
	if c.tags != "" {
		cfg.Tags = splitList(c.tags)
	}
	if c.site != "" {
		cfg.Site = c.site
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: invalid datadog settings: %v", logstore.ErrInvalidArgument, err)
	}

	env.Logger.Info("pushing measurements to datadog", zap.String("site", cfg.Site), zap.Strings("tags", cfg.Tags))
	return c.flags.run(ctx, env, false, sink.NewDatadog(cfg, env.Logger))
}

// InfluxDBCommand runs a tracker that writes its measurements to InfluxDB.
type InfluxDBCommand struct {
	flags    trackerFlags
	address  string
	database string
}

func (c *InfluxDBCommand) Name() string  { return "influxdb" }
func (c *InfluxDBCommand) Short() string { return "Periodically measure latencies and write them to InfluxDB" }

func (c *InfluxDBCommand) RegisterFlags(fs *pflag.FlagSet) {
	c.flags.register(fs)
	fs.StringVar(&c.address, "influx-address", "", "InfluxDB HTTP address")
	fs.StringVar(&c.database, "database", "", "InfluxDB database")
}

func (c *InfluxDBCommand) Execute(ctx context.Context, env *Env) error {
	cfg := env.InfluxDB
	if c.address != "" {
		cfg.Address = c.address
	}
	if c.database != "" {
		cfg.Database = c.database
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: invalid influxdb settings: %v", logstore.ErrInvalidArgument, err)
	}

	influx, err := sink.NewInfluxDB(cfg, env.Logger)
	if err != nil {
		return err
	}
	defer influx.Close()
	return c.flags.run(ctx, env, false, influx)
}
