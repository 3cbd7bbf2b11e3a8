package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/checkpoint"
	"github.com/cloudhut/lagtracker/command"
	"github.com/cloudhut/lagtracker/controller"
	"github.com/cloudhut/lagtracker/kafka"
	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logging"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/record"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "lagtracker",
		Short:         "Track position, lag and latency of consumer groups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to a YAML config file, defaults to $CONFIG_FILEPATH")
	root.PersistentFlags().StringSliceVar(&flags.brokers, "brokers", nil, "Comma separated seed brokers")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	for _, c := range command.All() {
		c := c
		cmd := &cobra.Command{
			Use:   c.Name(),
			Short: c.Short(),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), flags, c)
			},
		}
		c.RegisterFlags(cmd.Flags())
		root.AddCommand(cmd)
	}
	return root
}

func run(ctx context.Context, flags globalFlags, c command.Command) error {
	startupLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create startup logger: %w", err)
	}
	cfg, err := newConfig(startupLogger, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Logger, cfg.Exporter.Namespace)

	env, closeEnv, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEnv()

	logger.Debug("executing command", zap.String("command", c.Name()))
	err = c.Execute(ctx, env)
	if errors.Is(err, logstore.ErrInterrupted) && ctx.Err() != nil {
		logger.Info("interrupted, shutting down")
		return nil
	}
	return err
}

// newEnv connects to the cluster and creates all components shared by the commands.
func newEnv(ctx context.Context, cfg Config, logger *zap.Logger) (*command.Env, func(), error) {
	svc, err := kafka.NewService(cfg.Kafka, logger.With(zap.String("source", "kafka")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup kafka service: %w", err)
	}
	err = svc.TestConnection(ctx)
	if err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	manager, err := kafka.NewLogManager(svc, logger.With(zap.String("source", "log_manager")))
	if err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("failed to setup log manager: %w", err)
	}
	filter, err := logstore.NewFilter(cfg.Logs)
	if err != nil {
		manager.Close()
		svc.Close()
		return nil, nil, fmt.Errorf("failed to setup log filter: %w", err)
	}
	checkpoints, err := checkpoint.New(cfg.Checkpoint)
	if err != nil {
		manager.Close()
		svc.Close()
		return nil, nil, fmt.Errorf("failed to setup checkpoint store: %w", err)
	}

	registry := record.NewRegistry()
	calculator := lag.NewCalculator(cfg.Calculator, manager, registry, logger.With(zap.String("source", "calculator")))
	env := &command.Env{
		Manager:     manager,
		Calculator:  calculator,
		Controller:  controller.New(manager, calculator, logger.With(zap.String("source", "controller"))),
		Registry:    registry,
		Filter:      filter,
		Checkpoints: checkpoints,
		Tracker:     cfg.Tracker,
		Exporter:    cfg.Exporter,
		Datadog:     cfg.Datadog,
		InfluxDB:    cfg.InfluxDB,
		Logger:      logger,
		Out:         os.Stdout,
	}

	closeEnv := func() {
		if err := checkpoints.Close(); err != nil {
			logger.Warn("failed to close checkpoint store", zap.Error(err))
		}
		if err := manager.Close(); err != nil {
			logger.Warn("failed to close log manager", zap.Error(err))
		}
		svc.Close()
	}
	return env, closeEnv, nil
}
