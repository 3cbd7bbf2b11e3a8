package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/checkpoint"
	"github.com/cloudhut/lagtracker/kafka"
	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logging"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/prometheus"
	"github.com/cloudhut/lagtracker/sink"
	"github.com/cloudhut/lagtracker/tracker"
)

type Config struct {
	Kafka      kafka.Config          `koanf:"kafka"`
	Logger     logging.Config        `koanf:"logger"`
	Exporter   prometheus.Config     `koanf:"exporter"`
	Calculator lag.Config            `koanf:"calculator"`
	Logs       logstore.FilterConfig `koanf:"logs"`
	Checkpoint checkpoint.Config     `koanf:"checkpoint"`

	// Defaults of the tracker commands. They are validated once the command line flags are applied.
	Tracker  tracker.Config      `koanf:"tracker"`
	Datadog  sink.DatadogConfig  `koanf:"datadog"`
	InfluxDB sink.InfluxDBConfig `koanf:"influxdb"`
}

func (c *Config) SetDefaults() {
	c.Kafka.SetDefaults()
	c.Logger.SetDefaults()
	c.Exporter.SetDefaults()
	c.Calculator.SetDefaults()
	c.Logs.SetDefaults()
	c.Checkpoint.SetDefaults()
	c.Tracker.SetDefaults()
	c.Datadog.SetDefaults()
	c.InfluxDB.SetDefaults()
}

func (c *Config) Validate() error {
	err := c.Kafka.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate kafka config: %w", err)
	}

	err = c.Logger.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate logger config: %w", err)
	}

	err = c.Exporter.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate exporter config: %w", err)
	}

	err = c.Calculator.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate calculator config: %w", err)
	}

	err = c.Logs.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate logs config: %w", err)
	}

	err = c.Checkpoint.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate checkpoint config: %w", err)
	}

	return nil
}

// globalFlags are the flags shared by all commands. Flags that were not set leave the configured value untouched.
type globalFlags struct {
	configFile string
	brokers    []string
	logLevel   string
}

// overrides returns the config keys set by command line flags.
func (g globalFlags) overrides() map[string]interface{} {
	res := make(map[string]interface{})
	if len(g.brokers) > 0 {
		res["kafka.brokers"] = g.brokers
	}
	if g.logLevel != "" {
		res["logger.level"] = g.logLevel
	}
	return res
}

func newConfig(logger *zap.Logger, flags globalFlags) (Config, error) {
	k := koanf.New(".")
	var cfg Config
	cfg.SetDefaults()

	// 1. Check if a config filepath is set via flags or env. If there is one we'll try to load the file using a YAML parser
	envKey := "CONFIG_FILEPATH"
	configFilepath := flags.configFile
	if configFilepath == "" {
		configFilepath = os.Getenv(envKey)
	}
	if configFilepath == "" {
		logger.Debug("neither --config nor the env variable '" + envKey + "' is set, therefore no YAML config will be loaded")
	} else {
		err := k.Load(file.Provider(configFilepath), yaml.Parser())
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	// We could unmarshal the loaded koanf input after loading all providers, however we want to unmarshal the YAML
	// config with `ErrorUnused` set to true, but unmarshal environment variables with `ErrorUnused` set to false (default).
	// Rationale: Orchestrators like Kubernetes inject unrelated environment variables, which we still want to allow.
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag:       "",
		FlatPaths: false,
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc()),
			Metadata:         nil,
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return Config{}, err
	}

	err = k.Load(env.ProviderWithValue("", ".", func(s string, v string) (string, interface{}) {
		key := strings.ReplaceAll(strings.ToLower(s), "_", ".")
		// If there is a comma in the value, split the value into a slice by the comma.
		if strings.Contains(v, ",") {
			return key, strings.Split(v, ",")
		}

		// Otherwise return the new key with the unaltered value
		return key, v
	}), nil)
	if err != nil {
		return Config{}, err
	}

	// Command line flags take precedence over everything else
	err = k.Load(confmap.Provider(flags.overrides(), "."), nil)
	if err != nil {
		return Config{}, err
	}

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return Config{}, err
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}
