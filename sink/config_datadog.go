package sink

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMetricPrefix is the common prefix of all metrics pushed by sinks.
const DefaultMetricPrefix = "streams.global.stream.group"

type DatadogConfig struct {
	APIKey string `koanf:"apiKey"`
	// Site is the Datadog site to send metrics to, e.g. datadoghq.com or datadoghq.eu
	Site         string        `koanf:"site"`
	Tags         []string      `koanf:"tags"`
	MetricPrefix string        `koanf:"metricPrefix"`
	Timeout      time.Duration `koanf:"timeout"`
}

func (c *DatadogConfig) SetDefaults() {
	c.Site = "datadoghq.com"
	c.MetricPrefix = DefaultMetricPrefix
	c.Timeout = 10 * time.Second
}

func (c *DatadogConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("an api key is required")
	}
	if c.Site == "" {
		return fmt.Errorf("site must be set")
	}
	if c.MetricPrefix == "" || strings.HasSuffix(c.MetricPrefix, ".") {
		return fmt.Errorf("metric prefix '%v' must not be empty nor end with a dot", c.MetricPrefix)
	}
	for _, tag := range c.Tags {
		if tag == "" {
			return fmt.Errorf("tags must not be empty")
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	return nil
}
