package kafka

import (
	"fmt"
	"time"
)

type Config struct {
	// General
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"clientId"`
	RackID   string   `koanf:"rackId"`

	// MetadataCacheTTL is how long listed topics are cached before they are requested again
	MetadataCacheTTL time.Duration `koanf:"metadataCacheTtl"`
	// RequestTimeout bounds every admin request (list offsets, offset fetch, commit)
	RequestTimeout time.Duration `koanf:"requestTimeout"`

	TLS  TLSConfig  `koanf:"tls"`
	SASL SASLConfig `koanf:"sasl"`
}

func (c *Config) SetDefaults() {
	c.Brokers = []string{"localhost:9092"}
	c.ClientID = "lagtracker"
	c.MetadataCacheTTL = 10 * time.Second
	c.RequestTimeout = 15 * time.Second

	c.TLS.SetDefaults()
	c.SASL.SetDefaults()
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("no seed brokers specified, at least one must be configured")
	}
	if c.MetadataCacheTTL <= 0 {
		return fmt.Errorf("metadata cache ttl must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	err := c.TLS.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate TLS config: %w", err)
	}

	err = c.SASL.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate SASL config: %w", err)
	}

	return nil
}
