package lag

import (
	"fmt"
	"time"
)

type Config struct {
	// ReadTimeout bounds every single record read. A partition whose read times out reports an unknown latency.
	ReadTimeout time.Duration `koanf:"readTimeout"`

	// MaxConcurrentReads is the number of partitions whose records are read in parallel
	MaxConcurrentReads int `koanf:"maxConcurrentReads"`
}

func (c *Config) SetDefaults() {
	c.ReadTimeout = 2 * time.Second
	c.MaxConcurrentReads = 4
}

func (c *Config) Validate() error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("readTimeout must be greater than zero")
	}
	if c.MaxConcurrentReads < 1 {
		return fmt.Errorf("maxConcurrentReads must be at least 1")
	}
	return nil
}
