package sink

import (
	"fmt"
	"time"
)

type InfluxDBConfig struct {
	Address     string        `koanf:"address"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Database    string        `koanf:"database"`
	Measurement string        `koanf:"measurement"`
	Timeout     time.Duration `koanf:"timeout"`
}

func (c *InfluxDBConfig) SetDefaults() {
	c.Address = "http://localhost:8086"
	c.Database = "lagtracker"
	c.Measurement = "log_latency"
	c.Timeout = 10 * time.Second
}

func (c *InfluxDBConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address must be set")
	}
	if c.Database == "" || c.Measurement == "" {
		return fmt.Errorf("database and measurement must be set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	return nil
}
