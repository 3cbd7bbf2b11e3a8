package checkpoint

import (
	"fmt"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
)

type Config struct {
	// Backend is either "memory" (state is lost on restart) or "etcd"
	Backend     string        `koanf:"backend"`
	Endpoints   []string      `koanf:"endpoints"`
	Prefix      string        `koanf:"prefix"`
	DialTimeout time.Duration `koanf:"dialTimeout"`

	// RequestTimeout bounds a single load or save
	RequestTimeout time.Duration `koanf:"requestTimeout"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
}

func (c *Config) SetDefaults() {
	c.Backend = BackendMemory
	c.Endpoints = []string{"http://localhost:2379"}
	c.Prefix = "/lagtracker/checkpoints"
	c.DialTimeout = 5 * time.Second
	c.RequestTimeout = 5 * time.Second
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendEtcd:
	default:
		return fmt.Errorf("given backend '%v' is invalid, must be one of: %v, %v", c.Backend, BackendMemory, BackendEtcd)
	}

	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd backend requires at least one endpoint")
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("prefix '%v' must start with a slash", c.Prefix)
	}
	if c.DialTimeout <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("dialTimeout and requestTimeout must be greater than zero")
	}
	return nil
}
