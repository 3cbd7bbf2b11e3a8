package logging

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func (c *Config) SetDefaults() {
	c.Level = "info"
	c.Format = FormatJSON
}

func (c *Config) Validate() error {
	level := zap.NewAtomicLevel()
	err := level.UnmarshalText([]byte(c.Level))
	if err != nil {
		return fmt.Errorf("failed to parse logger level: %w", err)
	}

	if c.Format != FormatJSON && c.Format != FormatConsole {
		return fmt.Errorf("unknown log format '%v', must be '%v' or '%v'", c.Format, FormatJSON, FormatConsole)
	}

	return nil
}
