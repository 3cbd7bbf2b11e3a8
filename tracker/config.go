package tracker

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// AllLogs as the only log name tracks every log that is not ignored by the log filter.
const AllLogs = "all"

// Unbounded is the count of a tracker that runs until it is stopped.
const Unbounded = -1

type Config struct {
	// Name identifies the tracker, its checkpoint is stored under this name
	Name      string        `koanf:"name"`
	LogNames  []string      `koanf:"logNames"`
	OutputLog string        `koanf:"outputLog"`
	Interval  time.Duration `koanf:"interval"`
	Count     int           `koanf:"count"`
}

func (c *Config) SetDefaults() {
	c.Name = "lagtracker"
	c.Interval = 60 * time.Second
	c.Count = Unbounded
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must be set")
	}
	if len(c.LogNames) == 0 {
		return fmt.Errorf("at least one log name must be given")
	}
	for _, name := range c.LogNames {
		if name == "" {
			return fmt.Errorf("log names must not be empty")
		}
		if name == AllLogs && len(c.LogNames) > 1 {
			return fmt.Errorf("'%v' can't be combined with other log names", AllLogs)
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	if c.Count < Unbounded {
		return fmt.Errorf("count must be %d (unbounded) or greater, given: %d", Unbounded, c.Count)
	}
	return nil
}

func (c *Config) tracksAllLogs() bool {
	return len(c.LogNames) == 1 && c.LogNames[0] == AllLogs
}

// Fingerprint identifies the work of a tracker: the sorted log names and the output log. Trackers sharing a name
// but tracking different logs must not resume each other's checkpoints.
func (c *Config) Fingerprint() string {
	names := append([]string(nil), c.LogNames...)
	sort.Strings(names)
	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(name)
		_, _ = h.WriteString("\x00")
	}
	_, _ = h.WriteString("\x01")
	_, _ = h.WriteString(c.OutputLog)
	return strconv.FormatUint(h.Sum64(), 16)
}
