// Package config handles riptide.toml embedder configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents a riptide.toml file.
type Config struct {
	Log   Log   `toml:"log"`
	Trace Trace `toml:"trace"`
	Sweep Sweep `toml:"sweep"`

	// Dir is the directory containing the riptide.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Log configures logging verbosity.
type Log struct {
	// Verbosity maps onto commonlog verbosity: 0 errors and warnings only,
	// higher values increasingly chatty.
	Verbosity int `toml:"verbosity"`
}

// Trace configures the scheduler trace recorder.
type Trace struct {
	Enabled  bool   `toml:"enabled"`
	Capacity int    `toml:"capacity"`
	Output   string `toml:"output"`
}

// Sweep configures the engine registry sweeper.
type Sweep struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// IntervalDuration parses the sweep interval, falling back to def when
// unset.
func (s Sweep) IntervalDuration(def time.Duration) (time.Duration, error) {
	if s.Interval == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0, fmt.Errorf("config: invalid sweep interval %q: %w", s.Interval, err)
	}
	return d, nil
}

// Default returns the configuration used when no riptide.toml exists.
func Default() *Config {
	return &Config{
		Trace: Trace{Capacity: 4096, Output: "riptide-trace.cbor"},
		Sweep: Sweep{Enabled: true},
	}
}

// Load parses a riptide.toml file from the given directory. A missing file
// is not an error; defaults are returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "riptide.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c := Default()
			c.Dir = dir
			return c, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir = dir
	return c, nil
}
