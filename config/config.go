package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

const (
	LookupName     = "name"
	LookupDistance = "distance"
)

var ErrInvalid = errors.New("invalid config")

// Config holds the retargeting settings of the CLI.
type Config struct {
	LogLevel string `toml:"log_level"`
	// Workers is the number of retargeting goroutines. 0 means NumCPU.
	Workers int `toml:"workers"`

	// Lookup selects how bones are paired when no mapper file is given.
	Lookup         string  `toml:"lookup"`
	MaxDistance    float32 `toml:"max_distance"`
	AnchorToParent bool    `toml:"anchor_to_parent"`
	// Aliases maps bone names to canonical names before name matching.
	Aliases map[string]string `toml:"aliases"`

	// FrameRate is the sampling rate of the output. 0 keeps the motion's rate.
	FrameRate float32 `toml:"frame_rate"`
	// Scale and FlipZ convert MMD model and motion coordinates.
	Scale float32 `toml:"scale"`
	FlipZ bool    `toml:"flip_z"`
	// Skin selects the glTF skin. -1 uses every node.
	Skin int `toml:"skin"`

	Watch bool `toml:"watch"`
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		Lookup:      LookupName,
		MaxDistance: 1,
		Scale:       1,
	}
}

// Load reads a TOML config file. Keys not set in the file keep their
// defaults; unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return Config{}, fmt.Errorf("config: %s: %w\n%s", path, ErrInvalid, serr.String())
		}
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	LogLevel string
	Workers  int
	Lookup   string
	Anchor   bool
	Watch    bool
}

// Resolve applies the flags and fills in defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) error {
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Lookup != "" {
		c.Lookup = flags.Lookup
	}
	if flags.Anchor {
		c.AnchorToParent = true
	}
	if flags.Watch {
		c.Watch = true
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Lookup == "" {
		c.Lookup = LookupName
	}
	if c.Lookup != LookupName && c.Lookup != LookupDistance {
		return fmt.Errorf("%w: lookup %q", ErrInvalid, c.Lookup)
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = 1
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("%w: frame_rate %v", ErrInvalid, c.FrameRate)
	}
	return nil
}

// ThreadCount returns the number of workers to run.
func (c *Config) ThreadCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Step returns the sampling step in source frames for a motion at rate.
func (c *Config) Step(rate float32) float32 {
	if c.FrameRate <= 0 || rate <= 0 {
		return 1
	}
	return rate / c.FrameRate
}
