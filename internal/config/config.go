package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iammultiman/logvault/internal/retention"
)

// Duration decodes YAML scalars like "90s" or "24h" via time.ParseDuration.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Storage Storage `yaml:"storage"`
	Cleanup Cleanup `yaml:"cleanup"`
	Usage   Usage   `yaml:"usage"`
	Log     Log     `yaml:"log"`
}

// Storage tunes durability of the underlying key-value store.
type Storage struct {
	// Fsync is one of "always", "interval", "never".
	Fsync         string   `yaml:"fsync"`
	FsyncInterval Duration `yaml:"fsync_interval"`
}

// Cleanup configures the retention policy and its cadence.
type Cleanup struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	// Preset names a built-in policy; explicit Policy fields override it.
	Preset string         `yaml:"preset"`
	Policy PolicyOverride `yaml:"policy"`
}

// PolicyOverride holds per-axis overrides of the preset policy. Absent
// fields keep the preset's bound.
type PolicyOverride struct {
	MaxAge        *Duration `yaml:"max_age"`
	MaxTotalBytes *int64    `yaml:"max_total_bytes"`
	MaxRecords    *int64    `yaml:"max_records"`
}

// Usage configures storage pressure reporting.
type Usage struct {
	WarningThresholdPercent float64 `yaml:"warning_threshold_percent"`
}

// Log configures structured logging.
type Log struct {
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir(),
		Storage: Storage{
			Fsync:         "interval",
			FsyncInterval: Duration(5 * time.Second),
		},
		Cleanup: Cleanup{
			Enabled:  true,
			Interval: Duration(time.Hour),
			Preset:   "balanced",
		},
		Usage: Usage{
			WarningThresholdPercent: 80,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file layered over defaults. If path
// is empty, returns defaults. Environment overrides apply in both cases.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	FromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolvedPolicy returns the named preset with any explicitly set axis
// overriding the preset's bound.
func (c Cleanup) ResolvedPolicy() retention.Policy {
	p := retention.Preset(c.Preset)
	if c.Policy.MaxAge != nil {
		d := c.Policy.MaxAge.Std()
		p.MaxAge = &d
	}
	if c.Policy.MaxTotalBytes != nil {
		p.MaxTotalBytes = c.Policy.MaxTotalBytes
	}
	if c.Policy.MaxRecords != nil {
		p.MaxRecords = c.Policy.MaxRecords
	}
	return p
}

// Validate rejects configurations that cannot be acted on.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	switch c.Storage.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("config: storage.fsync must be always, interval or never, got %q", c.Storage.Fsync)
	}
	if c.Storage.Fsync == "interval" && c.Storage.FsyncInterval <= 0 {
		return fmt.Errorf("config: storage.fsync_interval must be positive, got %s", c.Storage.FsyncInterval.Std())
	}
	if c.Cleanup.Enabled && c.Cleanup.Interval <= 0 {
		return fmt.Errorf("config: cleanup.interval must be positive, got %s", c.Cleanup.Interval.Std())
	}
	if err := c.Cleanup.ResolvedPolicy().Validate(); err != nil {
		return err
	}
	if c.Usage.WarningThresholdPercent <= 0 || c.Usage.WarningThresholdPercent > 100 {
		return fmt.Errorf("config: usage.warning_threshold_percent must be in (0, 100], got %v", c.Usage.WarningThresholdPercent)
	}
	return nil
}
