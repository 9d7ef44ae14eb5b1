package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays LOGVAULT_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LOGVAULT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOGVAULT_FSYNC"); v != "" {
		cfg.Storage.Fsync = v
	}
	if v := os.Getenv("LOGVAULT_FSYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.FsyncInterval = Duration(d)
		}
	}
	if v := os.Getenv("LOGVAULT_CLEANUP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cleanup.Enabled = b
		}
	}
	if v := os.Getenv("LOGVAULT_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cleanup.Interval = Duration(d)
		}
	}
	if v := os.Getenv("LOGVAULT_CLEANUP_PRESET"); v != "" {
		cfg.Cleanup.Preset = v
	}
	if v := os.Getenv("LOGVAULT_USAGE_WARNING_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Usage.WarningThresholdPercent = f
		}
	}
	if v := os.Getenv("LOGVAULT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOGVAULT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
