package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir picks where the record store lives when no data_dir is
// configured: XDG when set, otherwise the platform's usual application
// data location, with ~/.logvault as the last resort.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		// no resolvable home at all; stay relative
		return "./data"
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "logvault")
	}

	// system-wide Unix location
	if isDir("/var/lib") {
		return "/var/lib/logvault"
	}

	// macOS
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "LogVault")
	}

	// Windows home layout
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "LogVault")
	}

	return filepath.Join(homeDir, ".logvault")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
