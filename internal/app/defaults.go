package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem locations the application works from.
// Each location honors its environment override before the XDG fallback.
type Paths struct {
	ConfigPath string // MVS_CONFIG_PATH, else ~/.config/mvs.toml
	BaseDir    string // MVS_HOME, else ~/.local/share/mvs
	LogDir     string // <BaseDir>/log
}

// DefaultPaths resolves the config file and data directory locations.
func DefaultPaths() (Paths, error) {
	var p Paths

	p.ConfigPath = os.Getenv("MVS_CONFIG_PATH")
	p.BaseDir = os.Getenv("MVS_HOME")

	if p.ConfigPath == "" || p.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if p.ConfigPath == "" {
			p.ConfigPath = filepath.Join(home, ".config", "mvs.toml")
		}
		if p.BaseDir == "" {
			p.BaseDir = filepath.Join(home, ".local", "share", "mvs")
		}
	}

	p.LogDir = filepath.Join(p.BaseDir, "log")
	return p, nil
}
