package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("MVS_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("MVS_HOME", "/custom/mvs")

		p, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths() error = %v", err)
		}

		if p.ConfigPath != "/custom/config.toml" {
			t.Errorf("ConfigPath = %q, want %q", p.ConfigPath, "/custom/config.toml")
		}
		if p.BaseDir != "/custom/mvs" {
			t.Errorf("BaseDir = %q, want %q", p.BaseDir, "/custom/mvs")
		}
		if p.LogDir != "/custom/mvs/log" {
			t.Errorf("LogDir = %q, want %q", p.LogDir, "/custom/mvs/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("MVS_CONFIG_PATH", "")
		t.Setenv("MVS_HOME", "")

		p, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		if want := filepath.Join(homeDir, ".config", "mvs.toml"); p.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", p.ConfigPath, want)
		}
		wantBase := filepath.Join(homeDir, ".local", "share", "mvs")
		if p.BaseDir != wantBase {
			t.Errorf("BaseDir = %q, want %q", p.BaseDir, wantBase)
		}
		if want := filepath.Join(wantBase, "log"); p.LogDir != want {
			t.Errorf("LogDir = %q, want %q", p.LogDir, want)
		}
	})

	t.Run("mixed override", func(t *testing.T) {
		t.Setenv("MVS_CONFIG_PATH", "/etc/mvs.toml")
		t.Setenv("MVS_HOME", "")

		p, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths() error = %v", err)
		}

		if p.ConfigPath != "/etc/mvs.toml" {
			t.Errorf("ConfigPath = %q, want %q", p.ConfigPath, "/etc/mvs.toml")
		}
		homeDir, _ := os.UserHomeDir()
		if want := filepath.Join(homeDir, ".local", "share", "mvs"); p.BaseDir != want {
			t.Errorf("BaseDir = %q, want %q", p.BaseDir, want)
		}
	})
}
