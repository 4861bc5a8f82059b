package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultDecayAfterTicks is stamped onto non-canonical snapshot entries that
// arrive without a decay policy. It corresponds to 24 simulated hours at
// 20 ticks per second; callers running at other tick rates should tune
// [decay].default_after_ticks.
const DefaultDecayAfterTicks int64 = 1_728_000

// Config is the main configuration for the mvs store.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Vault      VaultConfig      `toml:"vault"`
	Database   DatabaseConfig   `toml:"database"`
	Encryption EncryptionConfig `toml:"encryption"`
	Server     ServerConfig     `toml:"server"`
	Decay      DecayConfig      `toml:"decay"`
}

// VaultConfig configures the blob vault backend.
// Tagged union: Type selects which other fields apply.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"
	Name string `toml:"name"`

	// Filesystem-specific (Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific (Type == "s3"). When the static credential fields are
	// empty the SDK's default credential chain is used.
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// DatabaseConfig configures the metadata database.
// Tagged union: Type selects which other fields apply.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig configures optional at-rest encryption of blob frames.
type EncryptionConfig struct {
	Type          string `toml:"type"` // "none" (default), "age", or "test"
	RecipientPath string `toml:"recipient_path,omitempty"`
	IdentityPath  string `toml:"identity_path,omitempty"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// DecayConfig configures the default decay threshold stamped onto entries
// appended without an explicit policy.
type DecayConfig struct {
	DefaultAfterTicks int64 `toml:"default_after_ticks"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Vault: VaultConfig{
			Type: "filesystem",
			Name: "local",
			Root: filepath.Join(baseDir, "vault"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:          "none",
			RecipientPath: filepath.Join(baseDir, "keys", "mvs.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "mvs.key"),
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:7313",
		},
		Decay: DecayConfig{
			DefaultAfterTicks: DefaultDecayAfterTicks,
		},
	}
}

// DefaultAfterTicks returns the configured default decay threshold, falling
// back to DefaultDecayAfterTicks when unset or non-positive.
func (c *Config) DefaultAfterTicks() int64 {
	if c.Decay.DefaultAfterTicks > 0 {
		return c.Decay.DefaultAfterTicks
	}
	return DefaultDecayAfterTicks
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path. It refuses to
// overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
