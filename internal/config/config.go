// Package config loads the tally-replica YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/tally-replica/internal/aggregate"
	"github.com/rcliao/tally-replica/internal/chunker"
	"github.com/rcliao/tally-replica/internal/ingest"
	"github.com/rcliao/tally-replica/internal/store"
)

// Environment overrides.
const (
	EnvDB     = "TALLY_REPLICA_DB"
	EnvListen = "TALLY_REPLICA_LISTEN"
	EnvConfig = "TALLY_REPLICA_CONFIG"
)

// Config holds every tunable of the service and CLI.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// KeyPrefix is prepended to every chunk and metadata key.
	KeyPrefix string `yaml:"key_prefix"`

	// ObjectName names the stored document.
	ObjectName string `yaml:"object_name"`

	// LegacyKey is read when the stored metadata records zero parts. Set to
	// "-" to disable the fallback.
	LegacyKey string `yaml:"legacy_key"`

	// MaxValueSize is the per-value ceiling of the key-value backend, in bytes.
	MaxValueSize int `yaml:"max_value_size"`

	// ChunkSize is the chunk length, in bytes. Must be at least 4 and must
	// not exceed MaxValueSize.
	ChunkSize int `yaml:"chunk_size"`

	// Render is the bucket render mode: header or spreadsheet.
	Render string `yaml:"render"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// BodyLimit caps push request bodies, in bytes.
	BodyLimit int `yaml:"body_limit"`
}

// DefaultPath is ~/.tally-replica/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tally-replica", "config.yaml")
}

// DefaultDBPath is ~/.tally-replica/replica.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tally-replica", "replica.db")
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads the config file at path. A missing file is not an error when
// required is false; defaults are used instead. Environment overrides are
// applied after the file.
func Load(path string, required bool) (*Config, error) {
	var c Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}

	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Listen == "" {
		c.Listen = ":8787"
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tally:"
	}
	if c.ObjectName == "" {
		c.ObjectName = ingest.DefaultObjectName
	}
	if c.LegacyKey == "" {
		c.LegacyKey = store.DefaultLegacyKey
	}
	if c.MaxValueSize == 0 {
		c.MaxValueSize = chunker.DefaultSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = c.MaxValueSize
	}
	if c.Render == "" {
		c.Render = string(aggregate.ModeHeader)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BodyLimit == 0 {
		c.BodyLimit = 64 << 20
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.MaxValueSize < 0 || c.ChunkSize < 0 || c.BodyLimit < 0 {
		return errors.New("sizes must be positive")
	}
	if c.ChunkSize < utf8.UTFMax {
		return fmt.Errorf("chunk_size %d is below %d bytes, the widest UTF-8 sequence", c.ChunkSize, utf8.UTFMax)
	}
	if c.ChunkSize > c.MaxValueSize {
		return fmt.Errorf("chunk_size %d exceeds max_value_size %d", c.ChunkSize, c.MaxValueSize)
	}
	if _, err := aggregate.ParseMode(c.Render); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.ObjectName) == "" {
		return errors.New("object_name must not be blank")
	}
	return nil
}

// Legacy returns the legacy key, or "" when the fallback is disabled.
func (c *Config) Legacy() string {
	if c.LegacyKey == "-" {
		return ""
	}
	return c.LegacyKey
}

// Mode returns the parsed render mode.
func (c *Config) Mode() aggregate.Mode {
	m, _ := aggregate.ParseMode(c.Render)
	return m
}
