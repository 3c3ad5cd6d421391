package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read by Load when no path is given and the file exists.
const DefaultPath = "~/.cloudshelf/config.toml"

type Config struct {
	Provider    ProviderConfig    `toml:"provider" yaml:"provider"`
	Compression CompressionConfig `toml:"compression" yaml:"compression"`
	Encryption  EncryptionConfig  `toml:"encryption" yaml:"encryption"`
	Checksum    ChecksumConfig    `toml:"checksum" yaml:"checksum"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `toml:"metrics" yaml:"metrics"`
	Clear       ClearConfig       `toml:"clear" yaml:"clear"`
}

// ProviderConfig selects the backend. Options are provider-specific.
type ProviderConfig struct {
	Name    string            `toml:"name" yaml:"name"`
	Options map[string]string `toml:"options" yaml:"options"`
}

type CompressionConfig struct {
	Algorithm string `toml:"algorithm" yaml:"algorithm"`
	Level     int    `toml:"level" yaml:"level"`
}

// EncryptionConfig enables value encryption when Algorithm is set. The key
// is Key, or the value of the environment variable EnvironmentKey.
type EncryptionConfig struct {
	Algorithm      string `toml:"algorithm" yaml:"algorithm"`
	Key            string `toml:"key" yaml:"key"`
	EnvironmentKey string `toml:"environment_key" yaml:"environment_key"`
}

type ChecksumConfig struct {
	Algorithm string `toml:"algorithm" yaml:"algorithm"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	// TraceValues adds a transform logging every value's size at debug.
	TraceValues bool `toml:"trace_values" yaml:"trace_values"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

type ClearConfig struct {
	// Concurrency bounds concurrent deletes when clearing; 0 is the default.
	Concurrency int `toml:"concurrency" yaml:"concurrency"`
}

// Option returns the provider option key, or def when unset.
func (p ProviderConfig) Option(key, def string) string {
	if v, ok := p.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Defaults returns a Config with sane defaults: a local bbolt file.
func Defaults() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "bolt",
			Options: map[string]string{
				"path":   "~/.cloudshelf/shelf.db",
				"bucket": "shelf",
			},
		},
		Compression: CompressionConfig{Algorithm: "none"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Namespace: "cloudshelf"},
	}
}

// IsConfigFile reports whether path names a file Load can parse.
func IsConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a TOML or YAML (by extension) config file and returns the
// parsed Config. If path is empty, the default location is tried and
// defaults are returned when it does not exist. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome(DefaultPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Provider options replace the defaults rather than merging with them.
	cfg.Provider.Options = nil

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("parsing config: unknown keys %s", strings.Join(keys, ", "))
		}
	}

	if cfg.Provider.Options == nil && cfg.Provider.Name == Defaults().Provider.Name {
		cfg.Provider.Options = Defaults().Provider.Options
	}
	return cfg, nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
