package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Provider.Name != "bolt" {
		t.Errorf("Provider.Name: got %q, want bolt", cfg.Provider.Name)
	}
	if got := cfg.Provider.Option("bucket", ""); got != "shelf" {
		t.Errorf("bucket option: got %q, want shelf", got)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Namespace != "cloudshelf" {
		t.Errorf("Metrics.Namespace: got %q, want cloudshelf", cfg.Metrics.Namespace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "bolt" {
		t.Errorf("Provider.Name: got %q, want bolt", cfg.Provider.Name)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for a missing explicit path")
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[provider]
name = "s3"

[provider.options]
bucket = "values"
region = "eu-west-1"

[compression]
algorithm = "zstd"
level = 3

[encryption]
algorithm = "aes256"
environment_key = "SHELF_KEY"

[checksum]
algorithm = "xxh3"

[logging]
level = "debug"
format = "json"
trace_values = true

[metrics]
enabled = true

[clear]
concurrency = 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider.Name != "s3" {
		t.Errorf("Provider.Name: got %q", cfg.Provider.Name)
	}
	if got := cfg.Provider.Option("bucket", ""); got != "values" {
		t.Errorf("bucket option: got %q", got)
	}
	if _, ok := cfg.Provider.Options["path"]; ok {
		t.Error("default bolt options should not leak into a loaded provider")
	}
	if cfg.Compression.Algorithm != "zstd" || cfg.Compression.Level != 3 {
		t.Errorf("Compression: got %+v", cfg.Compression)
	}
	if cfg.Encryption.EnvironmentKey != "SHELF_KEY" {
		t.Errorf("Encryption.EnvironmentKey: got %q", cfg.Encryption.EnvironmentKey)
	}
	if cfg.Checksum.Algorithm != "xxh3" {
		t.Errorf("Checksum.Algorithm: got %q", cfg.Checksum.Algorithm)
	}
	if !cfg.Logging.TraceValues || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "cloudshelf" {
		t.Errorf("Metrics: got %+v", cfg.Metrics)
	}
	if cfg.Clear.Concurrency != 8 {
		t.Errorf("Clear.Concurrency: got %d", cfg.Clear.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := writeFile(t, "config"+ext, `
provider:
  name: redis
  options:
    address: "localhost:6379"
    db: 2
compression:
  algorithm: lz4
encryption:
  algorithm: xchacha20
  key: hunter2
`)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Provider.Name != "redis" {
				t.Errorf("Provider.Name: got %q", cfg.Provider.Name)
			}
			if got := cfg.Provider.Option("db", "0"); got != "2" {
				t.Errorf("db option: got %q", got)
			}
			if cfg.Compression.Algorithm != "lz4" {
				t.Errorf("Compression.Algorithm: got %q", cfg.Compression.Algorithm)
			}
			if cfg.Encryption.Key != "hunter2" {
				t.Errorf("Encryption.Key: got %q", cfg.Encryption.Key)
			}
			// Sections absent from the file keep their defaults.
			if cfg.Logging.Level != "info" {
				t.Errorf("Logging.Level: got %q", cfg.Logging.Level)
			}
		})
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "bolt" {
		t.Errorf("Provider.Name: got %q", cfg.Provider.Name)
	}
}

func TestLoadUnknownKeys(t *testing.T) {
	tests := []struct {
		name, file, content, want string
	}{
		{"toml", "c.toml", "[provider]\nname = \"memory\"\nflavour = \"x\"\n", "provider.flavour"},
		{"yaml", "c.yaml", "provider:\n  name: memory\n  flavour: x\n", "flavour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error for unknown key")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q: %v", tt.want, err)
			}
		})
	}
}

func TestLoadBadTOML(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", "{{invalid"))
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "provider: [unterminated"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestIsConfigFile(t *testing.T) {
	tests := map[string]bool{
		"shelf.toml":  true,
		"shelf.YAML":  true,
		"shelf.yml":   true,
		"shelf.db":    false,
		"shelf":       false,
		"toml":        false,
		"dir.toml/db": false,
	}
	for path, want := range tests {
		if got := IsConfigFile(path); got != want {
			t.Errorf("IsConfigFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	got := ExpandHome("~/foo/bar")
	want := filepath.Join(home, "foo/bar")
	if got != want {
		t.Errorf("ExpandHome: got %q, want %q", got, want)
	}

	if got := ExpandHome("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandHome: got %q, want /absolute/path", got)
	}
}
