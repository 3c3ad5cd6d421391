package config

import (
	"errors"
	"fmt"
	"strings"

	"cloudshelf/internal/checksum"
	"cloudshelf/internal/compress"
	"cloudshelf/internal/crypto"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid config")

// Validate checks every section and reports all problems at once. Each
// message names the offending field.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(c.Provider.Name) == "" {
		add("provider.name", "required")
	}

	if t, err := compress.ParseType(c.Compression.Algorithm); err != nil {
		add("compression.algorithm", "%v", err)
	} else if _, err := compress.New(t, c.Compression.Level); err != nil {
		add("compression.level", "%v", err)
	}

	if c.Encryption.Algorithm != "" {
		if _, err := crypto.ParseAlgorithm(c.Encryption.Algorithm); err != nil {
			add("encryption.algorithm", "%v", err)
		}
		if c.Encryption.Key == "" && c.Encryption.EnvironmentKey == "" {
			add("encryption.key", "key or environment_key required")
		}
	}

	if _, err := checksum.ParseType(c.Checksum.Algorithm); err != nil {
		add("checksum.algorithm", "%v", err)
	}

	if err := validateLogLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		add("metrics.namespace", "required when metrics are enabled")
	}

	if c.Clear.Concurrency < 0 {
		add("clear.concurrency", "must not be negative, got %d", c.Clear.Concurrency)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func validateLogLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown level %q", level)
}
