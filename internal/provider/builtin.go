package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"

	"cloudshelf/internal/config"
	"cloudshelf/internal/store"
	"cloudshelf/internal/store/bolt"
	"cloudshelf/internal/store/memory"
	"cloudshelf/internal/store/redis"
	"cloudshelf/internal/store/s3"
	"cloudshelf/internal/store/sqlite"
)

const (
	defaultBucket    = "shelf"
	defaultRegion    = "us-east-1"
	defaultRedisAddr = "localhost:6379"
)

func init() {
	Register("memory", newMemory)
	Register("bolt", newBolt)
	Register("sqlite", newSQLite)
	Register("s3", newS3)
	Register("redis", newRedis)
}

func newMemory(_ context.Context, cfg config.ProviderConfig, env Env) (store.Backend, error) {
	if env.Memory == nil {
		return memory.New(), nil
	}
	return memory.Open(env.Memory, cfg.Option("name", "default")), nil
}

func newBolt(_ context.Context, cfg config.ProviderConfig, _ Env) (store.Backend, error) {
	path, err := localPath(cfg)
	if err != nil {
		return nil, err
	}
	return bolt.Open(path, cfg.Option("bucket", defaultBucket))
}

func newSQLite(_ context.Context, cfg config.ProviderConfig, _ Env) (store.Backend, error) {
	path, err := localPath(cfg)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(path, cfg.Option("table", defaultBucket))
}

// localPath returns the expanded path option and makes its directory.
func localPath(cfg config.ProviderConfig) (string, error) {
	path := cfg.Option("path", "")
	if path == "" {
		return "", fmt.Errorf("option path is required")
	}
	path = config.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	return path, nil
}

func newS3(_ context.Context, cfg config.ProviderConfig, _ Env) (store.Backend, error) {
	creds, err := s3Credentials(cfg)
	if err != nil {
		return nil, err
	}
	forcePathStyle, err := boolOption(cfg, "force_path_style", false)
	if err != nil {
		return nil, err
	}
	secure, err := boolOption(cfg, "secure", true)
	if err != nil {
		return nil, err
	}
	return s3.New(s3.Parameters{
		Bucket:         cfg.Option("bucket", ""),
		Prefix:         cfg.Option("prefix", ""),
		Region:         cfg.Option("region", defaultRegion),
		RegionEndpoint: cfg.Option("endpoint", ""),
		ForcePathStyle: forcePathStyle,
		Secure:         secure,
		Credentials:    creds,
	})
}

// s3Credentials resolves auth_type. An empty auth_type leaves the SDK's
// default credential chain in charge.
func s3Credentials(cfg config.ProviderConfig) (*credentials.Credentials, error) {
	switch auth := cfg.Option("auth_type", ""); auth {
	case "":
		return nil, nil
	case "anonymous":
		return credentials.AnonymousCredentials, nil
	case "environment":
		return credentials.NewEnvCredentials(), nil
	case "access_key":
		id, err := envOption(cfg, "access_key_id_env")
		if err != nil {
			return nil, err
		}
		secret, err := envOption(cfg, "secret_access_key_env")
		if err != nil {
			return nil, err
		}
		var token string
		if cfg.Option("session_token_env", "") != "" {
			if token, err = envOption(cfg, "session_token_env"); err != nil {
				return nil, err
			}
		}
		return credentials.NewStaticCredentials(id, secret, token), nil
	default:
		return nil, fmt.Errorf("%w: unsupported auth_type %q", ErrAuth, auth)
	}
}

// envOption returns the value of the environment variable named by option.
func envOption(cfg config.ProviderConfig, option string) (string, error) {
	name := cfg.Option(option, "")
	if name == "" {
		return "", fmt.Errorf("%w: option %s is required", ErrAuth, option)
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: environment variable %s is not defined", ErrAuth, name)
	}
	return v, nil
}

func newRedis(_ context.Context, cfg config.ProviderConfig, _ Env) (store.Backend, error) {
	opts := redis.PoolOptions{Addr: cfg.Option("address", defaultRedisAddr)}

	if cfg.Option("password_env", "") != "" {
		password, err := envOption(cfg, "password_env")
		if err != nil {
			return nil, err
		}
		opts.Password = password
	}

	var err error
	if opts.DB, err = intOption(cfg, "db", 0); err != nil {
		return nil, err
	}
	if opts.MaxIdle, err = intOption(cfg, "max_idle", 8); err != nil {
		return nil, err
	}
	if opts.MaxActive, err = intOption(cfg, "max_active", 0); err != nil {
		return nil, err
	}
	if opts.DialTimeout, err = durationOption(cfg, "dial_timeout", 5*time.Second); err != nil {
		return nil, err
	}
	if opts.ReadTimeout, err = durationOption(cfg, "read_timeout", 5*time.Second); err != nil {
		return nil, err
	}
	if opts.WriteTimeout, err = durationOption(cfg, "write_timeout", 5*time.Second); err != nil {
		return nil, err
	}
	if opts.IdleTimeout, err = durationOption(cfg, "idle_timeout", 5*time.Minute); err != nil {
		return nil, err
	}

	pool := redis.NewPool(opts)
	s, err := redis.New(pool, cfg.Option("namespace", defaultBucket))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func boolOption(cfg config.ProviderConfig, key string, def bool) (bool, error) {
	v := cfg.Option(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("option %s: %w", key, err)
	}
	return b, nil
}

func intOption(cfg config.ProviderConfig, key string, def int) (int, error) {
	v := cfg.Option(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("option %s: must not be negative", key)
	}
	return n, nil
}

func durationOption(cfg config.ProviderConfig, key string, def time.Duration) (time.Duration, error) {
	v := cfg.Option(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return d, nil
}
