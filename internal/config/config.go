// Package config loads the service configuration.
//
// Sources, later ones overriding earlier ones:
//  1. Defaults (Default)
//  2. Optional YAML file (--config)
//  3. Unprefixed variables the service has always read: DATABASE_URL, ELASTICSEARCH_URL,
//     REDIS_ADDR, JWT_SECRET, PORT
//  4. SNIPPETS_SECTION_KEY variables, e.g. SNIPPETS_RECONCILE_MAXBACKOFF=10m → reconcile.maxbackoff
//
// A .env file in the working directory is loaded into the process environment first, without
// overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "SNIPPETS_"

type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Elastic   ElasticConfig   `koanf:"elastic"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
}

type HTTPConfig struct {
	Addr     string        `koanf:"addr"`
	Timeout  time.Duration `koanf:"timeout"`  // per-request
	Shutdown time.Duration `koanf:"shutdown"` // grace period for in-flight requests
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

type DatabaseConfig struct {
	Driver    string        `koanf:"driver"` // postgres or sqlite
	URL       string        `koanf:"url"`    // DSN for postgres, file path for sqlite
	Retries   int           `koanf:"retries"`
	RetryWait time.Duration `koanf:"retrywait"`
}

type ElasticConfig struct {
	Addresses []string `koanf:"addresses"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`
	Index     string   `koanf:"index"`
	Retries   int      `koanf:"retries"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

type ReconcileConfig struct {
	Interval   time.Duration `koanf:"interval"`
	Batch      int           `koanf:"batch"`
	Attempts   int           `koanf:"attempts"`
	Backoff    time.Duration `koanf:"backoff"`
	MaxBackoff time.Duration `koanf:"maxbackoff"`
	Lease      time.Duration `koanf:"lease"`
	Rate       float64       `koanf:"rate"` // index calls per second, 0 = unlimited
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:     ":3000",
			Timeout:  30 * time.Second,
			Shutdown: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Driver:    "sqlite",
			URL:       "data/snippets.db",
			Retries:   5,
			RetryWait: 2 * time.Second,
		},
		Elastic: ElasticConfig{
			Addresses: []string{"http://localhost:9200"},
			Index:     "snippets_index",
			Retries:   3,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "snippets:reconcile",
		},
		JWT: JWTConfig{TTL: time.Hour},
		Reconcile: ReconcileConfig{
			Interval:   30 * time.Second,
			Batch:      50,
			Attempts:   10,
			Backoff:    5 * time.Second,
			MaxBackoff: 30 * time.Minute,
			Lease:      2 * time.Minute,
			Rate:       20,
		},
	}
}

// legacyEnv maps the unprefixed variable names onto config keys.
func legacyEnv(key, value string) (string, any) {
	switch key {
	case "DATABASE_URL":
		return "database.url", value
	case "ELASTICSEARCH_URL":
		return "elastic.addresses", splitList(value)
	case "REDIS_ADDR":
		return "redis.addr", value
	case "JWT_SECRET":
		return "jwt.secret", value
	case "PORT":
		return "http.addr", ":" + value
	}
	return "", nil
}

// prefixedEnv turns SNIPPETS_RECONCILE_MAXBACKOFF into reconcile.maxbackoff.
func prefixedEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
	if key == "elastic.addresses" {
		return key, splitList(value)
	}
	return key, value
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// redactURL drops the userinfo so passwords stay out of error messages.
func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// Load reads configuration from all sources. path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnv), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnv), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	// DATABASE_URL on its own names a Postgres server.
	if !k.Exists("database.driver") && isPostgresURL(k.String("database.url")) {
		if err := k.Set("database.driver", "postgres"); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Database.Driver == "sqlite" && strings.Contains(c.Database.URL, "://") {
		errs = append(errs, fmt.Errorf("database.url %q is a server URL, not a sqlite file path", redactURL(c.Database.URL)))
	}
	if len(c.Elastic.Addresses) == 0 {
		errs = append(errs, errors.New("elastic.addresses is required"))
	}
	if c.Elastic.Index == "" {
		errs = append(errs, errors.New("elastic.index is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt.ttl must be positive"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Reconcile.Attempts < 1 {
		errs = append(errs, errors.New("reconcile.attempts must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
