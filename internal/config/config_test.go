package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithRequiredSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "snippets_index", cfg.Elastic.Index)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elastic.Addresses)
	assert.Equal(t, 10, cfg.Reconcile.Attempts)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/snippets?sslmode=disable")
	t.Setenv("ELASTICSEARCH_URL", "http://es1:9200, http://es2:9200")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("PORT", "8080")
	t.Setenv("SNIPPETS_DATABASE_DRIVER", "postgres")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/snippets?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elastic.Addresses)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	for _, dsn := range []string{
		"postgres://u:p@db:5432/snippets?sslmode=disable",
		"postgresql://u:p@db:5432/snippets",
	} {
		t.Run(dsn, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "legacy")
			t.Setenv("DATABASE_URL", dsn)

			cfg, err := Load("")

			require.NoError(t, err)
			assert.Equal(t, "postgres", cfg.Database.Driver)
			assert.Equal(t, dsn, cfg.Database.URL)
		})
	}
}

func TestLoad_DatabaseFilePathStaysSqlite(t *testing.T) {
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("DATABASE_URL", "data/local.db")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/local.db", cfg.Database.URL)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("SNIPPETS_JWT_SECRET", "namespaced")
	t.Setenv("SNIPPETS_RECONCILE_MAXBACKOFF", "10m")
	t.Setenv("SNIPPETS_RECONCILE_RATE", "2.5")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "namespaced", cfg.JWT.Secret)
	assert.Equal(t, 10*time.Minute, cfg.Reconcile.MaxBackoff)
	assert.Equal(t, 2.5, cfg.Reconcile.Rate)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippetd.yaml")
	content := `
http:
  addr: ":9000"
log:
  level: debug
  format: json
jwt:
  secret: from-file
  ttl: 15m
reconcile:
  batch: 5
  lease: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, 5, cfg.Reconcile.Batch)
	assert.Equal(t, time.Minute, cfg.Reconcile.Lease)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/snippetd.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "jwt.secret is required"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "sqlite with server url", mutate: func(c *Config) { c.Database.URL = "postgres://u:secret@db/snippets" }, wantErr: "not a sqlite file path"},
		{name: "no elastic", mutate: func(c *Config) { c.Elastic.Addresses = nil }, wantErr: "elastic.addresses is required"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.Secret = "s"
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Redis.Addr = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
	assert.Contains(t, err.Error(), "redis.addr is required")
}
