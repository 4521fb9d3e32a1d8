package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("CINDER_CONFIG_PATH", filepath.Join(dir, "config.yaml"))
	for _, key := range []string{
		"CINDER_REMOTE_PROTOCOL", "CINDER_REMOTE_HOST", "CINDER_REMOTE_PORT",
		"CINDER_API_KEY", "CINDER_INDEX_PATH", "CINDER_LOG_LEVEL", "CINDER_LOG_PATH", "CINDER_MCP_TOKEN",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", cfg.Remote.BaseURL())
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 3, cfg.Remote.DownloadAttempts)
	require.Contains(t, cfg.Project.Categories, "unprocessed")
	require.Contains(t, cfg.Project.Categories, "comparison_matrix")
	require.Equal(t, []string{"unprocessed", "differential_analysis"}, cfg.Project.ContentCategories)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)

	yamlBody := `
remote:
  protocol: https
  host: corpus.example.org
  port: 443
  timeout: 30s
project:
  categories: [unprocessed, sample_annotation]
  content_categories: [unprocessed]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlBody), 0o600))
	t.Setenv("CINDER_REMOTE_PORT", "8443")
	t.Setenv("CINDER_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://corpus.example.org:8443", cfg.Remote.BaseURL())
	require.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	require.Equal(t, "secret", cfg.Remote.APIKey)
	require.Equal(t, []string{"unprocessed", "sample_annotation"}, cfg.Project.Categories)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("CINDER_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CINDER_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CINDER_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Remote.APIKey)
}

func TestLoad_InvalidPort(t *testing.T) {
	isolate(t)
	t.Setenv("CINDER_REMOTE_PORT", "eighty")

	_, err := Load()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"protocol", func(c *Config) { c.Remote.Protocol = "ftp" }, "remote.protocol"},
		{"port", func(c *Config) { c.Remote.Port = 0 }, "remote.port"},
		{"no categories", func(c *Config) { c.Project.Categories = nil }, "project.categories"},
		{"duplicate", func(c *Config) { c.Project.Categories = []string{"a", "a"} }, "project.categories"},
		{"separator", func(c *Config) { c.Project.Categories = []string{"a/b"} }, "project.categories"},
		{"unknown content category", func(c *Config) { c.Project.ContentCategories = []string{"nope"} }, "project.content_categories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, cfg.RequireAPIKey(), ErrConfiguration)

	cfg.Remote.APIKey = "k"
	require.NoError(t, cfg.RequireAPIKey())
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.Remote.Host = "saved.example.org"
	require.NoError(t, Save(path, cfg))

	t.Setenv("CINDER_CONFIG_PATH", path)
	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, "saved.example.org", loaded.Remote.Host)
	require.Equal(t, cfg.Remote.Timeout, loaded.Remote.Timeout)
}

func TestRequireMCPToken(t *testing.T) {
	isolate(t)
	t.Setenv("CINDER_MCP_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8765", cfg.MCP.Addr)
	require.ErrorIs(t, cfg.RequireMCPToken(), ErrConfiguration)

	t.Setenv("CINDER_MCP_TOKEN", "tok")
	cfg, err = Load()
	require.NoError(t, err)
	require.NoError(t, cfg.RequireMCPToken())
}
