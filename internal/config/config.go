package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration is wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Config defines application configuration.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Index    IndexConfig    `yaml:"index"`
	Log      LogConfig      `yaml:"log"`
	Project  ProjectConfig  `yaml:"project"`
	Analysis AnalysisConfig `yaml:"analysis"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// RemoteConfig describes the corpus server connection.
type RemoteConfig struct {
	Protocol         string        `yaml:"protocol"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	APIKey           string        `yaml:"api_key"`
	Timeout          time.Duration `yaml:"timeout"`
	DownloadAttempts int           `yaml:"download_attempts"`
}

type IndexConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// ProjectConfig lists the file categories a project folder is partitioned into.
type ProjectConfig struct {
	Categories        []string `yaml:"categories"`
	ContentCategories []string `yaml:"content_categories"`
	ContentExtensions []string `yaml:"content_extensions"`
}

type AnalysisConfig struct {
	Image  string `yaml:"image"`
	Docker string `yaml:"docker"`
}

// MCPConfig holds the HTTP transport settings of the MCP server. Stdio mode
// ignores them.
type MCPConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Protocol:         "http",
			Host:             "localhost",
			Port:             8000,
			Timeout:          5 * time.Minute,
			DownloadAttempts: 3,
		},
		Index: IndexConfig{
			Path: filepath.Join(xdg.DataHome, "cinder", "index.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Project: ProjectConfig{
			Categories: []string{
				"unprocessed",
				"searched",
				"differential_analysis",
				"sample_annotation",
				"other_files",
				"comparison_matrix",
			},
			ContentCategories: []string{"unprocessed", "differential_analysis"},
			ContentExtensions: []string{".tsv", ".txt", ".csv"},
		},
		Analysis: AnalysisConfig{
			Image:  "noatgnu/coral:0.0.1",
			Docker: "docker",
		},
		MCP: MCPConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// DefaultPath returns the location of the user's config file.
func DefaultPath() string {
	if path := os.Getenv("CINDER_CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(xdg.ConfigHome, "cinder", "config.yaml")
}

// Load reads configuration from an optional .env file, an optional YAML file
// and environment variables, in that order of increasing precedence.
func Load() (Config, error) {
	// Variables already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	path := DefaultPath()
	if err := loadFromFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if protocol := os.Getenv("CINDER_REMOTE_PROTOCOL"); protocol != "" {
		cfg.Remote.Protocol = protocol
	}
	if host := os.Getenv("CINDER_REMOTE_HOST"); host != "" {
		cfg.Remote.Host = host
	}
	if portStr := os.Getenv("CINDER_REMOTE_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return &ConfigurationError{Field: "CINDER_REMOTE_PORT", Reason: err.Error()}
		}
		cfg.Remote.Port = port
	}
	if key := os.Getenv("CINDER_API_KEY"); key != "" {
		cfg.Remote.APIKey = key
	}
	if dbPath := os.Getenv("CINDER_INDEX_PATH"); dbPath != "" {
		cfg.Index.Path = dbPath
	}
	if level := os.Getenv("CINDER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("CINDER_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if token := os.Getenv("CINDER_MCP_TOKEN"); token != "" {
		cfg.MCP.Token = token
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigurationError{Field: path, Reason: err.Error()}
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks settings that would otherwise fail far from their source.
func (c Config) Validate() error {
	switch c.Remote.Protocol {
	case "http", "https":
	default:
		return &ConfigurationError{Field: "remote.protocol", Reason: fmt.Sprintf("unsupported protocol %q", c.Remote.Protocol)}
	}
	if strings.TrimSpace(c.Remote.Host) == "" {
		return &ConfigurationError{Field: "remote.host", Reason: "must not be empty"}
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return &ConfigurationError{Field: "remote.port", Reason: fmt.Sprintf("out of range: %d", c.Remote.Port)}
	}
	if len(c.Project.Categories) == 0 {
		return &ConfigurationError{Field: "project.categories", Reason: "at least one category is required"}
	}
	seen := make(map[string]struct{}, len(c.Project.Categories))
	for _, cat := range c.Project.Categories {
		if strings.TrimSpace(cat) == "" || strings.ContainsAny(cat, `/\`) || cat == "." || cat == ".." {
			return &ConfigurationError{Field: "project.categories", Reason: fmt.Sprintf("invalid category %q", cat)}
		}
		if _, dup := seen[cat]; dup {
			return &ConfigurationError{Field: "project.categories", Reason: fmt.Sprintf("duplicate category %q", cat)}
		}
		seen[cat] = struct{}{}
	}
	for _, cat := range c.Project.ContentCategories {
		if _, ok := seen[cat]; !ok {
			return &ConfigurationError{Field: "project.content_categories", Reason: fmt.Sprintf("unknown category %q", cat)}
		}
	}
	return nil
}

// RequireAPIKey fails when no API key is configured. The sync path never
// falls back to an anonymous request.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Remote.APIKey) == "" {
		return &ConfigurationError{Field: "remote.api_key", Reason: "an API key is required for remote operations"}
	}
	return nil
}

// RequireMCPToken fails when the HTTP transport would run unauthenticated.
func (c Config) RequireMCPToken() error {
	if strings.TrimSpace(c.MCP.Token) == "" {
		return &ConfigurationError{Field: "mcp.token", Reason: "a token is required to serve MCP over HTTP"}
	}
	return nil
}

// BaseURL returns the corpus server root, e.g. http://localhost:8000.
func (r RemoteConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", r.Protocol, r.Host, r.Port)
}
