// Package config provides unified configuration loading for alliance.
// Values come from defaults, then a YAML file, then environment variables
// (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/models"
)

// AllianceConfig contains all alliance configuration settings.
type AllianceConfig struct {
	// LLM selects the reasoning backend. An empty provider plays scripted strategies.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Server configures the HTTP surface.
	Server ServerConfig `json:"server" yaml:"server"`

	// Payoff locates the payoff table.
	Payoff PayoffConfig `json:"payoff" yaml:"payoff"`

	// Archive configures the optional sqlite export archive.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Logging contains settings for operational logging and the round trace.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Simulation holds the defaults used by the play command.
	Simulation models.SimulationConfig `json:"simulation" yaml:"simulation"`
}

// LLMConfig configures the reasoning backend.
type LLMConfig struct {
	// Provider is "openai", "anthropic", "gemini", "ollama", or "" for scripted play.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey supports ${VAR} syntax. Not required for ollama.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the endpoint, for ollama or any OpenAI-compatible server.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout bounds a single backend call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RedactedAPIKey returns the API key with most characters masked.
// Shows first 4 and last 4 characters, e.g., "sk-a...xyz9".
// Returns "" for empty keys and "(set)" for keys shorter than 12 chars.
func (c LLMConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer so the key never reaches a log line.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, Model:%s, APIKey:%s, Timeout:%s}",
		c.Provider, c.Model, c.RedactedAPIKey(), c.Timeout)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// RequestTimeout bounds each request, including the backend calls of a round.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// SessionTTL prunes finished simulations idle this long. Zero disables pruning.
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl"`

	// RateLimit enables per-simulation and per-client limits.
	RateLimit bool `json:"rate_limit" yaml:"rate_limit"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PayoffConfig locates the payoff table.
type PayoffConfig struct {
	// Path is a .xlsx, .yaml or .json table. Empty searches the usual locations
	// and falls back to the built-in table.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ArchiveConfig configures the export archive.
type ArchiveConfig struct {
	// Path is the sqlite database file. Empty disables archiving.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "error", "warn", "info" (default), "debug", or "trace".
	// "debug" enables the round trace in DataDir/rounds.jsonl; "trace" adds
	// full reasoning text.
	Level string `json:"level" yaml:"level"`

	// DataDir holds the round trace.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
}

// Default returns an AllianceConfig with sensible defaults.
func Default() *AllianceConfig {
	return &AllianceConfig{
		LLM: LLMConfig{
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			RequestTimeout: 3 * time.Minute,
			SessionTTL:     0,
			RateLimit:      true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			DataDir: defaultDataDir(),
		},
		Simulation: models.SimulationConfig{
			NumRounds:       10,
			InformationMode: models.ModeAsymmetric,
			AMStrategy:      models.StrategyCooperative,
			MCStrategy:      models.StrategyCompetitive,
		},
	}
}

// Dir returns the per-user configuration directory, ~/.alliance.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alliance"
	}
	return filepath.Join(home, ".alliance")
}

func defaultDataDir() string {
	return Dir()
}

// DefaultPath returns ~/.alliance/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load builds the configuration.
// Order: defaults -> path (or ~/.alliance/config.yaml when path is empty) -> environment.
// A missing default file is not an error; a missing explicit path is.
func Load(path string) (*AllianceConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	config := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil || explicit {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the defaults.
func LoadFromFile(path string) (*AllianceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.LLM.APIKey = expandEnvVars(config.LLM.APIKey)
	return config, nil
}

var validProviders = map[string]bool{"": true, "openai": true, "anthropic": true, "gemini": true, "ollama": true}

// Validate checks that the configuration is valid.
func (c *AllianceConfig) Validate() error {
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid provider: %s (valid: openai, anthropic, gemini, ollama, or empty for scripted)", c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must be non-negative, got %v", c.LLM.Timeout)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 || c.Server.SessionTTL < 0 {
		return fmt.Errorf("server durations must be non-negative")
	}
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace)", c.Logging.Level)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation defaults: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *AllianceConfig) {
	if v := os.Getenv("ALLIANCE_PROVIDER"); v != "" {
		config.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ALLIANCE_MODEL"); v != "" {
		config.LLM.Model = v
	}

	// Provider keys only apply to their own provider.
	keyVars := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	if name, ok := keyVars[config.LLM.Provider]; ok {
		if v := os.Getenv(name); v != "" {
			config.LLM.APIKey = v
		}
	}

	if config.LLM.Provider == "ollama" {
		if v := os.Getenv("OLLAMA_HOST"); v != "" {
			config.LLM.BaseURL = v
		}
	}

	if v := os.Getenv("ALLIANCE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ALLIANCE_DATA_DIR"); v != "" {
		config.Logging.DataDir = v
	}
	if v := os.Getenv("PAYOFF_MATRIX_PATH"); v != "" {
		config.Payoff.Path = v
	}
	if v := os.Getenv("ALLIANCE_ARCHIVE"); v != "" {
		config.Archive.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Server.Port = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
