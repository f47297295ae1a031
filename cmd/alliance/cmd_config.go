package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/alliance/internal/config"
	"github.com/nvandessel/alliance/internal/models"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage alliance configuration",
		Long: `View and modify alliance configuration settings.

Configuration is stored in ~/.alliance/config.yaml (or the file named by
--config). Environment variables and .env override the file at load time.

Examples:
  alliance config list                          # Show all settings
  alliance config get llm.provider              # Get a specific setting
  alliance config set llm.provider anthropic    # Set a setting
  alliance config set llm.api_key '${ANTHROPIC_API_KEY}'
  alliance config path                          # Show the config file location`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				// Redact API key before JSON serialization to prevent leakage
				redacted := *cfg
				redacted.LLM.APIKey = cfg.LLM.RedactedAPIKey()
				return json.NewEncoder(out).Encode(redacted)
			}

			fmt.Fprintf(out, "Configuration (%s):\n", configPath(cmd))
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-26s %s\n", key+":", valueOrDefault(fmt.Sprint(value), "(not set)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key, value := args[0], args[1]
			path := configPath(cmd)

			// Start from the file alone so environment overrides are not persisted.
			cfg, err := readConfigFile(path)
			if err != nil {
				return err
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := saveConfig(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"path":   path,
				})
			}
			fmt.Fprintf(out, "Set %s in %s\n", key, path)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Run: func(cmd *cobra.Command, args []string) {
			path := configPath(cmd)
			_, err := os.Stat(path)
			exists := err == nil

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"path":   path,
					"exists": exists,
				})
				return
			}
			if exists {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (not created)\n", path)
			}
		},
	}
}

// configPath is --config when set, else ~/.alliance/config.yaml.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.DefaultPath()
}

// readConfigFile reads path without applying environment overrides. The API
// key is kept unexpanded so a ${VAR} reference survives a rewrite.
func readConfigFile(path string) (*config.AllianceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := config.Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"llm.provider",
	"llm.api_key",
	"llm.base_url",
	"llm.model",
	"llm.timeout",
	"server.host",
	"server.port",
	"server.request_timeout",
	"server.session_ttl",
	"server.rate_limit",
	"payoff.path",
	"archive.path",
	"logging.level",
	"logging.data_dir",
	"simulation.num_rounds",
	"simulation.information_mode",
	"simulation.am_strategy",
	"simulation.mc_strategy",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.AllianceConfig, key string) (any, bool) {
	switch key {
	case "llm.provider":
		return cfg.LLM.Provider, true
	case "llm.api_key":
		return cfg.LLM.RedactedAPIKey(), true
	case "llm.base_url":
		return cfg.LLM.BaseURL, true
	case "llm.model":
		return cfg.LLM.Model, true
	case "llm.timeout":
		return cfg.LLM.Timeout.String(), true
	case "server.host":
		return cfg.Server.Host, true
	case "server.port":
		return cfg.Server.Port, true
	case "server.request_timeout":
		return cfg.Server.RequestTimeout.String(), true
	case "server.session_ttl":
		return cfg.Server.SessionTTL.String(), true
	case "server.rate_limit":
		return cfg.Server.RateLimit, true
	case "payoff.path":
		return cfg.Payoff.Path, true
	case "archive.path":
		return cfg.Archive.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.data_dir":
		return cfg.Logging.DataDir, true
	case "simulation.num_rounds":
		return cfg.Simulation.NumRounds, true
	case "simulation.information_mode":
		return string(cfg.Simulation.InformationMode), true
	case "simulation.am_strategy":
		return string(cfg.Simulation.AMStrategy), true
	case "simulation.mc_strategy":
		return string(cfg.Simulation.MCStrategy), true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.AllianceConfig, key, value string) error {
	var err error
	switch key {
	case "llm.provider":
		cfg.LLM.Provider = strings.ToLower(value)
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.timeout":
		cfg.LLM.Timeout, err = parseDuration(value)
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		cfg.Server.Port, err = parseInt(value)
	case "server.request_timeout":
		cfg.Server.RequestTimeout, err = parseDuration(value)
	case "server.session_ttl":
		cfg.Server.SessionTTL, err = parseDuration(value)
	case "server.rate_limit":
		cfg.Server.RateLimit = value == "true" || value == "1"
	case "payoff.path":
		cfg.Payoff.Path = value
	case "archive.path":
		cfg.Archive.Path = value
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	case "logging.data_dir":
		cfg.Logging.DataDir = value
	case "simulation.num_rounds":
		cfg.Simulation.NumRounds, err = parseInt(value)
	case "simulation.information_mode":
		cfg.Simulation.InformationMode = models.InformationMode(strings.ToLower(value))
	case "simulation.am_strategy":
		cfg.Simulation.AMStrategy = models.Strategy(strings.ToLower(value))
	case "simulation.mc_strategy":
		cfg.Simulation.MCStrategy = models.Strategy(strings.ToLower(value))
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", value)
	}
	return d, nil
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", value)
	}
	return n, nil
}

// saveConfig writes cfg as YAML to path.
func saveConfig(path string, cfg *config.AllianceConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
