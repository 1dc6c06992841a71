package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/nestsim/internal/backup"
	"github.com/nvandessel/nestsim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nestsim configuration",
		Long: `View and modify nestsim configuration settings.

Configuration is stored in ~/.nestsim/config.yaml.

Examples:
  nestsim config list                          # Show all settings
  nestsim config get simulation.trials         # Get a specific setting
  nestsim config set simulation.rng pcg        # Set a setting
  nestsim config set store.record true`,
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

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  exactArgs(1, "nestsim config get <key>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return &usageError{msg: fmt.Sprintf("unknown configuration key: %s", key)}
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  exactArgs(2, "nestsim config set <key> <value>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			// Flags are not applied here so they are never persisted.
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return &usageError{msg: err.Error()}
			}
			if err := cfg.Validate(); err != nil {
				return &usageError{msg: err.Error()}
			}

			path, err := saveConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
			return nil
		},
	}
}

func configPath() string {
	return filepath.Join(config.HomeDir(), "config.yaml")
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.NestsimConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.trials":
		return cfg.Simulation.Trials, true
	case "simulation.leak_rate":
		return cfg.Simulation.LeakRate, true
	case "simulation.seed":
		if seed, ok := cfg.Simulation.FixedSeed(); ok {
			return seed, true
		}
		return "", true
	case "simulation.rng":
		return cfg.Simulation.RNG, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.max_attempts":
		return cfg.Simulation.MaxAttempts, true
	case "simulation.quantiles":
		return cfg.Simulation.Quantiles, true
	case "speed_accuracy.population":
		return cfg.SpeedAccuracy.Population, true
	case "speed_accuracy.alpha_samples":
		return cfg.SpeedAccuracy.AlphaSamples, true
	case "speed_accuracy.alpha_step":
		return cfg.SpeedAccuracy.AlphaStep, true
	case "speed_accuracy.alpha_s":
		return cfg.SpeedAccuracy.AlphaSwitch, true
	case "speed_accuracy.z":
		return cfg.SpeedAccuracy.Z, true
	case "speed_accuracy.h":
		return cfg.SpeedAccuracy.High, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.trace_dir":
		return cfg.Logging.TraceDir, true
	case "store.path":
		return cfg.Store.Path, true
	case "store.record":
		return cfg.Store.Record, true
	case "backup.retention.max_count":
		return cfg.Backup.Retention.MaxCount, true
	case "backup.retention.max_age":
		return cfg.Backup.Retention.MaxAge, true
	case "backup.retention.max_total_size":
		return cfg.Backup.Retention.MaxTotalSize, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.NestsimConfig, key, value string) error {
	var err error
	switch key {
	case "simulation.trials":
		cfg.Simulation.Trials, err = strconv.Atoi(value)
	case "simulation.leak_rate":
		cfg.Simulation.LeakRate, err = strconv.ParseFloat(value, 64)
	case "simulation.seed":
		if value == "" {
			cfg.Simulation.Seed = nil
			break
		}
		var seed uint64
		seed, err = strconv.ParseUint(value, 10, 64)
		cfg.Simulation.Seed = &seed
	case "simulation.rng":
		cfg.Simulation.RNG = value
	case "simulation.workers":
		cfg.Simulation.Workers, err = strconv.Atoi(value)
	case "simulation.max_attempts":
		cfg.Simulation.MaxAttempts, err = strconv.Atoi(value)
	case "simulation.quantiles":
		cfg.Simulation.Quantiles = value == "true" || value == "1"
	case "speed_accuracy.population":
		cfg.SpeedAccuracy.Population, err = strconv.Atoi(value)
	case "speed_accuracy.alpha_samples":
		cfg.SpeedAccuracy.AlphaSamples, err = strconv.Atoi(value)
	case "speed_accuracy.alpha_step":
		cfg.SpeedAccuracy.AlphaStep, err = strconv.ParseFloat(value, 64)
	case "speed_accuracy.alpha_s":
		cfg.SpeedAccuracy.AlphaSwitch, err = strconv.ParseFloat(value, 64)
	case "speed_accuracy.z":
		cfg.SpeedAccuracy.Z, err = strconv.ParseFloat(value, 64)
	case "speed_accuracy.h":
		cfg.SpeedAccuracy.High, err = strconv.ParseFloat(value, 64)
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.trace_dir":
		cfg.Logging.TraceDir = value
	case "store.path":
		cfg.Store.Path = value
	case "store.record":
		cfg.Store.Record = value == "true" || value == "1"
	case "backup.retention.max_count":
		cfg.Backup.Retention.MaxCount, err = strconv.Atoi(value)
	case "backup.retention.max_age":
		if value != "" {
			_, err = backup.ParseDuration(value)
		}
		cfg.Backup.Retention.MaxAge = value
	case "backup.retention.max_total_size":
		if value != "" {
			_, err = backup.ParseSize(value)
		}
		cfg.Backup.Retention.MaxTotalSize = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %s", key, value)
	}
	return nil
}

// saveConfig writes the configuration to ~/.nestsim/config.yaml and
// returns the path written.
func saveConfig(cfg *config.NestsimConfig) (string, error) {
	dir := config.HomeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
