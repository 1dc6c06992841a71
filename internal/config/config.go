// Package config provides unified configuration loading for nestsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/nestsim/internal/constants"
	"gopkg.in/yaml.v3"
)

// NestsimConfig contains all nestsim configuration settings.
type NestsimConfig struct {
	// Simulation contains settings shared by every stochastic program.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// SpeedAccuracy overrides the fixed constants of the correlation grids.
	SpeedAccuracy SpeedAccuracyConfig `json:"speed_accuracy" yaml:"speed_accuracy"`

	// Logging contains settings for operational logging and trial traces.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures the SQLite run store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Backup configures run store archives.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig configures trial execution.
type SimulationConfig struct {
	// Trials is the number of accepted trials per sweep point.
	Trials int `json:"trials" yaml:"trials"`

	// LeakRate is the per-capita return rate to the origin nest.
	LeakRate float64 `json:"leak_rate" yaml:"leak_rate"`

	// Seed seeds the random stream. Unset seeds from the wall clock; 0 is
	// an ordinary seed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// RNG selects the generator: "mt19937" (default) or "pcg".
	RNG string `json:"rng" yaml:"rng"`

	// Workers above 1 runs the inner samples of speed-accuracy cells in
	// parallel, giving up reproduction of sequential output.
	Workers int `json:"workers" yaml:"workers"`

	// MaxAttempts caps the trials run per sweep point, degenerate ones
	// included. 0 means no cap.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Quantiles appends time quantiles to every output record.
	Quantiles bool `json:"quantiles" yaml:"quantiles"`
}

// FixedSeed returns the configured seed and whether one is set.
func (s SimulationConfig) FixedSeed() (uint64, bool) {
	if s.Seed == nil {
		return 0, false
	}
	return *s.Seed, true
}

// SpeedAccuracyConfig overrides the built-in grid constants. Zero values
// keep the built-in constant for the selected inner variable.
type SpeedAccuracyConfig struct {
	// Population is the colony size Na.
	Population int `json:"population" yaml:"population"`

	// AlphaSamples is the number of outer conversion-rate values.
	AlphaSamples int `json:"alpha_samples" yaml:"alpha_samples"`

	// AlphaStep is the spacing of the outer conversion-rate values.
	AlphaStep float64 `json:"alpha_step" yaml:"alpha_step"`

	// AlphaSwitch fixes α_s when it is not the inner variable.
	AlphaSwitch float64 `json:"alpha_s,omitempty" yaml:"alpha_s,omitempty"`

	// Z fixes the initial committed fraction when it is not swept.
	Z float64 `json:"z,omitempty" yaml:"z,omitempty"`

	// High fixes the high-threshold fraction when it is not swept.
	High float64 `json:"h,omitempty" yaml:"h,omitempty"`
}

// LoggingConfig configures nestsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" writes one trace record per trial, "trace" one per event.
	Level string `json:"level" yaml:"level"`

	// TraceDir is the directory receiving trace.jsonl. Empty disables
	// trial tracing.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// StoreConfig configures where runs are recorded.
type StoreConfig struct {
	// Path is the SQLite database file. Supports ${VAR} syntax.
	Path string `json:"path" yaml:"path"`

	// Record saves every simulation run to the store.
	Record bool `json:"record" yaml:"record"`
}

// BackupConfig configures "nestsim runs backup".
type BackupConfig struct {
	// Retention decides which archives in the backup directory survive a
	// new backup. Archives kept by any rule are kept.
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig holds the archive retention rules. Unset rules are off.
type RetentionConfig struct {
	// MaxCount keeps the N newest archives.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps archives younger than this, e.g. "30d" or "2w".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest archives that fit, e.g. "500MB".
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// HomeDir returns the per-user nestsim directory (~/.nestsim).
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return constants.HomeDirName
	}
	return filepath.Join(home, constants.HomeDirName)
}

// Default returns a NestsimConfig with sensible defaults.
func Default() *NestsimConfig {
	return &NestsimConfig{
		Simulation: SimulationConfig{
			Trials:   constants.DefaultTrials,
			LeakRate: constants.DefaultLeakRate,
			RNG:      "mt19937",
			Workers:  1,
		},
		SpeedAccuracy: SpeedAccuracyConfig{
			Population:   constants.DefaultPopulation,
			AlphaSamples: constants.DefaultAlphaSamples,
			AlphaStep:    constants.DefaultAlphaStep,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Path: filepath.Join(HomeDir(), constants.DefaultStoreFile),
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{MaxCount: constants.DefaultBackupMaxCount},
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.nestsim/config.yaml -> environment variables
func Load() (*NestsimConfig, error) {
	config := Default()

	configPath := filepath.Join(HomeDir(), "config.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil {
		fileConfig, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*NestsimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *NestsimConfig) Validate() error {
	if c.Simulation.Trials < 1 {
		return fmt.Errorf("trials must be positive, got %d", c.Simulation.Trials)
	}
	if c.Simulation.LeakRate < 0 {
		return fmt.Errorf("leak_rate must be non-negative, got %g", c.Simulation.LeakRate)
	}
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Simulation.Workers)
	}
	if c.Simulation.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative, got %d", c.Simulation.MaxAttempts)
	}

	validRNG := map[string]bool{"": true, "mt19937": true, "pcg": true}
	if !validRNG[c.Simulation.RNG] {
		return fmt.Errorf("invalid rng: %s (valid: mt19937, pcg)", c.Simulation.RNG)
	}

	sa := c.SpeedAccuracy
	if sa.Population < 1 || sa.AlphaSamples < 1 {
		return fmt.Errorf("speed_accuracy population and alpha_samples must be positive")
	}
	if sa.AlphaStep <= 0 {
		return fmt.Errorf("speed_accuracy alpha_step must be positive, got %g", sa.AlphaStep)
	}
	if sa.Z < 0 || sa.Z > 1 || sa.High < 0 || sa.High > 1 {
		return fmt.Errorf("speed_accuracy z and h must be between 0 and 1")
	}
	if sa.AlphaSwitch < 0 {
		return fmt.Errorf("speed_accuracy alpha_s must be non-negative, got %g", sa.AlphaSwitch)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup.retention.max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}
	if c.Store.Record && c.Store.Path == "" {
		return fmt.Errorf("store.record requires store.path")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *NestsimConfig) {
	if v := os.Getenv("NESTSIM_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Trials = n
		}
	}

	if v := os.Getenv("NESTSIM_LEAK_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.LeakRate = f
		}
	}

	if v := os.Getenv("NESTSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = &n
		}
	}

	if v := os.Getenv("NESTSIM_RNG"); v != "" {
		config.Simulation.RNG = v
	}

	if v := os.Getenv("NESTSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}

	if v := os.Getenv("NESTSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NESTSIM_STORE"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("NESTSIM_RECORD"); v != "" {
		config.Store.Record = v == "true" || v == "1"
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
