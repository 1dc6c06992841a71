package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Simulation defaults
	if config.Simulation.Trials != 10000 {
		t.Errorf("expected Trials 10000, got %d", config.Simulation.Trials)
	}
	if config.Simulation.LeakRate != 0.05 {
		t.Errorf("expected LeakRate 0.05, got %f", config.Simulation.LeakRate)
	}
	if seed, ok := config.Simulation.FixedSeed(); ok {
		t.Errorf("expected wall-clock seed (unset), got %d", seed)
	}
	if config.Simulation.RNG != "mt19937" {
		t.Errorf("expected RNG 'mt19937', got '%s'", config.Simulation.RNG)
	}
	if config.Simulation.Workers != 1 {
		t.Errorf("expected Workers 1, got %d", config.Simulation.Workers)
	}

	// Speed-accuracy defaults
	if config.SpeedAccuracy.Population != 100 || config.SpeedAccuracy.AlphaSamples != 15 {
		t.Errorf("unexpected speed-accuracy defaults: %+v", config.SpeedAccuracy)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}

	// Store defaults
	if config.Store.Record {
		t.Error("expected Store.Record to be false by default")
	}
	if !strings.HasSuffix(config.Store.Path, filepath.Join(".nestsim", "runs.db")) {
		t.Errorf("expected store under ~/.nestsim, got '%s'", config.Store.Path)
	}

	// Backup defaults
	if config.Backup.Retention.MaxCount != 10 || config.Backup.Retention.MaxAge != "" {
		t.Errorf("unexpected backup retention defaults: %+v", config.Backup.Retention)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
simulation:
  trials: 500
  leak_rate: 0
  seed: 42
  rng: pcg
  workers: 4
  quantiles: true

speed_accuracy:
  alpha_s: 0.01
  z: 0.1

store:
  path: /tmp/runs.db
  record: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Simulation.Trials != 500 {
		t.Errorf("expected Trials 500, got %d", config.Simulation.Trials)
	}
	if config.Simulation.LeakRate != 0 {
		t.Errorf("expected LeakRate 0, got %f", config.Simulation.LeakRate)
	}
	if seed, _ := config.Simulation.FixedSeed(); seed != 42 || config.Simulation.RNG != "pcg" || config.Simulation.Workers != 4 {
		t.Errorf("unexpected simulation config: %+v", config.Simulation)
	}
	if !config.Simulation.Quantiles {
		t.Error("expected Quantiles to be true")
	}
	if config.SpeedAccuracy.AlphaSwitch != 0.01 || config.SpeedAccuracy.Z != 0.1 {
		t.Errorf("unexpected speed-accuracy overrides: %+v", config.SpeedAccuracy)
	}
	// Unset keys keep their defaults.
	if config.SpeedAccuracy.AlphaSamples != 15 {
		t.Errorf("expected AlphaSamples default 15, got %d", config.SpeedAccuracy.AlphaSamples)
	}
	if !config.Store.Record || config.Store.Path != "/tmp/runs.db" {
		t.Errorf("unexpected store config: %+v", config.Store)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
store:
  path: ${TEST_NESTSIM_DIR}/runs.db
logging:
  trace_dir: ${TEST_NESTSIM_DIR}/traces
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_NESTSIM_DIR", "/data/ants")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Store.Path != "/data/ants/runs.db" {
		t.Errorf("expected Store.Path '/data/ants/runs.db', got '%s'", config.Store.Path)
	}
	if config.Logging.TraceDir != "/data/ants/traces" {
		t.Errorf("expected TraceDir '/data/ants/traces', got '%s'", config.Logging.TraceDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NESTSIM_TRIALS", "250")
	t.Setenv("NESTSIM_LEAK_RATE", "0")
	t.Setenv("NESTSIM_SEED", "7")
	t.Setenv("NESTSIM_RNG", "pcg")
	t.Setenv("NESTSIM_WORKERS", "3")
	t.Setenv("NESTSIM_STORE", "/tmp/x.db")
	t.Setenv("NESTSIM_RECORD", "1")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.Trials != 250 {
		t.Errorf("expected Trials 250, got %d", config.Simulation.Trials)
	}
	if config.Simulation.LeakRate != 0 {
		t.Errorf("expected LeakRate 0, got %f", config.Simulation.LeakRate)
	}
	if seed, _ := config.Simulation.FixedSeed(); seed != 7 || config.Simulation.RNG != "pcg" || config.Simulation.Workers != 3 {
		t.Errorf("unexpected simulation config: %+v", config.Simulation)
	}
	if config.Store.Path != "/tmp/x.db" || !config.Store.Record {
		t.Errorf("unexpected store config: %+v", config.Store)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("NESTSIM_TRIALS", "many")
	t.Setenv("NESTSIM_LEAK_RATE", "fast")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.Trials != 10000 || config.Simulation.LeakRate != 0.05 {
		t.Errorf("malformed env values changed config: %+v", config.Simulation)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	t.Setenv("NESTSIM_LOG_LEVEL", "debug")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NestsimConfig)
	}{
		{"zero trials", func(c *NestsimConfig) { c.Simulation.Trials = 0 }},
		{"negative leak", func(c *NestsimConfig) { c.Simulation.LeakRate = -0.1 }},
		{"zero workers", func(c *NestsimConfig) { c.Simulation.Workers = 0 }},
		{"negative attempts", func(c *NestsimConfig) { c.Simulation.MaxAttempts = -1 }},
		{"unknown rng", func(c *NestsimConfig) { c.Simulation.RNG = "lcg" }},
		{"zero alpha step", func(c *NestsimConfig) { c.SpeedAccuracy.AlphaStep = 0 }},
		{"z above one", func(c *NestsimConfig) { c.SpeedAccuracy.Z = 1.5 }},
		{"record without path", func(c *NestsimConfig) { c.Store.Record = true; c.Store.Path = "" }},
		{"invalid log level", func(c *NestsimConfig) { c.Logging.Level = "verbose" }},
		{"negative backup count", func(c *NestsimConfig) { c.Backup.Retention.MaxCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestLoad_ReadsHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".nestsim"), 0700); err != nil {
		t.Fatal(err)
	}
	content := "simulation:\n  trials: 123\n"
	if err := os.WriteFile(filepath.Join(home, ".nestsim", "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NESTSIM_SEED", "9")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.Trials != 123 {
		t.Errorf("expected Trials 123 from file, got %d", config.Simulation.Trials)
	}
	if seed, ok := config.Simulation.FixedSeed(); !ok || seed != 9 {
		t.Errorf("expected Seed 9 from env, got %d (set %v)", seed, ok)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
simulation:
  trials: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_SeedZeroIsSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  seed: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if seed, ok := config.Simulation.FixedSeed(); !ok || seed != 0 {
		t.Errorf("FixedSeed() = %d, %v; want 0, true", seed, ok)
	}
}
