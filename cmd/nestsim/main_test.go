package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/nestsim/internal/kinetics"
)

// isolateHome points HOME at a temp directory so tests never read or write
// the real ~/.nestsim/. MUST be called by any test that runs a command.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, k := range []string{"NESTSIM_TRIALS", "NESTSIM_LEAK_RATE", "NESTSIM_SEED", "NESTSIM_RNG",
		"NESTSIM_WORKERS", "NESTSIM_LOG_LEVEL", "NESTSIM_STORE", "NESTSIM_RECORD"} {
		t.Setenv(k, "")
	}
	return home
}

// runCLI executes the root command and returns stdout, stderr and the
// process exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()
	rootCmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	code := exitCode(err, &stderr)
	return stdout.String(), stderr.String(), code
}

// nonEmptyLines splits output into lines, dropping blank ones.
func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantStderr string
	}{
		{"nil", nil, exitOK, ""},
		{"usage", &usageError{msg: "bad", usage: []string{"line one", "line two"}}, exitUsage, "bad\nline one\nline two\n"},
		{"usage without message", &usageError{usage: []string{"only usage"}}, exitUsage, "only usage\n"},
		{"wrapped invariant", fmt.Errorf("run: %w", &kinetics.InvariantError{Op: "apply", Detail: "negative"}), exitUsage, "simulation invariant violated"},
		{"cancelled", fmt.Errorf("sweep: %w", context.Canceled), exitFailure, "interrupted"},
		{"other", errors.New("disk full"), exitFailure, "Error: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := exitCode(tt.err, &stderr); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want string
	}{
		{"empty", nil, ""},
		{"integers", []float64{1, 2}, "1 2"},
		{"six significant digits", []float64{123.456789, 0.1}, "123.457 0.1"},
		{"small", []float64{1e-7}, "1e-07"},
		{"undefined", []float64{math.NaN(), -10}, "NaN -10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatRecord(tt.vals); got != tt.want {
				t.Errorf("formatRecord(%v) = %q, want %q", tt.vals, got, tt.want)
			}
		})
	}
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()
	want := []string{"version", "cohesion", "quorum", "speed-accuracy", "meanfield",
		"runs", "export", "plot", "config", "mcp-server"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"json", "config", "log-level", "trace-dir", "store", "record",
		"seed", "rng", "trials", "leak", "workers", "max-attempts", "quantiles"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	isolateHome(t)
	stdout, _, code := runCLI(t, "version")
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout, "nestsim version "+version) {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	isolateHome(t)
	_, stderr, code := runCLI(t, "cohesion", "--no-such-flag", "1", "0.1", "30", "2")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "no-such-flag") {
		t.Errorf("stderr does not name the flag: %q", stderr)
	}
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	isolateHome(t)
	_, _, code := runCLI(t, "cohesion", "--rng", "lcg", "1", "0.1", "30", "2")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}
