package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/kinetics"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes. Usage errors and broken simulation invariants share code 8.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 8
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err, os.Stderr))
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nestsim",
		Short: "Stochastic simulation of ant colony nest choice",
		Long: `nestsim simulates house-hunting ant colonies choosing among candidate nests.

Each program runs exact stochastic (Gillespie) trials of a recruitment model
and prints one summary record per parameter point, space separated:

  cohesion        N equal nests: decision time against colony cohesion
  quorum          good vs poor nest with a quorum rule: time against precision
  speed-accuracy  correlation of time and precision across a parameter grid
  meanfield       deterministic large-colony limit of the quorum model`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	addGlobalFlags(rootCmd)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error(), usage: []string{cmd.UseLine()}}
	})

	rootCmd.AddCommand(
		newVersionCmd(),
		newCohesionCmd(),
		newQuorumCmd(),
		newSpeedAccuracyCmd(),
		newMeanFieldCmd(),
		newRunsCmd(),
		newExportCmd(),
		newPlotCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// addGlobalFlags registers the persistent flags shared by every command.
func addGlobalFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.Bool("json", false, "Output as JSON (for agent consumption)")
	pf.String("config", "", "Config file (default ~/.nestsim/config.yaml)")
	pf.String("log-level", "", "Log level: info, debug, or trace")
	pf.String("trace-dir", "", "Directory for trace.jsonl trial traces (needs --log-level debug or trace)")
	pf.String("store", "", "SQLite run store path (default ~/.nestsim/runs.db)")
	pf.Bool("record", false, "Record the run in the store")
	pf.Uint64("seed", 0, "Random seed (default: seeded from the wall clock)")
	pf.String("rng", "", "Random generator: mt19937 or pcg")
	pf.Int("trials", 0, "Accepted trials per parameter point (default 10000)")
	pf.Float64("leak", 0, "Per-capita return rate to the origin (default 0.05)")
	pf.Int("workers", 0, "Parallel inner samples for speed-accuracy (default 1)")
	pf.Int("max-attempts", 0, "Cap on trials per point, degenerate ones included (0 = no cap)")
	pf.Bool("quantiles", false, "Append decision time quantiles to each record")
}

// usageError reports bad command-line input. It maps to exit code 8.
type usageError struct {
	msg   string
	usage []string
}

func (e *usageError) Error() string {
	return e.msg
}

// exitCode prints err to stderr and returns the process exit code.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var ue *usageError
	var ie *kinetics.InvariantError
	switch {
	case errors.As(err, &ue):
		if ue.msg != "" {
			fmt.Fprintln(stderr, ue.msg)
		}
		for _, line := range ue.usage {
			fmt.Fprintln(stderr, line)
		}
		return exitUsage
	case errors.As(err, &ie):
		fmt.Fprintf(stderr, "simulation invariant violated: %v\n", ie)
		return exitUsage
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "interrupted")
		return exitFailure
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitFailure
	}
}

// exactArgs is cobra.ExactArgs with the program's parameter help as the
// usage text.
func exactArgs(n int, usage ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{usage: usage}
		}
		return nil
	}
}
