package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/kinetics"
	"github.com/nvandessel/nestsim/internal/logging"
	"github.com/nvandessel/nestsim/internal/rng"
	"github.com/nvandessel/nestsim/internal/store"
	"github.com/nvandessel/nestsim/internal/sweep"
)

// app is the per-invocation state shared by the simulation commands.
type app struct {
	cfg     *config.NestsimConfig
	logger  *slog.Logger
	out     io.Writer
	jsonOut bool
}

// loadConfig resolves configuration: defaults, then the config file, then
// environment, then command-line flags.
func loadConfig(cmd *cobra.Command) (*config.NestsimConfig, error) {
	var cfg *config.NestsimConfig
	var err error
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("trace-dir") {
		cfg.Logging.TraceDir, _ = flags.GetString("trace-dir")
	}
	if flags.Changed("store") {
		cfg.Store.Path, _ = flags.GetString("store")
	}
	if flags.Changed("record") {
		cfg.Store.Record, _ = flags.GetBool("record")
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetUint64("seed")
		cfg.Simulation.Seed = &seed
	}
	if flags.Changed("rng") {
		cfg.Simulation.RNG, _ = flags.GetString("rng")
	}
	if flags.Changed("trials") {
		cfg.Simulation.Trials, _ = flags.GetInt("trials")
	}
	if flags.Changed("leak") {
		cfg.Simulation.LeakRate, _ = flags.GetFloat64("leak")
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-attempts") {
		cfg.Simulation.MaxAttempts, _ = flags.GetInt("max-attempts")
	}
	if flags.Changed("quantiles") {
		cfg.Simulation.Quantiles, _ = flags.GetBool("quantiles")
	}

	if err := cfg.Validate(); err != nil {
		return nil, &usageError{msg: err.Error()}
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	return &app{
		cfg:     cfg,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		out:     cmd.OutOrStdout(),
		jsonOut: jsonOut,
	}, nil
}

// seed returns the configured seed, drawing one from the wall clock when
// unset. The seed is always logged so runs can be repeated.
func (a *app) seed() uint64 {
	seed, ok := a.cfg.Simulation.FixedSeed()
	if !ok {
		seed = rng.WallClockSeed()
	}
	a.logger.Info("random seed", "seed", seed, "rng", a.rngKind())
	return seed
}

func (a *app) rngKind() string {
	if a.cfg.Simulation.RNG == "" {
		return rng.KindMT19937
	}
	return a.cfg.Simulation.RNG
}

// runner builds a sweep runner over a fresh source. names labels
// categories in trial traces.
func (a *app) runner(names func(kinetics.Category) string) (*sweep.Runner, *logging.TraceLogger, error) {
	sim := a.cfg.Simulation
	seed := a.seed()
	src, err := rng.New(a.rngKind(), seed)
	if err != nil {
		return nil, nil, &usageError{msg: err.Error()}
	}

	r := &sweep.Runner{
		Source:      src,
		Trials:      sim.Trials,
		MaxAttempts: sim.MaxAttempts,
		Quantiles:   sim.Quantiles,
		Workers:     sim.Workers,
		Seed:        seed,
		RNG:         a.rngKind(),
		Logger:      a.logger,
	}
	tl := logging.NewTraceLogger(a.cfg.Logging.TraceDir, a.cfg.Logging.Level, names)
	if tl != nil {
		r.Observer = tl
	}
	return r, tl, nil
}

// recorder saves a run and its rows when recording is enabled. A nil
// recorder does nothing.
type recorder struct {
	st  *store.Store
	run *store.Run
}

func (a *app) startRecording(ctx context.Context, program constants.Program, params any, columns []string, r *sweep.Runner) (*recorder, error) {
	if !a.cfg.Store.Record {
		return nil, nil
	}

	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	run, err := store.NewRun(program, params, columns, r.Seed, r.RNG, a.cfg.Simulation.Trials)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := st.CreateRun(ctx, run); err != nil {
		st.Close()
		return nil, err
	}
	a.logger.Debug("recording run", "id", run.ID, "store", st.Path())
	return &recorder{st: st, run: run}, nil
}

func (rec *recorder) setColumns(ctx context.Context, columns []string) error {
	if rec == nil {
		return nil
	}
	return rec.st.SetColumns(ctx, rec.run.ID, columns)
}

func (rec *recorder) add(ctx context.Context, row store.Row) error {
	if rec == nil {
		return nil
	}
	return rec.st.AddRow(ctx, rec.run.ID, row)
}

func (rec *recorder) addAll(ctx context.Context, rows []store.Row) error {
	if rec == nil || len(rows) == 0 {
		return nil
	}
	return rec.st.AddRows(ctx, rec.run.ID, rows)
}

// finish marks the run done or failed and closes the store. The run error
// is returned unchanged unless it was nil and finishing failed.
func (rec *recorder) finish(runErr error) error {
	if rec == nil {
		return runErr
	}
	defer rec.st.Close()

	status := store.StatusDone
	if runErr != nil {
		status = store.StatusFailed
	}
	// The command context may already be cancelled.
	if err := rec.st.FinishRun(context.Background(), rec.run.ID, status); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// formatRecord renders values the way the record lines have always looked:
// six significant digits, space separated.
func formatRecord(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return strings.Join(parts, " ")
}

func (a *app) printRecord(vals []float64) {
	fmt.Fprintln(a.out, formatRecord(vals))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	return enc.Encode(v)
}

// parseFloats converts positional arguments, naming the first one that is
// not a number.
func parseFloats(names []string, args []string, usage []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &usageError{msg: fmt.Sprintf("%s: not a number: %q", names[i], s), usage: usage}
		}
		vals[i] = v
	}
	return vals, nil
}
