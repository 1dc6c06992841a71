package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/ratelimit"
	"github.com/nvandessel/nestsim/internal/rng"
	"github.com/nvandessel/nestsim/internal/sanitize"
	"github.com/nvandessel/nestsim/internal/store"
	"github.com/nvandessel/nestsim/internal/sweep"
)

// ErrNoStore is returned by nestsim_runs when the server has no run store.
var ErrNoStore = errors.New("no run store configured")

// registerTools registers all nestsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nestsim_cohesion",
		Description: "Simulate emigration to N equal candidate nests and report mean decision time and colony cohesion",
	}, s.handleCohesion)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nestsim_quorum",
		Description: "Simulate a two-nest choice with a quorum rule and report mean decision time and precision",
	}, s.handleQuorum)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nestsim_speed_accuracy_cell",
		Description: "Correlate decision time against precision over the inner samples of one speed-accuracy grid cell",
	}, s.handleSpeedAccuracyCell)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nestsim_runs",
		Description: "List recorded simulation runs, or show one run with its output rows",
	}, s.handleRuns)
}

// runner builds a sweep runner with its own source for one tool call.
func (s *Server) runner(trials int, requested *uint64, kind string) (*sweep.Runner, error) {
	sim := s.cfg.Simulation
	if trials <= 0 {
		trials = sim.Trials
	}
	if trials > s.cfg.MaxTrials {
		return nil, fmt.Errorf("trials %d exceeds server limit %d", trials, s.cfg.MaxTrials)
	}
	seed, ok := sim.FixedSeed()
	if requested != nil {
		seed, ok = *requested, true
	}
	if !ok {
		seed = rng.WallClockSeed()
	}
	kind = sanitize.Identifier(kind)
	if kind == "" {
		kind = sim.RNG
	}

	src, err := rng.New(kind, seed)
	if err != nil {
		return nil, err
	}
	return &sweep.Runner{
		Source:      src,
		Trials:      trials,
		MaxAttempts: sim.MaxAttempts,
		Workers:     sim.Workers,
		Seed:        seed,
		RNG:         kind,
		Logger:      s.logger,
	}, nil
}

func (s *Server) leak(v *float64) float64 {
	if v != nil {
		return *v
	}
	return s.cfg.Simulation.LeakRate
}

// record saves a finished tool run when recording is enabled and returns
// its ID.
func (s *Server) record(ctx context.Context, program constants.Program, params any, columns []string, r *sweep.Runner, values []float64) (string, error) {
	if s.store == nil || !s.cfg.Record {
		return "", nil
	}

	kind := r.RNG
	if kind == "" {
		kind = rng.KindMT19937
	}
	run, err := store.NewRun(program, params, columns, r.Seed, kind, r.Trials)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return "", err
	}
	if err := s.store.AddRow(ctx, run.ID, store.Row{Values: values}); err != nil {
		return "", err
	}
	if err := s.store.FinishRun(ctx, run.ID, store.StatusDone); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Server) handleCohesion(ctx context.Context, req *sdk.CallToolRequest, args CohesionInput) (_ *sdk.CallToolResult, _ CohesionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("nestsim_cohesion", start, retErr, map[string]any{
			"alpha": args.Alpha, "z": args.Z, "population": args.Population, "nests": args.Nests,
			"trials": args.Trials, "seed": args.Seed, "rng": args.RNG, "leak": args.Leak,
		})
	}()

	r, err := s.runner(args.Trials, args.Seed, args.RNG)
	if err != nil {
		return nil, CohesionOutput{}, err
	}
	if err := ratelimit.CheckTrials(s.limiters, "nestsim_cohesion", r.Trials); err != nil {
		return nil, CohesionOutput{}, err
	}

	p := colony.CohesionParams{
		Alpha:      args.Alpha,
		Leak:       s.leak(args.Leak),
		Z:          args.Z,
		Population: args.Population,
		Nests:      args.Nests,
	}
	res, err := r.RunCohesion(ctx, p)
	if err != nil {
		return nil, CohesionOutput{}, fmt.Errorf("cohesion run failed: %w", err)
	}

	runID, err := s.record(ctx, constants.ProgramCohesion, p, res.Columns(), r, res.Values())
	if err != nil {
		return nil, CohesionOutput{}, fmt.Errorf("failed to record run: %w", err)
	}

	return nil, CohesionOutput{
		Columns:    res.Columns(),
		Values:     res.Values(),
		Accepted:   res.Accepted,
		Degenerate: res.Degenerate,
		Seed:       r.Seed,
		RunID:      runID,
	}, nil
}

func (s *Server) handleQuorum(ctx context.Context, req *sdk.CallToolRequest, args QuorumInput) (_ *sdk.CallToolResult, _ QuorumOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("nestsim_quorum", start, retErr, map[string]any{
			"alpha": args.Alpha, "alpha_s": args.AlphaSwitch, "h": args.High, "z": args.Z,
			"threshold": args.Threshold, "population": args.Population,
			"trials": args.Trials, "seed": args.Seed, "rng": args.RNG, "leak": args.Leak,
		})
	}()

	r, err := s.runner(args.Trials, args.Seed, args.RNG)
	if err != nil {
		return nil, QuorumOutput{}, err
	}
	if err := ratelimit.CheckTrials(s.limiters, "nestsim_quorum", r.Trials); err != nil {
		return nil, QuorumOutput{}, err
	}

	p := colony.QuorumParams{
		Alpha:       args.Alpha,
		AlphaSwitch: args.AlphaSwitch,
		Leak:        s.leak(args.Leak),
		High:        args.High,
		Z:           args.Z,
		Threshold:   args.Threshold,
		Population:  args.Population,
	}
	res, err := r.RunQuorum(ctx, p)
	if err != nil {
		return nil, QuorumOutput{}, fmt.Errorf("quorum run failed: %w", err)
	}

	runID, err := s.record(ctx, constants.ProgramQuorum, p, res.Columns(), r, res.Values())
	if err != nil {
		return nil, QuorumOutput{}, fmt.Errorf("failed to record run: %w", err)
	}

	return nil, QuorumOutput{
		Columns:    res.Columns(),
		Values:     res.Values(),
		Quorum:     p.QuorumCount(),
		Accepted:   res.Accepted,
		Degenerate: res.Degenerate,
		Seed:       r.Seed,
		RunID:      runID,
	}, nil
}

func (s *Server) handleSpeedAccuracyCell(ctx context.Context, req *sdk.CallToolRequest, args SpeedAccuracyCellInput) (_ *sdk.CallToolResult, _ SpeedAccuracyCellOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("nestsim_speed_accuracy_cell", start, retErr, map[string]any{
			"vary": args.Vary, "alpha": args.Alpha, "y": args.Y, "samples": args.Samples,
			"trials": args.Trials, "seed": args.Seed, "rng": args.RNG, "leak": args.Leak,
		})
	}()

	vary, err := sweep.ParseVary(strconv.Itoa(args.Vary))
	if err != nil {
		return nil, SpeedAccuracyCellOutput{}, err
	}
	preset, err := sweep.DefaultPreset(vary)
	if err != nil {
		return nil, SpeedAccuracyCellOutput{}, err
	}
	preset.Leak = s.leak(args.Leak)
	if args.Samples > 0 {
		preset.Samples = args.Samples
	}

	r, err := s.runner(args.Trials, args.Seed, args.RNG)
	if err != nil {
		return nil, SpeedAccuracyCellOutput{}, err
	}
	if err := ratelimit.CheckTrials(s.limiters, "nestsim_speed_accuracy_cell", r.Trials*preset.Samples); err != nil {
		return nil, SpeedAccuracyCellOutput{}, err
	}

	cell, err := r.Correlate(ctx, preset, args.Alpha, args.Y)
	if err != nil {
		return nil, SpeedAccuracyCellOutput{}, fmt.Errorf("speed-accuracy cell failed: %w", err)
	}

	out := SpeedAccuracyCellOutput{
		Vary:       vary.String(),
		Times:      cell.Times,
		Precisions: cell.Precisions,
		Seed:       r.Seed,
	}
	if !math.IsNaN(cell.Corr) {
		corr := cell.Corr
		out.Corr = &corr
	}
	return nil, out, nil
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("nestsim_runs", start, retErr, map[string]any{
			"limit": args.Limit, "id": args.ID,
		})
	}()

	if err := ratelimit.CheckLimit(s.limiters, "nestsim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}
	if s.store == nil {
		return nil, RunsOutput{}, ErrNoStore
	}

	if id := sanitize.Identifier(args.ID); id != "" {
		run, err := s.store.GetRun(ctx, id)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		rows, err := s.store.Rows(ctx, run.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, formatRow(row.Values))
		}
		return nil, RunsOutput{Runs: []RunSummary{summarize(*run)}, Rows: lines, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = constants.DefaultRunsListLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	out := RunsOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, summarize(run))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

func summarize(r store.Run) RunSummary {
	return RunSummary{
		ID:        r.ID,
		Program:   r.Program,
		Params:    r.Params,
		Columns:   r.Columns,
		Status:    r.Status,
		StartedAt: r.StartedAt,
		Rows:      r.RowCount,
	}
}

func formatRow(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
