// Package sweep turns single trials into sweep-point summaries. A Runner
// repeats trials of one parameter set until a fixed number have been
// accepted, discarding degenerate trials, and folds the accepted outcomes
// into the time, cohesion and precision reductions.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/kinetics"
	"github.com/nvandessel/nestsim/internal/rng"
	"github.com/nvandessel/nestsim/internal/stats"
)

// DefaultTrials is the number of accepted trials per sweep point.
const DefaultTrials = constants.DefaultTrials

// ErrAttemptsExhausted is returned when MaxAttempts trials were run without
// reaching the requested number of accepted trials.
var ErrAttemptsExhausted = errors.New("sweep: attempt limit reached before enough trials were accepted")

// Runner executes sweep points. A single Runner consumes its Source
// sequentially, so two runners built from the same seed emit identical
// results.
type Runner struct {
	// Source is the random stream shared by every trial of every point.
	Source rng.Source

	// Trials is the number of accepted trials per point. Zero means
	// DefaultTrials.
	Trials int

	// MaxAttempts caps the total trials (accepted plus degenerate) per
	// point. Zero means no cap.
	MaxAttempts int

	// Quantiles retains per-trial times and reports stats.DefaultQuantiles.
	Quantiles bool

	// Workers above 1 spreads the inner samples of a speed-accuracy cell
	// over a goroutine pool. Each sample then draws from its own source
	// derived from Seed, so results no longer match a sequential run.
	Workers int

	// Seed and RNG construct the per-sample sources used when Workers > 1.
	Seed uint64
	RNG  string

	// Observer receives trace callbacks. Nil disables tracing.
	Observer kinetics.Observer

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

func (r *Runner) trials() int {
	if r.Trials > 0 {
		return r.Trials
	}
	return DefaultTrials
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// tally counts accepted and degenerate trials of one sweep point.
type tally struct {
	Accepted   int
	Degenerate int
}

// runTrials repeats trials of m until r.trials() are accepted, calling fold
// for each accepted outcome. Degenerate outcomes are dropped without
// touching fold.
func (r *Runner) runTrials(ctx context.Context, m kinetics.Model, src rng.Source, fold func(kinetics.Outcome)) (tally, error) {
	var t tally
	d := kinetics.NewDriver(m, src, r.Observer)
	want := r.trials()
	warned := false

	for t.Accepted < want {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		if r.MaxAttempts > 0 && t.Accepted+t.Degenerate >= r.MaxAttempts {
			return t, fmt.Errorf("%w (%d accepted, %d degenerate)", ErrAttemptsExhausted, t.Accepted, t.Degenerate)
		}

		out, err := d.Run()
		if err != nil {
			return t, err
		}
		if out.Shortfall != 0 && !warned {
			r.logger().Warn("seeding rounding corrected", "shortfall", out.Shortfall)
			warned = true
		}
		if !out.Accepted {
			t.Degenerate++
			continue
		}
		t.Accepted++
		fold(out)
	}

	if t.Degenerate > 0 {
		r.logger().Debug("degenerate trials discarded", "count", t.Degenerate, "accepted", t.Accepted)
	}
	return t, nil
}

// CohesionResult summarises one cohesion sweep point.
type CohesionResult struct {
	Params        colony.CohesionParams `json:"params"`
	TimeMean      float64               `json:"time_mean"`
	TimeStd       float64               `json:"time_std"`
	CohesionMean  float64               `json:"cohesion_mean"`
	CohesionStd   float64               `json:"cohesion_std"`
	Accepted      int                   `json:"accepted"`
	Degenerate    int                   `json:"degenerate"`
	TimeQuantiles []float64             `json:"time_quantiles,omitempty"`
}

// Columns names the values returned by Values.
func (c CohesionResult) Columns() []string {
	cols := []string{"alpha", "z", "time_mean", "time_std", "cohesion_mean", "cohesion_std"}
	return append(cols, quantileColumns(len(c.TimeQuantiles))...)
}

// Values returns the output record in the order of Columns.
func (c CohesionResult) Values() []float64 {
	vals := []float64{c.Params.Alpha, c.Params.Z, c.TimeMean, c.TimeStd, c.CohesionMean, c.CohesionStd}
	return append(vals, c.TimeQuantiles...)
}

// RunCohesion runs one cohesion sweep point.
func (r *Runner) RunCohesion(ctx context.Context, p colony.CohesionParams) (CohesionResult, error) {
	m, err := colony.NewCohesion(p)
	if err != nil {
		return CohesionResult{}, err
	}

	times := stats.NewMoments(r.Quantiles)
	var cohesion stats.Moments
	t, err := r.runTrials(ctx, m, r.Source, func(o kinetics.Outcome) {
		times.Add(o.Time)
		cohesion.Add(stats.CohesionIndex(m.NestTotals(o.State)))
	})
	if err != nil {
		return CohesionResult{}, err
	}

	res := CohesionResult{
		Params:       p,
		TimeMean:     times.Mean(),
		TimeStd:      times.Std(),
		CohesionMean: cohesion.Mean(),
		CohesionStd:  cohesion.Std(),
		Accepted:     t.Accepted,
		Degenerate:   t.Degenerate,
	}
	if r.Quantiles {
		res.TimeQuantiles = times.Quantiles(stats.DefaultQuantiles...)
	}
	return res, nil
}

// QuorumResult summarises one quorum sweep point.
type QuorumResult struct {
	Params        colony.QuorumParams `json:"params"`
	TimeMean      float64             `json:"time_mean"`
	TimeStd       float64             `json:"time_std"`
	Precision     float64             `json:"precision"`
	Accepted      int                 `json:"accepted"`
	Degenerate    int                 `json:"degenerate"`
	TimeQuantiles []float64           `json:"time_quantiles,omitempty"`
}

// Columns names the values returned by Values.
func (q QuorumResult) Columns() []string {
	cols := []string{"h", "alpha_s", "z", "threshold", "time_mean", "time_std", "precision"}
	return append(cols, quantileColumns(len(q.TimeQuantiles))...)
}

// Values returns the output record in the order of Columns.
func (q QuorumResult) Values() []float64 {
	p := q.Params
	vals := []float64{p.High, p.AlphaSwitch, p.Z, p.Threshold, q.TimeMean, q.TimeStd, q.Precision}
	return append(vals, q.TimeQuantiles...)
}

// RunQuorum runs one quorum sweep point.
func (r *Runner) RunQuorum(ctx context.Context, p colony.QuorumParams) (QuorumResult, error) {
	return r.runQuorumWith(ctx, p, r.Source)
}

func (r *Runner) runQuorumWith(ctx context.Context, p colony.QuorumParams, src rng.Source) (QuorumResult, error) {
	m, err := colony.NewQuorum(p)
	if err != nil {
		return QuorumResult{}, err
	}

	times := stats.NewMoments(r.Quantiles)
	var prec stats.Precision
	t, err := r.runTrials(ctx, m, src, func(o kinetics.Outcome) {
		times.Add(o.Time)
		prec.Add(o.Correct)
	})
	if err != nil {
		return QuorumResult{}, err
	}

	res := QuorumResult{
		Params:     p,
		TimeMean:   times.Mean(),
		TimeStd:    times.Std(),
		Precision:  prec.Rate(),
		Accepted:   t.Accepted,
		Degenerate: t.Degenerate,
	}
	if r.Quantiles {
		res.TimeQuantiles = times.Quantiles(stats.DefaultQuantiles...)
	}
	return res, nil
}

func quantileColumns(n int) []string {
	if n == 0 {
		return nil
	}
	cols := make([]string, 0, n)
	for _, p := range stats.DefaultQuantiles[:n] {
		cols = append(cols, fmt.Sprintf("time_q%02d", int(p*100+0.5)))
	}
	return cols
}
