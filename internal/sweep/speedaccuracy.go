package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/rng"
	"github.com/nvandessel/nestsim/internal/stats"
)

// Vary selects the inner parameter swept by the speed-accuracy grid.
type Vary int

const (
	VaryHigh Vary = iota
	VaryZ
	VaryAlphaSwitch
	VaryThreshold
)

// DummyCorrelation marks the sentinel cells at the start of each outer loop.
const DummyCorrelation = -10.0

func (v Vary) String() string {
	switch v {
	case VaryHigh:
		return "H"
	case VaryZ:
		return "z"
	case VaryAlphaSwitch:
		return "alpha_s"
	case VaryThreshold:
		return "threshold"
	default:
		return "vary(" + strconv.Itoa(int(v)) + ")"
	}
}

// ParseVary converts the numeric selector 0..3 into a Vary.
func ParseVary(s string) (Vary, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(VaryHigh) || n > int(VaryThreshold) {
		return 0, fmt.Errorf("to_vary must be 0, 1, 2 or 3, got %q", s)
	}
	return Vary(n), nil
}

// Preset holds the fixed constants of a speed-accuracy grid. Fields that
// the selected Vary sweeps are ignored.
type Preset struct {
	Vary Vary `json:"vary" yaml:"vary"`

	Population int     `json:"population" yaml:"population"`
	Leak       float64 `json:"leak" yaml:"leak"`

	// AlphaSamples outer α values α = AlphaStep·(i+1).
	AlphaSamples int     `json:"alpha_samples" yaml:"alpha_samples"`
	AlphaStep    float64 `json:"alpha_step" yaml:"alpha_step"`

	// YSamples outer secondary values: the quorum threshold, or z when the
	// threshold is the inner variable.
	YSamples int `json:"y_samples" yaml:"y_samples"`

	// Samples inner values correlated against each other.
	Samples int `json:"samples" yaml:"samples"`

	High        float64 `json:"h" yaml:"h"`
	Z           float64 `json:"z" yaml:"z"`
	AlphaSwitch float64 `json:"alpha_s" yaml:"alpha_s"`
}

// DefaultPreset returns the constants used for the published grids.
func DefaultPreset(v Vary) (Preset, error) {
	p := Preset{
		Vary:         v,
		Population:   constants.DefaultPopulation,
		Leak:         constants.DefaultLeakRate,
		AlphaSamples: constants.DefaultAlphaSamples,
		AlphaStep:    constants.DefaultAlphaStep,
		YSamples:     6,
	}
	switch v {
	case VaryHigh:
		p.Z, p.AlphaSwitch, p.Samples = 0.3, 1, 6
	case VaryZ:
		p.High, p.AlphaSwitch, p.Samples = 0.2, 1, 4
	case VaryAlphaSwitch:
		p.High, p.Z, p.Samples = 0.2, 0.3, 6
	case VaryThreshold:
		p.High, p.AlphaSwitch, p.Samples = 0.2, 1, 6
		p.YSamples = 4
	default:
		return Preset{}, fmt.Errorf("unknown vary selector %d", int(v))
	}
	return p, nil
}

// Validate checks that the grid is non-empty and can yield a correlation.
func (p Preset) Validate() error {
	if p.Vary < VaryHigh || p.Vary > VaryThreshold {
		return fmt.Errorf("unknown vary selector %d", int(p.Vary))
	}
	if p.Population < 1 {
		return fmt.Errorf("population must be positive, got %d", p.Population)
	}
	if p.AlphaSamples < 1 || p.YSamples < 1 {
		return fmt.Errorf("outer sample counts must be positive (alpha=%d, y=%d)", p.AlphaSamples, p.YSamples)
	}
	if p.Samples < 2 {
		return fmt.Errorf("need at least 2 inner samples for a correlation, got %d", p.Samples)
	}
	return nil
}

// Alpha returns the outer α for index i; i = -1 is the sentinel.
func (p Preset) Alpha(i int) float64 { return p.AlphaStep * float64(i+1) }

// Y returns the outer secondary value for index i; i = -1 is the sentinel.
func (p Preset) Y(i int) float64 {
	if p.Vary == VaryThreshold {
		return 0.1 * float64(i+1)
	}
	return thresholdAt(i)
}

// YEdge returns the upper cell edge of y, used by grid plotting tools.
func (p Preset) YEdge(y float64) float64 {
	if p.Vary == VaryThreshold {
		return y + 0.05
	}
	return y + 0.025
}

func thresholdAt(i int) float64 { return 0.25 + 0.05*float64(i) }

// Params returns the quorum parameters of inner sample ind in the cell at
// outer values (alpha, y).
func (p Preset) Params(alpha, y float64, ind int) colony.QuorumParams {
	q := colony.QuorumParams{
		Alpha:       alpha,
		AlphaSwitch: p.AlphaSwitch,
		Leak:        p.Leak,
		High:        p.High,
		Z:           p.Z,
		Population:  p.Population,
	}
	if p.Vary == VaryThreshold {
		q.Z = y
	} else {
		q.Threshold = y
	}

	switch p.Vary {
	case VaryHigh:
		q.High = float64(ind+1)/15 + 1e-8
	case VaryZ:
		q.Z = 0.1 * float64(ind+1)
	case VaryAlphaSwitch:
		q.AlphaSwitch = 0.1 * float64(ind)
	case VaryThreshold:
		q.Threshold = thresholdAt(ind)
	}
	return q
}

// Cell is one output record of the speed-accuracy grid.
type Cell struct {
	Alpha     float64 `json:"alpha"`
	Y         float64 `json:"y"`
	Corr      float64 `json:"corr"`
	AlphaEdge float64 `json:"alpha_edge"`
	YEdge     float64 `json:"y_edge"`

	// Dummy is set on sentinel cells, whose Corr is DummyCorrelation.
	Dummy bool `json:"dummy,omitempty"`

	// Times and Precisions are the inner sample means the correlation was
	// computed from. Empty for dummy cells.
	Times      []float64 `json:"times,omitempty"`
	Precisions []float64 `json:"precisions,omitempty"`
}

// Values returns the output record alpha y corr alpha_edge y_edge.
func (c Cell) Values() []float64 {
	return []float64{c.Alpha, c.Y, c.Corr, c.AlphaEdge, c.YEdge}
}

// CellColumns names the values returned by Cell.Values.
var CellColumns = []string{"alpha", "y", "corr", "alpha_edge", "y_edge"}

// CellSink consumes grid output. EndBlock is called after every outer α
// row; dummy reports whether the row was the sentinel row.
type CellSink interface {
	Cell(c Cell) error
	EndBlock(dummy bool) error
}

// SpeedAccuracy walks the full α × y grid of p, computing the Pearson
// correlation between mean decision time and precision across the inner
// samples of every cell. Both outer loops start with a sentinel index that
// yields a Dummy cell and runs no trials.
func (r *Runner) SpeedAccuracy(ctx context.Context, p Preset, sink CellSink) error {
	if err := p.Validate(); err != nil {
		return err
	}
	log := r.logger().With("vary", p.Vary.String())

	for ia := -1; ia < p.AlphaSamples; ia++ {
		alpha := p.Alpha(ia)
		for iy := -1; iy < p.YSamples; iy++ {
			y := p.Y(iy)
			cell := Cell{
				Alpha:     alpha,
				Y:         y,
				AlphaEdge: alpha + 0.05,
				YEdge:     p.YEdge(y),
			}
			if ia == -1 || iy == -1 {
				cell.Dummy = true
				cell.Corr = DummyCorrelation
			} else {
				cellIndex := uint64(ia*p.YSamples + iy)
				if err := r.fillCell(ctx, p, &cell, cellIndex); err != nil {
					return err
				}
				log.Debug("cell done", "alpha", alpha, "y", y, "corr", cell.Corr)
			}
			if err := sink.Cell(cell); err != nil {
				return err
			}
		}
		if err := sink.EndBlock(ia == -1); err != nil {
			return err
		}
	}
	return nil
}

// Correlate runs a single non-sentinel cell of the grid at (alpha, y).
func (r *Runner) Correlate(ctx context.Context, p Preset, alpha, y float64) (Cell, error) {
	if err := p.Validate(); err != nil {
		return Cell{}, err
	}
	cell := Cell{Alpha: alpha, Y: y, AlphaEdge: alpha + 0.05, YEdge: p.YEdge(y)}
	if err := r.fillCell(ctx, p, &cell, 0); err != nil {
		return Cell{}, err
	}
	return cell, nil
}

func (r *Runner) fillCell(ctx context.Context, p Preset, cell *Cell, cellIndex uint64) error {
	times := make([]float64, p.Samples)
	precisions := make([]float64, p.Samples)

	if r.Workers > 1 {
		if err := r.samplesParallel(ctx, p, cell, cellIndex, times, precisions); err != nil {
			return err
		}
	} else {
		for ind := 0; ind < p.Samples; ind++ {
			res, err := r.RunQuorum(ctx, p.Params(cell.Alpha, cell.Y, ind))
			if err != nil {
				return fmt.Errorf("alpha=%g y=%g sample %d: %w", cell.Alpha, cell.Y, ind, err)
			}
			times[ind] = res.TimeMean
			precisions[ind] = res.Precision
		}
	}

	cell.Times = times
	cell.Precisions = precisions
	corr, err := stats.Pearson(times, precisions)
	if errors.Is(err, stats.ErrZeroVariance) {
		r.logger().Warn("correlation undefined, constant samples", "alpha", cell.Alpha, "y", cell.Y)
		corr = math.NaN()
	} else if err != nil {
		return err
	}
	cell.Corr = corr
	return nil
}

// samplesParallel runs the inner samples of one cell concurrently, each
// with a source derived from the runner seed and the sample's position in
// the grid.
func (r *Runner) samplesParallel(ctx context.Context, p Preset, cell *Cell, cellIndex uint64, times, precisions []float64) error {
	var mu sync.Mutex
	pl := pool.New().WithMaxGoroutines(r.Workers).WithContext(ctx).WithCancelOnError()

	for ind := 0; ind < p.Samples; ind++ {
		params := p.Params(cell.Alpha, cell.Y, ind)
		seed := rng.Derive(r.Seed, cellIndex*uint64(p.Samples)+uint64(ind)+1)
		pl.Go(func(ctx context.Context) error {
			src, err := rng.New(r.RNG, seed)
			if err != nil {
				return err
			}
			res, err := r.runQuorumWith(ctx, params, src)
			if err != nil {
				return fmt.Errorf("alpha=%g y=%g sample %d: %w", cell.Alpha, cell.Y, ind, err)
			}
			mu.Lock()
			times[ind] = res.TimeMean
			precisions[ind] = res.Precision
			mu.Unlock()
			return nil
		})
	}
	return pl.Wait()
}
