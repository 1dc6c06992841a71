package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/kinetics"
	"github.com/nvandessel/nestsim/internal/store"
	"github.com/nvandessel/nestsim/internal/sweep"
)

var speedAccuracyUsage = []string{
	"nestsim speed-accuracy to_vary",
	"to_vary is the parameter to vary. 0: H, 1: z, 2: alpha_s, 3: quorum threshold",
}

func newSpeedAccuracyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speed-accuracy to_vary",
		Short: "Correlate decision time with precision over a parameter grid",
		Long: `Walk a grid of conversion rates alpha against quorum thresholds (or z when
the threshold is varied). In every cell the quorum model is run for several
values of the parameter selected by to_vary, and the Pearson correlation
between mean decision time and precision across those values is printed.

Prints one line per cell: alpha y corr alpha_edge y_edge, with a blank line
after each alpha. With --grid-edges the sentinel cells bounding the grid are
printed too, with corr -10.`,
		Args: exactArgs(1, speedAccuracyUsage...),
		RunE: runSpeedAccuracy,
	}
	cmd.Flags().Bool("grid-edges", false, "Also print the sentinel rows and columns that bound the grid")
	cmd.Flags().Int("samples", 0, "Inner samples per cell (default depends on to_vary)")
	return cmd
}

// presetFor returns the grid constants for v with configured overrides
// applied. Overrides of the varied parameter are ignored.
func presetFor(v sweep.Vary, sa config.SpeedAccuracyConfig, leak float64) (sweep.Preset, error) {
	p, err := sweep.DefaultPreset(v)
	if err != nil {
		return sweep.Preset{}, err
	}
	p.Leak = leak
	if sa.Population > 0 {
		p.Population = sa.Population
	}
	if sa.AlphaSamples > 0 {
		p.AlphaSamples = sa.AlphaSamples
	}
	if sa.AlphaStep > 0 {
		p.AlphaStep = sa.AlphaStep
	}
	if sa.High > 0 && v != sweep.VaryHigh {
		p.High = sa.High
	}
	if sa.Z > 0 && v != sweep.VaryZ && v != sweep.VaryThreshold {
		p.Z = sa.Z
	}
	if sa.AlphaSwitch > 0 && v != sweep.VaryAlphaSwitch {
		p.AlphaSwitch = sa.AlphaSwitch
	}
	return p, nil
}

func runSpeedAccuracy(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	v, err := sweep.ParseVary(args[0])
	if err != nil {
		return &usageError{msg: err.Error(), usage: speedAccuracyUsage}
	}
	p, err := presetFor(v, a.cfg.SpeedAccuracy, a.cfg.Simulation.LeakRate)
	if err != nil {
		return &usageError{msg: err.Error(), usage: speedAccuracyUsage}
	}
	if n, _ := cmd.Flags().GetInt("samples"); n > 0 {
		p.Samples = n
	}
	if err := p.Validate(); err != nil {
		return &usageError{msg: err.Error(), usage: speedAccuracyUsage}
	}
	a.logger.Info("leak rate", "leak", p.Leak)
	a.logger.Info("grid", "vary", v.String(), "alpha_s", p.AlphaSwitch, "h", p.High, "z", p.Z, "population", p.Population)

	var names func(kinetics.Category) string
	if m, err := colony.NewQuorum(p.Params(p.Alpha(0), p.Y(0), 0)); err == nil {
		names = m.CategoryName
	}
	r, tl, err := a.runner(names)
	if err != nil {
		return err
	}
	defer tl.Close()

	ctx := cmd.Context()
	rec, err := a.startRecording(ctx, constants.ProgramSpeedAccuracy, p, sweep.CellColumns, r)
	if err != nil {
		return err
	}

	gridEdges, _ := cmd.Flags().GetBool("grid-edges")
	sink := &gridPrinter{app: a, ctx: ctx, rec: rec, edges: gridEdges}
	return rec.finish(r.SpeedAccuracy(ctx, p, sink))
}

// gridPrinter writes grid cells to stdout and the run store.
type gridPrinter struct {
	app   *app
	ctx   context.Context
	rec   *recorder
	edges bool
	block int
}

// cellJSON is a Cell with an undefined correlation encoded as null.
type cellJSON struct {
	Alpha     float64  `json:"alpha"`
	Y         float64  `json:"y"`
	Corr      *float64 `json:"corr"`
	AlphaEdge float64  `json:"alpha_edge"`
	YEdge     float64  `json:"y_edge"`
	Dummy     bool     `json:"dummy,omitempty"`
	Block     int      `json:"block"`
}

func (g *gridPrinter) Cell(c sweep.Cell) error {
	if err := g.rec.add(g.ctx, store.Row{Block: g.block, Dummy: c.Dummy, Values: c.Values()}); err != nil {
		return fmt.Errorf("failed to record cell: %w", err)
	}
	if c.Dummy && !g.edges {
		return nil
	}

	if g.app.jsonOut {
		out := cellJSON{Alpha: c.Alpha, Y: c.Y, AlphaEdge: c.AlphaEdge, YEdge: c.YEdge, Dummy: c.Dummy, Block: g.block}
		if !math.IsNaN(c.Corr) {
			corr := c.Corr
			out.Corr = &corr
		}
		return g.app.printJSON(out)
	}
	g.app.printRecord(c.Values())
	return nil
}

func (g *gridPrinter) EndBlock(dummy bool) error {
	g.block++
	if g.app.jsonOut || (dummy && !g.edges) {
		return nil
	}
	_, err := fmt.Fprintln(g.app.out)
	return err
}
