package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/store"
)

var cohesionUsage = []string{
	"nestsim cohesion alpha z Na Nnest",
	"alpha: rate at which committed ants convert to recruits, common to low-threshold and high-threshold ants",
	"z: initial fraction of recruiters",
	"Na: number of ants",
	"Nnest: number of new nests",
}

func newCohesionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cohesion alpha z Na Nnest",
		Short: "Decision time and cohesion for a colony choosing among equal nests",
		Long: `Run one sweep point of the N-nest cohesion model.

Ants start at the origin with a fraction z already committed, spread evenly
over Nnest identical candidate nests. Committed ants convert to recruiters at
rate alpha. A trial ends once the origin holds no more than 10% of the colony.
Degenerate trials, where the whole colony returns to the origin, are
discarded and rerun.

Prints: alpha z time_mean time_std cohesion_mean cohesion_std`,
		Args: exactArgs(4, cohesionUsage...),
		RunE: runCohesion,
	}
	return cmd
}

func runCohesion(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	vals, err := parseFloats([]string{"alpha", "z"}, args[:2], cohesionUsage)
	if err != nil {
		return err
	}
	ints, err := parseInts([]string{"Na", "Nnest"}, args[2:], cohesionUsage)
	if err != nil {
		return err
	}

	p := colony.CohesionParams{
		Alpha:      vals[0],
		Leak:       a.cfg.Simulation.LeakRate,
		Z:          vals[1],
		Population: ints[0],
		Nests:      ints[1],
	}
	if err := p.Validate(); err != nil {
		return &usageError{msg: err.Error(), usage: cohesionUsage}
	}
	a.logger.Info("leak rate", "leak", p.Leak)

	m, err := colony.NewCohesion(p)
	if err != nil {
		return err
	}
	r, tl, err := a.runner(m.CategoryName)
	if err != nil {
		return err
	}
	defer tl.Close()

	ctx := cmd.Context()
	rec, err := a.startRecording(ctx, constants.ProgramCohesion, p, nil, r)
	if err != nil {
		return err
	}

	res, err := r.RunCohesion(ctx, p)
	if err == nil {
		if err = rec.setColumns(ctx, res.Columns()); err == nil {
			err = rec.add(ctx, store.Row{Values: res.Values()})
		}
	}
	if err = rec.finish(err); err != nil {
		return err
	}

	if a.jsonOut {
		return a.printJSON(res)
	}
	a.printRecord(res.Values())
	return nil
}

// parseInts converts positional arguments that count ants or nests.
func parseInts(names []string, args []string, usage []string) ([]int, error) {
	vals := make([]int, len(args))
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, &usageError{msg: fmt.Sprintf("%s: not an integer: %q", names[i], s), usage: usage}
		}
		vals[i] = v
	}
	return vals, nil
}
