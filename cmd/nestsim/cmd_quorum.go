package main

import (
	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/store"
)

var quorumUsage = []string{
	"nestsim quorum alpha alpha_s H z threshold Na",
	"alpha: rate at which committed ants convert to recruits, common to low-threshold and high-threshold ants",
	"alpha_s: rate at which high-threshold ants visiting the poor nest moves to the good nest",
	"H: fraction of high-threshold ants",
	"z: initial fraction of recruiters",
	"threshold: quorum threshold, between 0 and 1",
	"Na: number of ants",
}

func newQuorumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quorum alpha alpha_s H z threshold Na",
		Short: "Decision time and precision for a good/poor nest choice with a quorum",
		Long: `Run one sweep point of the two-nest quorum model.

Low-threshold ants accept either nest. A fraction H of the colony has a high
threshold: those recruited to the poor nest only visit it, switching to the
good nest at rate alpha_s. Committed ants convert to recruiters at rate
alpha. A trial ends as soon as either nest holds floor(threshold*Na) ants,
and is correct when the good nest is the one that reached that quorum.
Trials in which every ant is back at the origin without a quorum are
discarded and rerun.

Prints: H alpha_s z threshold time_mean time_std precision`,
		Args: exactArgs(6, quorumUsage...),
		RunE: runQuorum,
	}
	cmd.Flags().Float64("alpha-good", 0, "Conversion rate at the good nest (default alpha)")
	cmd.Flags().Float64("alpha-poor", 0, "Conversion rate at the poor nest (default alpha)")
	return cmd
}

func runQuorum(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	vals, err := parseFloats([]string{"alpha", "alpha_s", "H", "z", "threshold"}, args[:5], quorumUsage)
	if err != nil {
		return err
	}
	ints, err := parseInts([]string{"Na"}, args[5:], quorumUsage)
	if err != nil {
		return err
	}
	alphaGood, _ := cmd.Flags().GetFloat64("alpha-good")
	alphaPoor, _ := cmd.Flags().GetFloat64("alpha-poor")

	p := colony.QuorumParams{
		Alpha:       vals[0],
		AlphaGood:   alphaGood,
		AlphaPoor:   alphaPoor,
		AlphaSwitch: vals[1],
		Leak:        a.cfg.Simulation.LeakRate,
		High:        vals[2],
		Z:           vals[3],
		Threshold:   vals[4],
		Population:  ints[0],
	}
	if err := p.Validate(); err != nil {
		return &usageError{msg: err.Error(), usage: quorumUsage}
	}
	a.logger.Info("leak rate", "leak", p.Leak)
	a.logger.Info("quorum threshold", "fractional", p.Threshold, "ants", p.QuorumCount())

	m, err := colony.NewQuorum(p)
	if err != nil {
		return err
	}
	r, tl, err := a.runner(m.CategoryName)
	if err != nil {
		return err
	}
	defer tl.Close()

	ctx := cmd.Context()
	rec, err := a.startRecording(ctx, constants.ProgramQuorum, p, nil, r)
	if err != nil {
		return err
	}

	res, err := r.RunQuorum(ctx, p)
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
