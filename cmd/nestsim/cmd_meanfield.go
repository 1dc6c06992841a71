package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/meanfield"
	"github.com/nvandessel/nestsim/internal/store"
)

var meanFieldUsage = []string{
	"nestsim meanfield alpha alpha_s H z",
	"alpha: rate at which committed ants convert to recruits, common to low-threshold and high-threshold ants",
	"alpha_s: rate at which high-threshold ants visiting the poor nest moves to the good nest",
	"H: fraction of high-threshold ants",
	"z: initial fraction of recruiters",
}

func newMeanFieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meanfield alpha alpha_s H z",
		Short: "Integrate the large-colony limit of the quorum model",
		Long: `Integrate the deterministic mean-field equations of the two-nest quorum
model by forward Euler until the origin fraction drops below --eps.

Prints one line per sample: t good_recruiters good_total poor_recruiters poor_total`,
		Args: exactArgs(4, meanFieldUsage...),
		RunE: runMeanField,
	}
	cmd.Flags().Float64("dt", meanfield.DefaultStep, "Euler time step")
	cmd.Flags().Float64("eps", meanfield.DefaultEps, "Stop once the origin fraction is at or below this")
	cmd.Flags().Int("sample-rate", meanfield.DefaultSampleRate, "Samples printed per unit time")
	cmd.Flags().Float64("quorum-level", meanfield.DefaultQuorum, "Good-nest fraction whose crossing time is logged")
	cmd.Flags().Float64("max-time", meanfield.DefaultMaxTime, "Give up after this much simulated time")
	return cmd
}

func runMeanField(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	vals, err := parseFloats([]string{"alpha", "alpha_s", "H", "z"}, args, meanFieldUsage)
	if err != nil {
		return err
	}
	p := colony.QuorumParams{
		Alpha:       vals[0],
		AlphaSwitch: vals[1],
		Leak:        a.cfg.Simulation.LeakRate,
		High:        vals[2],
		Z:           vals[3],
		Population:  1,
	}
	if err := p.Validate(); err != nil {
		return &usageError{msg: err.Error(), usage: meanFieldUsage}
	}
	a.logger.Info("leak rate", "leak", p.Leak)

	var opt meanfield.Options
	opt.Step, _ = cmd.Flags().GetFloat64("dt")
	opt.Eps, _ = cmd.Flags().GetFloat64("eps")
	opt.SampleRate, _ = cmd.Flags().GetInt("sample-rate")
	opt.Quorum, _ = cmd.Flags().GetFloat64("quorum-level")
	opt.MaxTime, _ = cmd.Flags().GetFloat64("max-time")

	ctx := cmd.Context()
	var rec *recorder
	if a.cfg.Store.Record {
		st, err := store.Open(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		run, err := store.NewRun(constants.ProgramMeanField, p, meanfield.Columns, 0, "", 0)
		if err == nil {
			err = st.CreateRun(ctx, run)
		}
		if err != nil {
			st.Close()
			return err
		}
		rec = &recorder{st: st, run: run}
	}

	var rows []store.Row
	emit := func(s meanfield.Sample) error {
		if rec != nil {
			rows = append(rows, store.Row{Values: s.Values()})
		}
		if a.jsonOut {
			return a.printJSON(s)
		}
		a.printRecord(s.Values())
		return nil
	}

	res, err := meanfield.Integrate(ctx, p, opt, emit)
	if err == nil {
		if err = rec.addAll(ctx, rows); err != nil {
			err = fmt.Errorf("failed to record samples: %w", err)
		}
	}
	if err = rec.finish(err); err != nil {
		if errors.Is(err, meanfield.ErrNoConvergence) {
			a.logger.Warn("integration stopped", "t", res.Time)
		}
		return err
	}

	if res.QuorumReached {
		a.logger.Info("quorum reached", "level", opt.Quorum, "t", res.QuorumTime)
	} else {
		a.logger.Info("quorum never reached", "level", opt.Quorum)
	}
	a.logger.Debug("integration done", "t", res.Time, "steps", res.Steps)
	return nil
}
