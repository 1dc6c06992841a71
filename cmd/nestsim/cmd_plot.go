package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/plot"
	"github.com/nvandessel/nestsim/internal/sanitize"
	"github.com/nvandessel/nestsim/internal/store"
)

// plotDefaults are the x and y columns drawn when --x and --y are unset.
var plotDefaults = map[constants.Program][2]string{
	constants.ProgramCohesion:      {"alpha", "time_mean"},
	constants.ProgramQuorum:        {"threshold", "time_mean"},
	constants.ProgramSpeedAccuracy: {"y", "corr"},
	constants.ProgramMeanField:     {"t", "good_total"},
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <run-id>...",
		Short: "Draw recorded runs as a PNG line chart",
		Long: `Plot one column of recorded runs against another.

Speed-accuracy runs get one line per alpha. Cohesion and quorum runs hold
a single point each, so pass several runs of the same program to draw a
sweep.

Examples:
  nestsim plot 3f2a                           # corr against threshold per alpha
  nestsim plot 3f2a --y good_total --out mf.png
  nestsim plot 11aa 22bb 33cc --x alpha --y cohesion_mean`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPlot,
	}
	cmd.Flags().String("x", "", "Column for the x axis (default depends on the program)")
	cmd.Flags().String("y", "", "Column for the y axis (default depends on the program)")
	cmd.Flags().StringP("out", "o", "", "Output file (default <program>-<id>.png)")
	cmd.Flags().String("title", "", "Chart title")
	return cmd
}

func runPlot(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	xCol, _ := cmd.Flags().GetString("x")
	yCol, _ := cmd.Flags().GetString("y")
	out, _ := cmd.Flags().GetString("out")
	title, _ := cmd.Flags().GetString("title")

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var first *store.Run
	var rows []store.Row
	for _, id := range args {
		run, runRows, err := loadRun(cmd, st, id)
		if err != nil {
			return err
		}
		if first == nil {
			first = run
		} else if run.Program != first.Program || run.Columns != first.Columns {
			return &usageError{msg: fmt.Sprintf("run %s (%s) cannot share a chart with run %s (%s)",
				shortID(run.ID), run.Program, shortID(first.ID), first.Program)}
		}
		rows = append(rows, runRows...)
	}

	defaults := plotDefaults[constants.Program(first.Program)]
	if xCol == "" {
		xCol = defaults[0]
	}
	if yCol == "" {
		yCol = defaults[1]
	}
	title = sanitize.Text(title)
	if title == "" {
		title = fmt.Sprintf("%s %s", first.Program, shortID(first.ID))
	}
	if out == "" {
		out = fmt.Sprintf("%s-%s.png", first.Program, shortID(first.ID))
	}

	series, err := plot.SeriesFrom(first.ColumnNames(), rows, xCol, yCol)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	for _, s := range series {
		sortByX(s)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	err = plot.Render(f, plot.Chart{Title: title, XLabel: xCol, YLabel: yCol, Series: series})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"file":   out,
			"series": len(series),
			"x":      xCol,
			"y":      yCol,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d series, %s against %s)\n", out, len(series), yCol, xCol)
	return nil
}

// sortByX orders the points of s by x so lines are drawn left to right.
func sortByX(s plot.Series) {
	sort.Sort(byX(s))
}

type byX plot.Series

func (b byX) Len() int           { return len(b.X) }
func (b byX) Less(i, j int) bool { return b.X[i] < b.X[j] }
func (b byX) Swap(i, j int) {
	b.X[i], b.X[j] = b.X[j], b.X[i]
	b.Y[i], b.Y[j] = b.Y[j], b.Y[i]
}
