package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/constants"
	"github.com/nvandessel/nestsim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List runs recorded with --record (or store.record in the config), newest
first. Run IDs may be abbreviated to any unique prefix.

Examples:
  nestsim runs                  # Recent runs
  nestsim runs show 3f2a        # Print the output rows of one run
  nestsim runs delete 3f2a      # Remove a run and its rows
  nestsim runs backup           # Archive every run under ~/.nestsim/backups
  nestsim runs restore <file>   # Import runs from an archive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Rerun a program with --record to keep its output.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROGRAM\tSTATUS\tROWS\tTRIALS\tSTARTED\tTOOK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(r.ID), r.Program, r.Status,
					humanize.Comma(int64(r.RowCount)), humanize.Comma(int64(r.Trials)),
					humanize.Time(r.Started()), formatDuration(r.Duration()))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", constants.DefaultRunsListLimit, "Maximum number of runs to list")

	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd(), newRunsBackupCmd(), newRunsRestoreCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the output rows of a recorded run",
		Args:  exactArgs(1, "nestsim runs show <run-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			gridEdges, _ := cmd.Flags().GetBool("grid-edges")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, rows, err := loadRun(cmd, st, args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"run":  run,
					"rows": formatRows(rows),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s %s seed=%s rng=%s params=%s\n", run.ID, run.Program, run.Seed, run.RNG, run.Params)
			fmt.Fprintf(out, "# %s\n", run.Columns)
			printed := false
			lastBlock := 0
			for _, row := range rows {
				if row.Dummy && !gridEdges {
					continue
				}
				if printed && row.Block != lastBlock {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, formatRecord(row.Values))
				printed, lastBlock = true, row.Block
			}
			return nil
		},
	}
	cmd.Flags().Bool("grid-edges", false, "Include sentinel rows of speed-accuracy runs")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run and its rows",
		Args:  exactArgs(1, "nestsim runs delete <run-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return runLookupError(args[0], err)
			}
			if err := st.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     run.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s (%s, %s rows)\n", run.ID, run.Program, humanize.Comma(int64(run.RowCount)))
			return nil
		},
	}
}

// openStore opens the configured run store.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}

// loadRun resolves an ID or prefix and reads the run's rows.
func loadRun(cmd *cobra.Command, st *store.Store, id string) (*store.Run, []store.Row, error) {
	run, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return nil, nil, runLookupError(id, err)
	}
	rows, err := st.Rows(cmd.Context(), run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, rows, nil
}

// runLookupError turns a missing or ambiguous ID into a usage error.
func runLookupError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAmbiguous) {
		return &usageError{msg: fmt.Sprintf("%s: %v", id, err)}
	}
	return err
}

func formatRows(rows []store.Row) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = formatRecord(row.Values)
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
