package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/export"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <run-id> <file>",
		Short: "Write a recorded run as an Apache Arrow IPC stream",
		Long: `Export the rows of a recorded run to an Arrow IPC stream file.

The table has a block column (the outer loop index of speed-accuracy runs),
a dummy column marking sentinel rows, and one float64 column per output
value. Run metadata is attached to the schema.`,
		Args: exactArgs(2, "nestsim export <run-id> <file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, rows, err := loadRun(cmd, st, args[0])
			if err != nil {
				return err
			}

			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[1], err)
			}
			meta := map[string]string{
				"id":         run.ID,
				"program":    run.Program,
				"params":     run.Params,
				"seed":       run.Seed,
				"rng":        run.RNG,
				"started_at": run.StartedAt,
			}
			if err := export.WriteArrow(f, run.ColumnNames(), rows, meta); err != nil {
				f.Close()
				return fmt.Errorf("failed to export run: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":   run.ID,
					"file": args[1],
					"rows": len(rows),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows of run %s to %s\n", len(rows), shortID(run.ID), args[1])
			return nil
		},
	}
}
