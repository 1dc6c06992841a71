package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/backup"
	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/constants"
)

func newRunsBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every recorded run to a backup file",
		Long: `Write all recorded runs and their rows to a compressed, checksummed archive.

Default location: ~/.nestsim/backups/nestsim-runs-YYYYMMDD-HHMMSS.json.gz
Older archives in the same directory are pruned by backup.retention
(default: keep the last 10).

Examples:
  nestsim runs backup                          # Archive to the default location
  nestsim runs backup --output runs.json.gz    # Archive to a specific file
  nestsim runs backup list                     # List archives
  nestsim runs backup verify <file>            # Check an archive's checksum`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			policy, err := buildRetentionPolicy(&cfg.Backup)
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			if outputPath == "" {
				outputPath = backup.GeneratePath(backup.DefaultDir())
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			header, err := backup.Backup(cmd.Context(), st, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			pruned, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var size int64
				if fi, err := os.Stat(outputPath); err == nil {
					size = fi.Size()
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":       outputPath,
					"run_count":  header.RunCount,
					"row_count":  header.RowCount,
					"checksum":   header.Checksum,
					"size_bytes": size,
					"pruned":     len(pruned),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %s runs, %s rows\n",
				humanize.Comma(int64(header.RunCount)), humanize.Comma(int64(header.RowCount)))
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "  Pruned %d old backup(s)\n", len(pruned))
			}
			return nil
		},
	}
	cmd.Flags().String("output", "", "Output file path (default: auto-generated in ~/.nestsim/backups/)")

	cmd.AddCommand(newRunsBackupListCmd(), newRunsBackupVerifyCmd())
	return cmd
}

func newRunsBackupListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = backup.DefaultDir()
			}

			archives, err := backup.List(dir)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"backups": archives,
					"count":   len(archives),
				})
			}
			if len(archives) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No backups in %s\n", dir)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tRUNS\tSIZE\tCREATED")
			for _, a := range archives {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
					filepath.Base(a.Path), a.RunCount, humanize.Bytes(uint64(a.Size)), humanize.Time(a.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("dir", "", "Backup directory (default ~/.nestsim/backups)")
	return cmd
}

func newRunsBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an archive's checksum and contents",
		Args:  exactArgs(1, "nestsim runs backup verify <file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			verr := backup.Verify(path)
			if jsonOut {
				out := map[string]interface{}{"path": path, "valid": verr == nil}
				if verr != nil {
					out["error"] = verr.Error()
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return err
				}
			}
			if verr != nil {
				return fmt.Errorf("backup %s is invalid: %w", path, verr)
			}
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Backup %s is valid\n", path)
			}
			return nil
		},
	}
}

func newRunsRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore recorded runs from a backup file",
		Long: `Import the runs in an archive written by "nestsim runs backup".

Modes:
  merge   - Skip runs whose ID is already in the store (default)
  replace - Overwrite runs whose ID is already in the store

Examples:
  nestsim runs restore ~/.nestsim/backups/nestsim-runs-20261019-120000.json.gz
  nestsim runs restore runs.json.gz --mode replace`,
		Args: exactArgs(1, "nestsim runs restore <file> [--mode merge|replace]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeName, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeName)
			if err != nil {
				return &usageError{msg: err.Error()}
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := backup.Restore(cmd.Context(), st, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"mode":          mode,
					"runs_restored": result.RunsRestored,
					"runs_skipped":  result.RunsSkipped,
					"rows_restored": result.RowsRestored,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete (mode: %s)\n", mode)
			fmt.Fprintf(cmd.OutOrStdout(), "  Runs: %d restored, %d skipped\n", result.RunsRestored, result.RunsSkipped)
			fmt.Fprintf(cmd.OutOrStdout(), "  Rows: %s restored\n", humanize.Comma(int64(result.RowsRestored)))
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}

// buildRetentionPolicy constructs a retention policy from config. Archives
// kept by any configured rule survive.
func buildRetentionPolicy(cfg *config.BackupConfig) (backup.RetentionPolicy, error) {
	var policies []backup.RetentionPolicy

	if cfg.Retention.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.Retention.MaxCount})
	}
	if cfg.Retention.MaxAge != "" {
		d, err := backup.ParseDuration(cfg.Retention.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("backup.retention.max_age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}
	if cfg.Retention.MaxTotalSize != "" {
		s, err := backup.ParseSize(cfg.Retention.MaxTotalSize)
		if err != nil {
			return nil, fmt.Errorf("backup.retention.max_total_size: %w", err)
		}
		policies = append(policies, &backup.SizePolicy{MaxTotalBytes: s})
	}

	switch len(policies) {
	case 0:
		return &backup.CountPolicy{MaxCount: constants.DefaultBackupMaxCount}, nil
	case 1:
		return policies[0], nil
	}
	return &backup.CompositePolicy{Policies: policies}, nil
}
