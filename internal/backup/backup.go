// Package backup archives the run store to checksummed, compressed files
// and restores runs from them.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/store"
)

// filePrefix and fileExt name archives written by GeneratePath.
const (
	filePrefix = "nestsim-runs-"
	fileExt    = ".json.gz"
)

// Archive is the decompressed payload of a backup file.
type Archive struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is one run with its rows.
type ArchivedRun struct {
	store.Run
	FinishedAt string        `json:"finished_at,omitempty"`
	Rows       []ArchivedRow `json:"rows"`
}

// ArchivedRow is a store.Row with its values as space-separated text, so
// undefined correlations survive JSON.
type ArchivedRow struct {
	Block  int    `json:"block"`
	Dummy  bool   `json:"dummy,omitempty"`
	Values string `json:"values"`
}

func archiveRows(rows []store.Row) []ArchivedRow {
	out := make([]ArchivedRow, len(rows))
	for i, r := range rows {
		parts := make([]string, len(r.Values))
		for j, v := range r.Values {
			parts[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		out[i] = ArchivedRow{Block: r.Block, Dummy: r.Dummy, Values: strings.Join(parts, " ")}
	}
	return out
}

func restoreRows(rows []ArchivedRow) ([]store.Row, error) {
	out := make([]store.Row, len(rows))
	for i, r := range rows {
		fields := strings.Fields(r.Values)
		vals := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: malformed value %q", i, f)
			}
			vals[j] = v
		}
		out[i] = store.Row{Block: r.Block, Dummy: r.Dummy, Values: vals}
	}
	return out, nil
}

// RowCount returns the total number of rows across runs.
func (a *Archive) RowCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Rows)
	}
	return n
}

// DefaultDir returns the default backup directory (~/.nestsim/backups/).
func DefaultDir() string {
	return filepath.Join(config.HomeDir(), "backups")
}

// Backup writes every run in st, oldest first, to path.
func Backup(ctx context.Context, st *store.Store, path string) (*Header, error) {
	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		return nil, err
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		rows, err := st.Rows(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of run %s: %w", r.ID, err)
		}
		ar := ArchivedRun{Run: r, Rows: archiveRows(rows)}
		if r.FinishedAt.Valid {
			ar.FinishedAt = r.FinishedAt.String
		}
		archive.Runs = append(archive.Runs, ar)
	}

	return Write(path, archive)
}

// RestoreMode controls how restore handles runs already in the store.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID already exists (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites runs whose ID already exists.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode validates a mode name. Empty means RestoreMerge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("invalid restore mode %q (valid: merge, replace)", s)
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsSkipped  int `json:"runs_skipped"`
	RowsRestored int `json:"rows_restored"`
}

// Restore imports the runs archived at path into st.
func Restore(ctx context.Context, st *store.Store, path string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, ar := range archive.Runs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		run := ar.Run
		run.FinishedAt.String, run.FinishedAt.Valid = ar.FinishedAt, ar.FinishedAt != ""
		rows, err := restoreRows(ar.Rows)
		if err != nil {
			return result, fmt.Errorf("run %s: %w", run.ID, err)
		}

		inserted, err := st.ImportRun(ctx, &run, rows, mode == RestoreReplace)
		if err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
		if !inserted {
			result.RunsSkipped++
			continue
		}
		result.RunsRestored++
		result.RowsRestored += len(ar.Rows)
	}
	return result, nil
}

// GeneratePath returns a timestamped archive path in dir.
func GeneratePath(dir string) string {
	ts := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(dir, filePrefix+ts+fileExt)
}
