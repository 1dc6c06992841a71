// Package store records simulation runs and their output rows in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/nestsim/internal/constants"
)

// Run status values.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var (
	// ErrNotFound is returned when no run matches an ID or prefix.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguous is returned when an ID prefix matches more than one run.
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Run is one recorded program invocation.
type Run struct {
	ID         string         `db:"id" json:"id"`
	Program    string         `db:"program" json:"program"`
	Params     string         `db:"params" json:"params"`
	Columns    string         `db:"columns" json:"columns"`
	Seed       string         `db:"seed" json:"seed"`
	RNG        string         `db:"rng" json:"rng"`
	Trials     int            `db:"trials" json:"trials"`
	Status     string         `db:"status" json:"status"`
	StartedAt  string         `db:"started_at" json:"started_at"`
	FinishedAt sql.NullString `db:"finished_at" json:"-"`

	// RowCount is filled by ListRuns and GetRun.
	RowCount int `db:"row_count" json:"row_count"`
}

// NewRun builds a Run with a fresh ID. params is stored as JSON.
func NewRun(program constants.Program, params any, columns []string, seed uint64, rngKind string, trials int) (*Run, error) {
	if !program.Valid() {
		return nil, fmt.Errorf("unknown program %q", program)
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Run{
		ID:        uuid.NewString(),
		Program:   program.String(),
		Params:    string(data),
		Columns:   strings.Join(columns, " "),
		Seed:      strconv.FormatUint(seed, 10),
		RNG:       rngKind,
		Trials:    trials,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ColumnNames splits Columns back into names.
func (r *Run) ColumnNames() []string {
	return strings.Fields(r.Columns)
}

// Started parses StartedAt. The zero time is returned on malformed input.
func (r *Run) Started() time.Time {
	t, _ := time.Parse(time.RFC3339, r.StartedAt)
	return t
}

// Duration is the wall time of a finished run, or zero.
func (r *Run) Duration() time.Duration {
	if !r.FinishedAt.Valid {
		return 0
	}
	end, err := time.Parse(time.RFC3339, r.FinishedAt.String)
	if err != nil {
		return 0
	}
	return end.Sub(r.Started())
}

// Row is one output record of a run.
type Row struct {
	Block  int       `json:"block"`
	Dummy  bool      `json:"dummy,omitempty"`
	Values []float64 `json:"values"`
}

type rowRecord struct {
	Block int    `db:"block"`
	Dummy bool   `db:"dummy"`
	Vals  string `db:"vals"`
}

// Store is a SQLite-backed run store.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open opens or creates the database at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts r. r.ID must be set; NewRun does that.
func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		return fmt.Errorf("run has no id")
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, program, params, columns, seed, rng, trials, status, started_at)
		VALUES (:id, :program, :params, :columns, :seed, :rng, :trials, :status, :started_at)`, r)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// SetColumns replaces the column names of a run. Programs whose columns
// depend on the first result record it after CreateRun.
func (s *Store) SetColumns(ctx context.Context, id string, columns []string) error {
	return s.update(ctx, `UPDATE runs SET columns = ? WHERE id = ?`, strings.Join(columns, " "), id)
}

// FinishRun marks a run done or failed and stamps its finish time.
func (s *Store) FinishRun(ctx context.Context, id, status string) error {
	return s.update(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRow appends one output record to a run.
func (s *Store) AddRow(ctx context.Context, runID string, row Row) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_rows (run_id, block, dummy, vals) VALUES (?, ?, ?, ?)`,
		runID, row.Block, row.Dummy, formatValues(row.Values))
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// AddRows appends records in a single transaction.
func (s *Store) AddRows(ctx context.Context, runID string, rows []Row) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO run_rows (run_id, block, dummy, vals) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Block, row.Dummy, formatValues(row.Values)); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return tx.Commit()
}

// Rows returns the records of a run in emission order.
func (s *Store) Rows(ctx context.Context, runID string) ([]Row, error) {
	var recs []rowRecord
	if err := s.db.SelectContext(ctx, &recs,
		`SELECT block, dummy, vals FROM run_rows WHERE run_id = ? ORDER BY seq`, runID); err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		vals, err := parseValues(rec.Vals)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		rows = append(rows, Row{Block: rec.Block, Dummy: rec.Dummy, Values: vals})
	}
	return rows, nil
}

const runColumns = `r.id, r.program, r.params, r.columns, r.seed, r.rng, r.trials, r.status,
	r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM run_rows w WHERE w.run_id = r.id) AS row_count`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun looks a run up by full ID or unique ID prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		`SELECT `+runColumns+` FROM runs r WHERE r.id = ? OR r.id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%"); err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// DeleteRun removes a run and its rows.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ImportRun inserts a run exactly as given, finish time included, together
// with its rows in one transaction. An existing run with the same ID is
// kept and false is returned, unless replace is set, in which case it is
// deleted first.
func (s *Store) ImportRun(ctx context.Context, r *Run, rows []Row, replace bool) (bool, error) {
	if r.ID == "" {
		return false, fmt.Errorf("run has no id")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, r.ID); err != nil {
			return false, fmt.Errorf("failed to replace run: %w", err)
		}
	}

	res, err := tx.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, program, params, columns, seed, rng, trials, status, started_at, finished_at)
		VALUES (:id, :program, :params, :columns, :seed, :rng, :trials, :status, :started_at, :finished_at)`, r)
	if err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_rows (run_id, block, dummy, vals) VALUES (?, ?, ?, ?)`,
			r.ID, row.Block, row.Dummy, formatValues(row.Values)); err != nil {
			return false, fmt.Errorf("failed to insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit import: %w", err)
	}
	return true, nil
}

func formatValues(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func parseValues(s string) ([]float64, error) {
	fields := strings.Fields(s)
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value %q: %w", f, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
