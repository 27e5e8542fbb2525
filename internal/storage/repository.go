package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carteira/internal/core"

	ports "carteira/internal/sheets"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a dataset.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists fetched datasets in SQLite so the dashboard
// can serve without hitting the spreadsheet, plus an audit trail of
// refresh runs.
type SnapshotRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ ports.RecordReader   = (*SnapshotRepository)(nil)
	_ ports.SnapshotWriter = (*SnapshotRepository)(nil)
)

func NewSnapshotRepository(dbPath string) (*SnapshotRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotRepository{db: db}, nil
}

func (r *SnapshotRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WriteSnapshot stores the dataset, replacing any previous snapshot with
// the same name.
func (r *SnapshotRepository) WriteSnapshot(ctx context.Context, ds *core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}

	schemaJSON, err := encodeSchema(ds)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	rowsJSON, err := encodeRows(ds)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (dataset, fetched_at, schema_json, rows_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dataset) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			schema_json = excluded.schema_json,
			rows_json = excluded.rows_json,
			updated_at = excluded.updated_at`,
		ds.Name,
		ds.FetchedAt.UTC().Format(time.RFC3339Nano),
		schemaJSON,
		rowsJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", ds.Name, err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"dataset", ds.Name,
		"rows", ds.Len(),
		"fetched_at", ds.FetchedAt)
	return nil
}

// ReadSnapshot loads one dataset snapshot.
func (r *SnapshotRepository) ReadSnapshot(ctx context.Context, dataset string) (*core.Dataset, error) {
	var fetchedAt, schemaJSON, rowsJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT fetched_at, schema_json, rows_json
		FROM snapshots WHERE dataset = ?`, dataset).
		Scan(&fetchedAt, &schemaJSON, &rowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", dataset, err)
	}

	return decodeSnapshot(dataset, fetchedAt, schemaJSON, rowsJSON)
}

// ReadRecords serves a snapshot through the record source port.
func (r *SnapshotRepository) ReadRecords(ctx context.Context, dataset string) (*core.Dataset, error) {
	return r.ReadSnapshot(ctx, dataset)
}

// SnapshotAges reports, per dataset, when its snapshot was fetched. The
// refresher uses this to decide what is due.
func (r *SnapshotRepository) SnapshotAges(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dataset, fetched_at FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("list snapshot ages: %w", err)
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var dataset, fetchedAt string
		if err := rows.Scan(&dataset, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot age: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("parse fetched_at for %s: %w", dataset, err)
		}
		out[dataset] = t
	}
	return out, rows.Err()
}

// RefreshRun is one row of the refresh audit trail.
type RefreshRun struct {
	ID         int64
	Dataset    string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int
	Status     string
	Error      string
}

// Refresh run statuses.
const (
	RefreshStatusOK    = "ok"
	RefreshStatusError = "error"
)

// RecordRefresh appends a run to the audit trail.
func (r *SnapshotRepository) RecordRefresh(ctx context.Context, run RefreshRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (dataset, started_at, finished_at, row_count, status, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Dataset,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Rows,
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record refresh for %s: %w", run.Dataset, err)
	}
	return nil
}

// RecentRefreshes returns the latest runs, newest first.
func (r *SnapshotRepository) RecentRefreshes(ctx context.Context, limit int) ([]RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dataset, started_at, finished_at, row_count, status, error
		FROM refresh_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list refresh runs: %w", err)
	}
	defer rows.Close()

	var out []RefreshRun
	for rows.Next() {
		var run RefreshRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Dataset, &started, &finished, &run.Rows, &run.Status, &run.Error); err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// PruneRefreshRuns deletes audit rows that finished before cutoff and
// returns how many were removed.
func (r *SnapshotRepository) PruneRefreshRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_runs WHERE finished_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune refresh runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune refresh runs: %w", err)
	}
	return n, nil
}
