package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores projection runs in a SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
	now     func() time.Time
}

var _ runs.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it.
func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Info("SQLite run store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordRun implements runs.RunRecorder
func (r *SQLiteRepository) RecordRun(ctx context.Context, run core.Run) (core.Run, error) {
	if run.ExportStatus == "" {
		run.ExportStatus = core.ExportSkipped
	}
	if err := run.Validate(); err != nil {
		return core.Run{}, fmt.Errorf("validation failed: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now().UTC()
	}

	id, err := r.queries.CreateRun(ctx, CreateRunParams{
		FileName:      run.FileName,
		OutputName:    run.OutputName,
		TargetDate:    run.TargetDate.Format(time.DateOnly),
		OriginalCount: int64(run.OriginalCount),
		AddedCount:    int64(run.AddedCount),
		SkippedCount:  int64(run.SkippedCount),
		Content:       run.Content,
		ExportStatus:  string(run.ExportStatus),
		CreatedAt:     run.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return core.Run{}, fmt.Errorf("create run: %w", err)
	}
	run.ID = id

	r.logger.InfoContext(ctx, "Run saved to SQLite",
		applog.NewFields().WithOperation(applog.OpRecord).WithRun(id, string(run.ExportStatus)).ToSlice()...)
	return run, nil
}

// GetRun implements runs.RunReader
func (r *SQLiteRepository) GetRun(ctx context.Context, id int64) (core.Run, error) {
	row, err := r.queries.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Run{}, runs.ErrNotFound
	}
	if err != nil {
		return core.Run{}, fmt.Errorf("get run %d: %w", id, err)
	}
	return toRun(row)
}

// ListRuns implements runs.RunLister
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]core.Run, error) {
	if limit < 1 {
		limit = runs.DefaultListLimit
	}
	rows, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return toRuns(rows)
}

// PendingExports implements runs.ExportTracker
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Run, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := r.queries.ListPendingRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	return toRuns(rows)
}

// MarkExported implements runs.ExportTracker
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, ref string) error {
	if err := r.setExportStatus(ctx, id, core.ExportDone, ref); err != nil {
		return fmt.Errorf("mark run exported: %w", err)
	}
	r.logger.InfoContext(ctx, "Run marked as exported", applog.FieldRunID, id, applog.FieldExportRef, ref)
	return nil
}

// MarkExportError implements runs.ExportTracker
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if err := r.setExportStatus(ctx, id, core.ExportFailed, ""); err != nil {
		return fmt.Errorf("mark run export error: %w", err)
	}
	r.logger.WarnContext(ctx, "Run marked with export error", applog.FieldRunID, id)
	return nil
}

func (r *SQLiteRepository) setExportStatus(ctx context.Context, id int64, status core.ExportStatus, ref string) error {
	n, err := r.queries.UpdateExportStatus(ctx, id, string(status), ref)
	if err != nil {
		return err
	}
	if n == 0 {
		return runs.ErrNotFound
	}
	return nil
}

func toRuns(rows []RunRow) ([]core.Run, error) {
	out := make([]core.Run, 0, len(rows))
	for _, row := range rows {
		run, err := toRun(row)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func toRun(row RunRow) (core.Run, error) {
	target, err := time.Parse(time.DateOnly, row.TargetDate)
	if err != nil {
		return core.Run{}, fmt.Errorf("run %d: parse target date %q: %w", row.ID, row.TargetDate, err)
	}
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.Run{}, fmt.Errorf("run %d: parse created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return core.Run{
		ID:            row.ID,
		FileName:      row.FileName,
		OutputName:    row.OutputName,
		TargetDate:    core.NewDate(target.Year(), int(target.Month()), target.Day()),
		OriginalCount: int(row.OriginalCount),
		AddedCount:    int(row.AddedCount),
		SkippedCount:  int(row.SkippedCount),
		Content:       row.Content,
		ExportStatus:  core.ExportStatus(row.ExportStatus),
		ExportRef:     row.ExportRef,
		CreatedAt:     created,
	}, nil
}
