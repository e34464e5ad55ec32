package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements for the runs table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// RunRow mirrors a row of the runs table.
type RunRow struct {
	ID            int64
	FileName      string
	OutputName    string
	TargetDate    string
	OriginalCount int64
	AddedCount    int64
	SkippedCount  int64
	Content       string
	ExportStatus  string
	ExportRef     string
	CreatedAt     string
}

type CreateRunParams struct {
	FileName      string
	OutputName    string
	TargetDate    string
	OriginalCount int64
	AddedCount    int64
	SkippedCount  int64
	Content       string
	ExportStatus  string
	CreatedAt     string
}

const createRun = `INSERT INTO runs (
    file_name, output_name, target_date, original_count, added_count,
    skipped_count, content, export_status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createRun,
		arg.FileName,
		arg.OutputName,
		arg.TargetDate,
		arg.OriginalCount,
		arg.AddedCount,
		arg.SkippedCount,
		arg.Content,
		arg.ExportStatus,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const runColumns = `id, file_name, output_name, target_date, original_count, added_count,
    skipped_count, content, export_status, export_ref, created_at`

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

func (q *Queries) GetRun(ctx context.Context, id int64) (RunRow, error) {
	return scanRun(q.db.QueryRowContext(ctx, getRun, id))
}

const listRuns = `SELECT id, file_name, output_name, target_date, original_count, added_count,
    skipped_count, '', export_status, export_ref, created_at
FROM runs ORDER BY id DESC LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]RunRow, error) {
	return q.queryRuns(ctx, listRuns, limit)
}

const listPendingRuns = `SELECT ` + runColumns + ` FROM runs
WHERE export_status = 'pending' ORDER BY id ASC LIMIT ?`

func (q *Queries) ListPendingRuns(ctx context.Context, limit int64) ([]RunRow, error) {
	return q.queryRuns(ctx, listPendingRuns, limit)
}

const updateExportStatus = `UPDATE runs SET export_status = ?, export_ref = ? WHERE id = ?`

func (q *Queries) UpdateExportStatus(ctx context.Context, id int64, status, ref string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExportStatus, status, ref, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) queryRuns(ctx context.Context, query string, args ...any) ([]RunRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunRow
	for rows.Next() {
		i, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRow, error) {
	var i RunRow
	err := row.Scan(
		&i.ID,
		&i.FileName,
		&i.OutputName,
		&i.TargetDate,
		&i.OriginalCount,
		&i.AddedCount,
		&i.SkippedCount,
		&i.Content,
		&i.ExportStatus,
		&i.ExportRef,
		&i.CreatedAt,
	)
	return i, err
}
