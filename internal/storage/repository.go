// Package storage persists evaluation summaries for auditing and report
// export. Only aggregate outcomes are stored; individual transactions never
// touch the database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Export statuses for an evaluation row.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"
)

// maxExportAttempts bounds retries of errored exports; a row that failed
// this many times is left alone until someone looks at it.
const maxExportAttempts = 5

// EvaluationRecord is one persisted evaluation summary.
type EvaluationRecord struct {
	ID               int64
	Operation        string
	Scheme           string
	TransactionCount int
	InvalidCount     int
	DuplicateCount   int
	TotalAmount      float64
	DurationMs       int64
	EvaluatedAt      time.Time
	ExportStatus     string
	ExportAttempts   int
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
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

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertEvaluation stores one evaluation summary and returns its row ID.
func (r *SQLiteRepository) InsertEvaluation(ctx context.Context, rec EvaluationRecord) (int64, error) {
	evaluatedAt := rec.EvaluatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO evaluations (
			operation, scheme, transaction_count, invalid_count,
			duplicate_count, total_amount, duration_ms, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Operation, rec.Scheme, rec.TransactionCount, rec.InvalidCount,
		rec.DuplicateCount, rec.TotalAmount, rec.DurationMs, evaluatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert evaluation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("evaluation row id: %w", err)
	}

	slog.InfoContext(ctx, "Evaluation saved to SQLite",
		"id", id,
		"operation", rec.Operation,
		"transaction_count", rec.TransactionCount,
		"total_amount", rec.TotalAmount)

	return id, nil
}

// GetPendingExport returns evaluation summaries that still need report
// export, oldest first. Rows whose last export failed are included until
// they exhaust maxExportAttempts.
func (r *SQLiteRepository) GetPendingExport(ctx context.Context, limit int) ([]EvaluationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, scheme, transaction_count, invalid_count,
		       duplicate_count, total_amount, duration_ms, evaluated_at,
		       export_status, export_attempts
		FROM evaluations
		WHERE export_status = ?
		   OR (export_status = ? AND export_attempts < ?)
		ORDER BY id
		LIMIT ?`, ExportPending, ExportError, maxExportAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export: %w", err)
	}
	defer rows.Close()

	var records []EvaluationRecord
	for rows.Next() {
		var rec EvaluationRecord
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.Scheme,
			&rec.TransactionCount, &rec.InvalidCount, &rec.DuplicateCount,
			&rec.TotalAmount, &rec.DurationMs, &rec.EvaluatedAt,
			&rec.ExportStatus, &rec.ExportAttempts); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return records, nil
}

// GetEvaluation retrieves a single evaluation summary by ID.
func (r *SQLiteRepository) GetEvaluation(ctx context.Context, id int64) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, operation, scheme, transaction_count, invalid_count,
		       duplicate_count, total_amount, duration_ms, evaluated_at,
		       export_status, export_attempts
		FROM evaluations WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Operation, &rec.Scheme,
			&rec.TransactionCount, &rec.InvalidCount, &rec.DuplicateCount,
			&rec.TotalAmount, &rec.DurationMs, &rec.EvaluatedAt,
			&rec.ExportStatus, &rec.ExportAttempts)
	if err != nil {
		return nil, fmt.Errorf("get evaluation by id: %w", err)
	}
	return &rec, nil
}

// MarkExported marks an evaluation as successfully exported.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE evaluations
		SET export_status = ?, export_attempts = export_attempts + 1
		WHERE id = ?`, ExportDone, id); err != nil {
		return fmt.Errorf("mark evaluation exported: %w", err)
	}

	slog.InfoContext(ctx, "Evaluation marked as exported", "id", id)
	return nil
}

// MarkExportError marks an evaluation as having failed export.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE evaluations
		SET export_status = ?, export_attempts = export_attempts + 1
		WHERE id = ?`, ExportError, id); err != nil {
		return fmt.Errorf("mark evaluation export error: %w", err)
	}

	slog.WarnContext(ctx, "Evaluation marked with export error", "id", id)
	return nil
}

// CountEvaluations returns the total number of stored evaluation summaries.
func (r *SQLiteRepository) CountEvaluations(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count evaluations: %w", err)
	}
	return count, nil
}
