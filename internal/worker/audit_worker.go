package worker

import (
	"context"
	"fmt"
	"log/slog"

	"roundup/internal/amqp"
	"roundup/internal/report"
	"roundup/internal/storage"
)

// AuditWorker persists evaluation summaries received over AMQP and exports
// them to the configured report destination.
type AuditWorker struct {
	storage   *storage.SQLiteRepository
	report    report.Writer
	batchSize int
}

func NewAuditWorker(storage *storage.SQLiteRepository, report report.Writer, batchSize int) *AuditWorker {
	return &AuditWorker{
		storage:   storage,
		report:    report,
		batchSize: batchSize,
	}
}

// HandleEvaluationMessage processes a single evaluation summary from AMQP:
// the row is saved first, then exported. A failed export leaves the row
// pending-or-error in SQLite so ProcessPendingExports can retry it.
func (w *AuditWorker) HandleEvaluationMessage(ctx context.Context, msg *amqp.EvaluationMessage) error {
	slog.InfoContext(ctx, "Processing evaluation message",
		"operation", msg.Operation,
		"transaction_count", msg.TransactionCount)

	rec := storage.EvaluationRecord{
		Operation:        msg.Operation,
		Scheme:           msg.Scheme,
		TransactionCount: msg.TransactionCount,
		InvalidCount:     msg.InvalidCount,
		DuplicateCount:   msg.DuplicateCount,
		TotalAmount:      msg.TotalAmount,
		DurationMs:       msg.DurationMs,
		EvaluatedAt:      msg.EvaluatedAt,
	}

	id, err := w.storage.InsertEvaluation(ctx, rec)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	rec.ID = id

	if err := w.exportEvaluation(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "Failed to export evaluation",
			"id", id, "error", err)
		// Don't fail the message - the row is saved and will be retried
	}

	return nil
}

// ProcessPendingExports exports any evaluations that haven't reached the
// report destination yet. This is a backup mechanism in case exports failed
// or the destination was unavailable.
func (w *AuditWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.storage.GetPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, rec := range pending {
		if err := w.exportEvaluation(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to export evaluation",
				"id", rec.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupExportCheck drains pending exports at worker startup. This recovers
// from missed AMQP messages or worker downtime.
func (w *AuditWorker) StartupExportCheck(ctx context.Context) error {
	// Use a larger batch for the startup pass
	pending, err := w.storage.GetPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, rec := range pending {
		if err := w.exportEvaluation(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to export evaluation during startup",
				"id", rec.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *AuditWorker) exportEvaluation(ctx context.Context, rec storage.EvaluationRecord) error {
	if w.report == nil {
		slog.WarnContext(ctx, "No report writer configured, leaving evaluation pending",
			"id", rec.ID)
		return nil
	}

	ref, err := w.report.Append(ctx, report.Evaluation{
		Operation:        rec.Operation,
		Scheme:           rec.Scheme,
		TransactionCount: rec.TransactionCount,
		InvalidCount:     rec.InvalidCount,
		DuplicateCount:   rec.DuplicateCount,
		TotalAmount:      rec.TotalAmount,
		DurationMs:       rec.DurationMs,
		EvaluatedAt:      rec.EvaluatedAt,
	})
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("append to report: %w", err)
	}

	if err := w.storage.MarkExported(ctx, rec.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", rec.ID, "error", err)
		// Don't return error here - the export actually worked
	}

	slog.InfoContext(ctx, "Successfully exported evaluation",
		"id", rec.ID,
		"report_ref", ref,
		"operation", rec.Operation,
		"total_amount", rec.TotalAmount)

	return nil
}
