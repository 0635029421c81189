package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"roundup/internal/amqp"
	"roundup/internal/report"
	"roundup/internal/report/memory"
	"roundup/internal/storage"
)

type failingWriter struct{}

func (failingWriter) Append(context.Context, report.Evaluation) (string, error) {
	return "", errors.New("report destination unavailable")
}

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testMessage(operation string) *amqp.EvaluationMessage {
	return &amqp.EvaluationMessage{
		Operation:        operation,
		Scheme:           "pension",
		TransactionCount: 2,
		InvalidCount:     1,
		DuplicateCount:   1,
		TotalAmount:      625,
		DurationMs:       3,
		EvaluatedAt:      time.Date(2023, 10, 12, 20, 15, 30, 0, time.UTC),
	}
}

func TestHandleEvaluationMessage_SavesAndExports(t *testing.T) {
	repo := newTestStorage(t)
	store := memory.New()
	w := NewAuditWorker(repo, store, 10)
	ctx := context.Background()

	if err := w.HandleEvaluationMessage(ctx, testMessage("returns")); err != nil {
		t.Fatalf("HandleEvaluationMessage: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported rows = %d, want 1", len(rows))
	}
	if rows[0].Operation != "returns" || rows[0].TotalAmount != 625 {
		t.Errorf("exported row = %+v, want returns with total 625", rows[0])
	}

	rec, err := repo.GetEvaluation(ctx, 1)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if rec.ExportStatus != storage.ExportDone {
		t.Errorf("export_status = %q, want %q", rec.ExportStatus, storage.ExportDone)
	}
}

func TestHandleEvaluationMessage_ExportFailureKeepsRow(t *testing.T) {
	repo := newTestStorage(t)
	w := NewAuditWorker(repo, failingWriter{}, 10)
	ctx := context.Background()

	// A failed export must not fail the message: the row stays for retry.
	if err := w.HandleEvaluationMessage(ctx, testMessage("filter")); err != nil {
		t.Fatalf("HandleEvaluationMessage: %v", err)
	}

	rec, err := repo.GetEvaluation(ctx, 1)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if rec.ExportStatus != storage.ExportError {
		t.Errorf("export_status = %q, want %q", rec.ExportStatus, storage.ExportError)
	}
	if rec.ExportAttempts != 1 {
		t.Errorf("export_attempts = %d, want 1", rec.ExportAttempts)
	}
}

func TestProcessPendingExports_RetriesErroredRow(t *testing.T) {
	repo := newTestStorage(t)
	ctx := context.Background()

	// First delivery fails to export and leaves the row in the error state.
	if err := NewAuditWorker(repo, failingWriter{}, 10).HandleEvaluationMessage(ctx, testMessage("filter")); err != nil {
		t.Fatalf("HandleEvaluationMessage: %v", err)
	}

	// Once the destination recovers, the periodic pass picks the row up.
	store := memory.New()
	if err := NewAuditWorker(repo, store, 10).ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if rows := store.Rows(); len(rows) != 1 {
		t.Fatalf("exported rows = %d, want the errored row retried", len(rows))
	}

	rec, err := repo.GetEvaluation(ctx, 1)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if rec.ExportStatus != storage.ExportDone {
		t.Errorf("export_status = %q, want %q after retry", rec.ExportStatus, storage.ExportDone)
	}
}

func TestProcessPendingExports(t *testing.T) {
	repo := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.InsertEvaluation(ctx, storage.EvaluationRecord{
			Operation:   "parse",
			TotalAmount: float64(100 * (i + 1)),
		}); err != nil {
			t.Fatalf("InsertEvaluation: %v", err)
		}
	}

	store := memory.New()
	w := NewAuditWorker(repo, store, 2)

	if err := w.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if rows := store.Rows(); len(rows) != 2 {
		t.Fatalf("exported rows = %d, want batch of 2", len(rows))
	}

	// Second pass drains the remainder.
	if err := w.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if rows := store.Rows(); len(rows) != 3 {
		t.Fatalf("exported rows = %d, want 3", len(rows))
	}

	pending, err := repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExport: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestStartupExportCheck(t *testing.T) {
	repo := newTestStorage(t)
	ctx := context.Background()

	if _, err := repo.InsertEvaluation(ctx, storage.EvaluationRecord{Operation: "validate"}); err != nil {
		t.Fatalf("InsertEvaluation: %v", err)
	}

	store := memory.New()
	w := NewAuditWorker(repo, store, 1)

	if err := w.StartupExportCheck(ctx); err != nil {
		t.Fatalf("StartupExportCheck: %v", err)
	}
	if rows := store.Rows(); len(rows) != 1 {
		t.Fatalf("exported rows = %d, want 1", len(rows))
	}
}

func TestHandleEvaluationMessage_NoWriterLeavesPending(t *testing.T) {
	repo := newTestStorage(t)
	w := NewAuditWorker(repo, nil, 10)
	ctx := context.Background()

	if err := w.HandleEvaluationMessage(ctx, testMessage("parse")); err != nil {
		t.Fatalf("HandleEvaluationMessage: %v", err)
	}

	rec, err := repo.GetEvaluation(ctx, 1)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if rec.ExportStatus != storage.ExportPending {
		t.Errorf("export_status = %q, want %q", rec.ExportStatus, storage.ExportPending)
	}
}
