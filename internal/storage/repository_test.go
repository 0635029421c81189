package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestInsertAndGetEvaluation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.InsertEvaluation(ctx, EvaluationRecord{
		Operation:        "returns",
		Scheme:           "pension",
		TransactionCount: 4,
		InvalidCount:     1,
		DuplicateCount:   1,
		TotalAmount:      625,
		DurationMs:       3,
		EvaluatedAt:      time.Date(2023, 10, 12, 20, 15, 30, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("InsertEvaluation: %v", err)
	}
	if id == 0 {
		t.Fatal("InsertEvaluation returned zero id")
	}

	rec, err := repo.GetEvaluation(ctx, id)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if rec.Operation != "returns" || rec.Scheme != "pension" {
		t.Errorf("record = %+v, want operation returns, scheme pension", rec)
	}
	if rec.TransactionCount != 4 || rec.InvalidCount != 1 || rec.DuplicateCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/1/1", rec.TransactionCount, rec.InvalidCount, rec.DuplicateCount)
	}
	if rec.TotalAmount != 625 {
		t.Errorf("total = %v, want 625", rec.TotalAmount)
	}
	if rec.ExportStatus != ExportPending {
		t.Errorf("export status = %q, want %q", rec.ExportStatus, ExportPending)
	}
}

func TestExportLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := repo.InsertEvaluation(ctx, EvaluationRecord{Operation: "filter", TransactionCount: i})
		if err != nil {
			t.Fatalf("InsertEvaluation: %v", err)
		}
		ids = append(ids, id)
	}

	pending, err := repo.GetPendingExport(ctx, 2)
	if err != nil {
		t.Fatalf("GetPendingExport: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d records, want 2 (limit)", len(pending))
	}
	if pending[0].ID != ids[0] {
		t.Errorf("pending[0].ID = %d, want oldest %d", pending[0].ID, ids[0])
	}

	if err := repo.MarkExported(ctx, ids[0]); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	if err := repo.MarkExportError(ctx, ids[1]); err != nil {
		t.Fatalf("MarkExportError: %v", err)
	}

	// The errored row stays eligible for retry; only the done row leaves.
	pending, err = repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExport: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[1] || pending[1].ID != ids[2] {
		t.Fatalf("pending = %+v, want %d and %d", pending, ids[1], ids[2])
	}

	exported, err := repo.GetEvaluation(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if exported.ExportStatus != ExportDone || exported.ExportAttempts != 1 {
		t.Errorf("exported = %q/%d attempts, want done/1", exported.ExportStatus, exported.ExportAttempts)
	}

	failed, err := repo.GetEvaluation(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if failed.ExportStatus != ExportError {
		t.Errorf("failed = %q, want error", failed.ExportStatus)
	}

	// Exhausting the attempt budget drops the row out of the retry set.
	for i := 1; i < maxExportAttempts; i++ {
		if err := repo.MarkExportError(ctx, ids[1]); err != nil {
			t.Fatalf("MarkExportError: %v", err)
		}
	}
	pending, err = repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExport: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("pending after exhausted retries = %+v, want only %d", pending, ids[2])
	}

	count, err := repo.CountEvaluations(ctx)
	if err != nil {
		t.Fatalf("CountEvaluations: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
