package memory

import (
	"context"
	"testing"
	"time"

	"roundup/internal/report"
)

func TestAppendAndRows(t *testing.T) {
	store := New()
	ctx := context.Background()

	ref, err := store.Append(ctx, report.Evaluation{
		Operation:        "returns",
		Scheme:           "pension",
		TransactionCount: 2,
		TotalAmount:      625,
		EvaluatedAt:      time.Date(2023, 10, 12, 20, 15, 30, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	ref, err = store.Append(ctx, report.Evaluation{Operation: "filter"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "mem:2" {
		t.Errorf("ref = %q, want mem:2", ref)
	}

	rows := store.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Operation != "returns" || rows[1].Operation != "filter" {
		t.Errorf("rows = %+v, want append order preserved", rows)
	}
}

func TestAppendRejectsEmptyOperation(t *testing.T) {
	store := New()
	if _, err := store.Append(context.Background(), report.Evaluation{}); err == nil {
		t.Error("Append should reject an evaluation without operation")
	}
}
