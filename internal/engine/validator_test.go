package engine

import (
	"errors"
	"strings"
	"testing"

	"roundup/internal/core"
)

func TestValidateTransactionsPartitionsInput(t *testing.T) {
	raws := []RawTransaction{
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(151), Ceiling: fptr(200), Remanent: fptr(49)},
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(299), Ceiling: fptr(300), Remanent: fptr(1)},
		{Timestamp: "2023-02-01 10:00:00", Amount: fptr(250), Ceiling: fptr(400), Remanent: fptr(150)},
		{Timestamp: "2023-03-01 10:00:00", Amount: fptr(250), Ceiling: fptr(300), Remanent: fptr(50)},
	}
	buckets, err := ValidateTransactions(50000, nil, raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(buckets.Valid) + len(buckets.Invalid) + len(buckets.Duplicates); got != len(raws) {
		t.Fatalf("buckets do not partition input: %d records across buckets, want %d", got, len(raws))
	}
	if len(buckets.Valid) != 2 {
		t.Errorf("valid = %d, want 2", len(buckets.Valid))
	}
	if len(buckets.Duplicates) != 1 {
		t.Fatalf("duplicates = %d, want 1", len(buckets.Duplicates))
	}
	if buckets.Duplicates[0].Amount != 299 {
		t.Errorf("second occurrence should be the duplicate, got amount %v", buckets.Duplicates[0].Amount)
	}
	if len(buckets.Invalid) != 1 || !strings.Contains(buckets.Invalid[0].Reason, "ceiling") {
		t.Errorf("invalid = %+v, want one ceiling mismatch", buckets.Invalid)
	}
}

func TestValidateTransactionsRemanentMismatch(t *testing.T) {
	buckets, err := ValidateTransactions(50000, nil, []RawTransaction{
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(250), Ceiling: fptr(300), Remanent: fptr(75)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets.Invalid) != 1 || !strings.Contains(buckets.Invalid[0].Reason, "remanent") {
		t.Errorf("invalid = %+v, want one remanent mismatch", buckets.Invalid)
	}
}

func TestValidateTransactionsMissingFieldsGoToInvalid(t *testing.T) {
	buckets, err := ValidateTransactions(50000, nil, []RawTransaction{
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(250)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets.Invalid) != 1 {
		t.Fatalf("invalid = %+v, want record without ceiling/remanent rejected", buckets.Invalid)
	}
}

// The cumulative limit walks transactions in timestamp order, not input
// order, and a rejected transaction does not consume any of the limit.
func TestValidateTransactionsCumulativeLimitInTimestampOrder(t *testing.T) {
	limit := 130.0
	raws := []RawTransaction{
		// Input order is the reverse of timestamp order.
		{Timestamp: "2023-03-01 10:00:00", Amount: fptr(220), Ceiling: fptr(300), Remanent: fptr(80)},
		{Timestamp: "2023-02-01 10:00:00", Amount: fptr(210), Ceiling: fptr(300), Remanent: fptr(90)},
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(250), Ceiling: fptr(300), Remanent: fptr(50)},
	}
	buckets, err := ValidateTransactions(50000, &limit, raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// January (50) fits, February (90) would exceed 130 and is rejected,
	// March (80) still fits because February consumed nothing.
	if len(buckets.Valid) != 2 {
		t.Fatalf("valid = %+v, want January and March", buckets.Valid)
	}
	if buckets.Valid[0].Remanent != 50 || buckets.Valid[1].Remanent != 80 {
		t.Errorf("valid remanents = %v/%v, want 50/80", buckets.Valid[0].Remanent, buckets.Valid[1].Remanent)
	}
	if len(buckets.Invalid) != 1 || !strings.Contains(buckets.Invalid[0].Reason, "cumulative") {
		t.Errorf("invalid = %+v, want one cumulative-limit rejection", buckets.Invalid)
	}
}

func TestValidateTransactionsDefaultLimitIsAnnualWage(t *testing.T) {
	// wage 10 -> limit 120: remanent 50 + 80 would exceed it.
	buckets, err := ValidateTransactions(10, nil, []RawTransaction{
		{Timestamp: "2023-01-01 10:00:00", Amount: fptr(250), Ceiling: fptr(300), Remanent: fptr(50)},
		{Timestamp: "2023-02-01 10:00:00", Amount: fptr(220), Ceiling: fptr(300), Remanent: fptr(80)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets.Valid) != 1 || len(buckets.Invalid) != 1 {
		t.Errorf("valid/invalid = %d/%d, want 1/1", len(buckets.Valid), len(buckets.Invalid))
	}
}

func TestValidateTransactionsScalarErrors(t *testing.T) {
	if _, err := ValidateTransactions(-1, nil, nil); !errors.Is(err, core.ErrInvalidWageOrLimit) {
		t.Errorf("negative wage error = %v, want ErrInvalidWageOrLimit", err)
	}
	negative := -5.0
	if _, err := ValidateTransactions(50000, &negative, nil); !errors.Is(err, core.ErrInvalidWageOrLimit) {
		t.Errorf("negative limit error = %v, want ErrInvalidWageOrLimit", err)
	}
}
