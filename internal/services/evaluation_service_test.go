package services

import (
	"context"
	"errors"
	"testing"

	"roundup/internal/amqp"
	"roundup/internal/core"
	"roundup/internal/engine"
)

type capturePublisher struct {
	messages []*amqp.EvaluationMessage
	err      error
}

func (p *capturePublisher) PublishEvaluation(_ context.Context, msg *amqp.EvaluationMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func fptr(v float64) *float64 { return &v }

func sampleTransactions() []engine.RawTransaction {
	return []engine.RawTransaction{
		{Date: "2023-10-12 20:15:30", Amount: fptr(250)},
		{Date: "2023-02-28 15:49:20", Amount: fptr(375)},
	}
}

func TestEvaluationService_Parse(t *testing.T) {
	publisher := &capturePublisher{}
	service := NewEvaluationService(publisher)

	result, err := service.Parse(context.Background(), sampleTransactions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(result.Transactions))
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published messages = %d, want 1", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.Operation != "parse" {
		t.Errorf("operation = %q, want parse", msg.Operation)
	}
	if msg.TransactionCount != 2 {
		t.Errorf("transaction_count = %d, want 2", msg.TransactionCount)
	}
	if msg.TotalAmount != 625 {
		t.Errorf("total_amount = %v, want 625", msg.TotalAmount)
	}
}

func TestEvaluationService_Parse_ErrorSkipsAudit(t *testing.T) {
	publisher := &capturePublisher{}
	service := NewEvaluationService(publisher)

	_, err := service.Parse(context.Background(), []engine.RawTransaction{
		{Date: "2023-10-12 20:15:30", Amount: fptr(-5)},
	})
	if !errors.Is(err, core.ErrAmountOutOfBounds) {
		t.Fatalf("err = %v, want ErrAmountOutOfBounds", err)
	}
	if len(publisher.messages) != 0 {
		t.Errorf("published messages = %d, want 0 on failed parse", len(publisher.messages))
	}
}

func TestEvaluationService_Validate(t *testing.T) {
	publisher := &capturePublisher{}
	service := NewEvaluationService(publisher)

	// The validator path requires ceiling and remanent on every record.
	raws := []engine.RawTransaction{
		{Date: "2023-10-12 20:15:30", Amount: fptr(250), Ceiling: fptr(300), Remanent: fptr(50)},
		{Date: "2023-02-28 15:49:20", Amount: fptr(375), Ceiling: fptr(400), Remanent: fptr(25)},
		{Date: "2023-10-12 20:15:30", Amount: fptr(299), Ceiling: fptr(300), Remanent: fptr(1)},
	}
	buckets, err := service.Validate(context.Background(), 100, nil, raws)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(buckets.Valid) != 2 || len(buckets.Duplicates) != 1 {
		t.Fatalf("buckets = %d valid / %d duplicate, want 2/1", len(buckets.Valid), len(buckets.Duplicates))
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published messages = %d, want 1", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.Operation != "validate" || msg.TransactionCount != 2 || msg.DuplicateCount != 1 {
		t.Errorf("message = %+v, want validate with 2 valid and 1 duplicate", msg)
	}
	if msg.TotalAmount != 75 { // remanents 50 + 25
		t.Errorf("total_amount = %v, want 75", msg.TotalAmount)
	}
}

func TestEvaluationService_Filter_PublisherFailureIsNonFatal(t *testing.T) {
	service := NewEvaluationService(&capturePublisher{err: errors.New("broker down")})

	result := service.Filter(context.Background(), sampleTransactions(), engine.RuleSet{})
	if len(result.Valid) != 2 {
		t.Fatalf("valid = %d, want 2 despite publish failure", len(result.Valid))
	}
}

func TestEvaluationService_Returns(t *testing.T) {
	publisher := &capturePublisher{}
	service := NewEvaluationService(publisher)

	raws := append(sampleTransactions(),
		engine.RawTransaction{Date: "2023-10-12 20:15:30", Amount: fptr(250)},
		engine.RawTransaction{Date: "not-a-date", Amount: fptr(10)},
	)
	result, err := service.Returns(context.Background(), engine.ReturnsInput{
		Scheme:       engine.SchemePension,
		Age:          30,
		Wage:         50000,
		Inflation:    5.5,
		Transactions: raws,
	})
	if err != nil {
		t.Fatalf("Returns: %v", err)
	}
	if result.TotalAmount != 625 {
		t.Errorf("total amount = %v, want 625", result.TotalAmount)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published messages = %d, want 1", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.Operation != "returns" || msg.Scheme != "pension" {
		t.Errorf("message = %+v, want returns/pension", msg)
	}
	if msg.TransactionCount != 2 || msg.InvalidCount != 1 || msg.DuplicateCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2 kept, 1 invalid, 1 duplicate",
			msg.TransactionCount, msg.InvalidCount, msg.DuplicateCount)
	}
}

func TestEvaluationService_NilPublisher(t *testing.T) {
	service := NewEvaluationService(nil)

	result, err := service.Parse(context.Background(), sampleTransactions())
	if err != nil {
		t.Fatalf("Parse with nil publisher: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(result.Transactions))
	}
}
