package services

import (
	"context"
	"time"

	"roundup/internal/amqp"
	"roundup/internal/engine"
	"roundup/internal/log"
)

// EvaluationPublisher publishes evaluation audit messages. *amqp.Client
// satisfies it; tests substitute a capture stub.
type EvaluationPublisher interface {
	PublishEvaluation(ctx context.Context, msg *amqp.EvaluationMessage) error
}

// EvaluationService orchestrates engine evaluations and publishes an audit
// summary for each one. Publishing is best-effort: a broker outage never
// fails the evaluation itself.
type EvaluationService struct {
	publisher EvaluationPublisher
}

func NewEvaluationService(publisher EvaluationPublisher) *EvaluationService {
	return &EvaluationService{publisher: publisher}
}

// Parse derives ceilings and remanents for the given records.
func (s *EvaluationService) Parse(ctx context.Context, raws []engine.RawTransaction) (engine.ParseResult, error) {
	start := time.Now()
	result, err := engine.BuildTransactions(raws)
	if err != nil {
		return engine.ParseResult{}, err
	}

	msg := amqp.NewEvaluationMessage("parse")
	msg.TransactionCount = len(result.Transactions)
	msg.TotalAmount = result.TotalAmount
	msg.DurationMs = time.Since(start).Milliseconds()
	s.publishAudit(ctx, msg)

	return result, nil
}

// Validate partitions the records into valid, invalid and duplicate buckets
// under the cumulative investment limit.
func (s *EvaluationService) Validate(ctx context.Context, wage float64, maxInvestment *float64, raws []engine.RawTransaction) (engine.ValidationBuckets, error) {
	start := time.Now()
	buckets, err := engine.ValidateTransactions(wage, maxInvestment, raws)
	if err != nil {
		return engine.ValidationBuckets{}, err
	}

	var total float64
	for _, tx := range buckets.Valid {
		total += tx.Remanent
	}

	msg := amqp.NewEvaluationMessage("validate")
	msg.TransactionCount = len(buckets.Valid)
	msg.InvalidCount = len(buckets.Invalid)
	msg.DuplicateCount = len(buckets.Duplicates)
	msg.TotalAmount = total
	msg.DurationMs = time.Since(start).Milliseconds()
	s.publishAudit(ctx, msg)

	return buckets, nil
}

// Filter applies the temporal rules and keeps in-window transactions with a
// positive adjusted remanent.
func (s *EvaluationService) Filter(ctx context.Context, raws []engine.RawTransaction, rules engine.RuleSet) engine.FilterResult {
	start := time.Now()
	result := engine.FilterTransactions(raws, rules)

	var total float64
	for _, tx := range result.Valid {
		total += tx.Remanent
	}

	msg := amqp.NewEvaluationMessage("filter")
	msg.TransactionCount = len(result.Valid)
	msg.InvalidCount = len(result.Invalid)
	msg.TotalAmount = total
	msg.DurationMs = time.Since(start).Milliseconds()
	s.publishAudit(ctx, msg)

	return result
}

// Returns projects per-window savings under the selected scheme.
func (s *EvaluationService) Returns(ctx context.Context, in engine.ReturnsInput) (engine.ReturnsResult, error) {
	start := time.Now()
	result, err := engine.CalculateReturns(in)
	if err != nil {
		return engine.ReturnsResult{}, err
	}

	msg := amqp.NewEvaluationMessage("returns")
	msg.Scheme = string(in.Scheme)
	msg.TransactionCount = len(in.Transactions) - result.InvalidCount - result.DuplicateCount
	msg.InvalidCount = result.InvalidCount
	msg.DuplicateCount = result.DuplicateCount
	msg.TotalAmount = result.TotalAmount
	msg.DurationMs = time.Since(start).Milliseconds()
	s.publishAudit(ctx, msg)

	return result, nil
}

func (s *EvaluationService) publishAudit(ctx context.Context, msg *amqp.EvaluationMessage) {
	logger := log.FromContext(ctx)
	if s.publisher == nil {
		logger.DebugContext(ctx, "AMQP publisher not available, skipping audit message",
			log.FieldOperation, msg.Operation)
		return
	}

	if err := s.publisher.PublishEvaluation(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish audit message",
			log.FieldOperation, msg.Operation, log.FieldError, err.Error())
		// Don't fail the request - the evaluation already succeeded
	}
}
