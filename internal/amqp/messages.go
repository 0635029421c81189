package amqp

import (
	"encoding/json"
	"time"
)

// EvaluationMessage carries one evaluation summary from the API to the audit
// worker. The payload is self-contained so the worker never has to call back
// into the API.
type EvaluationMessage struct {
	Operation        string    `json:"operation"`
	Scheme           string    `json:"scheme,omitempty"`
	TransactionCount int       `json:"transaction_count"`
	InvalidCount     int       `json:"invalid_count"`
	DuplicateCount   int       `json:"duplicate_count"`
	TotalAmount      float64   `json:"total_amount"`
	DurationMs       int64     `json:"duration_ms"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// NewEvaluationMessage creates an evaluation message stamped with the
// current time.
func NewEvaluationMessage(operation string) *EvaluationMessage {
	return &EvaluationMessage{
		Operation:   operation,
		EvaluatedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EvaluationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EvaluationMessageFromJSON creates a message from JSON bytes
func EvaluationMessageFromJSON(data []byte) (*EvaluationMessage, error) {
	var msg EvaluationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
