package domain

import (
	"encoding/json"
	"time"
)

// EventType — тип события истории выполнения.
type EventType string

const (
	EventExecutionStarted   EventType = "ExecutionStarted"
	EventStepEntered        EventType = "StepEntered"
	EventStepSucceeded      EventType = "StepSucceeded"
	EventStepFailed         EventType = "StepFailed"
	EventExecutionSucceeded EventType = "ExecutionSucceeded"
	EventExecutionFailed    EventType = "ExecutionFailed"
	EventExecutionTimedOut  EventType = "ExecutionTimedOut"
)

// IsTerminal возвращает true для событий завершения выполнения.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventExecutionSucceeded, EventExecutionFailed, EventExecutionTimedOut:
		return true
	default:
		return false
	}
}

// ExecutionEvent — одна запись журнала выполнения.
//
// Журнал — write-only side channel: логика workflow его не читает.
type ExecutionEvent struct {
	ExecutionID string          `json:"execution_id"`
	Workflow    string          `json:"workflow"`
	Type        EventType       `json:"type"`
	Seq         int             `json:"seq"`
	StepID      string          `json:"step_id,omitempty"`
	StepKind    StepKind        `json:"step_kind,omitempty"`
	Document    json.RawMessage `json:"document,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
