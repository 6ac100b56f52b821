package domain

// ExecutionStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
//	        ↘ TIMED_OUT
type ExecutionStatus string

const (
	// ExecutionStatusRunning — выполнение идёт.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusSucceeded — все шаги выполнены, результат сформирован.
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionStatusFailed — один из шагов завершился ошибкой.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusTimedOut — превышен общий таймаут.
	ExecutionStatusTimedOut ExecutionStatus = "TIMED_OUT"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSucceeded, ExecutionStatusFailed, ExecutionStatusTimedOut:
		return true
	default:
		return false
	}
}

// StepStatus — статус шага внутри выполнения.
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusSucceeded StepStatus = "SUCCEEDED"
	StepStatusFailed    StepStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed:
		return true
	default:
		return false
	}
}
