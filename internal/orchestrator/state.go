package orchestrator

import (
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// StepResult — итог одного шага выполнения.
type StepResult struct {
	ID        string            `json:"id"`
	Kind      domain.StepKind   `json:"kind"`
	Status    domain.StepStatus `json:"status"`
	Duration  time.Duration     `json:"duration"`
	ErrorKind ErrorKind         `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// ExecutionState — состояние одного выполнения в памяти.
//
// Создаётся в начале Execute и живёт до его завершения.
// Шаги обновляет горутина выполнения, финальный статус — Execute,
// поэтому доступ защищён мьютексом.
type ExecutionState struct {
	ID         string
	Definition *domain.Definition
	StartedAt  time.Time
	TraceID    string

	mu     sync.RWMutex
	status domain.ExecutionStatus
	steps  []StepResult
	index  map[string]int
	seq    int

	// history сериализует запись журнала выполнения.
	history sync.Mutex
}

// NewExecutionState создаёт состояние со всеми шагами в PENDING.
func NewExecutionState(id string, def *domain.Definition, startedAt time.Time, traceID string) *ExecutionState {
	s := &ExecutionState{
		ID:         id,
		Definition: def,
		StartedAt:  startedAt,
		TraceID:    traceID,
		status:     domain.ExecutionStatusRunning,
		steps:      make([]StepResult, len(def.Steps)),
		index:      make(map[string]int, len(def.Steps)),
	}
	for i, step := range def.Steps {
		s.steps[i] = StepResult{ID: step.ID, Kind: step.Kind, Status: domain.StepStatusPending}
		s.index[step.ID] = i
	}
	return s
}

// MarkStepRunning помечает шаг как выполняющийся.
func (s *ExecutionState) MarkStepRunning(stepID string) {
	s.update(stepID, func(r *StepResult) {
		r.Status = domain.StepStatusRunning
	})
}

// MarkStepSucceeded помечает шаг как успешно завершённый.
func (s *ExecutionState) MarkStepSucceeded(stepID string, elapsed time.Duration) {
	s.update(stepID, func(r *StepResult) {
		r.Status = domain.StepStatusSucceeded
		r.Duration = elapsed
	})
}

// MarkStepFailed помечает шаг как упавший.
func (s *ExecutionState) MarkStepFailed(stepID string, elapsed time.Duration, kind ErrorKind, err error) {
	s.update(stepID, func(r *StepResult) {
		r.Status = domain.StepStatusFailed
		r.Duration = elapsed
		r.ErrorKind = kind
		if err != nil {
			r.Error = err.Error()
		}
	})
}

func (s *ExecutionState) update(stepID string, fn func(*StepResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[stepID]; ok {
		fn(&s.steps[i])
	}
}

// CurrentStep возвращает шаг в статусе RUNNING (если есть).
func (s *ExecutionState) CurrentStep() (string, domain.StepKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.steps {
		if r.Status == domain.StepStatusRunning {
			return r.ID, r.Kind, true
		}
	}
	return "", "", false
}

// Finish фиксирует финальный статус. Повторный вызов ничего не меняет.
func (s *ExecutionState) Finish(status domain.ExecutionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return false
	}
	s.status = status
	return true
}

// Status возвращает текущий статус выполнения.
func (s *ExecutionState) Status() domain.ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// NextSeq возвращает следующий номер события журнала.
func (s *ExecutionState) NextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Steps возвращает копию результатов шагов.
func (s *ExecutionState) Steps() []StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StepResult, len(s.steps))
	copy(out, s.steps)
	return out
}

// Stats возвращает статистику выполнения.
func (s *ExecutionState) Stats() ExecutionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ExecutionStats{TotalSteps: len(s.steps)}
	for _, r := range s.steps {
		switch r.Status {
		case domain.StepStatusSucceeded:
			stats.CompletedSteps++
		case domain.StepStatusRunning:
			stats.RunningSteps++
		case domain.StepStatusFailed:
			stats.FailedSteps++
		default:
			stats.PendingSteps++
		}
	}
	return stats
}

// ExecutionStats — статистика выполнения.
type ExecutionStats struct {
	TotalSteps     int
	CompletedSteps int
	RunningSteps   int
	FailedSteps    int
	PendingSteps   int
}
