package steps

import (
	"context"
	"errors"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step kind not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено извне (общий таймаут, shutdown).
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Step — интерфейс для типов шагов.
//
// Каждый тип шага (fetch, transform, persist, shape) реализует этот интерфейс.
type Step interface {
	// Kind возвращает тип шага.
	Kind() domain.StepKind

	// Execute выполняет шаг и возвращает результат.
	// Шаг должен проверять ctx.Done() и передавать ctx в сетевые вызовы.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Step — определение шага.
	Step *domain.StepDef

	// Document — контекст выполнения. Шаг только читает его,
	// запись делает Orchestrator через ResultPath.
	Document *engine.Document

	// Trigger — входящий запрос, запустивший выполнение.
	Trigger domain.Trigger

	// Timeout — собственный бюджет шага.
	// Если 0, действует только общий таймаут выполнения.
	Timeout time.Duration
}

// Response — результат выполнения шага.
type Response struct {
	// Output — значение, которое Orchestrator запишет по ResultPath шага.
	Output any
}

// NewRequest создаёт новый Request.
func NewRequest(step *domain.StepDef, doc *engine.Document, trigger domain.Trigger) *Request {
	return &Request{
		Step:     step,
		Document: doc,
		Trigger:  trigger,
		Timeout:  step.Timeout(),
	}
}

// ResultPath возвращает путь, по которому записывается результат шага.
//
// transform и shape всегда заменяют состояние целиком ($),
// fetch и persist пишут в своё поле ($.http и $.ddb по умолчанию).
func ResultPath(step *domain.StepDef) string {
	switch step.Kind {
	case domain.StepKindTransform, domain.StepKindShape:
		return "$"
	}
	if step.ResultPath != "" {
		return step.ResultPath
	}
	switch step.Kind {
	case domain.StepKindFetch:
		return "$.http"
	case domain.StepKindPersist:
		return "$.ddb"
	}
	return "$"
}

// withBudget ограничивает ctx бюджетом шага.
func withBudget(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// checkContext возвращает ErrStepCancelled, если ctx уже завершён.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx)
	default:
		return nil
	}
}

func cancelled(ctx context.Context) error {
	return &cancelError{cause: ctx.Err()}
}

// cancelError сохраняет причину отмены, чтобы errors.Is видел и
// ErrStepCancelled, и context.DeadlineExceeded/Canceled.
type cancelError struct {
	cause error
}

func (e *cancelError) Error() string {
	return ErrStepCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelError) Unwrap() []error {
	return []error{ErrStepCancelled, e.cause}
}
