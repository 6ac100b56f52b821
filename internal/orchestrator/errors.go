package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/steps"
)

// Ошибки оркестратора.
var (
	// ErrWorkflowTimeout — выполнение не уложилось в общий таймаут.
	ErrWorkflowTimeout = errors.New("workflow timeout")

	// ErrExecutionCancelled — выполнение отменено вызывающим (клиент ушёл, shutdown).
	ErrExecutionCancelled = errors.New("execution cancelled")

	// ErrInvalidDefinition — Definition не прошла валидацию.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrOrchestratorStopped — оркестратор остановлен и не принимает выполнения.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)

// ErrorKind — категория ошибки выполнения, видимая вызывающему.
type ErrorKind string

const (
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindUpstreamTimeout     ErrorKind = "UpstreamTimeout"
	KindUpstreamError       ErrorKind = "UpstreamError"
	KindPathNotFound        ErrorKind = "PathNotFound"
	KindStoreUnavailable    ErrorKind = "StoreUnavailable"
	KindStoreThrottled      ErrorKind = "StoreThrottled"
	KindWorkflowTimeout     ErrorKind = "WorkflowTimeout"
	KindCancelled           ErrorKind = "Cancelled"
	KindInternal            ErrorKind = "Internal"
)

// HTTPStatus возвращает HTTP статус для категории ошибки.
// Для UpstreamError статус уточняется через ExecutionError.HTTPStatus.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUpstreamUnavailable, KindUpstreamError, KindPathNotFound:
		return http.StatusBadGateway
	case KindUpstreamTimeout, KindWorkflowTimeout:
		return http.StatusGatewayTimeout
	case KindStoreUnavailable, KindStoreThrottled, KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExecutionError — терминальная ошибка выполнения.
type ExecutionError struct {
	Kind        ErrorKind
	ExecutionID string
	StepID      string
	StepKind    domain.StepKind
	Err         error
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s at step %q: %v", e.Kind, e.StepID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// HTTPStatus возвращает HTTP статус ответа вызывающему.
//
// UpstreamError повторяет статус upstream, если это 4xx/5xx.
func (e *ExecutionError) HTTPStatus() int {
	if e.Kind == KindUpstreamError {
		var statusErr *steps.UpstreamStatusError
		if errors.As(e.Err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode <= 599 {
			return statusErr.StatusCode
		}
	}
	return e.Kind.HTTPStatus()
}

// Classify определяет категорию ошибки шага.
func Classify(err error) ErrorKind {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &execErr):
		return execErr.Kind
	case errors.Is(err, ErrWorkflowTimeout):
		return KindWorkflowTimeout
	case errors.Is(err, steps.ErrUpstreamTimeout):
		return KindUpstreamTimeout
	case errors.Is(err, steps.ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, steps.ErrUpstreamError):
		return KindUpstreamError
	case errors.Is(err, engine.ErrPathNotFound):
		return KindPathNotFound
	case errors.Is(err, repo.ErrStoreThrottled):
		return KindStoreThrottled
	case errors.Is(err, repo.ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, steps.ErrStepCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// storeResult — значение label result для relay_store_writes_total.
func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repo.ErrStoreThrottled):
		return "throttled"
	case errors.Is(err, repo.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, steps.ErrStepCancelled):
		return "cancelled"
	default:
		return "invalid"
	}
}
