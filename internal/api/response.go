package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shaiso/Relay/internal/orchestrator"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"

	// Коды ошибок выполнения (по категории)
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrCodePathNotFound        ErrorCode = "PATH_NOT_FOUND"
	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeStoreThrottled      ErrorCode = "STORE_THROTTLED"
	ErrCodeWorkflowTimeout     ErrorCode = "WORKFLOW_TIMEOUT"
	ErrCodeCancelled           ErrorCode = "CANCELLED"
)

var kindCodes = map[orchestrator.ErrorKind]ErrorCode{
	orchestrator.KindUpstreamUnavailable: ErrCodeUpstreamUnavailable,
	orchestrator.KindUpstreamTimeout:     ErrCodeUpstreamTimeout,
	orchestrator.KindUpstreamError:       ErrCodeUpstreamError,
	orchestrator.KindPathNotFound:        ErrCodePathNotFound,
	orchestrator.KindStoreUnavailable:    ErrCodeStoreUnavailable,
	orchestrator.KindStoreThrottled:      ErrCodeStoreThrottled,
	orchestrator.KindWorkflowTimeout:     ErrCodeWorkflowTimeout,
	orchestrator.KindCancelled:           ErrCodeCancelled,
}

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code        ErrorCode              `json:"code"`
	Kind        orchestrator.ErrorKind `json:"kind,omitempty"`
	Step        string                 `json:"step,omitempty"`
	Message     string                 `json:"message"`
	ExecutionID string                 `json:"execution_id,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Output отправляет результат workflow.
// Строка пишется как есть, остальные значения — JSON.
func Output(w http.ResponseWriter, logger *slog.Logger, output any) {
	if s, ok := output.(string); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, s); err != nil {
			logger.Debug("write output failed", "error", err)
		}
		return
	}

	body, err := json.Marshal(output)
	if err != nil {
		InternalError(w, logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// ExecutionFailed преобразует ошибку выполнения в HTTP ответ.
func ExecutionFailed(w http.ResponseWriter, logger *slog.Logger, err error) {
	var execErr *orchestrator.ExecutionError
	if !errors.As(err, &execErr) {
		InternalError(w, logger, err)
		return
	}

	status := execErr.HTTPStatus()
	if status >= http.StatusInternalServerError && execErr.Kind == orchestrator.KindInternal {
		logger.Error("execution failed", "execution_id", execErr.ExecutionID, "error", err)
	}
	if execErr.Kind == orchestrator.KindStoreThrottled {
		w.Header().Set("Retry-After", "1")
	}

	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:        codeForKind(execErr.Kind),
			Kind:        execErr.Kind,
			Step:        execErr.StepID,
			Message:     execErr.Error(),
			ExecutionID: execErr.ExecutionID,
		},
	})
}

func codeForKind(kind orchestrator.ErrorKind) ErrorCode {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return ErrCodeInternalError
}
