package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Заголовки ответа trigger.
const (
	HeaderExecutionID = "X-Execution-Id"
)

// Trigger запускает workflow и возвращает его результат.
// GET /
//
// Строковый результат отдаётся как text/plain без изменений,
// любой другой — как JSON.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	trigger := domain.Trigger{
		Source:  "http",
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		TraceID: telemetry.TraceIDFromContext(r.Context()),
	}

	result, err := h.executor.Execute(r.Context(), trigger)
	if result != nil {
		w.Header().Set(HeaderExecutionID, result.ExecutionID)
		if result.TraceID != "" {
			w.Header().Set(telemetry.HeaderTraceID, result.TraceID)
		}
	}

	if err != nil {
		if errors.Is(err, orchestrator.ErrOrchestratorStopped) {
			Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "service is shutting down")
			return
		}
		ExecutionFailed(w, h.logger, err)
		return
	}

	Output(w, h.logger, result.Output)
}

// GetWorkflow возвращает выполняемую Definition.
// GET /api/v1/workflow
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	Success(w, h.executor.Definition())
}
