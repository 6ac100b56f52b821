package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Tracing(),
		Logging(h.logger),
	)

	// Trigger — только точный путь "/"
	mux.Handle("GET /{$}", chain(RateLimit(h.limiter)(http.HandlerFunc(h.Trigger))))

	// Workflow
	mux.Handle("GET /api/v1/workflow", chain(http.HandlerFunc(h.GetWorkflow)))
}
