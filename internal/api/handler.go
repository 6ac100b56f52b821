package api

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
)

// Executor выполняет workflow для входящего запроса.
// Реализуется *orchestrator.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, trigger domain.Trigger) (*orchestrator.Result, error)
	Definition() *domain.Definition
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	executor Executor
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Executor Executor
	Logger   *slog.Logger

	// RateLimitRPS — лимит входящих запросов на trigger (<= 0 — без лимита).
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Handler{
		executor: cfg.Executor,
		limiter:  limiter,
		logger:   logger,
	}
}
