package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
)

// Executor запускает одно выполнение workflow.
type Executor interface {
	Execute(ctx context.Context, trigger domain.Trigger) (*orchestrator.Result, error)
}

// Scheduler — запуск выполнений по cron-расписанию.
//
// Каждый тик — обычное выполнение с Trigger.Source = "cron".
// Если предыдущее выполнение ещё идёт, тик пропускается.
type Scheduler struct {
	executor Executor
	cronExpr string
	timezone string
	logger   *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	stats   Stats
	started bool
}

// Config — конфигурация Scheduler.
type Config struct {
	Executor Executor
	CronExpr string // например "*/5 * * * *" или "@every 1m"
	Timezone string // IANA timezone (default: UTC)
	Logger   *slog.Logger
}

// Stats — счётчики тиков.
type Stats struct {
	Ticks     int
	Succeeded int
	Failed    int
	LastRun   time.Time
	LastError string
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if err := ValidateCronExpr(cfg.CronExpr); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		executor: cfg.Executor,
		cronExpr: cfg.CronExpr,
		timezone: cfg.Timezone,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Start регистрирует cron job и запускает планировщик.
// Останавливается при отмене ctx или вызове Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	log := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loadLocation(s.timezone)),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	if _, err := s.cron.AddFunc(s.cronExpr, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	s.cron.Start()
	s.started = true

	next, _ := NextRun(s.cronExpr, s.timezone, time.Now())
	s.logger.Info("scheduler started", "cron", s.cronExpr, "timezone", s.timezone, "next_run", next)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop останавливает планировщик и ждёт текущий тик.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	started := s.started
	s.started = false
	s.mu.Unlock()

	if !started || c == nil {
		return
	}

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Tick выполняет одно выполнение workflow.
//
// Ошибка выполнения логируется и учитывается в Stats,
// но не останавливает планировщик.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	result, err := s.executor.Execute(ctx, domain.Trigger{Source: "cron", Path: s.cronExpr})

	s.mu.Lock()
	s.stats.Ticks++
	s.stats.LastRun = now
	if err != nil {
		s.stats.Failed++
		s.stats.LastError = err.Error()
	} else {
		s.stats.Succeeded++
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		attrs := []any{"error", err}
		if result != nil {
			attrs = append(attrs, "execution_id", result.ExecutionID)
		}
		s.logger.Warn("scheduled execution failed", attrs...)
		return err
	}

	s.logger.Info("scheduled execution completed",
		"execution_id", result.ExecutionID,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return nil
}

// Stats возвращает счётчики тиков.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
