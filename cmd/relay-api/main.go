// Relay API — HTTP сервер, выполняющий workflow на каждый GET /.
//
// Сервер:
//   - Загружает workflow (встроенный вариант или файл)
//   - Открывает Record Store (memory, DynamoDB или PostgreSQL)
//   - Публикует журнал выполнений в RabbitMQ (если задан RABBITMQ_URL)
//   - Запускает workflow по cron (если задан SCHEDULE_CRON)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/steps"
	"github.com/shaiso/Relay/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-api")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	def, err := cfg.LoadDefinition()
	if err != nil {
		logger.Error("failed to load workflow", "error", err)
		os.Exit(1)
	}

	// Record Store
	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		logger.Error("failed to open record store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("record store ready", "backend", store.Backend())

	// Журнал выполнений
	sink, closeSink, err := cfg.OpenEventSink(ctx, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, execution history goes to log only", "error", err)
		sink = orchestrator.NewLogSink(logger, slog.LevelDebug)
	} else {
		defer closeSink()
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Definition: def,
		Registry:   steps.DefaultRegistry(store, nil),
		Sink:       sink,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// Cron trigger
	var sched *scheduler.Scheduler
	if cfg.ScheduleCron != "" {
		sched, err = scheduler.New(scheduler.Config{
			Executor: orch,
			CronExpr: cfg.ScheduleCron,
			Timezone: cfg.ScheduleTimezone,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("invalid schedule", "cron", cfg.ScheduleCron, "error", err)
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	handler := api.NewHandler(api.Config{
		Executor:       orch,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if orch.IsStopped() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "stopping")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s active=%d", time.Since(startTime), orch.ActiveCount())
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := cfg.Addr()

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Где и что развёрнуто
	logger.Info("workflow deployed",
		"workflow", def.Name,
		"steps", len(def.Steps),
		"timeout", def.Timeout(),
		"url", fmt.Sprintf("http://localhost%s/", addr),
		"schedule", cfg.ScheduleCron,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}
	if err := orch.Stop(shutdownCtx); err != nil {
		logger.Error("orchestrator stop error", "error", err)
	}

	logger.Info("stopped")
}
