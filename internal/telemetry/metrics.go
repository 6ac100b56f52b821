package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Relay. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// ExecutionsTotal — завершённые выполнения по статусу
	// (SUCCEEDED, FAILED, TIMED_OUT).
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_executions_total",
		Help: "Total workflow executions by terminal status",
	}, []string{"workflow", "status"})

	// ExecutionDuration — длительность выполнения целиком.
	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_execution_duration_seconds",
		Help:    "Workflow execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})

	// StepDuration — длительность отдельных шагов.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_step_duration_seconds",
		Help:    "Workflow step duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow", "kind", "status"})

	// StoreWritesTotal — записи в Record Store по результату
	// (ok, throttled, unavailable, invalid).
	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_store_writes_total",
		Help: "Total record store writes by backend and result",
	}, []string{"backend", "result"})

	// HTTPRequestsTotal — входящие HTTP запросы.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_api_http_requests_total",
		Help: "Total HTTP requests handled by relay-api",
	}, []string{"method", "status"})

	// RateLimitedTotal — запросы, отклонённые rate limiter.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_rate_limited_total",
		Help: "Total HTTP requests rejected by the rate limiter",
	})

	// EventsPublishFailures — события выполнения, которые не удалось опубликовать.
	EventsPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_publish_failures_total",
		Help: "Total execution events that failed to publish",
	}, []string{"sink"})

	// HistoryReconnectsTotal — переподключения канала журнала к RabbitMQ.
	HistoryReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_history_reconnects_total",
		Help: "Total reconnect attempts of the execution history channel by result",
	}, []string{"result"})
)
