package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
)

// EventSink — получатель журнала выполнения.
//
// Журнал write-only: ошибки Publish логируются, но не влияют
// на результат выполнения.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, event domain.ExecutionEvent) error
}

// LogSink пишет события журнала в slog.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink создаёт LogSink. Уровень по умолчанию — INFO.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

// Name возвращает имя sink.
func (s *LogSink) Name() string { return "log" }

// Publish пишет событие в лог.
func (s *LogSink) Publish(ctx context.Context, event domain.ExecutionEvent) error {
	attrs := []any{
		"execution_id", event.ExecutionID,
		"workflow", event.Workflow,
		"seq", event.Seq,
	}
	if event.StepID != "" {
		attrs = append(attrs, "step_id", event.StepID, "step_kind", event.StepKind)
	}
	if event.ErrorKind != "" {
		attrs = append(attrs, "error_kind", event.ErrorKind, "error", event.Error)
	}
	if event.TraceID != "" {
		attrs = append(attrs, "trace_id", event.TraceID)
	}
	if len(event.Document) > 0 {
		attrs = append(attrs, "document", string(event.Document))
	}

	s.logger.Log(ctx, s.level, string(event.Type), attrs...)
	return nil
}

// MultiSink рассылает событие во все sinks.
type MultiSink []EventSink

// Name возвращает имя sink.
func (m MultiSink) Name() string { return "multi" }

// Publish публикует событие во все sinks и собирает ошибки.
func (m MultiSink) Publish(ctx context.Context, event domain.ExecutionEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
