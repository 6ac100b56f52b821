package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
)

// OpenEventSink создаёт журнал выполнений.
//
// Без RABBITMQ_URL события пишутся только в лог (DEBUG).
// С RABBITMQ_URL дополнительно публикуются в relay.executions.
// Возвращаемая функция закрывает соединение с брокером.
func (c *Config) OpenEventSink(ctx context.Context, logger *slog.Logger) (orchestrator.EventSink, func(), error) {
	logSink := orchestrator.NewLogSink(logger, slog.LevelDebug)
	if c.RabbitMQURL == "" {
		return logSink, func() {}, nil
	}

	conn, err := mq.Dial(ctx, mq.ConnectionConfig{
		URL:    c.RabbitMQURL,
		Name:   "relay-publisher",
		Logger: logger,
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect rabbitmq: %w", err)
	}
	logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())

	closeFn := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close rabbitmq connection", "error", err)
		}
	}

	sink := orchestrator.MultiSink{logSink, mq.NewEventSink(mq.NewPublisher(conn, logger))}
	return sink, closeFn, nil
}
