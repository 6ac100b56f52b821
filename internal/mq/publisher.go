package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeExecutionEvent MessageType = "execution.event"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // журнал переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishExecutionEvent публикует событие журнала выполнения.
// Потребители: executions.history, relay-cli events tail.
func (p *Publisher) PublishExecutionEvent(ctx context.Context, event domain.ExecutionEvent) error {
	msg := &Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeExecutionEvent,
		Payload:   event,
		Timestamp: event.Timestamp,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	return p.Publish(ctx, ExchangeExecutions, EventRoutingKey(event), msg)
}

// EventSink публикует журнал выполнения в RabbitMQ.
// Реализует orchestrator.EventSink.
type EventSink struct {
	publisher *Publisher
}

// NewEventSink создаёт EventSink поверх Publisher.
func NewEventSink(publisher *Publisher) *EventSink {
	return &EventSink{publisher: publisher}
}

// Name возвращает имя sink.
func (s *EventSink) Name() string { return "rabbitmq" }

// Publish публикует событие.
func (s *EventSink) Publish(ctx context.Context, event domain.ExecutionEvent) error {
	return s.publisher.PublishExecutionEvent(ctx, event)
}
