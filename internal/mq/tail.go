package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// errDeliveriesClosed — брокер закрыл поток доставок (разрыв соединения).
var errDeliveriesClosed = errors.New("deliveries channel closed")

// EventHandler обрабатывает одно событие журнала.
type EventHandler func(ctx context.Context, event domain.ExecutionEvent) error

// TailConfig — параметры подписки на журнал.
type TailConfig struct {
	// Pattern — topic pattern по relay.executions. Пусто — все события.
	Pattern RoutingKey

	Handler EventHandler
	Logger  *slog.Logger

	// OnSubscribe вызывается после каждой (пере)подписки с именем очереди.
	OnSubscribe func(queue Queue)
}

// Tail читает события выполнений через временную exclusive очередь.
//
// Очередь удаляется вместе с соединением, поэтому после переподключения
// объявляется заново. События, опубликованные во время разрыва, tail не видит:
// долговременная копия остаётся в executions.history.
type Tail struct {
	conn   *Connection
	cfg    TailConfig
	logger *slog.Logger
}

// NewTail создаёт Tail.
func NewTail(conn *Connection, cfg TailConfig) *Tail {
	if cfg.Pattern == "" {
		cfg.Pattern = RoutingKeyAllExecutions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tail{
		conn:   conn,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "tail", "pattern", cfg.Pattern),
	}
}

// Run читает события до отмены ctx или закрытия соединения.
func (t *Tail) Run(ctx context.Context) error {
	for {
		// Берём сигнал до подписки, чтобы не пропустить переподключение между ними
		reconnected := t.conn.Reconnected()

		deliveries, queue, err := t.subscribe(ctx)
		if err == nil {
			t.logger.Info("tail subscribed", "queue", queue)
			if t.cfg.OnSubscribe != nil {
				t.cfg.OnSubscribe(queue)
			}
			err = t.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Warn("tail interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.conn.Done():
			return ErrClosed
		case <-reconnected:
		}
	}
}

// subscribe объявляет временную очередь, привязывает её к pattern и начинает чтение.
// Auto-ack: tail только наблюдает, повторная доставка ему не нужна.
func (t *Tail) subscribe(ctx context.Context) (<-chan amqp.Delivery, Queue, error) {
	var (
		deliveries <-chan amqp.Delivery
		name       Queue
	)

	err := t.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			"",    // server-named
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare tail queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, string(t.cfg.Pattern), string(ExchangeExecutions), false, nil); err != nil {
			return fmt.Errorf("bind tail queue: %w", err)
		}

		deliveries, err = ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume tail queue: %w", err)
		}

		name = Queue(q.Name)
		return nil
	})

	return deliveries, name, err
}

// drain передаёт события в Handler, пока поток доставок открыт.
func (t *Tail) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			event, err := DecodeEvent(d.Body)
			if err != nil {
				t.logger.Warn("skip malformed event", "message_id", d.MessageId, "error", err)
				continue
			}

			if err := t.cfg.Handler(ctx, event); err != nil {
				t.logger.Error("handle event failed",
					"execution_id", event.ExecutionID,
					"seq", event.Seq,
					"error", err,
				)
			}
		}
	}
}

// DecodeEvent разбирает тело сообщения, опубликованного PublishExecutionEvent.
func DecodeEvent(body []byte) (domain.ExecutionEvent, error) {
	var envelope struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.ExecutionEvent{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if envelope.Type != MessageTypeExecutionEvent {
		return domain.ExecutionEvent{}, fmt.Errorf("unexpected message type %q", envelope.Type)
	}

	var event domain.ExecutionEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return domain.ExecutionEvent{}, fmt.Errorf("unmarshal execution event: %w", err)
	}
	return event, nil
}
