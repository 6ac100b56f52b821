package mq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeExecutions Exchange = "relay.executions"
	ExchangeDLQ        Exchange = "relay.dlq"
)

// Queues — имена очередей.
const (
	QueueExecutionHistory Queue = "executions.history"
	QueueDLQExecutions    Queue = "dlq.executions"
)

// Routing keys.
const (
	// RoutingKeyAllExecutions — все события выполнений (topic pattern).
	RoutingKeyAllExecutions RoutingKey = "execution.#"
	RoutingKeyDLQExecutions RoutingKey = "executions"
)

// EventRoutingKey возвращает routing key для события журнала:
// execution.<workflow>.<type>, например execution.weather.StepFailed.
func EventRoutingKey(event domain.ExecutionEvent) RoutingKey {
	workflow := strings.NewReplacer(".", "_", "*", "_", "#", "_").Replace(event.Workflow)
	if workflow == "" {
		workflow = "unknown"
	}
	return RoutingKey("execution." + workflow + "." + string(event.Type))
}

// declareTopology объявляет exchanges, queues и bindings журнала.
// Вызывается на каждом новом канале, объявления идемпотентны.
func declareTopology(ch *amqp.Channel) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	return bindQueues(ch)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeExecutions, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	historyArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQExecutions),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// executions.history — долговременный журнал, отклонённые события уходят в DLQ
		{QueueExecutionHistory, historyArgs},

		// dlq.executions — сама DLQ очередь
		{QueueDLQExecutions, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueExecutionHistory, RoutingKeyAllExecutions, ExchangeExecutions},
		{QueueDLQExecutions, RoutingKeyDLQExecutions, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Relay RabbitMQ Topology:

    relay.executions (topic)
    └── executions.history [routing: execution.#]
            Consumer: relay-cli events tail / внешние подписчики
            DLQ: dlq.executions

    relay.dlq (direct)
    └── dlq.executions [routing: executions]
            Manual processing
  `
}
