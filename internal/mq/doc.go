// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// RabbitMQ используется как внешний журнал выполнений: Orchestrator
// публикует события (ExecutionStarted, StepEntered, ...) через EventSink,
// логика workflow их не читает.
//
// Структура:
//   - connection.go — соединение журнала: reconnect с backoff, топология на каждом канале
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация событий, EventSink
//   - tail.go       — подписка на события (relay-cli events tail)
//
// Exchanges:
//   - relay.executions — события выполнений (topic, execution.<workflow>.<type>)
//   - relay.dlq        — dead letter queue
package mq
