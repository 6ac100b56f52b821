// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (executor, rate limiter, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery, tracing, rate limit)
//   - response.go        — унифицированные ответы и обработка ошибок выполнения
//   - trigger_handler.go — обработчик GET / (запуск workflow)
//
// Каждый GET / запускает одно выполнение workflow и отвечает его результатом.
package api
