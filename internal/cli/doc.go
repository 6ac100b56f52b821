// Package cli реализует инструмент командной строки Relay.
//
// # Обзор
//
// CLI умеет две вещи: вызывать развёрнутый relay-api по HTTP
// и выполнять workflow локально, без сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Relay API. Инкапсулирует запрос GET /,
// чтение заголовков X-Execution-Id / X-Trace-Id
// и разбор ответа с ошибкой (APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	resp, err := client.Invoke(ctx, nil, "")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, служебные сообщения — в stderr.
// Это позволяет использовать pipe: relay invoke | jq .
//
// ## Commands
//
//   - invoke, workflow — через API (NewInvokeCmd, NewWorkflowCmd)
//   - run, validate, variants — локально (NewRunCmd, NewValidateCmd, NewVariantsCmd)
//   - events tail — журнал выполнений из RabbitMQ (NewEventsCmd)
//
// Фабричные функции принимают clientFn и outputFn — замыкания для
// ленивого создания Client и Output после парсинга PersistentFlags.
package cli
