// Package orchestrator выполняет workflow для одного входящего запроса.
//
// Orchestrator отвечает за:
//   - Создание Document с метаданными выполнения ($$)
//   - Последовательное выполнение шагов без повторов
//   - Запись результата шага по его ResultPath
//   - Общий таймаут выполнения (WorkflowTimeout важнее ошибки шага)
//   - Классификацию ошибок (ErrorKind) для ответа вызывающему
//   - Журнал выполнения через EventSink (slog, RabbitMQ)
//
// Ошибка любого шага терминальна: следующие шаги не выполняются,
// поэтому запись в Record Store не происходит, если шаги до неё упали.
package orchestrator
