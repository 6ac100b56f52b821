// Package engine содержит чистую логику workflow, без сети и хранилищ.
//
// Включает:
//   - document.go — контекст выполнения ($ — состояние, $$ — метаданные)
//   - path.go     — мини-язык путей ($.http.headers.Date[0])
//   - extract.go  — Field Extractor: filter и final маппинги
//   - parser.go   — разбор и валидация Definition (YAML/JSON)
//   - variants.go — встроенные варианты workflow
//
// Перед первым шагом хост обязан заполнить метаданные:
// $$.Execution.Id, $$.Execution.Name, $$.Execution.StartTime, $$.Execution.Input.
package engine
