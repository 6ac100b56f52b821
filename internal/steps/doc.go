// Package steps содержит реализации типов шагов workflow.
//
// # Обзор
//
// Каждый шаг получает read-only Document, выполняет действие и
// возвращает Output. Запись Output в состояние (по ResultPath шага)
// делает Orchestrator, поэтому упавший шаг никогда не меняет документ.
//
// # Registry
//
//	registry := steps.DefaultRegistry(store, nil)  // fetch, transform, persist, shape
//	step, err := registry.Get(domain.StepKindFetch)
//
// # Типы шагов
//
// ## Fetch (fetch.go)
//
// Один GET к статическому URL. Outputs:
//
//	{"status_code": 200, "headers": {"Date": ["..."]}, "body": "Sunny +18°C"}
//
// Ошибки: ErrUpstreamUnavailable, ErrUpstreamTimeout,
// ErrUpstreamError (*UpstreamStatusError с кодом ответа).
//
// ## Transform и Shape (transform.go)
//
// Маппинг полей через engine.Apply: transform в режиме filter,
// shape в режиме final. Ошибка — engine.ErrPathNotFound.
//
// ## Persist (persist.go)
//
// Запись в repo.RecordStore. Outputs:
//
//	{"backend": "memory", "status_code": 200}
//
// Ошибки: repo.ErrStoreUnavailable, repo.ErrStoreThrottled.
//
// # Отмена
//
// Если общий context выполнения завершён, шаги возвращают ошибку,
// для которой errors.Is(err, ErrStepCancelled) == true.
// Превращение её в WorkflowTimeout — задача Orchestrator.
package steps
