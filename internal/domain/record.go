package domain

import "net/url"

// Record — плоская запись для Record Store.
//
// Значения — только примитивы: string, float64/int, bool.
type Record map[string]any

// StoreStatus — подтверждение записи от Record Store.
type StoreStatus struct {
	// Backend — имя бэкенда ("dynamodb", "postgres", "memory").
	Backend string `json:"backend"`

	// StatusCode — код ответа хранилища (200 при успехе).
	StatusCode int `json:"status_code"`
}

// AsMap возвращает статус в виде JSON-подобного значения для контекста.
func (s StoreStatus) AsMap() map[string]any {
	return map[string]any{
		"backend":     s.Backend,
		"status_code": s.StatusCode,
	}
}

// Trigger — входящий запрос, запустивший выполнение.
type Trigger struct {
	// Source — источник запуска: "http", "cron", "cli".
	Source string `json:"source"`

	// Path — путь входящего запроса.
	Path string `json:"path,omitempty"`

	// Query — query входящего запроса.
	Query url.Values `json:"query,omitempty"`

	// TraceID — идентификатор трассы (если есть).
	TraceID string `json:"trace_id,omitempty"`
}
