package repo

import "errors"

// Общие ошибки Record Store.
var (
	// ErrStoreUnavailable — хранилище недоступно или отклонило запись.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrStoreThrottled — хранилище ограничило частоту записи.
	ErrStoreThrottled = errors.New("record store throttled")

	// ErrInvalidRecord — запись не может быть сохранена (нет ключа, пустая таблица).
	ErrInvalidRecord = errors.New("invalid record")
)
