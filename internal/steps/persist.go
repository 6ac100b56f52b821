package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
)

// PersistStep — запись одной записи в Record Store.
//
// Запись = ключ (key_field) + поля item. Ключ берётся по key_path,
// если он задан и резолвится в непустую строку, иначе — время старта
// выполнения ($$.Execution.StartTime).
//
// Outputs (записываются по result_path, по умолчанию $.ddb):
//
//	{"backend": "dynamodb", "status_code": 200}
type PersistStep struct {
	store repo.RecordStore
}

// NewPersistStep создаёт новый PersistStep.
func NewPersistStep(store repo.RecordStore) *PersistStep {
	return &PersistStep{store: store}
}

// Kind возвращает тип шага.
func (s *PersistStep) Kind() domain.StepKind {
	return domain.StepKindPersist
}

// Backend возвращает имя бэкенда хранилища.
func (s *PersistStep) Backend() string {
	if s.store == nil {
		return "none"
	}
	return s.store.Backend()
}

// Execute собирает запись и отправляет её в хранилище.
func (s *PersistStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg := req.Step.Persist
	if cfg == nil {
		return nil, fmt.Errorf("%w: persist block is required", ErrInvalidConfig)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: record store is not configured", repo.ErrStoreUnavailable)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	record, err := BuildRecord(req.Document, cfg)
	if err != nil {
		return nil, err
	}

	stepCtx, cancel := withBudget(ctx, req.Timeout)
	defer cancel()

	status, err := s.store.Put(stepCtx, cfg.Table, cfg.KeyField, record)
	if err != nil {
		// Общий таймаут важнее ошибки хранилища
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		// Истёк собственный бюджет шага — это отказ хранилища
		if stepCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", repo.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	return &Response{Output: status.AsMap()}, nil
}

// BuildRecord собирает запись для хранилища из документа.
//
// Составные значения (объекты, массивы) кодируются в JSON-строку.
func BuildRecord(doc *engine.Document, cfg *domain.PersistConfig) (domain.Record, error) {
	fields, err := engine.Resolve(doc, cfg.Item)
	if err != nil {
		return nil, err
	}

	record := make(domain.Record, len(fields)+1)
	for field, value := range fields {
		flat, err := flatten(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidConfig, field, err)
		}
		record[field] = flat
	}

	key, err := ResolveKey(doc, cfg)
	if err != nil {
		return nil, err
	}
	record[cfg.KeyField] = key

	return record, nil
}

// ResolveKey возвращает значение partition key.
func ResolveKey(doc *engine.Document, cfg *domain.PersistConfig) (string, error) {
	if cfg.KeyPath != "" {
		if value, err := doc.LookupString(cfg.KeyPath); err == nil {
			if s, ok := value.(string); ok && s != "" {
				return s, nil
			}
		}
	}

	value, err := doc.LookupString(domain.ExecutionStartTimePath)
	if err != nil {
		return "", err
	}
	s, _ := value.(string)
	return s, nil
}

func flatten(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}
