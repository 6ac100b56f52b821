package repo

import (
	"context"
	"net/http"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
)

// MemoryStore — in-process Record Store для локального запуска и тестов.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.Record
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]domain.Record)}
}

// Backend возвращает имя бэкенда.
func (s *MemoryStore) Backend() string {
	return BackendMemory
}

// Put сохраняет копию записи.
func (s *MemoryStore) Put(ctx context.Context, table, keyField string, record domain.Record) (domain.StoreStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoreStatus{}, err
	}
	if err := checkTable(table); err != nil {
		return domain.StoreStatus{}, err
	}
	key, err := ItemKey(record, keyField)
	if err != nil {
		return domain.StoreStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]domain.Record)
		s.tables[table] = rows
	}
	rows[key] = copyRecord(record)

	return domain.StoreStatus{Backend: BackendMemory, StatusCode: http.StatusOK}, nil
}

// Get возвращает запись по ключу.
func (s *MemoryStore) Get(table, key string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tables[table][key]
	if !ok {
		return nil, false
	}
	return copyRecord(record), true
}

// Len возвращает количество записей в таблице.
func (s *MemoryStore) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func copyRecord(record domain.Record) domain.Record {
	cp := make(domain.Record, len(record))
	for k, v := range record {
		cp[k] = v
	}
	return cp
}
