package steps

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// Registry — реестр типов шагов.
//
// Позволяет регистрировать и получать реализации Step по типу.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.StepKind]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.StepKind]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
// client может быть nil — тогда используется клиент по умолчанию.
func DefaultRegistry(store repo.RecordStore, client *http.Client) *Registry {
	r := NewRegistry()

	r.Register(NewFetchStep(client))
	r.Register(NewTransformStep())
	r.Register(NewPersistStep(store))
	r.Register(NewShapeStep())

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Kind()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(kind domain.StepKind) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, kind)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(kind domain.StepKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[kind]
	return exists
}

// Kinds возвращает список всех зарегистрированных типов шагов.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.steps))
	for k := range r.steps {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(kind domain.StepKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, kind)
}
