package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// ExecutionMeta — метаданные выполнения, которые хост кладёт в $$.
type ExecutionMeta struct {
	ID        string
	Name      string
	StartTime time.Time
	Trigger   domain.Trigger
}

// Document — контекст выполнения, который передаётся от шага к шагу.
//
// $ — изменяемое состояние (любое JSON-подобное значение).
// $$ — метаданные выполнения, только для чтения.
//
// Document создаётся заново на каждое выполнение и не разделяется
// между выполнениями, поэтому не требует синхронизации.
type Document struct {
	state any
	meta  map[string]any
}

// NewDocument создаёт документ с пустым объектом состояния.
func NewDocument(meta ExecutionMeta) *Document {
	query := make(map[string]any, len(meta.Trigger.Query))
	for key, values := range meta.Trigger.Query {
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		query[key] = list
	}

	return &Document{
		state: map[string]any{},
		meta: map[string]any{
			"Execution": map[string]any{
				"Id":        meta.ID,
				"Name":      meta.Name,
				"StartTime": FormatTimestamp(meta.StartTime),
				"Input": map[string]any{
					"source": meta.Trigger.Source,
					"path":   meta.Trigger.Path,
					"query":  query,
				},
			},
		},
	}
}

// FormatTimestamp форматирует время для $$.Execution.StartTime и ключей записей.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// State возвращает текущее состояние ($).
func (d *Document) State() any {
	return d.state
}

// Replace заменяет состояние целиком.
func (d *Document) Replace(state any) {
	d.state = state
}

// Lookup вычисляет путь над состоянием или метаданными.
func (d *Document) Lookup(p *Path) (any, error) {
	if p.IsMeta() {
		return p.Resolve(d.meta)
	}
	return p.Resolve(d.state)
}

// LookupString разбирает и вычисляет путь.
func (d *Document) LookupString(raw string) (any, error) {
	p, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	return d.Lookup(p)
}

// Set записывает значение по result path.
func (d *Document) Set(resultPath string, value any) error {
	p, err := ParsePath(resultPath)
	if err != nil {
		return err
	}

	state, err := p.Assign(d.state, value)
	if err != nil {
		return err
	}
	d.state = state
	return nil
}

// Snapshot сериализует документ для журнала выполнения.
func (d *Document) Snapshot() (json.RawMessage, error) {
	b, err := json.Marshal(map[string]any{
		"state":   d.state,
		"context": d.meta,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	return b, nil
}
