package engine

import (
	"github.com/shaiso/Relay/internal/domain"
)

// Mode — режим применения маппинга.
type Mode int

const (
	// ModeFilter — поля маппинга добавляются к состоянию,
	// остальные поля остаются как есть.
	ModeFilter Mode = iota

	// ModeFinal — состояние заменяется объектом ровно из полей маппинга.
	ModeFinal
)

// String возвращает имя режима.
func (m Mode) String() string {
	if m == ModeFinal {
		return "final"
	}
	return "filter"
}

// Resolve вычисляет все пути маппинга над документом.
//
// Все пути обязательные: первый нерезолвящийся путь возвращает
// ошибку ErrPathNotFound, частичный результат не возвращается.
func Resolve(doc *Document, mappings []domain.FieldMapping) (map[string]any, error) {
	fields := make(map[string]any, len(mappings))
	for _, m := range mappings {
		p, err := ParsePath(m.Path)
		if err != nil {
			return nil, err
		}

		value, err := doc.Lookup(p)
		if err != nil {
			return nil, err
		}
		fields[m.Field] = value
	}
	return fields, nil
}

// Apply вычисляет новое состояние документа по маппингу, не меняя документ.
//
// ModeFilter: текущее состояние (если это объект) плюс поля маппинга.
// ModeFinal: объект ровно из полей маппинга.
func Apply(doc *Document, mappings []domain.FieldMapping, mode Mode) (map[string]any, error) {
	fields, err := Resolve(doc, mappings)
	if err != nil {
		return nil, err
	}

	if mode == ModeFinal {
		return fields, nil
	}

	current, _ := doc.State().(map[string]any)
	merged := make(map[string]any, len(current)+len(fields))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged, nil
}

// Extract применяет маппинг к документу.
//
// При ошибке документ не меняется.
func Extract(doc *Document, mappings []domain.FieldMapping, mode Mode) error {
	state, err := Apply(doc, mappings, mode)
	if err != nil {
		return err
	}
	doc.Replace(state)
	return nil
}
