package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Корни путей.
const (
	rootState = "$"
	rootMeta  = "$$"
)

// segment — один сегмент пути: ключ объекта или индекс массива.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// Path — разобранное path-выражение.
//
// Грамматика:
//
//	path    := ("$" | "$$") segment*
//	segment := "." name | "[" index "]" | "['" name "']"
//
// Примеры:
//
//	$
//	$.http.body
//	$.http.headers.Date[0]
//	$.http.headers['Content-Type'][0]
//	$$.Execution.StartTime
type Path struct {
	raw  string
	meta bool
	segs []segment
}

// ParsePath разбирает path-выражение.
func ParsePath(raw string) (*Path, error) {
	p := &Path{raw: raw}

	var rest string
	switch {
	case strings.HasPrefix(raw, rootMeta):
		p.meta = true
		rest = raw[len(rootMeta):]
	case strings.HasPrefix(raw, rootState):
		rest = raw[len(rootState):]
	default:
		return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: must start with $ or $$", ErrInvalidPath)}
	}

	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			name := rest[:end]
			if name == "" || strings.ContainsAny(name, "]'") {
				return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: empty or malformed field name", ErrInvalidPath)}
			}
			p.segs = append(p.segs, segment{key: name})
			rest = rest[end:]

		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: unclosed bracket", ErrInvalidPath)}
			}
			inner := rest[1:end]
			rest = rest[end+1:]

			if len(inner) >= 2 && inner[0] == '\'' && inner[len(inner)-1] == '\'' {
				name := inner[1 : len(inner)-1]
				if name == "" {
					return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: empty quoted name", ErrInvalidPath)}
				}
				p.segs = append(p.segs, segment{key: name})
				continue
			}

			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: bad index %q", ErrInvalidPath, inner)}
			}
			p.segs = append(p.segs, segment{index: idx, isIndex: true})

		default:
			return nil, &PathError{Path: raw, Err: fmt.Errorf("%w: unexpected %q", ErrInvalidPath, rest[0])}
		}
	}

	return p, nil
}

// MustParsePath разбирает путь и паникует при ошибке.
// Используется для констант и в тестах.
func MustParsePath(raw string) *Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String возвращает исходное выражение.
func (p *Path) String() string {
	return p.raw
}

// IsMeta проверяет, ссылается ли путь на метаданные ($$).
func (p *Path) IsMeta() bool {
	return p.meta
}

// IsRoot проверяет, что путь — корень без сегментов.
func (p *Path) IsRoot() bool {
	return len(p.segs) == 0
}

// HasIndex проверяет, есть ли в пути индексные сегменты.
func (p *Path) HasIndex() bool {
	for _, s := range p.segs {
		if s.isIndex {
			return true
		}
	}
	return false
}

// Resolve вычисляет путь над значением root.
// Корень пути ($ или $$) не проверяется — вызывающий выбирает root сам.
func (p *Path) Resolve(root any) (any, error) {
	cur := root
	for _, seg := range p.segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, &PathError{Path: p.raw, Err: ErrPathNotFound}
		}
		cur = next
	}
	return cur, nil
}

// step делает один шаг по JSON-подобному значению.
func step(cur any, seg segment) (any, bool) {
	if seg.isIndex {
		switch v := cur.(type) {
		case []any:
			if seg.index < len(v) {
				return v[seg.index], true
			}
		case []string:
			if seg.index < len(v) {
				return v[seg.index], true
			}
		}
		return nil, false
	}

	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg.key]
		return val, ok
	case map[string]string:
		val, ok := v[seg.key]
		return val, ok
	}
	return nil, false
}

// Assign записывает value по пути внутри root и возвращает новый root.
//
// Поддерживаются только ключевые сегменты. Недостающие объекты создаются.
// Если промежуточное значение не объект — ErrResultPathConflict.
func (p *Path) Assign(root any, value any) (any, error) {
	if p.meta {
		return nil, &PathError{Path: p.raw, Err: fmt.Errorf("%w: metadata is read-only", ErrInvalidPath)}
	}
	if p.IsRoot() {
		return value, nil
	}
	if p.HasIndex() {
		return nil, &PathError{Path: p.raw, Err: fmt.Errorf("%w: index in result path", ErrInvalidPath)}
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, &PathError{Path: p.raw, Err: ErrResultPathConflict}
	}

	// Копируем верхний уровень, чтобы не менять значения, на которые
	// уже могли сослаться предыдущие шаги.
	out := cloneObject(obj)
	cur := out
	for i, seg := range p.segs {
		if i == len(p.segs)-1 {
			cur[seg.key] = value
			break
		}

		child, exists := cur[seg.key]
		if !exists || child == nil {
			next := make(map[string]any)
			cur[seg.key] = next
			cur = next
			continue
		}

		childObj, ok := child.(map[string]any)
		if !ok {
			return nil, &PathError{Path: p.raw, Err: ErrResultPathConflict}
		}
		next := cloneObject(childObj)
		cur[seg.key] = next
		cur = next
	}

	return out, nil
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
