package domain

import "time"

// Ограничения на определение workflow.
const (
	// MaxSteps — максимальное число шагов в одном workflow.
	MaxSteps = 5

	// DefaultTimeout — таймаут выполнения по умолчанию.
	DefaultTimeout = time.Minute

	// MaxTimeout — верхняя граница таймаута одного выполнения.
	MaxTimeout = 5 * time.Minute
)

// StepKind — тип шага workflow.
type StepKind string

const (
	// StepKindFetch — исходящий GET к upstream.
	StepKindFetch StepKind = "fetch"

	// StepKindTransform — filter-маппинг поверх текущего состояния.
	StepKindTransform StepKind = "transform"

	// StepKindPersist — запись одной записи в Record Store.
	StepKindPersist StepKind = "persist"

	// StepKindShape — финальный маппинг, заменяющий состояние целиком.
	StepKindShape StepKind = "shape"
)

// Rank возвращает позицию типа шага в конвейере.
// Шаги в Definition должны идти по возрастанию Rank.
func (k StepKind) Rank() int {
	switch k {
	case StepKindFetch:
		return 0
	case StepKindTransform:
		return 1
	case StepKindPersist:
		return 2
	case StepKindShape:
		return 3
	default:
		return -1
	}
}

// Definition — статическое описание workflow.
//
// Definition строится один раз при старте (из встроенного варианта
// или YAML-файла), проходит engine.Validate и дальше не меняется.
type Definition struct {
	// Name — имя workflow (например, "weather", "ip").
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// TimeoutSec — общий таймаут одного выполнения в секундах.
	// 0 означает DefaultTimeout.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	// Output — путь, который вычисляется над финальным состоянием
	// и возвращается как результат выполнения. По умолчанию "$".
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Steps — шаги в порядке выполнения.
	Steps []StepDef `json:"steps" yaml:"steps"`
}

// Timeout возвращает общий таймаут выполнения.
func (d *Definition) Timeout() time.Duration {
	if d.TimeoutSec <= 0 {
		return DefaultTimeout
	}
	return time.Duration(d.TimeoutSec) * time.Second
}

// OutputPath возвращает путь результата с учётом значения по умолчанию.
func (d *Definition) OutputPath() string {
	if d.Output == "" {
		return "$"
	}
	return d.Output
}

// HasPersist проверяет, пишет ли workflow в Record Store.
func (d *Definition) HasPersist() bool {
	for i := range d.Steps {
		if d.Steps[i].Kind == StepKindPersist {
			return true
		}
	}
	return false
}

// StepDef — определение шага.
//
// Это tagged union: Kind определяет, какой из блоков конфигурации
// (Fetch, Transform, Persist, Shape) заполнен. Ровно один блок
// должен быть не nil, что проверяет engine.Validate.
type StepDef struct {
	// ID — уникальный идентификатор шага в рамках workflow.
	ID string `json:"id" yaml:"id"`

	// Kind — тип шага.
	Kind StepKind `json:"kind" yaml:"kind"`

	// ResultPath — куда записать результат шага в состоянии.
	// "$" заменяет состояние целиком. Для transform и shape не используется.
	ResultPath string `json:"result_path,omitempty" yaml:"result_path,omitempty"`

	// TimeoutSec — собственный бюджет шага. 0 — только общий таймаут.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	Fetch     *FetchConfig   `json:"fetch,omitempty" yaml:"fetch,omitempty"`
	Transform *MappingConfig `json:"transform,omitempty" yaml:"transform,omitempty"`
	Persist   *PersistConfig `json:"persist,omitempty" yaml:"persist,omitempty"`
	Shape     *MappingConfig `json:"shape,omitempty" yaml:"shape,omitempty"`
}

// Timeout возвращает бюджет шага (0, если не задан).
func (s *StepDef) Timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSec) * time.Second
}

// FetchConfig — конфигурация fetch шага.
type FetchConfig struct {
	// URL — адрес upstream. Задаётся статически, из запроса не берётся.
	URL string `json:"url" yaml:"url"`

	// Headers — статические заголовки исходящего запроса.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// PassthroughQuery — добавлять query входящего запроса к URL.
	PassthroughQuery bool `json:"passthrough_query,omitempty" yaml:"passthrough_query,omitempty"`
}

// FieldMapping — пара (поле назначения, путь источника).
type FieldMapping struct {
	Field string `json:"field" yaml:"field"`
	Path  string `json:"path" yaml:"path"`
}

// MappingConfig — конфигурация transform и shape шагов.
type MappingConfig struct {
	Mappings []FieldMapping `json:"mappings" yaml:"mappings"`
}

// PersistConfig — конфигурация persist шага.
type PersistConfig struct {
	// Table — имя таблицы в Record Store.
	Table string `json:"table" yaml:"table"`

	// KeyField — имя поля partition key (например, "timest").
	KeyField string `json:"key_field" yaml:"key_field"`

	// KeyPath — путь к внешнему timestamp (например, "$.event_date").
	// Если не задан или не резолвится — используется ExecutionStartTimePath.
	KeyPath string `json:"key_path,omitempty" yaml:"key_path,omitempty"`

	// Item — поля записи помимо ключа.
	Item []FieldMapping `json:"item" yaml:"item"`
}

// ExecutionStartTimePath — путь к времени старта выполнения в метаданных.
const ExecutionStartTimePath = "$$.Execution.StartTime"
