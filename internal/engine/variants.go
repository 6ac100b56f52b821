package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Relay/internal/domain"
)

// Upstream по умолчанию для встроенных вариантов.
const (
	IPifyURL   = "https://api.ipify.org"
	WeatherURL = "https://wttr.in/?format=%25C+%25t"

	defaultTable    = "records"
	defaultKeyField = "timest"
)

// Имена встроенных вариантов.
const (
	VariantPassthrough = "passthrough"
	VariantIP          = "ip"
	VariantWeather     = "weather"
)

var variants = map[string]func() *domain.Definition{
	VariantPassthrough: passthroughVariant,
	VariantIP:          ipVariant,
	VariantWeather:     weatherVariant,
}

// Variant возвращает новую копию встроенного варианта.
func Variant(name string) (*domain.Definition, error) {
	build, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
	}
	return build(), nil
}

// VariantNames возвращает имена встроенных вариантов.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// passthroughVariant — только fetch, тело ответа возвращается как есть.
// Persist отсутствует.
func passthroughVariant() *domain.Definition {
	return &domain.Definition{
		Name:        VariantPassthrough,
		Description: "proxy the upstream body to the caller",
		Output:      "$.http.body",
		Steps: []domain.StepDef{
			{
				ID:         "fetch",
				Kind:       domain.StepKindFetch,
				ResultPath: "$.http",
				Fetch:      &domain.FetchConfig{URL: IPifyURL},
			},
		},
	}
}

// ipVariant — fetch → filter → persist.
// Ключ записи — время старта выполнения (внешнего timestamp нет).
func ipVariant() *domain.Definition {
	return &domain.Definition{
		Name:        VariantIP,
		Description: "record the caller-visible IP keyed by execution start time",
		Steps: []domain.StepDef{
			{
				ID:         "fetch",
				Kind:       domain.StepKindFetch,
				ResultPath: "$.http",
				Fetch:      &domain.FetchConfig{URL: IPifyURL},
			},
			{
				ID:   "filter",
				Kind: domain.StepKindTransform,
				Transform: &domain.MappingConfig{Mappings: []domain.FieldMapping{
					{Field: "ip", Path: "$.http.body"},
				}},
			},
			{
				ID:         "persist",
				Kind:       domain.StepKindPersist,
				ResultPath: "$.ddb",
				Persist: &domain.PersistConfig{
					Table:    defaultTable,
					KeyField: defaultKeyField,
					Item:     []domain.FieldMapping{{Field: "ip", Path: "$.ip"}},
				},
			},
		},
	}
}

// weatherVariant — fetch → filter → persist → shape.
// Ключ записи — заголовок Date ответа, при его отсутствии — время старта.
func weatherVariant() *domain.Definition {
	return &domain.Definition{
		Name:        VariantWeather,
		Description: "record the current weather keyed by the upstream Date header",
		Steps: []domain.StepDef{
			{
				ID:         "fetch",
				Kind:       domain.StepKindFetch,
				ResultPath: "$.http",
				TimeoutSec: 10,
				Fetch:      &domain.FetchConfig{URL: WeatherURL},
			},
			{
				ID:   "filter",
				Kind: domain.StepKindTransform,
				Transform: &domain.MappingConfig{Mappings: []domain.FieldMapping{
					{Field: "weather", Path: "$.http.body"},
					{Field: "event_date", Path: "$.http.headers.Date[0]"},
				}},
			},
			{
				ID:         "persist",
				Kind:       domain.StepKindPersist,
				ResultPath: "$.ddb",
				Persist: &domain.PersistConfig{
					Table:    defaultTable,
					KeyField: defaultKeyField,
					KeyPath:  "$.event_date",
					Item:     []domain.FieldMapping{{Field: "weather", Path: "$.weather"}},
				},
			},
			{
				ID:   "shape",
				Kind: domain.StepKindShape,
				Shape: &domain.MappingConfig{Mappings: []domain.FieldMapping{
					{Field: "weather", Path: "$.weather"},
					{Field: "event_date", Path: "$.event_date"},
					{Field: "ddb_status", Path: "$.ddb.status_code"},
				}},
			},
		},
	}
}
