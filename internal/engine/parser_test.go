package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/Relay/internal/domain"
)

func fetchStep(id string) domain.StepDef {
	return domain.StepDef{
		ID:    id,
		Kind:  domain.StepKindFetch,
		Fetch: &domain.FetchConfig{URL: "https://example.com"},
	}
}

func mappingStep(id string, kind domain.StepKind) domain.StepDef {
	cfg := &domain.MappingConfig{Mappings: []domain.FieldMapping{{Field: "x", Path: "$.http.body"}}}
	step := domain.StepDef{ID: id, Kind: kind}
	if kind == domain.StepKindShape {
		step.Shape = cfg
	} else {
		step.Transform = cfg
	}
	return step
}

func persistStep(id string) domain.StepDef {
	return domain.StepDef{
		ID:   id,
		Kind: domain.StepKindPersist,
		Persist: &domain.PersistConfig{
			Table:    "records",
			KeyField: "timest",
			Item:     []domain.FieldMapping{{Field: "x", Path: "$.x"}},
		},
	}
}

// expectValidationError проверяет, что err — ValidationError с нужной базовой ошибкой.
func expectValidationError(t *testing.T, err, want error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestValidate_EmptySteps(t *testing.T) {
	tests := []struct {
		name string
		def  *domain.Definition
	}{
		{name: "nil definition", def: nil},
		{name: "empty steps", def: &domain.Definition{Steps: []domain.StepDef{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.def)
			if !errors.Is(err, ErrEmptySteps) {
				t.Errorf("expected ErrEmptySteps, got %v", err)
			}
		})
	}
}

func TestValidate_BuiltInVariants(t *testing.T) {
	for _, name := range VariantNames() {
		t.Run(name, func(t *testing.T) {
			def, err := Variant(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := Validate(def); err != nil {
				t.Errorf("variant %s should be valid: %v", name, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		steps []domain.StepDef
		want  error
	}{
		{
			name:  "empty step id",
			steps: []domain.StepDef{fetchStep("")},
			want:  ErrEmptyStepID,
		},
		{
			name:  "duplicate step id",
			steps: []domain.StepDef{fetchStep("a"), mappingStep("a", domain.StepKindTransform)},
			want:  ErrDuplicateStepID,
		},
		{
			name:  "unknown kind",
			steps: []domain.StepDef{{ID: "a", Kind: "delay"}},
			want:  ErrUnknownStepKind,
		},
		{
			name:  "missing config block",
			steps: []domain.StepDef{{ID: "a", Kind: domain.StepKindFetch}},
			want:  ErrStepConfigMismatch,
		},
		{
			name: "extra config block",
			steps: []domain.StepDef{{
				ID:        "a",
				Kind:      domain.StepKindFetch,
				Fetch:     &domain.FetchConfig{URL: "https://example.com"},
				Transform: &domain.MappingConfig{},
			}},
			want: ErrStepConfigMismatch,
		},
		{
			name:  "first step is not fetch",
			steps: []domain.StepDef{mappingStep("a", domain.StepKindTransform)},
			want:  ErrStepOrder,
		},
		{
			name:  "shape before persist",
			steps: []domain.StepDef{fetchStep("a"), mappingStep("b", domain.StepKindShape), persistStep("c")},
			want:  ErrStepOrder,
		},
		{
			name:  "two fetch steps",
			steps: []domain.StepDef{fetchStep("a"), fetchStep("b")},
			want:  ErrStepOrder,
		},
		{
			name: "relative url",
			steps: []domain.StepDef{{
				ID: "a", Kind: domain.StepKindFetch, Fetch: &domain.FetchConfig{URL: "/local"},
			}},
			want: ErrInvalidStepConfig,
		},
		{
			name: "bad result path",
			steps: []domain.StepDef{{
				ID: "a", Kind: domain.StepKindFetch, ResultPath: "$.http[0]",
				Fetch: &domain.FetchConfig{URL: "https://example.com"},
			}},
			want: ErrInvalidPath,
		},
		{
			name: "bad mapping path",
			steps: []domain.StepDef{fetchStep("a"), {
				ID: "b", Kind: domain.StepKindTransform,
				Transform: &domain.MappingConfig{Mappings: []domain.FieldMapping{{Field: "x", Path: "http.body"}}},
			}},
			want: ErrInvalidPath,
		},
		{
			name: "duplicate mapping field",
			steps: []domain.StepDef{fetchStep("a"), {
				ID: "b", Kind: domain.StepKindTransform,
				Transform: &domain.MappingConfig{Mappings: []domain.FieldMapping{
					{Field: "x", Path: "$.a"}, {Field: "x", Path: "$.b"},
				}},
			}},
			want: ErrInvalidStepConfig,
		},
		{
			name: "item field collides with key field",
			steps: []domain.StepDef{fetchStep("a"), {
				ID: "b", Kind: domain.StepKindPersist,
				Persist: &domain.PersistConfig{
					Table: "records", KeyField: "timest",
					Item: []domain.FieldMapping{{Field: "timest", Path: "$.x"}},
				},
			}},
			want: ErrInvalidStepConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&domain.Definition{Name: "test", Steps: tt.steps})
			expectValidationError(t, err, tt.want)
		})
	}
}

func TestValidate_TooManySteps(t *testing.T) {
	steps := []domain.StepDef{fetchStep("a")}
	for _, id := range []string{"b", "c", "d", "e", "f"} {
		steps = append(steps, mappingStep(id, domain.StepKindTransform))
	}

	err := Validate(&domain.Definition{Steps: steps})
	expectValidationError(t, err, ErrTooManySteps)
}

func TestValidate_Timeouts(t *testing.T) {
	// Общий таймаут выше максимума
	def := &domain.Definition{TimeoutSec: 600, Steps: []domain.StepDef{fetchStep("a")}}
	expectValidationError(t, Validate(def), ErrInvalidTimeout)

	// Бюджет шагов больше общего таймаута
	step := fetchStep("a")
	step.TimeoutSec = 30
	def = &domain.Definition{TimeoutSec: 10, Steps: []domain.StepDef{step}}
	expectValidationError(t, Validate(def), ErrInvalidTimeout)

	// Бюджет укладывается
	def.TimeoutSec = 30
	if err := Validate(def); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseDefinition_YAML(t *testing.T) {
	data := []byte(`
name: weather
timeout_sec: 30
steps:
  - id: fetch
    kind: fetch
    result_path: $.http
    timeout_sec: 5
    fetch:
      url: https://wttr.in/?format=3
  - id: filter
    kind: transform
    transform:
      mappings:
        - {field: weather, path: $.http.body}
        - {field: event_date, path: "$.http.headers.Date[0]"}
  - id: persist
    kind: persist
    result_path: $.ddb
    persist:
      table: records
      key_field: timest
      key_path: $.event_date
      item:
        - {field: weather, path: $.weather}
`)

	def, err := ParseDefinition(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "weather" {
		t.Errorf("expected name weather, got %s", def.Name)
	}
	if len(def.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(def.Steps))
	}
	if def.Steps[2].Persist.KeyPath != "$.event_date" {
		t.Errorf("unexpected key path: %s", def.Steps[2].Persist.KeyPath)
	}
	if def.Steps[0].Timeout().Seconds() != 5 {
		t.Errorf("expected 5s step budget, got %v", def.Steps[0].Timeout())
	}
}

func TestParseDefinition_JSON(t *testing.T) {
	data := []byte(`{"name": "ip", "output": "$.http.body", "steps": [
		{"id": "fetch", "kind": "fetch", "result_path": "$.http", "fetch": {"url": "https://api.ipify.org"}}
	]}`)

	def, err := ParseDefinition(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.OutputPath() != "$.http.body" {
		t.Errorf("unexpected output path: %s", def.OutputPath())
	}
}

func TestParseDefinition_UnknownField(t *testing.T) {
	data := []byte(`
name: x
retries: 3
steps:
  - id: fetch
    kind: fetch
    fetch: {url: "https://example.com"}
`)

	if _, err := ParseDefinition(data); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseDefinition_Empty(t *testing.T) {
	_, err := ParseDefinition(nil)
	if !errors.Is(err, ErrEmptySteps) {
		t.Errorf("expected ErrEmptySteps, got %v", err)
	}
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	content := "name: p\noutput: $.http.body\nsteps:\n  - id: fetch\n    kind: fetch\n    result_path: $.http\n    fetch: {url: \"https://api.ipify.org\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "p" {
		t.Errorf("expected name p, got %s", def.Name)
	}

	if _, err := LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestVariant_Unknown(t *testing.T) {
	_, err := Variant("nope")
	if !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestVariant_ReturnsCopy(t *testing.T) {
	a, _ := Variant(VariantWeather)
	b, _ := Variant(VariantWeather)

	a.Steps[0].Fetch.URL = "https://changed.example"
	if b.Steps[0].Fetch.URL != WeatherURL {
		t.Error("variants should not share state")
	}
}
