package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Relay/internal/domain"
)

// ParseDefinition разбирает Definition из YAML или JSON и валидирует её.
// Неизвестные поля считаются ошибкой.
func ParseDefinition(data []byte) (*domain.Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def domain.Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySteps
		}
		return nil, fmt.Errorf("decode workflow definition: %w", err)
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition читает Definition из файла.
func LoadDefinition(path string) (*domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return ParseDefinition(data)
}

// Validate выполняет полную валидацию Definition.
//
// Проверяет:
//   - Количество шагов (1..domain.MaxSteps)
//   - Уникальность ID шагов
//   - Соответствие kind и блока конфигурации
//   - Порядок fetch → transform → persist → shape, каждый не более одного раза
//   - Синтаксис всех путей
//   - Таймауты: общий ≤ domain.MaxTimeout, сумма бюджетов шагов ≤ общего
func Validate(def *domain.Definition) error {
	if def == nil || len(def.Steps) == 0 {
		return ErrEmptySteps
	}
	if len(def.Steps) > domain.MaxSteps {
		return NewValidationError("", "steps",
			fmt.Sprintf("workflow has %d steps, max %d", len(def.Steps), domain.MaxSteps), ErrTooManySteps)
	}

	if def.TimeoutSec < 0 || def.Timeout() > domain.MaxTimeout {
		return NewValidationError("", "timeout_sec",
			fmt.Sprintf("timeout must be between 1s and %s", domain.MaxTimeout), ErrInvalidTimeout)
	}

	if _, err := ParsePath(def.OutputPath()); err != nil {
		return NewValidationError("", "output", err.Error(), ErrInvalidPath)
	}

	stepIDs := make(map[string]bool, len(def.Steps))
	lastRank := -1
	var budget time.Duration

	for i := range def.Steps {
		step := &def.Steps[i]

		if err := ValidateStep(step, stepIDs); err != nil {
			return err
		}

		if i == 0 && step.Kind != domain.StepKindFetch {
			return NewValidationError(step.ID, "kind", "first step must be fetch", ErrStepOrder)
		}

		rank := step.Kind.Rank()
		if rank <= lastRank {
			return NewValidationError(step.ID, "kind",
				fmt.Sprintf("%s step cannot follow a step of the same or later stage", step.Kind), ErrStepOrder)
		}
		lastRank = rank

		budget += step.Timeout()
	}

	if budget > def.Timeout() {
		return NewValidationError("", "timeout_sec",
			fmt.Sprintf("step budgets (%s) exceed workflow timeout (%s)", budget, def.Timeout()), ErrInvalidTimeout)
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.StepDef, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}
	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if step.TimeoutSec < 0 {
		return NewValidationError(step.ID, "timeout_sec", "negative timeout", ErrInvalidTimeout)
	}

	if err := validateConfigBlock(step); err != nil {
		return err
	}

	switch step.Kind {
	case domain.StepKindFetch:
		if err := validateResultPath(step); err != nil {
			return err
		}
		return validateFetch(step)

	case domain.StepKindTransform:
		return validateMappings(step.ID, "transform.mappings", step.Transform.Mappings)

	case domain.StepKindPersist:
		if err := validateResultPath(step); err != nil {
			return err
		}
		return validatePersist(step)

	case domain.StepKindShape:
		return validateMappings(step.ID, "shape.mappings", step.Shape.Mappings)
	}

	return nil
}

// validateConfigBlock проверяет, что заполнен ровно блок, соответствующий kind.
func validateConfigBlock(step *domain.StepDef) error {
	blocks := map[domain.StepKind]bool{
		domain.StepKindFetch:     step.Fetch != nil,
		domain.StepKindTransform: step.Transform != nil,
		domain.StepKindPersist:   step.Persist != nil,
		domain.StepKindShape:     step.Shape != nil,
	}

	present, known := blocks[step.Kind]
	if !known {
		return NewValidationError(step.ID, "kind",
			fmt.Sprintf("unknown step kind: %q", step.Kind), ErrUnknownStepKind)
	}
	if !present {
		return NewValidationError(step.ID, string(step.Kind),
			fmt.Sprintf("%s step requires a %s block", step.Kind, step.Kind), ErrStepConfigMismatch)
	}

	for kind, set := range blocks {
		if set && kind != step.Kind {
			return NewValidationError(step.ID, string(kind),
				fmt.Sprintf("%s block is not allowed on a %s step", kind, step.Kind), ErrStepConfigMismatch)
		}
	}
	return nil
}

func validateResultPath(step *domain.StepDef) error {
	if step.ResultPath == "" {
		return nil
	}
	p, err := ParsePath(step.ResultPath)
	if err != nil {
		return NewValidationError(step.ID, "result_path", err.Error(), ErrInvalidPath)
	}
	if p.IsMeta() || p.HasIndex() {
		return NewValidationError(step.ID, "result_path",
			"result path must be $ or a chain of $.field segments", ErrInvalidPath)
	}
	return nil
}

func validateFetch(step *domain.StepDef) error {
	u, err := url.Parse(step.Fetch.URL)
	if err != nil || step.Fetch.URL == "" {
		return NewValidationError(step.ID, "fetch.url", "url is required and must parse", ErrInvalidStepConfig)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError(step.ID, "fetch.url",
			fmt.Sprintf("url must be absolute http(s): %s", step.Fetch.URL), ErrInvalidStepConfig)
	}
	return nil
}

func validatePersist(step *domain.StepDef) error {
	cfg := step.Persist
	if cfg.Table == "" {
		return NewValidationError(step.ID, "persist.table", "table is required", ErrInvalidStepConfig)
	}
	if cfg.KeyField == "" {
		return NewValidationError(step.ID, "persist.key_field", "key_field is required", ErrInvalidStepConfig)
	}
	if cfg.KeyPath != "" {
		if _, err := ParsePath(cfg.KeyPath); err != nil {
			return NewValidationError(step.ID, "persist.key_path", err.Error(), ErrInvalidPath)
		}
	}
	if err := validateMappings(step.ID, "persist.item", cfg.Item); err != nil {
		return err
	}
	for _, m := range cfg.Item {
		if m.Field == cfg.KeyField {
			return NewValidationError(step.ID, "persist.item",
				fmt.Sprintf("item field %q collides with key_field", m.Field), ErrInvalidStepConfig)
		}
	}
	return nil
}

func validateMappings(stepID, field string, mappings []domain.FieldMapping) error {
	if len(mappings) == 0 {
		return NewValidationError(stepID, field, "at least one mapping is required", ErrInvalidStepConfig)
	}

	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Field == "" {
			return NewValidationError(stepID, field, "mapping has empty field", ErrInvalidStepConfig)
		}
		if seen[m.Field] {
			return NewValidationError(stepID, field,
				fmt.Sprintf("duplicate mapping field: %s", m.Field), ErrInvalidStepConfig)
		}
		seen[m.Field] = true

		if _, err := ParsePath(m.Path); err != nil {
			return NewValidationError(stepID, field, err.Error(), ErrInvalidPath)
		}
	}
	return nil
}
