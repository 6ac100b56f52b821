package engine

import "errors"

// Ошибки path-выражений и извлечения полей.
var (
	// ErrPathNotFound — путь не резолвится в текущем контексте.
	ErrPathNotFound = errors.New("path not found")

	// ErrInvalidPath — синтаксически неверное path-выражение.
	ErrInvalidPath = errors.New("invalid path expression")

	// ErrResultPathConflict — result path проходит через не-объект.
	ErrResultPathConflict = errors.New("result path conflicts with existing value")
)

// Ошибки валидации Definition.
var (
	// ErrEmptySteps — workflow не содержит шагов.
	ErrEmptySteps = errors.New("workflow has no steps")

	// ErrTooManySteps — шагов больше domain.MaxSteps.
	ErrTooManySteps = errors.New("workflow has too many steps")

	// ErrEmptyStepID — шаг не имеет ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrUnknownStepKind — неизвестный тип шага.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrStepConfigMismatch — блок конфигурации не соответствует kind.
	ErrStepConfigMismatch = errors.New("step config does not match kind")

	// ErrStepOrder — нарушен порядок fetch → transform → persist → shape.
	ErrStepOrder = errors.New("invalid step order")

	// ErrInvalidStepConfig — неверная конфигурация шага.
	ErrInvalidStepConfig = errors.New("invalid step config")

	// ErrInvalidTimeout — неверный таймаут.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrUnknownVariant — встроенный вариант не найден.
	ErrUnknownVariant = errors.New("unknown workflow variant")
)

// PathError — ошибка вычисления или разбора конкретного пути.
type PathError struct {
	Path string
	Err  error
}

// Error реализует интерфейс error.
func (e *PathError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *PathError) Unwrap() error {
	return e.Err
}

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  string // ID шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
