package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// TransformStep — filter-маппинг поверх текущего состояния.
//
// Поля маппинга добавляются к состоянию, остальные поля не трогаются.
// Единственная возможная ошибка — engine.ErrPathNotFound.
//
// Конфигурация:
//
//	transform:
//	  mappings:
//	    - {field: weather, path: $.http.body}
//	    - {field: event_date, path: "$.http.headers.Date[0]"}
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Kind возвращает тип шага.
func (s *TransformStep) Kind() domain.StepKind {
	return domain.StepKindTransform
}

// Execute вычисляет новое состояние.
func (s *TransformStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Step.Transform == nil {
		return nil, fmt.Errorf("%w: transform block is required", ErrInvalidConfig)
	}

	state, err := engine.Apply(req.Document, req.Step.Transform.Mappings, engine.ModeFilter)
	if err != nil {
		return nil, err
	}
	return &Response{Output: state}, nil
}

// ShapeStep — финальный маппинг.
//
// Состояние заменяется объектом ровно из полей маппинга;
// это то, что увидит вызывающий.
type ShapeStep struct{}

// NewShapeStep создаёт новый ShapeStep.
func NewShapeStep() *ShapeStep {
	return &ShapeStep{}
}

// Kind возвращает тип шага.
func (s *ShapeStep) Kind() domain.StepKind {
	return domain.StepKindShape
}

// Execute строит финальное состояние.
func (s *ShapeStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Step.Shape == nil {
		return nil, fmt.Errorf("%w: shape block is required", ErrInvalidConfig)
	}

	state, err := engine.Apply(req.Document, req.Step.Shape.Mappings, engine.ModeFinal)
	if err != nil {
		return nil, err
	}
	return &Response{Output: state}, nil
}
