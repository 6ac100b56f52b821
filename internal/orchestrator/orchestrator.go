package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/steps"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Default configuration values.
const (
	defaultPublishTimeout = 2 * time.Second
)

// Orchestrator выполняет одну Definition.
//
// Каждый вызов Execute:
//   - Создаёт новый Document (состояние $ и метаданные $$)
//   - Выполняет шаги строго по порядку, без повторов
//   - Записывает результат шага по его ResultPath
//   - Ограничивает выполнение общим таймаутом Definition
//   - Пишет журнал выполнения в EventSink
//
// Выполнения не разделяют состояние, Execute можно вызывать конкурентно.
type Orchestrator struct {
	def      *domain.Definition
	registry *steps.Registry
	sink     EventSink

	now   func() time.Time
	newID func() string

	// Active executions (executionID → state)
	active map[string]*ExecutionState
	mu     sync.RWMutex

	// Lifecycle
	logger    *slog.Logger
	wg        sync.WaitGroup
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Definition — workflow для выполнения.
	Definition *domain.Definition

	// Registry — реализации шагов.
	Registry *steps.Registry

	// Sink — журнал выполнения (nil — только лог).
	Sink EventSink

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	// NewID — генератор execution id (default: uuid).
	NewID func() string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
//
// Definition валидируется, а для каждого её шага в Registry
// должна быть реализация.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Definition == nil {
		return nil, fmt.Errorf("%w: definition is required", ErrInvalidDefinition)
	}
	if err := engine.Validate(cfg.Definition); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidDefinition)
	}
	for _, step := range cfg.Definition.Steps {
		if !cfg.Registry.Has(step.Kind) {
			return nil, fmt.Errorf("%w: step %q: %v: %s", ErrInvalidDefinition, step.ID, steps.ErrStepNotFound, step.Kind)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NewLogSink(logger, slog.LevelDebug)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Orchestrator{
		def:      cfg.Definition,
		registry: cfg.Registry,
		sink:     sink,
		now:      now,
		newID:    newID,
		active:   make(map[string]*ExecutionState),
		logger:   logger,
	}, nil
}

// Definition возвращает выполняемую Definition.
func (o *Orchestrator) Definition() *domain.Definition {
	return o.def
}

// Result — итог выполнения.
type Result struct {
	ExecutionID string                 `json:"execution_id"`
	Workflow    string                 `json:"workflow"`
	Status      domain.ExecutionStatus `json:"status"`
	Output      any                    `json:"output,omitempty"`
	TraceID     string                 `json:"trace_id,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	Duration    time.Duration          `json:"duration"`
	Steps       []StepResult           `json:"steps"`
}

// Execute выполняет workflow для одного входящего запроса.
//
// Result возвращается всегда (кроме ErrOrchestratorStopped), в том числе
// вместе с ошибкой. Ошибка — *ExecutionError с категорией.
// Если общий таймаут истёк, категория всегда WorkflowTimeout,
// независимо от того, на каком шаге это случилось.
func (o *Orchestrator) Execute(ctx context.Context, trigger domain.Trigger) (*Result, error) {
	if o.IsStopped() {
		return nil, ErrOrchestratorStopped
	}
	o.wg.Add(1)
	defer o.wg.Done()

	id := o.newID()
	startedAt := o.now()

	ctx, span := telemetry.StartSpan(ctx, "execution", trigger.TraceID,
		"workflow", o.def.Name,
		"execution_id", id,
	)
	logger := telemetry.WithWorkflow(telemetry.WithExecutionID(span.Logger(), id), o.def.Name)

	state := NewExecutionState(id, o.def, startedAt, span.TraceID)
	o.addActive(state)
	defer o.removeActive(id)

	doc := engine.NewDocument(engine.ExecutionMeta{
		ID:        id,
		Name:      o.def.Name,
		StartTime: startedAt,
		Trigger:   trigger,
	})

	logger.Info("execution started", "source", trigger.Source, "timeout", o.def.Timeout())
	o.record(ctx, state, domain.ExecutionEvent{Type: domain.EventExecutionStarted}, doc)

	runCtx, cancel := context.WithTimeout(ctx, o.def.Timeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- o.run(runCtx, state, doc, trigger, logger)
	}()

	var runErr error
	finished := false
	select {
	case runErr = <-done:
		finished = true
	case <-runCtx.Done():
	}

	var execErr *ExecutionError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		stepID, stepKind := interruptedStep(state, runErr)
		execErr = &ExecutionError{
			Kind:        KindWorkflowTimeout,
			ExecutionID: id,
			StepID:      stepID,
			StepKind:    stepKind,
			Err:         fmt.Errorf("%w after %s", ErrWorkflowTimeout, o.def.Timeout()),
		}
	case !finished || errors.Is(runErr, steps.ErrStepCancelled):
		stepID, stepKind := interruptedStep(state, runErr)
		execErr = &ExecutionError{
			Kind:        KindCancelled,
			ExecutionID: id,
			StepID:      stepID,
			StepKind:    stepKind,
			Err:         fmt.Errorf("%w: %v", ErrExecutionCancelled, context.Cause(ctx)),
		}
	case runErr != nil:
		execErr = asExecutionError(runErr, id)
	}

	var output any
	if execErr == nil {
		out, err := doc.LookupString(o.def.OutputPath())
		if err != nil {
			execErr = &ExecutionError{Kind: KindPathNotFound, ExecutionID: id, Err: fmt.Errorf("output: %w", err)}
		} else {
			output = out
		}
	}

	// После таймаута горутина выполнения может ещё работать с документом,
	// поэтому снимок пишется только для завершённого выполнения.
	snapshotDoc := doc
	if !finished {
		snapshotDoc = nil
	}

	result := o.finish(ctx, state, snapshotDoc, execErr, logger)
	result.Output = output
	span.End(errOrNil(execErr))

	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// run выполняет шаги по порядку.
func (o *Orchestrator) run(ctx context.Context, state *ExecutionState, doc *engine.Document, trigger domain.Trigger, logger *slog.Logger) error {
	for i := range o.def.Steps {
		stepDef := &o.def.Steps[i]
		stepLogger := telemetry.WithStep(logger, stepDef.ID, string(stepDef.Kind))

		if err := ctx.Err(); err != nil {
			return &ExecutionError{Kind: KindCancelled, StepID: stepDef.ID, StepKind: stepDef.Kind, Err: fmt.Errorf("%w: %v", steps.ErrStepCancelled, err)}
		}

		step, err := o.registry.Get(stepDef.Kind)
		if err != nil {
			return &ExecutionError{Kind: KindInternal, StepID: stepDef.ID, StepKind: stepDef.Kind, Err: err}
		}

		state.MarkStepRunning(stepDef.ID)
		o.record(ctx, state, domain.ExecutionEvent{Type: domain.EventStepEntered, StepID: stepDef.ID, StepKind: stepDef.Kind}, doc)
		stepLogger.Debug("step started")

		started := time.Now()
		resp, err := step.Execute(ctx, steps.NewRequest(stepDef, doc, trigger))
		if err == nil {
			err = doc.Set(steps.ResultPath(stepDef), resp.Output)
		}
		elapsed := time.Since(started)

		if stepDef.Kind == domain.StepKindPersist {
			telemetry.StoreWritesTotal.WithLabelValues(o.storeBackend(), storeResult(err)).Inc()
		}

		if err != nil {
			kind := Classify(err)
			state.MarkStepFailed(stepDef.ID, elapsed, kind, err)
			telemetry.StepDuration.WithLabelValues(o.def.Name, string(stepDef.Kind), string(domain.StepStatusFailed)).Observe(elapsed.Seconds())
			o.record(ctx, state, domain.ExecutionEvent{
				Type:      domain.EventStepFailed,
				StepID:    stepDef.ID,
				StepKind:  stepDef.Kind,
				ErrorKind: string(kind),
				Error:     err.Error(),
			}, doc)
			stepLogger.Warn("step failed", "error_kind", kind, "error", err, "duration_ms", elapsed.Milliseconds())
			return &ExecutionError{Kind: kind, StepID: stepDef.ID, StepKind: stepDef.Kind, Err: err}
		}

		state.MarkStepSucceeded(stepDef.ID, elapsed)
		telemetry.StepDuration.WithLabelValues(o.def.Name, string(stepDef.Kind), string(domain.StepStatusSucceeded)).Observe(elapsed.Seconds())
		o.record(ctx, state, domain.ExecutionEvent{Type: domain.EventStepSucceeded, StepID: stepDef.ID, StepKind: stepDef.Kind}, doc)
		stepLogger.Debug("step succeeded", "duration_ms", elapsed.Milliseconds())
	}
	return nil
}

// finish фиксирует финальный статус, метрики и последнее событие журнала.
func (o *Orchestrator) finish(ctx context.Context, state *ExecutionState, doc *engine.Document, execErr *ExecutionError, logger *slog.Logger) *Result {
	status := domain.ExecutionStatusSucceeded
	event := domain.ExecutionEvent{Type: domain.EventExecutionSucceeded}

	if execErr != nil {
		status = domain.ExecutionStatusFailed
		event.Type = domain.EventExecutionFailed
		if execErr.Kind == KindWorkflowTimeout {
			status = domain.ExecutionStatusTimedOut
			event.Type = domain.EventExecutionTimedOut
		}
		event.StepID = execErr.StepID
		event.StepKind = execErr.StepKind
		event.ErrorKind = string(execErr.Kind)
		event.Error = execErr.Error()
	}

	state.Finish(status)
	elapsed := o.now().Sub(state.StartedAt)

	telemetry.ExecutionsTotal.WithLabelValues(o.def.Name, string(status)).Inc()
	telemetry.ExecutionDuration.WithLabelValues(o.def.Name).Observe(elapsed.Seconds())
	o.record(ctx, state, event, doc)

	if execErr != nil {
		logger.Warn("execution failed",
			"status", status,
			"error_kind", execErr.Kind,
			"step_id", execErr.StepID,
			"error", execErr.Err,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		logger.Info("execution succeeded", "duration_ms", elapsed.Milliseconds())
	}

	return &Result{
		ExecutionID: state.ID,
		Workflow:    o.def.Name,
		Status:      status,
		TraceID:     state.TraceID,
		StartedAt:   state.StartedAt,
		Duration:    elapsed,
		Steps:       state.Steps(),
	}
}

// record отправляет событие в журнал.
//
// Публикация не зависит от отмены выполнения и ограничена
// собственным таймаутом. Ошибки только логируются.
func (o *Orchestrator) record(ctx context.Context, state *ExecutionState, event domain.ExecutionEvent, doc *engine.Document) {
	state.history.Lock()
	defer state.history.Unlock()

	// Шаг, прерванный таймаутом, может завершиться уже после финального события.
	if !event.Type.IsTerminal() && state.Status().IsTerminal() {
		return
	}

	event.ExecutionID = state.ID
	event.Workflow = o.def.Name
	event.Seq = state.NextSeq()
	event.TraceID = state.TraceID
	event.Timestamp = o.now().UTC()

	if doc != nil {
		if snapshot, err := doc.Snapshot(); err == nil {
			event.Document = snapshot
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()

	if err := o.sink.Publish(pubCtx, event); err != nil {
		telemetry.EventsPublishFailures.WithLabelValues(o.sink.Name()).Inc()
		o.logger.Warn("failed to publish execution event",
			"execution_id", state.ID,
			"event", event.Type,
			"error", err,
		)
	}
}

func (o *Orchestrator) storeBackend() string {
	step, err := o.registry.Get(domain.StepKindPersist)
	if err != nil {
		return "none"
	}
	if p, ok := step.(interface{ Backend() string }); ok {
		return p.Backend()
	}
	return "custom"
}

// Stop перестаёт принимать новые выполнения и ждёт текущие.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...", "active_executions", o.ActiveCount())

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

func (o *Orchestrator) addActive(state *ExecutionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[state.ID] = state
}

func (o *Orchestrator) removeActive(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}

// ActiveCount возвращает количество выполнений в процессе.
func (o *Orchestrator) ActiveCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.active)
}

// ActiveStats возвращает статистику по активному выполнению.
func (o *Orchestrator) ActiveStats(id string) (ExecutionStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.active[id]
	if !ok {
		return ExecutionStats{}, false
	}
	return state.Stats(), true
}

func asExecutionError(err error, id string) *ExecutionError {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		execErr.ExecutionID = id
		return execErr
	}
	return &ExecutionError{Kind: Classify(err), ExecutionID: id, Err: err}
}

// interruptedStep возвращает шаг, на котором выполнение было прервано.
func interruptedStep(state *ExecutionState, err error) (string, domain.StepKind) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.StepID != "" {
		return execErr.StepID, execErr.StepKind
	}
	id, kind, _ := state.CurrentStep()
	return id, kind
}

func errOrNil(err *ExecutionError) error {
	if err == nil {
		return nil
	}
	return err
}
