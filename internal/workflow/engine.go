// Package workflow drives multi-step AI-agent pipelines: templates are
// snapshotted into executions, each step renders a prompt against the
// accumulated context and runs an agent, and executions pause whenever a
// step requires user input.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/driveworks/drivehub/internal/agent"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

var (
	// ErrTemplateEmpty is returned when starting a template with no steps.
	ErrTemplateEmpty = errors.New("workflow template has no steps")
	// ErrNotAwaitingInput is returned when input is submitted to an
	// execution that is not paused on a user-input step.
	ErrNotAwaitingInput = errors.New("execution is not awaiting user input")
	// ErrInputRejected is returned when submitted input fails the step's
	// input schema.
	ErrInputRejected = errors.New("user input does not match the step input schema")
)

// Store is the persistence surface the engine needs.
type Store interface {
	GetTemplate(ctx context.Context, tenantID, id string) (*models.WorkflowTemplate, error)
	CreateExecution(ctx context.Context, exec *models.WorkflowExecution, steps []*models.WorkflowExecutionStep) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListExecutionSteps(ctx context.Context, executionID string) ([]*models.WorkflowExecutionStep, error)
	AdvanceExecution(ctx context.Context, id string, fromOrder, toOrder int) (bool, error)
	SetExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, errMsg *string) error
	UpdateExecutionContext(ctx context.Context, id string, accumulated map[string]any) error
	MarkStepRunning(ctx context.Context, stepID, agentInput string) error
	MarkStepCompleted(ctx context.Context, stepID, output string) error
	MarkStepFailed(ctx context.Context, stepID, errMsg string) error
	SetStepUserInput(ctx context.Context, stepID string, input json.RawMessage) error
	SkipPendingSteps(ctx context.Context, executionID string) error
}

// AgentRunner invokes an agent page with a rendered prompt.
type AgentRunner interface {
	ExecuteAgent(ctx context.Context, tenantID, agentPageID, prompt, userID string) (*agent.Result, error)
}

// Broadcaster fans execution events out to connected clients. Topics are
// drive-scoped.
type Broadcaster interface {
	Publish(topic string, payload any)
}

// Gate decides whether a tenant may start another execution. Billing plans
// implement it; a nil gate allows everything.
type Gate interface {
	AllowExecutionStart(ctx context.Context, tenantID string) error
}

// Logger is the logging interface the engine depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Event is one workflow notification published to a drive topic.
type Event struct {
	Type        string                 `json:"type"`
	ExecutionID string                 `json:"execution_id"`
	DriveID     string                 `json:"drive_id"`
	Status      models.ExecutionStatus `json:"status,omitempty"`
	StepOrder   *int                   `json:"step_order,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Engine executes workflow templates step by step.
type Engine struct {
	store       Store
	runner      AgentRunner
	broadcaster Broadcaster
	gate        Gate
	logger      Logger

	// locks serializes advancement per execution id within this process.
	// The conditional UPDATE in AdvanceExecution guards the cross-process
	// case; together they make concurrent advancement requests idempotent.
	locks sync.Map

	executionsStarted  metric.Int64Counter
	executionsFinished metric.Int64Counter
	stepsExecuted      metric.Int64Counter
	stepSeconds        metric.Float64Histogram
}

// NewEngine wires an Engine. broadcaster and gate may be nil.
func NewEngine(store Store, runner AgentRunner, broadcaster Broadcaster, gate Gate, logger Logger) *Engine {
	meter := otel.Meter("drivehub/workflow")
	started, _ := meter.Int64Counter("workflow.executions.started",
		metric.WithDescription("Workflow executions created"))
	finished, _ := meter.Int64Counter("workflow.executions.finished",
		metric.WithDescription("Workflow executions reaching a terminal status"))
	steps, _ := meter.Int64Counter("workflow.steps.executed",
		metric.WithDescription("Workflow steps executed"))
	stepSeconds, _ := meter.Float64Histogram("workflow.step.duration",
		metric.WithDescription("Agent step execution time"), metric.WithUnit("s"))

	return &Engine{
		store:              store,
		runner:             runner,
		broadcaster:        broadcaster,
		gate:               gate,
		logger:             logger,
		executionsStarted:  started,
		executionsFinished: finished,
		stepsExecuted:      steps,
		stepSeconds:        stepSeconds,
	}
}

// lockExecution serializes engine operations on one execution within this
// process. The returned func releases the lock.
func (e *Engine) lockExecution(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetExecutionState loads an execution with its steps and progress.
func (e *Engine) GetExecutionState(ctx context.Context, tenantID, executionID string) (*models.ExecutionState, error) {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	steps, err := e.store.ListExecutionSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}

	// The template can be gone by the time a finished execution is viewed;
	// the snapshot rows carry everything that matters.
	templateName := ""
	if tpl, err := e.store.GetTemplate(ctx, tenantID, exec.TemplateID); err == nil {
		templateName = tpl.Name
	}

	completed := 0
	for _, s := range steps {
		if s.Status == models.StepStatusCompleted {
			completed++
		}
	}
	progress := 0.0
	if len(steps) > 0 {
		progress = float64(completed) / float64(len(steps))
	}

	return &models.ExecutionState{
		Execution:      exec,
		Steps:          steps,
		TemplateName:   templateName,
		TotalSteps:     len(steps),
		CompletedSteps: completed,
		Progress:       progress,
	}, nil
}

// CreateExecution snapshots a template into a new execution and runs it
// until it pauses for input or reaches a terminal status.
func (e *Engine) CreateExecution(ctx context.Context, tenantID, driveID, templateID, startedBy string, initial map[string]any) (*models.ExecutionState, error) {
	if e.gate != nil {
		if err := e.gate.AllowExecutionStart(ctx, tenantID); err != nil {
			return nil, err
		}
	}

	tpl, err := e.store.GetTemplate(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.DriveID != driveID {
		return nil, repository.ErrNotFound
	}
	if len(tpl.Steps) == 0 {
		return nil, ErrTemplateEmpty
	}

	accumulated := map[string]any{}
	if len(initial) > 0 {
		for k, v := range initial {
			accumulated[k] = v
		}
		accumulated["initialContext"] = initial
	}

	exec := &models.WorkflowExecution{
		TemplateID:         tpl.ID,
		DriveID:            driveID,
		TenantID:           tenantID,
		Status:             models.ExecutionStatusRunning,
		CurrentStepOrder:   0,
		AccumulatedContext: accumulated,
		StartedBy:          startedBy,
	}
	snapshot := make([]*models.WorkflowExecutionStep, 0, len(tpl.Steps))
	for _, s := range tpl.Steps {
		snapshot = append(snapshot, &models.WorkflowExecutionStep{
			StepOrder:         s.StepOrder,
			Name:              s.Name,
			AgentID:           s.AgentID,
			PromptTemplate:    s.PromptTemplate,
			RequiresUserInput: s.RequiresUserInput,
			InputSchema:       s.InputSchema,
			Status:            models.StepStatusPending,
		})
	}
	if err := e.store.CreateExecution(ctx, exec, snapshot); err != nil {
		return nil, err
	}

	e.executionsStarted.Add(ctx, 1)
	e.publish(Event{Type: "execution.started", ExecutionID: exec.ID, DriveID: driveID, Status: exec.Status})
	e.logger.Info("workflow execution started",
		"execution_id", exec.ID, "template_id", tpl.ID, "drive_id", driveID, "steps", len(snapshot))

	if err := e.run(ctx, exec.ID); err != nil {
		return nil, err
	}
	return e.GetExecutionState(ctx, tenantID, exec.ID)
}

// SubmitUserInput validates and records the input of the paused step, then
// resumes the execution.
func (e *Engine) SubmitUserInput(ctx context.Context, tenantID, execID string, input json.RawMessage) (*models.ExecutionState, error) {
	if err := e.acceptUserInput(ctx, tenantID, execID, input); err != nil {
		return nil, err
	}
	if err := e.run(ctx, execID); err != nil {
		return nil, err
	}
	return e.GetExecutionState(ctx, tenantID, execID)
}

func (e *Engine) acceptUserInput(ctx context.Context, tenantID, execID string, input json.RawMessage) error {
	unlock := e.lockExecution(execID)
	defer unlock()

	exec, err := e.store.GetExecution(ctx, execID)
	if err != nil {
		return err
	}
	if exec.TenantID != tenantID {
		return repository.ErrNotFound
	}
	if exec.Status != models.ExecutionStatusPaused {
		return ErrNotAwaitingInput
	}

	steps, err := e.store.ListExecutionSteps(ctx, execID)
	if err != nil {
		return err
	}
	step := stepAt(steps, exec.CurrentStepOrder)
	if step == nil || !step.RequiresUserInput {
		return ErrNotAwaitingInput
	}

	if len(step.InputSchema) > 0 {
		if err := validateInput(step.InputSchema, input); err != nil {
			return err
		}
	}
	if err := e.store.SetStepUserInput(ctx, step.ID, input); err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal(input, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInputRejected, err)
	}
	exec.AccumulatedContext = mergeContext(exec.AccumulatedContext,
		"userInput"+strconv.Itoa(step.StepOrder), parsed)
	if err := e.store.UpdateExecutionContext(ctx, execID, exec.AccumulatedContext); err != nil {
		return err
	}

	next, err := transition(exec.Status, triggerResume)
	if err != nil {
		return err
	}
	if err := e.store.SetExecutionStatus(ctx, execID, next, nil); err != nil {
		return err
	}
	e.publish(Event{Type: "execution.resumed", ExecutionID: execID, DriveID: exec.DriveID, Status: next, StepOrder: &step.StepOrder})
	return nil
}

// Cancel moves a non-terminal execution to cancelled and marks the
// remaining pending steps skipped.
func (e *Engine) Cancel(ctx context.Context, tenantID, execID string) (*models.ExecutionState, error) {
	unlock := e.lockExecution(execID)
	defer unlock()

	exec, err := e.store.GetExecution(ctx, execID)
	if err != nil {
		return nil, err
	}
	if exec.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}

	next, err := transition(exec.Status, triggerCancel)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetExecutionStatus(ctx, execID, next, nil); err != nil {
		return nil, err
	}
	if err := e.store.SkipPendingSteps(ctx, execID); err != nil {
		return nil, err
	}

	e.executionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))
	e.publish(Event{Type: "execution.cancelled", ExecutionID: execID, DriveID: exec.DriveID, Status: next})
	e.logger.Info("workflow execution cancelled", "execution_id", execID)

	return e.GetExecutionState(ctx, tenantID, execID)
}

// run executes and advances the execution until it pauses, finishes, or
// fails. It is safe to call concurrently; only one caller makes progress.
func (e *Engine) run(ctx context.Context, execID string) error {
	unlock := e.lockExecution(execID)
	defer unlock()

	for {
		exec, err := e.store.GetExecution(ctx, execID)
		if err != nil {
			return err
		}
		if exec.Status != models.ExecutionStatusRunning {
			return nil
		}

		steps, err := e.store.ListExecutionSteps(ctx, execID)
		if err != nil {
			return err
		}
		step := stepAt(steps, exec.CurrentStepOrder)
		if step == nil {
			// Pointer past the snapshot; nothing left to execute.
			return e.finish(ctx, exec)
		}

		// A user-input step with no recorded input pauses the execution.
		if step.RequiresUserInput && len(step.UserInput) == 0 {
			next, err := transition(exec.Status, triggerPause)
			if err != nil {
				return err
			}
			if err := e.store.SetExecutionStatus(ctx, execID, next, nil); err != nil {
				return err
			}
			e.publish(Event{Type: "execution.paused", ExecutionID: execID, DriveID: exec.DriveID, Status: next, StepOrder: &step.StepOrder})
			e.logger.Info("workflow execution paused for input",
				"execution_id", execID, "step_order", step.StepOrder)
			return nil
		}

		// Already-completed steps (a resume after a crash) just advance.
		if step.Status != models.StepStatusCompleted {
			if err := e.executeWorkflowStep(ctx, exec, step); err != nil {
				return e.fail(ctx, exec, step, err)
			}
		}

		done, err := e.advanceToNextStep(ctx, exec, steps, step)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// executeWorkflowStep renders the step prompt, runs the agent, records the
// output, and merges it into the accumulated context.
func (e *Engine) executeWorkflowStep(ctx context.Context, exec *models.WorkflowExecution, step *models.WorkflowExecutionStep) error {
	prompt := ProcessPromptTemplate(step.PromptTemplate, exec.AccumulatedContext)
	if err := e.store.MarkStepRunning(ctx, step.ID, prompt); err != nil {
		return err
	}
	e.publish(Event{Type: "step.started", ExecutionID: exec.ID, DriveID: exec.DriveID, StepOrder: &step.StepOrder})

	start := time.Now()
	res, err := e.runner.ExecuteAgent(ctx, exec.TenantID, step.AgentID, prompt, exec.StartedBy)
	elapsed := time.Since(start)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	e.stepsExecuted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	e.stepSeconds.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))

	if err != nil {
		return err
	}

	if err := e.store.MarkStepCompleted(ctx, step.ID, res.Text); err != nil {
		return err
	}
	exec.AccumulatedContext = mergeContext(exec.AccumulatedContext,
		"step"+strconv.Itoa(step.StepOrder)+"Output", res.Text)
	if err := e.store.UpdateExecutionContext(ctx, exec.ID, exec.AccumulatedContext); err != nil {
		return err
	}

	e.publish(Event{Type: "step.completed", ExecutionID: exec.ID, DriveID: exec.DriveID, StepOrder: &step.StepOrder})
	e.logger.Debug("workflow step completed",
		"execution_id", exec.ID, "step_order", step.StepOrder,
		"tool_calls", res.ToolCalls, "duration_ms", elapsed.Milliseconds())
	return nil
}

// advanceToNextStep moves the pointer forward, or completes the execution
// when the last step is done. Reports done=true when the loop should stop.
func (e *Engine) advanceToNextStep(ctx context.Context, exec *models.WorkflowExecution, steps []*models.WorkflowExecutionStep, current *models.WorkflowExecutionStep) (bool, error) {
	next := current.StepOrder + 1
	if stepAt(steps, next) == nil {
		return true, e.finish(ctx, exec)
	}

	moved, err := e.store.AdvanceExecution(ctx, exec.ID, current.StepOrder, next)
	if err != nil {
		return true, err
	}
	if !moved {
		// Someone else advanced or the status changed under us; their run
		// loop owns the execution now.
		e.logger.Warn("concurrent advancement detected, yielding",
			"execution_id", exec.ID, "step_order", current.StepOrder)
		return true, nil
	}
	return false, nil
}

// finish completes an execution whose steps are exhausted.
func (e *Engine) finish(ctx context.Context, exec *models.WorkflowExecution) error {
	next, err := transition(exec.Status, triggerComplete)
	if err != nil {
		return err
	}
	if err := e.store.SetExecutionStatus(ctx, exec.ID, next, nil); err != nil {
		return err
	}
	e.executionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))
	e.publish(Event{Type: "execution.completed", ExecutionID: exec.ID, DriveID: exec.DriveID, Status: next})
	e.logger.Info("workflow execution completed", "execution_id", exec.ID)
	return nil
}

// fail records the step failure and escalates it to the execution.
func (e *Engine) fail(ctx context.Context, exec *models.WorkflowExecution, step *models.WorkflowExecutionStep, cause error) error {
	msg := cause.Error()
	if err := e.store.MarkStepFailed(ctx, step.ID, msg); err != nil {
		e.logger.Error("failed to record step failure", "execution_id", exec.ID, "error", err)
	}
	next, err := transition(exec.Status, triggerFail)
	if err != nil {
		return err
	}
	if err := e.store.SetExecutionStatus(ctx, exec.ID, next, &msg); err != nil {
		return err
	}

	e.executionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))
	e.publish(Event{Type: "step.failed", ExecutionID: exec.ID, DriveID: exec.DriveID, StepOrder: &step.StepOrder, Error: msg})
	e.publish(Event{Type: "execution.failed", ExecutionID: exec.ID, DriveID: exec.DriveID, Status: next, Error: msg})
	e.logger.Error("workflow execution failed",
		"execution_id", exec.ID, "step_order", step.StepOrder, "error", msg)
	return nil
}

func (e *Engine) publish(ev Event) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish("drive:"+ev.DriveID, ev)
}

func stepAt(steps []*models.WorkflowExecutionStep, order int) *models.WorkflowExecutionStep {
	for _, s := range steps {
		if s.StepOrder == order {
			return s
		}
	}
	return nil
}

func mergeContext(accumulated map[string]any, key string, value any) map[string]any {
	if accumulated == nil {
		accumulated = map[string]any{}
	}
	accumulated[key] = value
	return accumulated
}

// validateInput checks submitted input against a step's JSON schema.
func validateInput(schemaRaw, input json.RawMessage) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaRaw))
	if err != nil {
		return fmt.Errorf("invalid step input schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("input.json", schemaDoc); err != nil {
		return fmt.Errorf("invalid step input schema: %w", err)
	}
	schema, err := compiler.Compile("input.json")
	if err != nil {
		return fmt.Errorf("invalid step input schema: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInputRejected, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInputRejected, err)
	}
	return nil
}
