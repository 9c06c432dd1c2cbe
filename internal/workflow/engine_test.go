package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveworks/drivehub/internal/agent"
	"github.com/driveworks/drivehub/pkg/models"
)

const (
	testTenant = "tenant-1"
	testDrive  = "drive-1"
	testUser   = "user-1"
)

type fakeStore struct {
	mu     sync.Mutex
	tpl    *models.WorkflowTemplate
	execs  map[string]*models.WorkflowExecution
	steps  map[string][]*models.WorkflowExecutionStep
	nextID int
}

func newFakeStore(tpl *models.WorkflowTemplate) *fakeStore {
	return &fakeStore{
		tpl:   tpl,
		execs: map[string]*models.WorkflowExecution{},
		steps: map[string][]*models.WorkflowExecutionStep{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) GetTemplate(_ context.Context, tenantID, id string) (*models.WorkflowTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tpl == nil || f.tpl.ID != id || f.tpl.TenantID != tenantID {
		return nil, fmt.Errorf("template not found")
	}
	return f.tpl, nil
}

func (f *fakeStore) CreateExecution(_ context.Context, exec *models.WorkflowExecution, steps []*models.WorkflowExecutionStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec.ID = f.id("exec")
	exec.StartedAt = time.Now()
	f.execs[exec.ID] = exec
	for _, s := range steps {
		s.ID = f.id("estep")
		s.ExecutionID = exec.ID
	}
	f.steps[exec.ID] = steps
	return nil
}

func (f *fakeStore) GetExecution(_ context.Context, id string) (*models.WorkflowExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.execs[id]
	if !ok {
		return nil, fmt.Errorf("execution not found")
	}
	cp := *exec
	return &cp, nil
}

func (f *fakeStore) ListExecutionSteps(_ context.Context, executionID string) ([]*models.WorkflowExecutionStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps[executionID], nil
}

func (f *fakeStore) AdvanceExecution(_ context.Context, id string, fromOrder, toOrder int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec := f.execs[id]
	if exec == nil || exec.Status != models.ExecutionStatusRunning ||
		exec.CurrentStepOrder != fromOrder || toOrder <= fromOrder {
		return false, nil
	}
	exec.CurrentStepOrder = toOrder
	return true, nil
}

func (f *fakeStore) SetExecutionStatus(_ context.Context, id string, status models.ExecutionStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec := f.execs[id]
	exec.Status = status
	exec.ErrorMessage = errMsg
	if status.Terminal() {
		now := time.Now()
		exec.CompletedAt = &now
	}
	return nil
}

func (f *fakeStore) UpdateExecutionContext(_ context.Context, id string, accumulated map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[id].AccumulatedContext = accumulated
	return nil
}

func (f *fakeStore) findStep(stepID string) *models.WorkflowExecutionStep {
	for _, steps := range f.steps {
		for _, s := range steps {
			if s.ID == stepID {
				return s
			}
		}
	}
	return nil
}

func (f *fakeStore) MarkStepRunning(_ context.Context, stepID, agentInput string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findStep(stepID)
	s.Status = models.StepStatusRunning
	s.AgentInput = &agentInput
	now := time.Now()
	s.StartedAt = &now
	return nil
}

func (f *fakeStore) MarkStepCompleted(_ context.Context, stepID, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findStep(stepID)
	s.Status = models.StepStatusCompleted
	s.AgentOutput = &output
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

func (f *fakeStore) MarkStepFailed(_ context.Context, stepID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findStep(stepID)
	s.Status = models.StepStatusFailed
	s.ErrorMessage = &errMsg
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

func (f *fakeStore) SetStepUserInput(_ context.Context, stepID string, input json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findStep(stepID).UserInput = input
	return nil
}

func (f *fakeStore) SkipPendingSteps(_ context.Context, executionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.steps[executionID] {
		if s.Status == models.StepStatusPending {
			s.Status = models.StepStatusSkipped
		}
	}
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string // recorded prompts
	inUse   atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
	reply   func(agentID, prompt string) (string, error)
}

func (f *fakeRunner) ExecuteAgent(_ context.Context, _, agentID, prompt, _ string) (*agent.Result, error) {
	if f.inUse.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inUse.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.reply != nil {
		return runnerResult(f.reply(agentID, prompt))
	}
	return &agent.Result{Text: "echo: " + prompt}, nil
}

func runnerResult(text string, err error) (*agent.Result, error) {
	if err != nil {
		return nil, err
	}
	return &agent.Result{Text: text}, nil
}

func (f *fakeRunner) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeBroadcaster) Publish(_ string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := payload.(Event); ok {
		f.events = append(f.events, ev)
	}
}

func (f *fakeBroadcaster) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testTemplate(steps ...*models.WorkflowStep) *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:       "tpl-1",
		DriveID:  testDrive,
		TenantID: testTenant,
		Name:     "content pipeline",
		Steps:    steps,
	}
}

func step(order int, prompt string) *models.WorkflowStep {
	return &models.WorkflowStep{
		StepOrder:      order,
		Name:           fmt.Sprintf("step %d", order),
		AgentID:        "agent-page",
		PromptTemplate: prompt,
	}
}

func TestCreateExecutionRunsToCompletion(t *testing.T) {
	tpl := testTemplate(
		step(0, "Draft an outline about {{topic}}"),
		step(1, "Expand this outline: {{step0.output}}"),
	)
	store := newFakeStore(tpl)
	runner := &fakeRunner{}
	bc := &fakeBroadcaster{}
	eng := NewEngine(store, runner, bc, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser,
		map[string]any{"topic": "sea otters"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Execution.Status)
	assert.Equal(t, 2, state.TotalSteps)
	assert.Equal(t, 2, state.CompletedSteps)
	assert.Equal(t, 1.0, state.Progress)
	assert.Equal(t, "content pipeline", state.TemplateName)

	// Initial context reached the first prompt, step 0 output reached the
	// second.
	require.Equal(t, 2, runner.promptCount())
	assert.Equal(t, "Draft an outline about sea otters", runner.calls[0])
	assert.Equal(t, "Expand this outline: echo: Draft an outline about sea otters", runner.calls[1])

	assert.Equal(t, "echo: Draft an outline about sea otters", state.Execution.AccumulatedContext["step0Output"])
	assert.Contains(t, state.Execution.AccumulatedContext, "step1Output")

	assert.Equal(t, []string{
		"execution.started",
		"step.started", "step.completed",
		"step.started", "step.completed",
		"execution.completed",
	}, bc.types())
}

func TestCreateExecutionEmptyTemplate(t *testing.T) {
	store := newFakeStore(testTemplate())
	eng := NewEngine(store, &fakeRunner{}, nil, nil, nopLogger{})

	_, err := eng.CreateExecution(context.Background(), testTenant, testDrive, "tpl-1", testUser, nil)
	assert.ErrorIs(t, err, ErrTemplateEmpty)
}

func TestExecutionPausesForUserInput(t *testing.T) {
	input := step(1, "Summarize with feedback {{userInput1}}")
	input.RequiresUserInput = true
	input.InputSchema = json.RawMessage(`{
		"type": "object",
		"properties": {"feedback": {"type": "string"}},
		"required": ["feedback"]
	}`)
	tpl := testTemplate(step(0, "Draft it"), input)
	store := newFakeStore(tpl)
	runner := &fakeRunner{}
	eng := NewEngine(store, runner, nil, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, state.Execution.Status)
	assert.Equal(t, 1, state.Execution.CurrentStepOrder)
	assert.Equal(t, 1, runner.promptCount())

	// Schema rejection leaves the execution paused.
	_, err = eng.SubmitUserInput(context.Background(), testTenant, state.Execution.ID,
		json.RawMessage(`{"feedback": 42}`))
	require.ErrorIs(t, err, ErrInputRejected)

	state, err = eng.SubmitUserInput(context.Background(), testTenant, state.Execution.ID,
		json.RawMessage(`{"feedback": "tighten the intro"}`))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, state.Execution.Status)
	require.Equal(t, 2, runner.promptCount())
	assert.Equal(t, `Summarize with feedback {"feedback":"tighten the intro"}`, runner.calls[1])
}

func TestSubmitUserInputNotPaused(t *testing.T) {
	tpl := testTemplate(step(0, "Draft it"))
	store := newFakeStore(tpl)
	eng := NewEngine(store, &fakeRunner{}, nil, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, state.Execution.Status)

	_, err = eng.SubmitUserInput(context.Background(), testTenant, state.Execution.ID,
		json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotAwaitingInput)
}

func TestStepFailureEscalates(t *testing.T) {
	tpl := testTemplate(step(0, "Draft it"), step(1, "Polish it"))
	store := newFakeStore(tpl)
	runner := &fakeRunner{reply: func(_, prompt string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	}}
	bc := &fakeBroadcaster{}
	eng := NewEngine(store, runner, bc, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, state.Execution.Status)
	require.NotNil(t, state.Execution.ErrorMessage)
	assert.Equal(t, "model unavailable", *state.Execution.ErrorMessage)

	require.Len(t, state.Steps, 2)
	assert.Equal(t, models.StepStatusFailed, state.Steps[0].Status)
	assert.Equal(t, models.StepStatusPending, state.Steps[1].Status)
	assert.Contains(t, bc.types(), "execution.failed")
}

func TestCancelSkipsPendingSteps(t *testing.T) {
	input := step(0, "need input first")
	input.RequiresUserInput = true
	tpl := testTemplate(input, step(1, "then this"))
	store := newFakeStore(tpl)
	eng := NewEngine(store, &fakeRunner{}, nil, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, state.Execution.Status)

	state, err = eng.Cancel(context.Background(), testTenant, state.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, state.Execution.Status)
	for _, s := range state.Steps {
		assert.Equal(t, models.StepStatusSkipped, s.Status)
	}

	// Cancelling a terminal execution is rejected.
	_, err = eng.Cancel(context.Background(), testTenant, state.Execution.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentAdvancementExecutesEachStepOnce(t *testing.T) {
	tpl := testTemplate(step(0, "one"), step(1, "two"), step(2, "three"))
	store := newFakeStore(tpl)
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	eng := NewEngine(store, runner, nil, nil, nopLogger{})

	// Create paused so the run loop has work left when the racers start.
	first := step(0, "one")
	first.RequiresUserInput = true
	tpl.Steps[0] = first

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, state.Execution.Status)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.SubmitUserInput(context.Background(), testTenant, state.Execution.ID,
				json.RawMessage(`{"go": true}`))
		}(i)
	}
	wg.Wait()

	// Exactly one submission wins; the rest see a non-paused execution.
	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrNotAwaitingInput)
		}
	}
	assert.Equal(t, 1, accepted)

	final, err := eng.GetExecutionState(context.Background(), testTenant, state.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Execution.Status)

	// Each remaining step ran exactly once and never in parallel.
	assert.Equal(t, 3, runner.promptCount())
	assert.False(t, runner.overlap.Load())
}

func TestGetExecutionStateTenantScoped(t *testing.T) {
	tpl := testTemplate(step(0, "one"))
	store := newFakeStore(tpl)
	eng := NewEngine(store, &fakeRunner{}, nil, nil, nopLogger{})

	state, err := eng.CreateExecution(context.Background(), testTenant, testDrive, tpl.ID, testUser, nil)
	require.NoError(t, err)

	_, err = eng.GetExecutionState(context.Background(), "other-tenant", state.Execution.ID)
	assert.Error(t, err)
}
