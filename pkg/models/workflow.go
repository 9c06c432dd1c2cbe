package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus represents the lifecycle state of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// StepStatus represents the state of a single execution step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// WorkflowTemplate is the definition of a multi-step AI-agent pipeline.
// Templates belong to a drive and are mutable by owners/admins; a template
// with active executions cannot be deleted.
type WorkflowTemplate struct {
	ID          string          `json:"id" db:"id"`
	DriveID     string          `json:"drive_id" db:"drive_id"`
	TenantID    string          `json:"-" db:"tenant_id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	CreatedBy   string          `json:"created_by" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	Steps       []*WorkflowStep `json:"steps,omitempty"`
}

// WorkflowStep is one step of a template. StepOrder values within a template
// are unique and sequential from 0 (enforced at the API validation layer).
// AgentID must reference an AI_CHAT page.
type WorkflowStep struct {
	ID                string          `json:"id" db:"id"`
	TemplateID        string          `json:"template_id" db:"template_id"`
	StepOrder         int             `json:"step_order" db:"step_order"`
	Name              string          `json:"name" db:"name"`
	AgentID           string          `json:"agent_id" db:"agent_id"`
	PromptTemplate    string          `json:"prompt_template" db:"prompt_template"`
	RequiresUserInput bool            `json:"requires_user_input" db:"requires_user_input"`
	InputSchema       json.RawMessage `json:"input_schema,omitempty" db:"input_schema"` // JSONB
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// WorkflowExecution is one run of a template. AccumulatedContext is merged
// additively after each step; CurrentStepOrder only moves forward.
type WorkflowExecution struct {
	ID                 string          `json:"id" db:"id"`
	TemplateID         string          `json:"template_id" db:"template_id"`
	DriveID            string          `json:"drive_id" db:"drive_id"`
	TenantID           string          `json:"-" db:"tenant_id"`
	Status             ExecutionStatus `json:"status" db:"status"`
	CurrentStepOrder   int             `json:"current_step_order" db:"current_step_order"`
	AccumulatedContext map[string]any  `json:"accumulated_context,omitempty" db:"accumulated_context"` // JSONB
	StartedBy          string          `json:"started_by" db:"started_by"`
	ErrorMessage       *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt          time.Time       `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// WorkflowExecutionStep is a per-step record of an execution. Step rows are
// snapshotted from the template at execution creation so that later template
// edits do not affect a running execution.
type WorkflowExecutionStep struct {
	ID                string          `json:"id" db:"id"`
	ExecutionID       string          `json:"execution_id" db:"execution_id"`
	StepOrder         int             `json:"step_order" db:"step_order"`
	Name              string          `json:"name" db:"name"`
	AgentID           string          `json:"agent_id" db:"agent_id"`
	PromptTemplate    string          `json:"prompt_template" db:"prompt_template"`
	RequiresUserInput bool            `json:"requires_user_input" db:"requires_user_input"`
	InputSchema       json.RawMessage `json:"input_schema,omitempty" db:"input_schema"`
	Status            StepStatus      `json:"status" db:"status"`
	AgentInput        *string         `json:"agent_input,omitempty" db:"agent_input"`
	AgentOutput       *string         `json:"agent_output,omitempty" db:"agent_output"`
	UserInput         json.RawMessage `json:"user_input,omitempty" db:"user_input"`
	ErrorMessage      *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt         *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// ExecutionState is the full view of an execution returned to clients
type ExecutionState struct {
	Execution      *WorkflowExecution       `json:"execution"`
	Steps          []*WorkflowExecutionStep `json:"steps"`
	TemplateName   string                   `json:"template_name"`
	TotalSteps     int                      `json:"total_steps"`
	CompletedSteps int                      `json:"completed_steps"`
	Progress       float64                  `json:"progress"`
}
