package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/driveworks/drivehub/pkg/models"
)

func (s *Postgres) CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO workflow_templates (drive_id, tenant_id, name, description, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			tpl.DriveID, tpl.TenantID, tpl.Name, tpl.Description, tpl.CreatedBy,
		).Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		return insertSteps(ctx, tx, tpl.ID, tpl.Steps)
	})
}

func insertSteps(ctx context.Context, tx pgx.Tx, templateID string, steps []*models.WorkflowStep) error {
	for _, step := range steps {
		step.TemplateID = templateID
		err := tx.QueryRow(ctx,
			`INSERT INTO workflow_steps (template_id, step_order, name, agent_id, prompt_template, requires_user_input, input_schema)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			step.TemplateID, step.StepOrder, step.Name, step.AgentID,
			step.PromptTemplate, step.RequiresUserInput, step.InputSchema,
		).Scan(&step.ID, &step.CreatedAt, &step.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (s *Postgres) GetTemplate(ctx context.Context, tenantID, id string) (*models.WorkflowTemplate, error) {
	var tpl models.WorkflowTemplate
	err := s.db.QueryRow(ctx,
		`SELECT id, drive_id, tenant_id, name, description, created_by, created_at, updated_at
		 FROM workflow_templates WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&tpl.ID, &tpl.DriveID, &tpl.TenantID, &tpl.Name, &tpl.Description,
		&tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, template_id, step_order, name, agent_id, prompt_template, requires_user_input, input_schema, created_at, updated_at
		 FROM workflow_steps WHERE template_id = $1 ORDER BY step_order`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st models.WorkflowStep
		if err := rows.Scan(&st.ID, &st.TemplateID, &st.StepOrder, &st.Name, &st.AgentID,
			&st.PromptTemplate, &st.RequiresUserInput, &st.InputSchema, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		tpl.Steps = append(tpl.Steps, &st)
	}
	return &tpl, rows.Err()
}

func (s *Postgres) ListTemplates(ctx context.Context, driveID string) ([]*models.WorkflowTemplate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, drive_id, tenant_id, name, description, created_by, created_at, updated_at
		 FROM workflow_templates WHERE drive_id = $1 ORDER BY created_at`,
		driveID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.WorkflowTemplate
	for rows.Next() {
		var tpl models.WorkflowTemplate
		if err := rows.Scan(&tpl.ID, &tpl.DriveID, &tpl.TenantID, &tpl.Name, &tpl.Description,
			&tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &tpl)
	}
	return templates, rows.Err()
}

// UpdateTemplate replaces the template metadata and all of its steps. Running
// executions are unaffected because they hold their own step snapshots.
func (s *Postgres) UpdateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workflow_templates SET name = $1, description = $2, updated_at = now()
			 WHERE id = $3 AND tenant_id = $4`,
			tpl.Name, tpl.Description, tpl.ID, tpl.TenantID,
		)
		if err != nil {
			return mapErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workflow_steps WHERE template_id = $1`, tpl.ID); err != nil {
			return mapErr(err)
		}
		return insertSteps(ctx, tx, tpl.ID, tpl.Steps)
	})
}

// DeleteTemplate removes a template unless running or paused executions
// still reference it.
func (s *Postgres) DeleteTemplate(ctx context.Context, tenantID, id string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var active int
		err := tx.QueryRow(ctx,
			`SELECT count(*) FROM workflow_executions WHERE template_id = $1 AND status IN ('running', 'paused')`,
			id,
		).Scan(&active)
		if err != nil {
			return mapErr(err)
		}
		if active > 0 {
			return ErrActiveExecutions
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM workflow_templates WHERE id = $1 AND tenant_id = $2`,
			id, tenantID,
		)
		if err != nil {
			return mapErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateExecution inserts the execution and its snapshotted step rows in one
// transaction.
func (s *Postgres) CreateExecution(ctx context.Context, exec *models.WorkflowExecution, steps []*models.WorkflowExecutionStep) error {
	accumulated, err := json.Marshal(nonNilContext(exec.AccumulatedContext))
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO workflow_executions (template_id, drive_id, tenant_id, status, current_step_order, accumulated_context, started_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, started_at, updated_at`,
			exec.TemplateID, exec.DriveID, exec.TenantID, exec.Status,
			exec.CurrentStepOrder, accumulated, exec.StartedBy,
		).Scan(&exec.ID, &exec.StartedAt, &exec.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		for _, step := range steps {
			step.ExecutionID = exec.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO workflow_execution_steps
				 (execution_id, step_order, name, agent_id, prompt_template, requires_user_input, input_schema, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING id`,
				step.ExecutionID, step.StepOrder, step.Name, step.AgentID,
				step.PromptTemplate, step.RequiresUserInput, step.InputSchema, step.Status,
			).Scan(&step.ID)
			if err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}

func nonNilContext(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (s *Postgres) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var e models.WorkflowExecution
	var accumulated []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, template_id, drive_id, tenant_id, status, current_step_order, accumulated_context,
			started_by, error_message, started_at, completed_at, updated_at
		 FROM workflow_executions WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.TemplateID, &e.DriveID, &e.TenantID, &e.Status, &e.CurrentStepOrder,
		&accumulated, &e.StartedBy, &e.ErrorMessage, &e.StartedAt, &e.CompletedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(accumulated) > 0 {
		if err := json.Unmarshal(accumulated, &e.AccumulatedContext); err != nil {
			return nil, err
		}
	}
	if e.AccumulatedContext == nil {
		e.AccumulatedContext = map[string]any{}
	}
	return &e, nil
}

func (s *Postgres) ListExecutions(ctx context.Context, driveID string, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, template_id, drive_id, tenant_id, status, current_step_order, accumulated_context,
			started_by, error_message, started_at, completed_at, updated_at
		 FROM workflow_executions WHERE drive_id = $1 ORDER BY started_at DESC LIMIT $2`,
		driveID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*models.WorkflowExecution
	for rows.Next() {
		var e models.WorkflowExecution
		var accumulated []byte
		if err := rows.Scan(&e.ID, &e.TemplateID, &e.DriveID, &e.TenantID, &e.Status, &e.CurrentStepOrder,
			&accumulated, &e.StartedBy, &e.ErrorMessage, &e.StartedAt, &e.CompletedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(accumulated) > 0 {
			if err := json.Unmarshal(accumulated, &e.AccumulatedContext); err != nil {
				return nil, err
			}
		}
		execs = append(execs, &e)
	}
	return execs, rows.Err()
}

func (s *Postgres) ListExecutionSteps(ctx context.Context, executionID string) ([]*models.WorkflowExecutionStep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, execution_id, step_order, name, agent_id, prompt_template, requires_user_input,
			input_schema, status, agent_input, agent_output, user_input, error_message, started_at, completed_at
		 FROM workflow_execution_steps WHERE execution_id = $1 ORDER BY step_order`,
		executionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.WorkflowExecutionStep
	for rows.Next() {
		var st models.WorkflowExecutionStep
		if err := rows.Scan(&st.ID, &st.ExecutionID, &st.StepOrder, &st.Name, &st.AgentID,
			&st.PromptTemplate, &st.RequiresUserInput, &st.InputSchema, &st.Status,
			&st.AgentInput, &st.AgentOutput, &st.UserInput, &st.ErrorMessage,
			&st.StartedAt, &st.CompletedAt); err != nil {
			return nil, err
		}
		steps = append(steps, &st)
	}
	return steps, rows.Err()
}

func (s *Postgres) CountActiveExecutions(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM workflow_executions WHERE tenant_id = $1 AND status IN ('running', 'paused')`,
		tenantID,
	).Scan(&n)
	return n, err
}

// AdvanceExecution is a conditional forward move of the step pointer: it
// succeeds only while the execution is running and still at fromOrder, so a
// concurrent advancement of the same execution applies exactly once.
func (s *Postgres) AdvanceExecution(ctx context.Context, id string, fromOrder, toOrder int) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_executions SET current_step_order = $1, updated_at = now()
		 WHERE id = $2 AND status = 'running' AND current_step_order = $3 AND $1 > $3`,
		toOrder, id, fromOrder,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) SetExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, errMsg *string) error {
	var err error
	if status.Terminal() {
		_, err = s.db.Exec(ctx,
			`UPDATE workflow_executions SET status = $1, error_message = $2, completed_at = now(), updated_at = now()
			 WHERE id = $3`,
			status, errMsg, id,
		)
	} else {
		_, err = s.db.Exec(ctx,
			`UPDATE workflow_executions SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
			status, errMsg, id,
		)
	}
	return mapErr(err)
}

func (s *Postgres) UpdateExecutionContext(ctx context.Context, id string, accumulated map[string]any) error {
	data, err := json.Marshal(nonNilContext(accumulated))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE workflow_executions SET accumulated_context = $1, updated_at = now() WHERE id = $2`,
		data, id,
	)
	return mapErr(err)
}

func (s *Postgres) MarkStepRunning(ctx context.Context, stepID, agentInput string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_execution_steps SET status = 'running', agent_input = $1, started_at = now() WHERE id = $2`,
		agentInput, stepID,
	)
	return mapErr(err)
}

func (s *Postgres) MarkStepCompleted(ctx context.Context, stepID, output string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_execution_steps SET status = 'completed', agent_output = $1, completed_at = now() WHERE id = $2`,
		output, stepID,
	)
	return mapErr(err)
}

func (s *Postgres) MarkStepFailed(ctx context.Context, stepID, errMsg string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_execution_steps SET status = 'failed', error_message = $1, completed_at = now() WHERE id = $2`,
		errMsg, stepID,
	)
	return mapErr(err)
}

func (s *Postgres) SetStepUserInput(ctx context.Context, stepID string, input json.RawMessage) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_execution_steps SET user_input = $1 WHERE id = $2`,
		input, stepID,
	)
	return mapErr(err)
}

func (s *Postgres) SkipPendingSteps(ctx context.Context, executionID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workflow_execution_steps SET status = 'skipped' WHERE execution_id = $1 AND status = 'pending'`,
		executionID,
	)
	return mapErr(err)
}
