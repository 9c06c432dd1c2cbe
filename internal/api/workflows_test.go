package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveworks/drivehub/pkg/models"
)

func seedAgentPage(repo *fakeRepo) *models.Page {
	page := &models.Page{
		ID: "page-agent", DriveID: "d1", TenantID: "t1",
		Type: models.PageTypeAIChat, Title: "Writer", CreatedBy: "u1",
	}
	repo.pages[page.ID] = page
	return page
}

func TestValidateSteps(t *testing.T) {
	repo := newFakeRepo()
	seedAgentPage(repo)
	repo.pages["page-doc"] = &models.Page{
		ID: "page-doc", DriveID: "d1", TenantID: "t1",
		Type: models.PageTypeDocument, Title: "Doc", CreatedBy: "u1",
	}
	s := newTestServer(repo)

	valid := func(order int, overrides func(*workflowStepRequest)) workflowStepRequest {
		st := workflowStepRequest{
			StepOrder:      order,
			Name:           "step",
			AgentID:        "page-agent",
			PromptTemplate: "do {{topic}}",
		}
		if overrides != nil {
			overrides(&st)
		}
		return st
	}

	tests := []struct {
		name    string
		steps   []workflowStepRequest
		wantErr string
	}{
		{
			name:  "single valid step",
			steps: []workflowStepRequest{valid(0, nil)},
		},
		{
			name: "valid step with input schema",
			steps: []workflowStepRequest{valid(0, func(st *workflowStepRequest) {
				st.RequiresUserInput = true
				st.InputSchema = json.RawMessage(`{"type":"object"}`)
			})},
		},
		{
			name:    "no steps",
			wantErr: "at least one step",
		},
		{
			name:    "duplicate order",
			steps:   []workflowStepRequest{valid(0, nil), valid(0, nil)},
			wantErr: "unique and sequential",
		},
		{
			name:    "gap in orders",
			steps:   []workflowStepRequest{valid(0, nil), valid(2, nil)},
			wantErr: "unique and sequential",
		},
		{
			name: "empty prompt",
			steps: []workflowStepRequest{valid(0, func(st *workflowStepRequest) {
				st.PromptTemplate = "   "
			})},
			wantErr: "no prompt template",
		},
		{
			name: "unknown agent",
			steps: []workflowStepRequest{valid(0, func(st *workflowStepRequest) {
				st.AgentID = "page-missing"
			})},
			wantErr: "unknown agent",
		},
		{
			name: "agent is not an AI chat page",
			steps: []workflowStepRequest{valid(0, func(st *workflowStepRequest) {
				st.AgentID = "page-doc"
			})},
			wantErr: "must be an AI chat page",
		},
		{
			name: "input schema is not an object",
			steps: []workflowStepRequest{valid(0, func(st *workflowStepRequest) {
				st.InputSchema = json.RawMessage(`["not","an","object"]`)
			})},
			wantErr: "not a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testContext(t, http.MethodPost, "/api/v1/drives/d1/workflows", "", "t1", "u1")

			err := s.validateSteps(c, "t1", "d1", tt.steps)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
			he := err.(*echo.HTTPError)
			assert.Contains(t, he.Message.(string), tt.wantErr)
		})
	}
}
