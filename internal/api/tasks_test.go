package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveworks/drivehub/pkg/models"
)

func seedTaskList(repo *fakeRepo) (*models.Page, *models.TaskList) {
	page := &models.Page{
		ID: "page-sprint", DriveID: "d1", TenantID: "t1",
		Type: models.PageTypeTaskList, Title: "Sprint", CreatedBy: "u1",
	}
	repo.pages[page.ID] = page
	list := &models.TaskList{ID: "list-1", PageID: page.ID}
	repo.lists[page.ID] = list
	return page, list
}

func TestBatchUpdateTasksPartialFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	_, list := seedTaskList(repo)
	repo.tasks["task-a"] = &models.TaskItem{ID: "task-a", TaskListID: list.ID, Status: models.TaskStatusTodo}
	repo.tasks["task-other"] = &models.TaskItem{ID: "task-other", TaskListID: "list-elsewhere", Status: models.TaskStatusTodo}
	s := newTestServer(repo)

	body := `{"updates":[
		{"task_id":"task-a","status":"done"},
		{"task_id":"task-missing","status":"done"},
		{"task_id":"task-other","status":"done"},
		{"task_id":"task-a","status":"nonsense"}
	]}`
	c, rec := testContext(t, http.MethodPost, "/api/v1/pages/page-sprint/tasks/batch", body, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-sprint")

	require.NoError(t, s.BatchUpdateTasks(c))
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var resp struct {
		Results []batchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 4)

	assert.Equal(t, http.StatusNoContent, resp.Results[0].Status)
	assert.Equal(t, http.StatusNotFound, resp.Results[1].Status)
	assert.Equal(t, http.StatusNotFound, resp.Results[2].Status)
	assert.Equal(t, http.StatusBadRequest, resp.Results[3].Status)

	// Only the in-list task moved, and the foreign one stayed untouched.
	assert.Equal(t, models.TaskStatusDone, repo.tasks["task-a"].Status)
	assert.Equal(t, models.TaskStatusTodo, repo.tasks["task-other"].Status)
}

func TestBatchUpdateTasksAllSucceed(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	_, list := seedTaskList(repo)
	repo.tasks["task-a"] = &models.TaskItem{ID: "task-a", TaskListID: list.ID, Status: models.TaskStatusTodo}
	repo.tasks["task-b"] = &models.TaskItem{ID: "task-b", TaskListID: list.ID, Status: models.TaskStatusInProgress}
	s := newTestServer(repo)

	body := `{"updates":[
		{"task_id":"task-a","status":"in_progress"},
		{"task_id":"task-b","status":"done"}
	]}`
	c, rec := testContext(t, http.MethodPost, "/api/v1/pages/page-sprint/tasks/batch", body, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-sprint")

	require.NoError(t, s.BatchUpdateTasks(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"task-a", "task-b"}, repo.updates)
}

func TestBatchUpdateTasksRejectsNonTaskListPage(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	repo.pages["page-doc"] = &models.Page{
		ID: "page-doc", DriveID: "d1", TenantID: "t1",
		Type: models.PageTypeDocument, Title: "Doc", CreatedBy: "u1",
	}
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodPost, "/api/v1/pages/page-doc/tasks/batch",
		`{"updates":[{"task_id":"task-a","status":"done"}]}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-doc")

	err := s.BatchUpdateTasks(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}
