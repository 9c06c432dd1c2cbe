package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveworks/drivehub/pkg/models"
)

func seedPage(repo *fakeRepo, revision int) *models.Page {
	page := &models.Page{
		ID: "page-notes", DriveID: "d1", TenantID: "t1",
		Type: models.PageTypeDocument, Title: "Notes",
		Content: "hello", Revision: revision, CreatedBy: "u1",
	}
	repo.pages[page.ID] = page
	return page
}

func TestUpdatePageContentRequiresRevision(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	seedPage(repo, 0)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodPut, "/api/v1/pages/page-notes/content",
		`{"content":"updated"}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	err := s.UpdatePageContent(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionRequired, statusOf(t, err))
}

func TestUpdatePageContentStaleRevision(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	seedPage(repo, 3)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodPut, "/api/v1/pages/page-notes/content",
		`{"content":"updated","revision":2}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	err := s.UpdatePageContent(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestUpdatePageContentBumpsRevision(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	seedPage(repo, 3)
	s := newTestServer(repo)

	c, rec := testContext(t, http.MethodPut, "/api/v1/pages/page-notes/content",
		`{"content":"updated","revision":3}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	require.NoError(t, s.UpdatePageContent(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Revision)
	assert.Equal(t, "updated", got.Content)
	assert.Contains(t, repo.audits, "page.update")
}

func TestUpdatePageContentViewerForbidden(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleViewer)
	seedPage(repo, 0)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodPut, "/api/v1/pages/page-notes/content",
		`{"content":"updated","revision":0}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	err := s.UpdatePageContent(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestCreatePageRejectsUnknownType(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodPost, "/api/v1/drives/d1/pages",
		`{"type":"SPREADSHEET","title":"Budget"}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("d1")

	err := s.CreatePage(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestCreateTaskListPageCreatesMetadata(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u1", models.RoleMember)
	s := newTestServer(repo)

	c, rec := testContext(t, http.MethodPost, "/api/v1/drives/d1/pages",
		`{"type":"TASK_LIST","title":"Sprint"}`, "t1", "u1")
	c.SetParamNames("id")
	c.SetParamValues("d1")

	require.NoError(t, s.CreatePage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got models.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, repo.lists[got.ID], "task list metadata row should exist")
}

func TestGetPageHiddenAcrossTenants(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember("d1", "u2", models.RoleMember)
	seedPage(repo, 0)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodGet, "/api/v1/pages/page-notes", "", "t2", "u2")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	err := s.GetPage(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestGetPageNonMemberForbidden(t *testing.T) {
	repo := newFakeRepo()
	seedPage(repo, 0)
	s := newTestServer(repo)

	c, _ := testContext(t, http.MethodGet, "/api/v1/pages/page-notes", "", "t1", "u9")
	c.SetParamNames("id")
	c.SetParamValues("page-notes")

	err := s.GetPage(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}
