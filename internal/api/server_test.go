package api

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// fakeRepo implements the slice of the repository the handlers under test
// touch. Embedding the interface keeps the fake small; calling anything
// unimplemented panics, which is what a test should do.
type fakeRepo struct {
	repository.Repository

	pages   map[string]*models.Page
	members map[string]models.Role // driveID + "/" + userID
	lists   map[string]*models.TaskList
	tasks   map[string]*models.TaskItem
	audits  []string
	updates []string // task ids that got a status update
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		pages:   map[string]*models.Page{},
		members: map[string]models.Role{},
		lists:   map[string]*models.TaskList{},
		tasks:   map[string]*models.TaskItem{},
	}
}

func (f *fakeRepo) addMember(driveID, userID string, role models.Role) {
	f.members[driveID+"/"+userID] = role
}

func (f *fakeRepo) GetPage(ctx context.Context, tenantID, id string) (*models.Page, error) {
	p, ok := f.pages[id]
	if !ok || p.TenantID != tenantID || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) CreatePage(ctx context.Context, page *models.Page) error {
	page.ID = "page-" + strconv.Itoa(len(f.pages)+1)
	f.pages[page.ID] = page
	return nil
}

func (f *fakeRepo) CreateTaskListPage(ctx context.Context, page *models.Page, list *models.TaskList) error {
	if err := f.CreatePage(ctx, page); err != nil {
		return err
	}
	list.ID = "list-" + page.ID
	list.PageID = page.ID
	f.lists[page.ID] = list
	return nil
}

func (f *fakeRepo) UpdatePageContent(ctx context.Context, tenantID, id, content string, revision int) (*models.Page, error) {
	p, err := f.GetPage(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if p.Revision != revision {
		return nil, repository.ErrStaleRevision
	}
	updated := *p
	updated.Content = content
	updated.Revision++
	f.pages[id] = &updated
	return &updated, nil
}

func (f *fakeRepo) GetDriveMember(ctx context.Context, driveID, userID string) (*models.DriveMember, error) {
	role, ok := f.members[driveID+"/"+userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.DriveMember{DriveID: driveID, UserID: userID, Role: role}, nil
}

func (f *fakeRepo) GetTaskListByPage(ctx context.Context, pageID string) (*models.TaskList, error) {
	list, ok := f.lists[pageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return list, nil
}

func (f *fakeRepo) GetTaskItem(ctx context.Context, id string) (*models.TaskItem, error) {
	item, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return item, nil
}

func (f *fakeRepo) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error {
	item, ok := f.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	item.Status = status
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeRepo) CreateAudit(ctx context.Context, entry *models.AuditEntry) error {
	f.audits = append(f.audits, entry.Action)
	return nil
}

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Warn(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}

func newTestServer(repo *fakeRepo) *Server {
	return &Server{Repo: repo, Logger: testLogger{}}
}

// testContext builds an echo context carrying an authenticated identity.
func testContext(t *testing.T, method, target, body, tenantID, userID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	ctx := context.WithValue(req.Context(), "tenant_id", tenantID)
	ctx = context.WithValue(ctx, "user_id", userID)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return c, rec
}

// statusOf unwraps the HTTP status a handler error maps to.
func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}
