package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/driveworks/drivehub/pkg/models"
)

// TenantStore manages tenants and their users.
type TenantStore interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, tenantID, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// DriveStore manages drives and memberships.
type DriveStore interface {
	// CreateDrive inserts the drive and an owner membership in one transaction.
	CreateDrive(ctx context.Context, drive *models.Drive) error
	GetDrive(ctx context.Context, tenantID, id string) (*models.Drive, error)
	ListDrives(ctx context.Context, tenantID, userID string) ([]*models.Drive, error)
	UpdateDrive(ctx context.Context, drive *models.Drive) error
	DeleteDrive(ctx context.Context, tenantID, id string) error
	UpsertDriveMember(ctx context.Context, member *models.DriveMember) error
	GetDriveMember(ctx context.Context, driveID, userID string) (*models.DriveMember, error)
	ListDriveMembers(ctx context.Context, driveID string) ([]*models.DriveMember, error)
	RemoveDriveMember(ctx context.Context, driveID, userID string) error
}

// PageStore manages the polymorphic page tree.
type PageStore interface {
	CreatePage(ctx context.Context, page *models.Page) error
	// CreateTaskListPage creates a TASK_LIST page and its metadata row in
	// one transaction.
	CreateTaskListPage(ctx context.Context, page *models.Page, list *models.TaskList) error
	GetPage(ctx context.Context, tenantID, id string) (*models.Page, error)
	ListPages(ctx context.Context, driveID string, parentID *string, pageType *models.PageType) ([]*models.Page, error)
	// UpdatePageContent performs the revision compare-and-swap. Returns
	// ErrStaleRevision when the stored revision differs from revision.
	UpdatePageContent(ctx context.Context, tenantID, id, content string, revision int) (*models.Page, error)
	RenamePage(ctx context.Context, tenantID, id, title string) error
	MovePage(ctx context.Context, tenantID, id string, parentID *string, position float64) error
	UpdatePageProperties(ctx context.Context, tenantID, id string, properties json.RawMessage) error
	TrashPage(ctx context.Context, tenantID, id string) error
	RestorePage(ctx context.Context, tenantID, id string) error
	ListTrash(ctx context.Context, driveID string) ([]*models.Page, error)
	SearchPages(ctx context.Context, driveID, query string, limit int) ([]*models.Page, error)
}

// TaskStore manages task lists and items.
type TaskStore interface {
	GetTaskListByPage(ctx context.Context, pageID string) (*models.TaskList, error)
	GetTaskList(ctx context.Context, id string) (*models.TaskList, error)
	ListTaskItems(ctx context.Context, taskListID string) ([]*models.TaskItem, error)
	CreateTaskItem(ctx context.Context, item *models.TaskItem) error
	GetTaskItem(ctx context.Context, id string) (*models.TaskItem, error)
	UpdateTaskItem(ctx context.Context, item *models.TaskItem) error
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error
	DeleteTaskItem(ctx context.Context, id string) error
}

// ChatStore manages conversations and messages.
type ChatStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, pageID string) ([]*models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.ChatMessage, error)
}

// WorkflowStore manages templates, executions and execution steps.
type WorkflowStore interface {
	CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error
	GetTemplate(ctx context.Context, tenantID, id string) (*models.WorkflowTemplate, error)
	ListTemplates(ctx context.Context, driveID string) ([]*models.WorkflowTemplate, error)
	// UpdateTemplate replaces the template metadata and its steps in one
	// transaction.
	UpdateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error
	// DeleteTemplate returns ErrActiveExecutions when running or paused
	// executions still reference the template.
	DeleteTemplate(ctx context.Context, tenantID, id string) error

	// CreateExecution inserts the execution and its snapshotted step rows in
	// one transaction.
	CreateExecution(ctx context.Context, exec *models.WorkflowExecution, steps []*models.WorkflowExecutionStep) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListExecutions(ctx context.Context, driveID string, limit int) ([]*models.WorkflowExecution, error)
	ListExecutionSteps(ctx context.Context, executionID string) ([]*models.WorkflowExecutionStep, error)
	CountActiveExecutions(ctx context.Context, tenantID string) (int, error)

	// AdvanceExecution moves current_step_order from fromOrder to toOrder,
	// only if the execution is running and still at fromOrder. Reports
	// whether the row was updated, making concurrent advancement idempotent.
	AdvanceExecution(ctx context.Context, id string, fromOrder, toOrder int) (bool, error)
	SetExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, errMsg *string) error
	UpdateExecutionContext(ctx context.Context, id string, accumulated map[string]any) error

	MarkStepRunning(ctx context.Context, stepID, agentInput string) error
	MarkStepCompleted(ctx context.Context, stepID, output string) error
	MarkStepFailed(ctx context.Context, stepID, errMsg string) error
	SetStepUserInput(ctx context.Context, stepID string, input json.RawMessage) error
	// SkipPendingSteps marks all still-pending steps of an execution skipped.
	SkipPendingSteps(ctx context.Context, executionID string) error
}

// BillingStore manages tenant subscriptions.
type BillingStore interface {
	GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// CalendarStore manages calendar connections and synced events.
type CalendarStore interface {
	UpsertConnection(ctx context.Context, conn *models.CalendarConnection) error
	GetConnection(ctx context.Context, tenantID, userID, provider string) (*models.CalendarConnection, error)
	ListConnectionsByTenant(ctx context.Context, tenantID string) ([]*models.CalendarConnection, error)
	UpsertEvent(ctx context.Context, event *models.CalendarEvent) error
	ListEvents(ctx context.Context, connectionID string, from, to time.Time) ([]*models.CalendarEvent, error)
	TouchConnectionSynced(ctx context.Context, id string, at time.Time) error
}

// MemoryStore is the personalization memory store.
type MemoryStore interface {
	SaveMemory(ctx context.Context, entry *models.MemoryEntry) error
	GetMemory(ctx context.Context, tenantID, id string) (*models.MemoryEntry, error)
	ListMemories(ctx context.Context, tenantID, userID string) ([]*models.MemoryEntry, error)
	SearchMemories(ctx context.Context, tenantID, userID string, embedding []float32, limit int) ([]*models.MemoryEntry, error)
	UpdateMemory(ctx context.Context, entry *models.MemoryEntry) error
}

// TokenStore manages MCP bearer tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token *models.MCPToken) error
	// GetTokenByDigest returns the token only when it is not revoked.
	GetTokenByDigest(ctx context.Context, digest string) (*models.MCPToken, error)
	ListTokens(ctx context.Context, tenantID, userID string) ([]*models.MCPToken, error)
	RevokeToken(ctx context.Context, tenantID, id string) error
	TouchTokenUsed(ctx context.Context, id string) error
}

// AuditStore records mutating operations.
type AuditStore interface {
	CreateAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Repository is the full persistence surface of the service.
type Repository interface {
	TenantStore
	DriveStore
	PageStore
	TaskStore
	ChatStore
	WorkflowStore
	BillingStore
	CalendarStore
	MemoryStore
	TokenStore
	AuditStore

	Ping(ctx context.Context) error
}
