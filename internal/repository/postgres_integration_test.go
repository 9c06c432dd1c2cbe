package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/driveworks/drivehub/pkg/models"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	// The schema needs the vector extension, so use the pgvector build of
	// the postgres image.
	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("drivehub-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := Connect(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgres(pool, testLogger{})
	require.NoError(t, store.EnsureSchema(ctx))

	tenant := &models.Tenant{Name: "Acme", Domain: "acme.test"}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	user := &models.User{TenantID: tenant.ID, Email: "owner@acme.test", Name: "Owner"}
	require.NoError(t, store.CreateUser(ctx, user))

	drive := &models.Drive{TenantID: tenant.ID, Name: "Docs", Slug: "docs", OwnerID: user.ID}
	require.NoError(t, store.CreateDrive(ctx, drive))

	t.Run("drive owner gets a membership", func(t *testing.T) {
		member, err := store.GetDriveMember(ctx, drive.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOwner, member.Role)
	})

	t.Run("page content update is a revision compare and swap", func(t *testing.T) {
		page := &models.Page{
			DriveID: drive.ID, TenantID: tenant.ID,
			Type: models.PageTypeDocument, Title: "Notes",
			Content: "v0", CreatedBy: user.ID,
		}
		require.NoError(t, store.CreatePage(ctx, page))
		assert.Equal(t, 0, page.Revision)

		updated, err := store.UpdatePageContent(ctx, tenant.ID, page.ID, "v1", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Revision)
		assert.Equal(t, "v1", updated.Content)

		// A writer still holding revision 0 must be rejected.
		_, err = store.UpdatePageContent(ctx, tenant.ID, page.ID, "conflicting", 0)
		assert.ErrorIs(t, err, ErrStaleRevision)

		_, err = store.UpdatePageContent(ctx, tenant.ID, uuid.NewString(), "x", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("trashed pages disappear from reads until restored", func(t *testing.T) {
		page := &models.Page{
			DriveID: drive.ID, TenantID: tenant.ID,
			Type: models.PageTypeDocument, Title: "Ephemeral", CreatedBy: user.ID,
		}
		require.NoError(t, store.CreatePage(ctx, page))
		require.NoError(t, store.TrashPage(ctx, tenant.ID, page.ID))

		_, err := store.GetPage(ctx, tenant.ID, page.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		trash, err := store.ListTrash(ctx, drive.ID)
		require.NoError(t, err)
		require.Len(t, trash, 1)
		assert.Equal(t, page.ID, trash[0].ID)

		require.NoError(t, store.RestorePage(ctx, tenant.ID, page.ID))
		restored, err := store.GetPage(ctx, tenant.ID, page.ID)
		require.NoError(t, err)
		assert.Nil(t, restored.DeletedAt)
	})

	agent := &models.Page{
		DriveID: drive.ID, TenantID: tenant.ID,
		Type: models.PageTypeAIChat, Title: "Assistant", CreatedBy: user.ID,
	}
	require.NoError(t, store.CreatePage(ctx, agent))

	tpl := &models.WorkflowTemplate{
		DriveID: drive.ID, TenantID: tenant.ID, Name: "Pipeline", CreatedBy: user.ID,
		Steps: []*models.WorkflowStep{
			{StepOrder: 0, Name: "first", AgentID: agent.ID, PromptTemplate: "do {{topic}}"},
			{StepOrder: 1, Name: "second", AgentID: agent.ID, PromptTemplate: "refine {{step0.output}}"},
		},
	}
	require.NoError(t, store.CreateTemplate(ctx, tpl))

	t.Run("template round trips with ordered steps", func(t *testing.T) {
		got, err := store.GetTemplate(ctx, tenant.ID, tpl.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, "first", got.Steps[0].Name)
		assert.Equal(t, 1, got.Steps[1].StepOrder)
	})

	t.Run("advance execution only moves from the expected step", func(t *testing.T) {
		exec := &models.WorkflowExecution{
			TemplateID: tpl.ID, DriveID: drive.ID, TenantID: tenant.ID,
			Status: models.ExecutionStatusRunning, StartedBy: user.ID,
			AccumulatedContext: map[string]any{"topic": "otters"},
		}
		steps := []*models.WorkflowExecutionStep{
			{StepOrder: 0, Name: "first", AgentID: agent.ID, PromptTemplate: "do {{topic}}", Status: models.StepStatusPending},
			{StepOrder: 1, Name: "second", AgentID: agent.ID, PromptTemplate: "refine {{step0.output}}", Status: models.StepStatusPending},
		}
		require.NoError(t, store.CreateExecution(ctx, exec, steps))

		moved, err := store.AdvanceExecution(ctx, exec.ID, 0, 1)
		require.NoError(t, err)
		assert.True(t, moved)

		// A second mover racing from the same step loses.
		moved, err = store.AdvanceExecution(ctx, exec.ID, 0, 1)
		require.NoError(t, err)
		assert.False(t, moved)

		// Deleting the template is blocked while the execution is active.
		err = store.DeleteTemplate(ctx, tenant.ID, tpl.ID)
		assert.ErrorIs(t, err, ErrActiveExecutions)

		require.NoError(t, store.SetExecutionStatus(ctx, exec.ID, models.ExecutionStatusCancelled, nil))
		require.NoError(t, store.SkipPendingSteps(ctx, exec.ID))

		rows, err := store.ListExecutionSteps(ctx, exec.ID)
		require.NoError(t, err)
		for _, row := range rows {
			assert.Equal(t, models.StepStatusSkipped, row.Status)
		}

		// Advancement is a no-op once the execution left the running state.
		moved, err = store.AdvanceExecution(ctx, exec.ID, 1, 2)
		require.NoError(t, err)
		assert.False(t, moved)
	})

	t.Run("memory similarity search", func(t *testing.T) {
		near := make([]float32, 1536)
		far := make([]float32, 1536)
		near[0], far[1] = 1, 1

		first := &models.MemoryEntry{
			TenantID: tenant.ID, UserID: user.ID,
			Content: "prefers bullet lists", Embedding: pgvector.NewVector(near),
			Confidence: 0.5, Version: 1,
		}
		require.NoError(t, store.SaveMemory(ctx, first))
		second := &models.MemoryEntry{
			TenantID: tenant.ID, UserID: user.ID,
			Content: "works in UTC", Embedding: pgvector.NewVector(far),
			Confidence: 0.5, Version: 1,
		}
		require.NoError(t, store.SaveMemory(ctx, second))

		query := make([]float32, 1536)
		query[0] = 0.9
		found, err := store.SearchMemories(ctx, tenant.ID, user.ID, query, 1)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "prefers bullet lists", found[0].Content)
	})

	t.Run("revoked tokens are not resolvable", func(t *testing.T) {
		token := &models.MCPToken{
			TenantID: tenant.ID, UserID: user.ID,
			Name: "ci", Digest: "digest-" + uuid.NewString(),
		}
		require.NoError(t, store.CreateToken(ctx, token))

		got, err := store.GetTokenByDigest(ctx, token.Digest)
		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)

		require.NoError(t, store.RevokeToken(ctx, tenant.ID, token.ID))
		_, err = store.GetTokenByDigest(ctx, token.Digest)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("calendar event upsert is idempotent per external id", func(t *testing.T) {
		conn := &models.CalendarConnection{
			TenantID: tenant.ID, UserID: user.ID,
			Provider: "google", CalendarID: "primary", RefreshToken: "rt",
		}
		require.NoError(t, store.UpsertConnection(ctx, conn))

		starts := time.Now().Add(time.Hour).Truncate(time.Second)
		event := &models.CalendarEvent{
			ConnectionID: conn.ID, ExternalID: "evt-1",
			Title: "Standup", StartsAt: starts, EndsAt: starts.Add(30 * time.Minute),
		}
		require.NoError(t, store.UpsertEvent(ctx, event))
		event.Title = "Standup (moved)"
		require.NoError(t, store.UpsertEvent(ctx, event))

		events, err := store.ListEvents(ctx, conn.ID, time.Now(), time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "Standup (moved)", events[0].Title)
	})
}
