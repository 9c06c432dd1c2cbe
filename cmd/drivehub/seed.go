package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driveworks/drivehub/internal/config"
	"github.com/driveworks/drivehub/internal/logging"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a local development tenant with a demo drive and workflow",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := logging.NewLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := repository.Connect(ctx, connString(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgres(pool, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	// 1. Tenant and dev user
	domain := "localhost"
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{Name: "Local Dev Tenant", Domain: domain}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
	} else {
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	email := "dev@localhost"
	user, err := store.GetUserByEmail(ctx, tenant.ID, email)
	if err != nil {
		user = &models.User{TenantID: tenant.ID, Email: email, Name: "dev"}
		if err := store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	}

	// 2. Demo drive; skip the rest when it already exists
	drives, err := store.ListDrives(ctx, tenant.ID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list drives: %w", err)
	}
	for _, d := range drives {
		if d.Slug == "demo" {
			logger.Info("Demo drive already seeded", "drive_id", d.ID)
			return nil
		}
	}

	drive := &models.Drive{TenantID: tenant.ID, Name: "Demo", Slug: "demo", OwnerID: user.ID}
	if err := store.CreateDrive(ctx, drive); err != nil {
		return fmt.Errorf("failed to create drive: %w", err)
	}

	// 3. Two agent pages wired into a review pipeline
	writerProps, _ := json.Marshal(models.AgentConfig{
		SystemPrompt: "You are a concise technical writer. Produce clean markdown.",
	})
	writer := &models.Page{
		DriveID: drive.ID, TenantID: tenant.ID,
		Type: models.PageTypeAIChat, Title: "Writer",
		Properties: writerProps, CreatedBy: user.ID,
	}
	if err := store.CreatePage(ctx, writer); err != nil {
		return fmt.Errorf("failed to create writer agent: %w", err)
	}

	reviewerProps, _ := json.Marshal(models.AgentConfig{
		SystemPrompt: "You are a critical editor. Point out gaps and tighten prose.",
	})
	reviewer := &models.Page{
		DriveID: drive.ID, TenantID: tenant.ID,
		Type: models.PageTypeAIChat, Title: "Reviewer",
		Properties: reviewerProps, CreatedBy: user.ID,
	}
	if err := store.CreatePage(ctx, reviewer); err != nil {
		return fmt.Errorf("failed to create reviewer agent: %w", err)
	}

	// 4. Workflow template: draft, approve, revise
	description := "Drafts a document, waits for feedback, then revises."
	tpl := &models.WorkflowTemplate{
		DriveID:     drive.ID,
		TenantID:    tenant.ID,
		Name:        "Draft and Review",
		Description: &description,
		CreatedBy:   user.ID,
		Steps: []*models.WorkflowStep{
			{
				StepOrder:      0,
				Name:           "Draft",
				AgentID:        writer.ID,
				PromptTemplate: "Write a first draft about {{initialContext.topic}}.",
			},
			{
				StepOrder:         1,
				Name:              "Feedback",
				AgentID:           reviewer.ID,
				PromptTemplate:    "Review this draft and apply the feedback {{userInput1}}: {{step0.output}}",
				RequiresUserInput: true,
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {"feedback": {"type": "string"}},
					"required": ["feedback"]
				}`),
			},
			{
				StepOrder:      2,
				Name:           "Final pass",
				AgentID:        writer.ID,
				PromptTemplate: "Produce the final version from this review: {{step1.output}}",
			},
		},
	}
	if err := store.CreateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("failed to create workflow template: %w", err)
	}

	logger.Info("Seed complete",
		"tenant_id", tenant.ID, "drive_id", drive.ID, "template_id", tpl.ID)
	return nil
}
