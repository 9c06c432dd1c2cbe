package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/driveworks/drivehub/internal/agent"
	"github.com/driveworks/drivehub/internal/api"
	"github.com/driveworks/drivehub/internal/auth"
	"github.com/driveworks/drivehub/internal/billing"
	"github.com/driveworks/drivehub/internal/calendar"
	"github.com/driveworks/drivehub/internal/config"
	"github.com/driveworks/drivehub/internal/logging"
	"github.com/driveworks/drivehub/internal/mcp"
	"github.com/driveworks/drivehub/internal/realtime"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/internal/services"
	"github.com/driveworks/drivehub/internal/tls"
	"github.com/driveworks/drivehub/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the drivehub API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger := logging.NewLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}
	logger.Info("Starting drivehub",
		"environment", cfg.Environment,
		"ai_provider", cfg.AI.DefaultProvider,
	)

	// Database
	pool, err := repository.Connect(ctx, connString(cfg))
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer pool.Close()
	repo := repository.NewPostgres(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	logger.Info("Database connected")

	// Authentication
	authz, err := auth.New(ctx, cfg, repo, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	// AI providers and the agent runner
	providers := map[string]agent.Provider{}
	if cfg.AI.OpenAIKey != "" {
		providers["openai"] = agent.NewOpenAIProvider(cfg.AI.OpenAIKey)
	}
	if cfg.AI.GoogleKey != "" {
		google, err := agent.NewGoogleProvider(ctx, cfg.AI.GoogleKey)
		if err != nil {
			return fmt.Errorf("google provider initialization failed: %w", err)
		}
		providers["google"] = google
	}
	if len(providers) == 0 {
		logger.Warn("no AI provider keys configured; agent execution will fail")
	}

	embedder := agent.NewOpenAIEmbedder(cfg.AI.OpenAIKey, cfg.AI.EmbeddingModel)
	memoryService := services.NewMemoryService(repo, embedder)

	runner := agent.NewRunner(repo, providers,
		cfg.AI.DefaultProvider, cfg.AI.DefaultModel, cfg.AI.MaxTokens,
		agent.WorkspaceTools(repo), logger,
		agent.WithPersonalization(memoryService),
	)

	// Realtime, billing, workflow engine
	hub := realtime.NewHub(logger)
	billingService := billing.New(repo, cfg.Stripe, logger)
	engine := workflow.NewEngine(repo, runner, hub, billingService, logger)

	// Calendar
	calClient := calendar.NewClient(cfg.Calendar)
	syncer := calendar.NewSyncer(repo, calClient, logger)

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	server := &api.Server{
		Repo:    repo,
		Engine:  engine,
		Runner:  runner,
		Memory:  memoryService,
		Billing: billingService,
		Cal:     calClient,
		Syncer:  syncer,
		Hub:     hub,
		Auth:    authz,
		Cfg:     cfg,
		Logger:  logger,
	}
	server.RegisterRoutes(e)
	logger.Info("REST API handlers mounted")

	// MCP protocol handlers ride behind the same auth middleware so bearer
	// tokens resolve to a tenant and user.
	mcpServer := mcp.NewServer(repo, engine, memoryService)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))
	e.Any("/mcp/*", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))
	logger.Info("MCP protocol handlers mounted")

	addr := ":8080"
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- httpServer.ListenAndServe()
				return
			}
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}

func connString(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
}
