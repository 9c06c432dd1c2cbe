// Package mcp exposes the workspace to external agents over the Model
// Context Protocol. Requests authenticate with drivehub MCP bearer tokens,
// so the tenant and user arrive through the request context.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/driveworks/drivehub/internal/auth"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/internal/services"
	"github.com/driveworks/drivehub/internal/workflow"
	"github.com/driveworks/drivehub/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	repo      repository.Repository
	engine    *workflow.Engine
	memory    *services.MemoryService
}

func NewServer(repo repository.Repository, engine *workflow.Engine, memory *services.MemoryService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"drivehub",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		repo:   repo,
		engine: engine,
		memory: memory,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"search_pages",
			mcp.WithDescription("Search pages in a drive by title and content"),
			mcp.WithString("drive_id", mcp.Required(), mcp.Description("The drive to search in")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		),
		s.handleSearchPages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"read_page",
			mcp.WithDescription("Read a page's content by id"),
			mcp.WithString("page_id", mcp.Required(), mcp.Description("The page id")),
		),
		s.handleReadPage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_page",
			mcp.WithDescription("Create a document page in a drive"),
			mcp.WithString("drive_id", mcp.Required(), mcp.Description("The drive to create in")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Page title")),
			mcp.WithString("content", mcp.Description("Initial content")),
		),
		s.handleCreatePage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_workflow",
			mcp.WithDescription("Start a workflow template and return the resulting execution state"),
			mcp.WithString("template_id", mcp.Required(), mcp.Description("The workflow template id")),
			mcp.WithString("initial_context", mcp.Description("JSON object of initial context values")),
		),
		s.handleRunWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_execution",
			mcp.WithDescription("Get the state and progress of a workflow execution"),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("The execution id")),
		),
		s.handleGetExecution,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remember",
			mcp.WithDescription("Store a memory about the current user"),
			mcp.WithString("content", mcp.Required(), mcp.Description("The content of the memory")),
		),
		s.handleRemember,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"recall",
			mcp.WithDescription("Recall memories about the current user"),
			mcp.WithString("query", mcp.Required(), mcp.Description("The query to search for")),
		),
		s.handleRecall,
	)
}

// stringArg extracts a required string argument.
func stringArg(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", mcp.NewToolResultError("Invalid arguments type")
	}
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}
	return v, nil
}

func optionalStringArg(request mcp.CallToolRequest, name string) string {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := args[name].(string)
	return v
}

func toolJSON(v any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(v)
	return mcp.NewToolResultText(string(jsonBytes))
}

func (s *Server) handleSearchPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	driveID, errRes := stringArg(request, "drive_id")
	if errRes != nil {
		return errRes, nil
	}
	query, errRes := stringArg(request, "query")
	if errRes != nil {
		return errRes, nil
	}

	if res := s.requireDriveAccess(ctx, driveID); res != nil {
		return res, nil
	}

	pages, err := s.repo.SearchPages(ctx, driveID, query, 10)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	return toolJSON(pages), nil
}

func (s *Server) handleReadPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, errRes := stringArg(request, "page_id")
	if errRes != nil {
		return errRes, nil
	}

	page, err := s.repo.GetPage(ctx, auth.TenantID(ctx), pageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read page: %v", err)), nil
	}
	if res := s.requireDriveAccess(ctx, page.DriveID); res != nil {
		return res, nil
	}
	return toolJSON(page), nil
}

func (s *Server) handleCreatePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	driveID, errRes := stringArg(request, "drive_id")
	if errRes != nil {
		return errRes, nil
	}
	title, errRes := stringArg(request, "title")
	if errRes != nil {
		return errRes, nil
	}

	if res := s.requireDriveAccess(ctx, driveID); res != nil {
		return res, nil
	}

	page := &models.Page{
		DriveID:   driveID,
		TenantID:  auth.TenantID(ctx),
		Type:      models.PageTypeDocument,
		Title:     title,
		Content:   optionalStringArg(request, "content"),
		CreatedBy: auth.UserID(ctx),
	}
	if err := s.repo.CreatePage(ctx, page); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create page: %v", err)), nil
	}
	return toolJSON(page), nil
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, errRes := stringArg(request, "template_id")
	if errRes != nil {
		return errRes, nil
	}

	var initial map[string]any
	if raw := optionalStringArg(request, "initial_context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &initial); err != nil {
			return mcp.NewToolResultError("initial_context must be a JSON object"), nil
		}
	}

	tenantID := auth.TenantID(ctx)
	tpl, err := s.repo.GetTemplate(ctx, tenantID, templateID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load template: %v", err)), nil
	}
	if res := s.requireDriveAccess(ctx, tpl.DriveID); res != nil {
		return res, nil
	}

	state, err := s.engine.CreateExecution(ctx, tenantID, tpl.DriveID, tpl.ID, auth.UserID(ctx), initial)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start workflow: %v", err)), nil
	}
	return toolJSON(state), nil
}

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, errRes := stringArg(request, "execution_id")
	if errRes != nil {
		return errRes, nil
	}

	state, err := s.engine.GetExecutionState(ctx, auth.TenantID(ctx), executionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load execution: %v", err)), nil
	}
	if res := s.requireDriveAccess(ctx, state.Execution.DriveID); res != nil {
		return res, nil
	}
	return toolJSON(state), nil
}

func (s *Server) handleRemember(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, errRes := stringArg(request, "content")
	if errRes != nil {
		return errRes, nil
	}

	memory, err := s.memory.Remember(ctx, auth.TenantID(ctx), auth.UserID(ctx), content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remember: %v", err)), nil
	}
	return toolJSON(memory), nil
}

func (s *Server) handleRecall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, errRes := stringArg(request, "query")
	if errRes != nil {
		return errRes, nil
	}

	memories, err := s.memory.Recall(ctx, auth.TenantID(ctx), auth.UserID(ctx), query, 10)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to recall: %v", err)), nil
	}
	return toolJSON(memories), nil
}

// requireDriveAccess checks the calling user is a member of the drive.
func (s *Server) requireDriveAccess(ctx context.Context, driveID string) *mcp.CallToolResult {
	if _, err := s.repo.GetDriveMember(ctx, driveID, auth.UserID(ctx)); err != nil {
		return mcp.NewToolResultError("Not a member of this drive")
	}
	return nil
}

// MountHTTPHandlers wires the SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
