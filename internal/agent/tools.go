package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driveworks/drivehub/internal/auth"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// ToolDef describes one tool offered to a model. Parameters is a JSON
// schema object in the shape the chat completion APIs expect.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the workspace tools available to agents. An agent with no
// enabled_tools configured gets every registered tool.
type Registry struct {
	defs map[string]*ToolDef
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ToolDef)}
}

func (r *Registry) Register(def *ToolDef) {
	r.defs[def.Name] = def
}

// Filter returns the tool defs named in enabled, or all tools when enabled
// is nil. Unknown names are ignored.
func (r *Registry) Filter(ctx context.Context, enabled []string) []*ToolDef {
	if enabled == nil {
		out := make([]*ToolDef, 0, len(r.defs))
		for _, d := range r.defs {
			out = append(out, d)
		}
		return out
	}
	var out []*ToolDef
	for _, name := range enabled {
		if d, ok := r.defs[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// WorkspaceTools builds the builtin tool set backed by the repository. Tool
// calls run under the authenticated request context, so tenant scoping
// comes from the context rather than model-supplied arguments.
func WorkspaceTools(repo repository.Repository) *Registry {
	reg := NewRegistry()

	reg.Register(&ToolDef{
		Name:        "search_pages",
		Description: "Search pages in a drive by title and content. Returns matching pages with their ids and types.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"drive_id": map[string]any{"type": "string", "description": "Drive to search in"},
				"query":    map[string]any{"type": "string", "description": "Search terms"},
			},
			"required": []string{"drive_id", "query"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			driveID, _ := args["drive_id"].(string)
			query, _ := args["query"].(string)
			pages, err := repo.SearchPages(ctx, driveID, query, 10)
			if err != nil {
				return "", err
			}
			type hit struct {
				ID    string          `json:"id"`
				Title string          `json:"title"`
				Type  models.PageType `json:"type"`
			}
			hits := make([]hit, 0, len(pages))
			for _, p := range pages {
				hits = append(hits, hit{ID: p.ID, Title: p.Title, Type: p.Type})
			}
			return marshalToolResult(hits)
		},
	})

	reg.Register(&ToolDef{
		Name:        "read_page",
		Description: "Read the full content of a page by id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page_id": map[string]any{"type": "string", "description": "Page id"},
			},
			"required": []string{"page_id"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			pageID, _ := args["page_id"].(string)
			page, err := repo.GetPage(ctx, auth.TenantID(ctx), pageID)
			if err != nil {
				return "", err
			}
			return marshalToolResult(map[string]any{
				"id":      page.ID,
				"title":   page.Title,
				"type":    page.Type,
				"content": page.Content,
			})
		},
	})

	reg.Register(&ToolDef{
		Name:        "list_tasks",
		Description: "List the items of a task list page with their statuses.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page_id": map[string]any{"type": "string", "description": "TASK_LIST page id"},
			},
			"required": []string{"page_id"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			pageID, _ := args["page_id"].(string)
			list, err := repo.GetTaskListByPage(ctx, pageID)
			if err != nil {
				return "", err
			}
			items, err := repo.ListTaskItems(ctx, list.ID)
			if err != nil {
				return "", err
			}
			return marshalToolResult(items)
		},
	})

	reg.Register(&ToolDef{
		Name:        "create_task",
		Description: "Add an item to a task list page.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page_id": map[string]any{"type": "string", "description": "TASK_LIST page id"},
				"title":   map[string]any{"type": "string", "description": "Task title"},
			},
			"required": []string{"page_id", "title"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			pageID, _ := args["page_id"].(string)
			title, _ := args["title"].(string)
			if title == "" {
				return "", fmt.Errorf("title is required")
			}
			list, err := repo.GetTaskListByPage(ctx, pageID)
			if err != nil {
				return "", err
			}
			item := &models.TaskItem{
				TaskListID: list.ID,
				Title:      title,
				Status:     models.TaskStatusTodo,
				CreatedBy:  auth.UserID(ctx),
			}
			if err := repo.CreateTaskItem(ctx, item); err != nil {
				return "", err
			}
			return marshalToolResult(item)
		},
	})

	return reg
}

func marshalToolResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
