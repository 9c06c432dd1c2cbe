package models

import (
	"encoding/json"
	"time"
)

// PageType represents the polymorphic content type of a page
type PageType string

const (
	PageTypeFolder   PageType = "FOLDER"
	PageTypeDocument PageType = "DOCUMENT"
	PageTypeSheet    PageType = "SHEET"
	PageTypeTaskList PageType = "TASK_LIST"
	PageTypeCanvas   PageType = "CANVAS"
	PageTypeChannel  PageType = "CHANNEL"
	PageTypeAIChat   PageType = "AI_CHAT"
	PageTypeFile     PageType = "FILE"
)

// ValidPageType reports whether t is a known page type.
func ValidPageType(t PageType) bool {
	switch t {
	case PageTypeFolder, PageTypeDocument, PageTypeSheet, PageTypeTaskList,
		PageTypeCanvas, PageTypeChannel, PageTypeAIChat, PageTypeFile:
		return true
	}
	return false
}

// Page is the polymorphic content unit. Pages form a tree within a drive via
// ParentID. Revision is the optimistic-concurrency counter: content updates
// must present the revision they read, and a mismatch is rejected.
type Page struct {
	ID         string          `json:"id" db:"id"`
	DriveID    string          `json:"drive_id" db:"drive_id"`
	TenantID   string          `json:"-" db:"tenant_id"`
	ParentID   *string         `json:"parent_id,omitempty" db:"parent_id"`
	Type       PageType        `json:"type" db:"type"`
	Title      string          `json:"title" db:"title"`
	Content    string          `json:"content" db:"content"`
	Properties json.RawMessage `json:"properties,omitempty" db:"properties"` // JSONB
	Revision   int             `json:"revision" db:"revision"`
	Position   float64         `json:"position" db:"position"`
	CreatedBy  string          `json:"created_by" db:"created_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// AgentConfig is the agent configuration held in the Properties of an
// AI_CHAT page. Empty fields fall back to tenant defaults.
type AgentConfig struct {
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	EnabledTools []string `json:"enabled_tools,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// AgentConfig decodes the agent configuration from the page properties.
// Returns a zero config when the page has no properties.
func (p *Page) AgentConfig() (*AgentConfig, error) {
	cfg := &AgentConfig{}
	if len(p.Properties) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(p.Properties, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
