package models

import "time"

// MessageRole is the author role of a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation is a thread of messages against an AI_CHAT page. Workflow
// steps open synthetic conversations so their transcripts are inspectable
// alongside regular chats.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	PageID    string    `json:"page_id" db:"page_id"`
	TenantID  string    `json:"-" db:"tenant_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Synthetic bool      `json:"synthetic" db:"synthetic"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ChatMessage is a single message in a conversation
type ChatMessage struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`
	Model          *string     `json:"model,omitempty" db:"model"`
	InputTokens    *int64      `json:"input_tokens,omitempty" db:"input_tokens"`
	OutputTokens   *int64      `json:"output_tokens,omitempty" db:"output_tokens"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
