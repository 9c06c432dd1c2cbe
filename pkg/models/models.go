// Package models defines the domain models for the drivehub service
package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// MemoryEntry is a personalization memory attached to a user. The embedding
// is used for similarity recall and never exposed over the API.
type MemoryEntry struct {
	ID         string          `json:"id" db:"id"`
	TenantID   string          `json:"-" db:"tenant_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Content    string          `json:"content" db:"content"`
	Embedding  pgvector.Vector `json:"-" db:"embedding"`
	Confidence float64         `json:"confidence" db:"confidence"`
	Version    int             `json:"version" db:"version"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// MCPToken is a bearer credential for external tool/agent access. Only the
// SHA-256 digest is stored; the token itself is shown once at creation.
type MCPToken struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"-" db:"tenant_id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Name       string     `json:"name" db:"name"`
	Digest     string     `json:"-" db:"digest"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// AuditEntry records a mutating operation for later inspection
type AuditEntry struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"-" db:"tenant_id"`
	ActorID      string    `json:"actor_id" db:"actor_id"`
	Action       string    `json:"action" db:"action"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	Detail       []byte    `json:"detail,omitempty" db:"detail"` // JSONB
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
