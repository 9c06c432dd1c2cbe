package models

import "time"

// CalendarConnection links a user to an external calendar account. The
// refresh token is stored server-side and never exposed over the API.
type CalendarConnection struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"-" db:"tenant_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Provider     string     `json:"provider" db:"provider"`
	CalendarID   string     `json:"calendar_id" db:"calendar_id"`
	RefreshToken string     `json:"-" db:"refresh_token"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// CalendarEvent is a synced event from an external calendar
type CalendarEvent struct {
	ID           string     `json:"id" db:"id"`
	ConnectionID string     `json:"connection_id" db:"connection_id"`
	ExternalID   string     `json:"external_id" db:"external_id"`
	Title        string     `json:"title" db:"title"`
	Description  *string    `json:"description,omitempty" db:"description"`
	StartsAt     time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt       time.Time  `json:"ends_at" db:"ends_at"`
	Attendees    []byte     `json:"attendees,omitempty" db:"attendees"` // JSONB
	Cancelled    bool       `json:"cancelled" db:"cancelled"`
	SyncedAt     time.Time  `json:"synced_at" db:"synced_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
