package models

import "time"

// Role represents a user's role within a drive
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// CanEdit reports whether the role allows content mutation.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManage reports whether the role allows structural changes such as
// editing workflow templates or managing members.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Drive is a tenant-scoped workspace containing pages
type Drive struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"-" db:"tenant_id"`
	Name      string     `json:"name" db:"name"`
	Slug      string     `json:"slug" db:"slug"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// DriveMember links a user to a drive with a role
type DriveMember struct {
	DriveID   string    `json:"drive_id" db:"drive_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
