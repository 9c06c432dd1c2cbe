package repository

import (
	"context"

	"github.com/driveworks/drivehub/pkg/models"
)

// GetTenantByDomain returns the tenant registered for an email domain.
func (s *Postgres) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1`,
		domain,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// CreateTenant inserts a tenant, filling in the generated id and timestamps.
func (s *Postgres) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (name, domain) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		tenant.Name, tenant.Domain,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, created_at, updated_at
		 FROM users WHERE tenant_id = $1 AND email = $2`,
		tenantID, email,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, name) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		user.TenantID, user.Email, user.Name,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapErr(err)
}
