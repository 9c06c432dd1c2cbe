package repository

import (
	"context"

	"github.com/driveworks/drivehub/pkg/models"
)

func (s *Postgres) CreateToken(ctx context.Context, token *models.MCPToken) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO mcp_tokens (tenant_id, user_id, name, digest) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		token.TenantID, token.UserID, token.Name, token.Digest,
	).Scan(&token.ID, &token.CreatedAt)
	return mapErr(err)
}

// GetTokenByDigest returns the token only when it has not been revoked.
func (s *Postgres) GetTokenByDigest(ctx context.Context, digest string) (*models.MCPToken, error) {
	var t models.MCPToken
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, name, digest, last_used_at, revoked_at, created_at
		 FROM mcp_tokens WHERE digest = $1 AND revoked_at IS NULL`,
		digest,
	).Scan(&t.ID, &t.TenantID, &t.UserID, &t.Name, &t.Digest, &t.LastUsedAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Postgres) ListTokens(ctx context.Context, tenantID, userID string) ([]*models.MCPToken, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, name, digest, last_used_at, revoked_at, created_at
		 FROM mcp_tokens WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
		tenantID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.MCPToken
	for rows.Next() {
		var t models.MCPToken
		if err := rows.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Name, &t.Digest,
			&t.LastUsedAt, &t.RevokedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (s *Postgres) RevokeToken(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE mcp_tokens SET revoked_at = now() WHERE id = $1 AND tenant_id = $2 AND revoked_at IS NULL`,
		id, tenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) TouchTokenUsed(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE mcp_tokens SET last_used_at = now() WHERE id = $1`, id)
	return mapErr(err)
}

func (s *Postgres) CreateAudit(ctx context.Context, entry *models.AuditEntry) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO audit_entries (tenant_id, actor_id, action, resource_type, resource_id, detail)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		entry.TenantID, entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
	return mapErr(err)
}
