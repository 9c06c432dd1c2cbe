package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/driveworks/drivehub/pkg/models"
)

const memoryColumns = `id, tenant_id, user_id, content, embedding, confidence, version, created_at, updated_at`

func (s *Postgres) SaveMemory(ctx context.Context, entry *models.MemoryEntry) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO memories (tenant_id, user_id, content, embedding, confidence, version)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		entry.TenantID, entry.UserID, entry.Content, entry.Embedding, entry.Confidence, entry.Version,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) GetMemory(ctx context.Context, tenantID, id string) (*models.MemoryEntry, error) {
	var m models.MemoryEntry
	err := s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&m.ID, &m.TenantID, &m.UserID, &m.Content, &m.Embedding,
		&m.Confidence, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Postgres) ListMemories(ctx context.Context, tenantID, userID string) ([]*models.MemoryEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE tenant_id = $1 AND user_id = $2 ORDER BY updated_at DESC`,
		tenantID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

// SearchMemories returns the user's memories closest to the query embedding
// by cosine distance.
func (s *Postgres) SearchMemories(ctx context.Context, tenantID, userID string, embedding []float32, limit int) ([]*models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE tenant_id = $1 AND user_id = $2
		 ORDER BY embedding <=> $3 LIMIT $4`,
		tenantID, userID, pgvectorParam(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

func pgvectorParam(embedding []float32) pgvector.Vector {
	return pgvector.NewVector(embedding)
}

func collectMemories(rows pgx.Rows) ([]*models.MemoryEntry, error) {
	var memories []*models.MemoryEntry
	for rows.Next() {
		var m models.MemoryEntry
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Content, &m.Embedding,
			&m.Confidence, &m.Version, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

func (s *Postgres) UpdateMemory(ctx context.Context, entry *models.MemoryEntry) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memories SET content = $1, embedding = $2, confidence = $3, version = $4, updated_at = now()
		 WHERE id = $5 AND tenant_id = $6`,
		entry.Content, entry.Embedding, entry.Confidence, entry.Version, entry.ID, entry.TenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
