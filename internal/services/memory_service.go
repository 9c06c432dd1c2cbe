// Package services holds domain services that sit between the API layer
// and the repository.
package services

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/driveworks/drivehub/internal/agent"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// MemoryService manages per-user personalization memories. Memories are
// embedded at write time so recall is a vector similarity search.
type MemoryService struct {
	store    repository.MemoryStore
	embedder agent.Embedder
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(store repository.MemoryStore, embedder agent.Embedder) *MemoryService {
	return &MemoryService{
		store:    store,
		embedder: embedder,
	}
}

// Remember creates a new memory for a user.
func (s *MemoryService) Remember(ctx context.Context, tenantID, userID, content string) (*models.MemoryEntry, error) {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	entry := &models.MemoryEntry{
		TenantID:   tenantID,
		UserID:     userID,
		Content:    content,
		Embedding:  pgvector.NewVector(embedding),
		Confidence: 0.5, // Initial confidence
		Version:    1,
	}

	if err := s.store.SaveMemory(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Recall searches a user's memories by semantic similarity to the query.
func (s *MemoryService) Recall(ctx context.Context, tenantID, userID, query string, limit int) ([]*models.MemoryEntry, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return s.store.SearchMemories(ctx, tenantID, userID, embedding, limit)
}

// List returns all memories of a user, newest first.
func (s *MemoryService) List(ctx context.Context, tenantID, userID string) ([]*models.MemoryEntry, error) {
	return s.store.ListMemories(ctx, tenantID, userID)
}

// GiveFeedback updates a memory's confidence.
func (s *MemoryService) GiveFeedback(ctx context.Context, tenantID, id string, confidence float64) error {
	entry, err := s.store.GetMemory(ctx, tenantID, id)
	if err != nil {
		return err
	}

	entry.Confidence = confidence
	entry.Version++

	return s.store.UpdateMemory(ctx, entry)
}
