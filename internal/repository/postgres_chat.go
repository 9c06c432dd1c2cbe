package repository

import (
	"context"

	"github.com/driveworks/drivehub/pkg/models"
)

func (s *Postgres) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversations (page_id, tenant_id, user_id, title, synthetic)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		conv.PageID, conv.TenantID, conv.UserID, conv.Title, conv.Synthetic,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(ctx,
		`SELECT id, page_id, tenant_id, user_id, title, synthetic, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.PageID, &c.TenantID, &c.UserID, &c.Title, &c.Synthetic, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Postgres) ListConversations(ctx context.Context, pageID string) ([]*models.Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, page_id, tenant_id, user_id, title, synthetic, created_at, updated_at
		 FROM conversations WHERE page_id = $1 ORDER BY updated_at DESC`,
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.PageID, &c.TenantID, &c.UserID, &c.Title, &c.Synthetic, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

func (s *Postgres) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_messages (conversation_id, role, content, model, input_tokens, output_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		msg.ConversationID, msg.Role, msg.Content, msg.Model, msg.InputTokens, msg.OutputTokens,
	).Scan(&msg.ID, &msg.CreatedAt)
	return mapErr(err)
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, conversation_id, role, content, model, input_tokens, output_tokens, created_at
		 FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Model,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
