package repository

import (
	"context"
	"time"

	"github.com/driveworks/drivehub/pkg/models"
)

func (s *Postgres) UpsertConnection(ctx context.Context, conn *models.CalendarConnection) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO calendar_connections (tenant_id, user_id, provider, calendar_id, refresh_token)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, user_id, provider) DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			refresh_token = EXCLUDED.refresh_token,
			updated_at = now()
		 RETURNING id, created_at, updated_at`,
		conn.TenantID, conn.UserID, conn.Provider, conn.CalendarID, conn.RefreshToken,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) GetConnection(ctx context.Context, tenantID, userID, provider string) (*models.CalendarConnection, error) {
	var c models.CalendarConnection
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, provider, calendar_id, refresh_token, last_synced_at, created_at, updated_at
		 FROM calendar_connections WHERE tenant_id = $1 AND user_id = $2 AND provider = $3`,
		tenantID, userID, provider,
	).Scan(&c.ID, &c.TenantID, &c.UserID, &c.Provider, &c.CalendarID,
		&c.RefreshToken, &c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Postgres) ListConnectionsByTenant(ctx context.Context, tenantID string) ([]*models.CalendarConnection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, provider, calendar_id, refresh_token, last_synced_at, created_at, updated_at
		 FROM calendar_connections WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*models.CalendarConnection
	for rows.Next() {
		var c models.CalendarConnection
		if err := rows.Scan(&c.ID, &c.TenantID, &c.UserID, &c.Provider, &c.CalendarID,
			&c.RefreshToken, &c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

func (s *Postgres) UpsertEvent(ctx context.Context, event *models.CalendarEvent) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO calendar_events (connection_id, external_id, title, description, starts_at, ends_at, attendees, cancelled, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (connection_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			attendees = EXCLUDED.attendees,
			cancelled = EXCLUDED.cancelled,
			synced_at = now(),
			updated_at = now()
		 RETURNING id, synced_at, created_at`,
		event.ConnectionID, event.ExternalID, event.Title, event.Description,
		event.StartsAt, event.EndsAt, event.Attendees, event.Cancelled,
	).Scan(&event.ID, &event.SyncedAt, &event.CreatedAt)
	return mapErr(err)
}

func (s *Postgres) ListEvents(ctx context.Context, connectionID string, from, to time.Time) ([]*models.CalendarEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, connection_id, external_id, title, description, starts_at, ends_at, attendees, cancelled, synced_at, created_at, updated_at
		 FROM calendar_events
		 WHERE connection_id = $1 AND starts_at >= $2 AND starts_at < $3 AND NOT cancelled
		 ORDER BY starts_at`,
		connectionID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.CalendarEvent
	for rows.Next() {
		var e models.CalendarEvent
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.ExternalID, &e.Title, &e.Description,
			&e.StartsAt, &e.EndsAt, &e.Attendees, &e.Cancelled, &e.SyncedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *Postgres) TouchConnectionSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE calendar_connections SET last_synced_at = $1, updated_at = now() WHERE id = $2`,
		at, id,
	)
	return mapErr(err)
}
