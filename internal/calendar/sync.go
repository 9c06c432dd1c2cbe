package calendar

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// syncWindow is how far back and forward a sync reaches.
const (
	syncLookBack  = 7 * 24 * time.Hour
	syncLookAhead = 60 * 24 * time.Hour

	// maxConcurrentSyncs bounds parallel provider calls per tenant sync.
	maxConcurrentSyncs = 4
)

// Logger is the logging interface the syncer depends on.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Syncer pulls events for calendar connections and mirrors them locally.
type Syncer struct {
	store  repository.CalendarStore
	client *Client
	logger Logger
	now    func() time.Time
}

func NewSyncer(store repository.CalendarStore, client *Client, logger Logger) *Syncer {
	return &Syncer{store: store, client: client, logger: logger, now: time.Now}
}

// SyncTenant syncs every connection of a tenant concurrently. Individual
// connection failures are logged and do not abort the others; the first
// error is still reported to the caller.
func (s *Syncer) SyncTenant(ctx context.Context, tenantID string) error {
	conns, err := s.store.ListConnectionsByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSyncs)
	for _, conn := range conns {
		g.Go(func() error {
			if err := s.SyncConnection(ctx, conn); err != nil {
				s.logger.Error("calendar sync failed",
					"connection_id", conn.ID, "user_id", conn.UserID, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// SyncConnection fetches the connection's events for the sync window and
// upserts them.
func (s *Syncer) SyncConnection(ctx context.Context, conn *models.CalendarConnection) error {
	now := s.now()
	from := now.Add(-syncLookBack)
	to := now.Add(syncLookAhead)

	remote, err := s.client.ListEvents(ctx, conn.RefreshToken, conn.CalendarID, from, to)
	if err != nil {
		return err
	}

	for _, ev := range remote {
		event, err := convertEvent(conn.ID, ev, now)
		if err != nil {
			s.logger.Error("skipping unconvertible event",
				"connection_id", conn.ID, "external_id", ev.ID, "error", err)
			continue
		}
		if err := s.store.UpsertEvent(ctx, event); err != nil {
			return err
		}
	}

	if err := s.store.TouchConnectionSynced(ctx, conn.ID, now); err != nil {
		return err
	}
	s.logger.Info("calendar connection synced",
		"connection_id", conn.ID, "events", len(remote))
	return nil
}

// convertEvent maps a provider event onto the local model. All-day events
// carry a date instead of a datetime.
func convertEvent(connectionID string, ev RemoteEvent, syncedAt time.Time) (*models.CalendarEvent, error) {
	start, err := eventTime(ev.Start.DateTime, ev.Start.Date)
	if err != nil {
		return nil, err
	}
	end, err := eventTime(ev.End.DateTime, ev.End.Date)
	if err != nil {
		return nil, err
	}

	var attendees []byte
	if len(ev.Attendees) > 0 {
		attendees, err = json.Marshal(ev.Attendees)
		if err != nil {
			return nil, err
		}
	}

	var description *string
	if ev.Description != "" {
		description = &ev.Description
	}

	return &models.CalendarEvent{
		ConnectionID: connectionID,
		ExternalID:   ev.ID,
		Title:        ev.Summary,
		Description:  description,
		StartsAt:     start,
		EndsAt:       end,
		Attendees:    attendees,
		Cancelled:    ev.Status == "cancelled",
		SyncedAt:     syncedAt,
	}, nil
}

func eventTime(dateTime time.Time, date string) (time.Time, error) {
	if !dateTime.IsZero() {
		return dateTime, nil
	}
	return time.Parse("2006-01-02", date)
}
