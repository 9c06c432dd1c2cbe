package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEvent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := RemoteEvent{
		ID:          "ext-1",
		Summary:     "Planning",
		Description: "Quarterly planning session",
		Status:      "confirmed",
	}
	ev.Start.DateTime = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev.End.DateTime = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ev.Attendees = []struct {
		Email          string `json:"email"`
		ResponseStatus string `json:"responseStatus"`
	}{
		{Email: "a@example.com", ResponseStatus: "accepted"},
	}

	got, err := convertEvent("conn-1", ev, now)
	require.NoError(t, err)

	assert.Equal(t, "conn-1", got.ConnectionID)
	assert.Equal(t, "ext-1", got.ExternalID)
	assert.Equal(t, "Planning", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Quarterly planning session", *got.Description)
	assert.Equal(t, ev.Start.DateTime, got.StartsAt)
	assert.False(t, got.Cancelled)
	assert.JSONEq(t, `[{"email":"a@example.com","responseStatus":"accepted"}]`, string(got.Attendees))
	assert.Equal(t, now, got.SyncedAt)
}

func TestConvertEventAllDay(t *testing.T) {
	ev := RemoteEvent{ID: "ext-2", Summary: "Offsite", Status: "cancelled"}
	ev.Start.Date = "2025-06-03"
	ev.End.Date = "2025-06-04"

	got, err := convertEvent("conn-1", ev, time.Now())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), got.StartsAt)
	assert.Equal(t, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), got.EndsAt)
	assert.True(t, got.Cancelled)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Attendees)
}

func TestConvertEventBadDate(t *testing.T) {
	ev := RemoteEvent{ID: "ext-3"}
	ev.Start.Date = "not-a-date"

	_, err := convertEvent("conn-1", ev, time.Now())
	assert.Error(t, err)
}
