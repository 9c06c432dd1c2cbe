// Package calendar syncs external calendar events into the workspace.
// Google is the only supported provider.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/driveworks/drivehub/internal/config"
)

const (
	eventsURL = "https://www.googleapis.com/calendar/v3/calendars/%s/events"

	// ScopeCalendarReadonly is requested when a user connects a calendar.
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
)

// RemoteEvent is one event as returned by the Google Calendar API.
type RemoteEvent struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Start       struct {
		DateTime time.Time `json:"dateTime"`
		Date     string    `json:"date"`
	} `json:"start"`
	End struct {
		DateTime time.Time `json:"dateTime"`
		Date     string    `json:"date"`
	} `json:"end"`
	Attendees []struct {
		Email          string `json:"email"`
		ResponseStatus string `json:"responseStatus"`
	} `json:"attendees"`
}

type eventsPage struct {
	Items         []RemoteEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

// Client fetches events from the Google Calendar REST API using a
// per-connection refresh token.
type Client struct {
	oauth *oauth2.Config
}

func NewClient(cfg config.CalendarConfig) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{ScopeCalendarReadonly},
		},
	}
}

// httpClient builds an authenticated client that refreshes the access token
// from the stored refresh token as needed.
func (c *Client) httpClient(ctx context.Context, refreshToken string) *http.Client {
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return oauth2.NewClient(ctx, src)
}

// ListEvents fetches all events of a calendar within the window, following
// pagination. Transient provider errors are retried with backoff.
func (c *Client) ListEvents(ctx context.Context, refreshToken, calendarID string, from, to time.Time) ([]RemoteEvent, error) {
	hc := c.httpClient(ctx, refreshToken)

	var events []RemoteEvent
	pageToken := ""
	for {
		page, err := c.fetchPage(ctx, hc, calendarID, from, to, pageToken)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) fetchPage(ctx context.Context, hc *http.Client, calendarID string, from, to time.Time, pageToken string) (*eventsPage, error) {
	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "250")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	reqURL := fmt.Sprintf(eventsURL, url.PathEscape(calendarID)) + "?" + q.Encode()

	var page *eventsPage
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("calendar API returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, body)
		}

		var decoded eventsPage
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode events page: %w", err)
		}
		page = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// AuthCodeURL returns the consent URL for connecting a calendar. The
// offline access type is required to obtain a refresh token.
func (c *Client) AuthCodeURL(state, redirectURL string) string {
	cfg := *c.oauth
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, redirectURL string) (*oauth2.Token, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirectURL
	return cfg.Exchange(ctx, code)
}
