package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client queries the Google Calendar events endpoint of a single user
type Client struct {
	baseURL    string
	lookahead  time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient sets the transport the bearer token is attached to
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithClock replaces time.Now when computing the query window
func WithClock(now func() time.Time) ClientOption {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, lookahead time.Duration, opts ...ClientOption) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL:   baseURL,
		lookahead: lookahead,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the [timeMin, timeMax) range of the next query
func (c *Client) Window() (time.Time, time.Time) {
	now := c.now().UTC()
	return now, now.Add(c.lookahead)
}

// FetchEvents lists the single-instance events of email's calendar inside the
// query window, ordered by start time. There is no retry; the caller gives up
// on the pass and tries again on its next tick.
func (c *Client) FetchEvents(ctx context.Context, email string, token *oauth2.Token) ([]*gcal.Event, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("no bearer token")
	}

	httpCtx := ctx
	if c.httpClient != nil {
		httpCtx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	httpClient := oauth2.NewClient(httpCtx, oauth2.StaticTokenSource(token))

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient), option.WithEndpoint(c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	timeMin, timeMax := c.Window()
	call := svc.Events.List(email).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		OrderBy("startTime").
		SingleEvents(true).
		Context(ctx)
	call.Header().Set("Content-Type", "application/json")

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", email, err)
	}
	return resp.Items, nil
}
