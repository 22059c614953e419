package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
)

// ICalFeed reads events from a public iCal URL. The feed carries its own
// credentials in the URL, so the user's bearer token is not sent.
type ICalFeed struct {
	source     models.ICalSource
	lookahead  time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

// NewICalFeed creates an event source for an iCal feed
func NewICalFeed(source models.ICalSource, lookahead time.Duration, logger zerolog.Logger) *ICalFeed {
	return &ICalFeed{
		source:     source,
		lookahead:  lookahead,
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     logger.With().Str("component", "ical").Str("source", source.Name).Logger(),
	}
}

// FetchEvents implements EventSource
func (f *ICalFeed) FetchEvents(ctx context.Context, _ string, _ *oauth2.Token) ([]*gcal.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid iCal URL for '%s': %w", f.source.Name, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("iCal source '%s' returned %s", f.source.Name, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	bodyStr := string(body)
	if err := validateICalFormat(bodyStr); err != nil {
		return nil, err
	}

	now := f.now()
	return f.decode(bodyStr, now, now.Add(f.lookahead))
}

func (f *ICalFeed) decode(bodyStr string, windowStart, windowEnd time.Time) ([]*gcal.Event, error) {
	decoder := ical.NewDecoder(strings.NewReader(bodyStr))
	events := []*gcal.Event{}
	seen := make(map[string]bool)
	stats := &filterStats{}

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			stats.totalEvents++

			event := parseEvent(comp)
			if event.Id == "" {
				event.Id = f.source.ID + "-" + event.Start.DateTime + "-" + event.Summary
			}

			if !stats.include(event, windowStart, windowEnd) {
				continue
			}
			if seen[event.Id] {
				stats.filteredDuplicates++
				continue
			}
			seen[event.Id] = true
			events = append(events, event)
		}
	}

	stats.log(f.logger, len(events))
	return events, nil
}

func validateICalFormat(bodyStr string) error {
	// Check if response is HTML instead of iCalendar
	upperBody := strings.ToUpper(strings.TrimSpace(bodyStr))
	if strings.HasPrefix(upperBody, "<!DOCTYPE") || strings.HasPrefix(upperBody, "<HTML") {
		return fmt.Errorf("received HTML instead of iCalendar data - check if URL requires authentication")
	}

	if !strings.HasPrefix(strings.TrimSpace(bodyStr), "BEGIN:VCALENDAR") {
		preview := strings.TrimSpace(bodyStr)
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return fmt.Errorf("invalid iCalendar format - expected BEGIN:VCALENDAR, got: %s", preview)
	}

	return nil
}
