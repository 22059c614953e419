package calendar

import (
	"context"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
)

// EventSource yields raw calendar events for the authenticated user
type EventSource interface {
	FetchEvents(ctx context.Context, email string, token *oauth2.Token) ([]*gcal.Event, error)
}

// MultiSource concatenates the events of several sources. Any failing source
// fails the whole fetch so that a pass never acts on a partial view.
type MultiSource []EventSource

// FetchEvents implements EventSource
func (m MultiSource) FetchEvents(ctx context.Context, email string, token *oauth2.Token) ([]*gcal.Event, error) {
	var all []*gcal.Event
	for _, source := range m {
		events, err := source.FetchEvents(ctx, email, token)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}
