package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20240101T100000Z\r\n" +
	"DTEND:20240101T101500Z\r\n" +
	"STATUS:CONFIRMED\r\n" +
	"DESCRIPTION:Join https://acme.zoom.us/j/1234567890?pwd=abcXYZ\r\n" +
	"ATTENDEE;PARTSTAT=ACCEPTED:mailto:Alice@example.com\r\n" +
	"ATTENDEE;PARTSTAT=DECLINED:mailto:bob@example.com\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Cancelled: Review\r\n" +
	"DTSTART;TZID=Pacific Standard Time:20240101T030000\r\n" +
	"DTEND;TZID=Pacific Standard Time:20240101T040000\r\n" +
	"LOCATION:https://teams.microsoft.com/l/meetup-join/abc\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20240101\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:later@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Next week\r\n" +
	"DTSTART:20240108T100000Z\r\n" +
	"X-GOOGLE-CONFERENCE:https://meet.google.com/abc-defg-hij\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestFeed(t *testing.T, body string, status int) *ICalFeed {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	f := NewICalFeed(models.ICalSource{ID: "work", Name: "Work", URL: server.URL}, 24*time.Hour, zerolog.Nop())
	f.httpClient = server.Client()
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestICalFeedFetchEvents(t *testing.T) {
	f := newTestFeed(t, feed, http.StatusOK)

	events, err := f.FetchEvents(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	standup := events[0]
	assert.Equal(t, "standup@example.com", standup.Id)
	assert.Equal(t, "confirmed", standup.Status)
	assert.Equal(t, "2024-01-01T10:00:00Z", standup.Start.DateTime)
	require.Len(t, standup.Attendees, 2)
	assert.Equal(t, "alice@example.com", standup.Attendees[0].Email)
	assert.Equal(t, "accepted", standup.Attendees[0].ResponseStatus)
	assert.Equal(t, "declined", standup.Attendees[1].ResponseStatus)

	review := events[1]
	assert.Equal(t, "cancelled", review.Status)
	assert.Contains(t, review.Description, "https://teams.microsoft.com/l/meetup-join/abc")
	start, err := time.Parse(time.RFC3339, review.Start.DateTime)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)), "got %s", start)
}

func TestICalFeedRejectsHTML(t *testing.T) {
	f := newTestFeed(t, "<!DOCTYPE html><html>login</html>", http.StatusOK)

	_, err := f.FetchEvents(context.Background(), "", nil)
	assert.ErrorContains(t, err, "HTML")
}

func TestICalFeedRejectsErrorStatus(t *testing.T) {
	f := newTestFeed(t, feed, http.StatusForbidden)

	_, err := f.FetchEvents(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestIsCancelledTitle(t *testing.T) {
	assert.True(t, isCancelledTitle("Cancelled: Review"))
	assert.True(t, isCancelledTitle("[CANCELED] sync"))
	assert.False(t, isCancelledTitle("Review of cancelled orders"))
}
