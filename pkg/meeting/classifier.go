// Package meeting turns raw calendar events into meeting records and
// decides which of them deserve an alarm.
package meeting

import (
	"strings"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"google.golang.org/api/calendar/v3"
)

const (
	zoomConferenceName = "Zoom Meeting"
	videoEntryPoint    = "video"
)

// Classify maps a raw event to a meeting record. Providers are tried in the
// order Zoom, Teams, Google Meet and the first match wins. Events without a
// start dateTime or without a recognizable join link yield false.
func Classify(event *calendar.Event) (models.MeetingRecord, bool) {
	if event == nil {
		return models.MeetingRecord{}, false
	}

	start, ok := StartTime(event)
	if !ok {
		return models.MeetingRecord{}, false
	}

	joinURL, provider, ok := detectProvider(event)
	if !ok {
		return models.MeetingRecord{}, false
	}

	return models.MeetingRecord{
		StartTime: start,
		JoinURL:   joinURL,
		Provider:  provider,
	}, true
}

func detectProvider(event *calendar.Event) (string, models.Provider, bool) {
	if link, ok := zoomConferenceLink(event.ConferenceData); ok {
		return NormalizeZoomURL(link), models.ProviderZoom, true
	}
	if link, ok := ExtractZoomURL(event.Description); ok {
		return link, models.ProviderZoom, true
	}
	if link, ok := ExtractTeamsURL(event.Description); ok {
		return link, models.ProviderTeams, true
	}
	if event.HangoutLink != "" {
		return event.HangoutLink, models.ProviderMeet, true
	}
	return "", "", false
}

// zoomConferenceLink returns the video entry point of a Zoom conference add-on
func zoomConferenceLink(data *calendar.ConferenceData) (string, bool) {
	if data == nil || data.ConferenceSolution == nil || data.ConferenceSolution.Name != zoomConferenceName {
		return "", false
	}
	for _, ep := range data.EntryPoints {
		if ep != nil && ep.EntryPointType == videoEntryPoint && ep.Uri != "" {
			return ep.Uri, true
		}
	}
	return "", false
}

// StartTime parses start.dateTime. All-day events only carry start.date and
// are reported as missing.
func StartTime(event *calendar.Event) (time.Time, bool) {
	if event.Start == nil || strings.TrimSpace(event.Start.DateTime) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
