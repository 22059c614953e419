package meeting

import (
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

const (
	statusConfirmed  = "confirmed"
	responseDeclined = "declined"
)

// IsAccepted reports whether selfEmail takes part in a confirmed event.
// An event without attendees is one the user created alone and counts as accepted.
func IsAccepted(event *calendar.Event, selfEmail string) bool {
	if event == nil || event.Status != statusConfirmed {
		return false
	}
	if len(event.Attendees) == 0 {
		return true
	}
	for _, attendee := range event.Attendees {
		if attendee == nil {
			continue
		}
		if strings.EqualFold(attendee.Email, selfEmail) && attendee.ResponseStatus != responseDeclined {
			return true
		}
	}
	return false
}

// FireTime returns when the alarm for a meeting starting at start should go off
func FireTime(start time.Time, minutesBefore int) time.Time {
	return start.Add(-time.Duration(minutesBefore) * time.Minute)
}
