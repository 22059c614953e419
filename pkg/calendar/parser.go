package calendar

import (
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	gcal "google.golang.org/api/calendar/v3"
)

const propGoogleConference = "X-GOOGLE-CONFERENCE"

var cancelledTitleRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// parseEvent maps a VEVENT onto the Google event shape so feed events flow
// through the same classifier and acceptance rules.
func parseEvent(comp *ical.Component) *gcal.Event {
	event := &gcal.Event{Start: &gcal.EventDateTime{}}

	if uidProp := comp.Props.Get(ical.PropUID); uidProp != nil {
		event.Id = uidProp.Value
	}

	if summaryProp := comp.Props.Get(ical.PropSummary); summaryProp != nil {
		event.Summary = summaryProp.Value
	}

	if descProp := comp.Props.Get(ical.PropDescription); descProp != nil {
		event.Description = descProp.Value
	}

	// Join links are often only in the location, keep them searchable
	if locProp := comp.Props.Get(ical.PropLocation); locProp != nil && locProp.Value != "" {
		event.Location = locProp.Value
		if !strings.Contains(event.Description, locProp.Value) {
			event.Description = strings.TrimSpace(event.Description + "\n" + locProp.Value)
		}
	}

	if startProp := comp.Props.Get(ical.PropDateTimeStart); startProp != nil {
		normalizeTimezone(startProp)
		if isDateOnly(startProp) {
			event.Start.Date = startProp.Value
		} else if t, err := startProp.DateTime(time.Local); err == nil {
			event.Start.DateTime = t.Format(time.RFC3339)
		}
	}

	event.Status = parseStatus(comp)
	if event.Status != "cancelled" && isCancelledTitle(event.Summary) {
		event.Status = "cancelled"
	}

	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{
			Email:          strings.TrimPrefix(strings.ToLower(prop.Value), "mailto:"),
			ResponseStatus: responseStatus(prop.Params.Get(ical.ParamParticipationStatus)),
		})
	}

	if confProp := comp.Props.Get(propGoogleConference); confProp != nil && strings.Contains(confProp.Value, "meet.google.com") {
		event.HangoutLink = confProp.Value
	}

	return event
}

func isDateOnly(prop *ical.Prop) bool {
	return strings.EqualFold(prop.Params.Get(ical.ParamValue), "DATE") || len(prop.Value) == len("20060102")
}

// parseStatus lowers STATUS to the Google vocabulary. VEVENTs without a
// STATUS are treated as confirmed.
func parseStatus(comp *ical.Component) string {
	statusProp := comp.Props.Get(ical.PropStatus)
	if statusProp == nil || statusProp.Value == "" {
		return "confirmed"
	}
	return strings.ToLower(statusProp.Value)
}

func responseStatus(partstat string) string {
	switch strings.ToUpper(partstat) {
	case "ACCEPTED":
		return "accepted"
	case "DECLINED":
		return "declined"
	case "TENTATIVE":
		return "tentative"
	default:
		return "needsAction"
	}
}

func isCancelledTitle(title string) bool {
	cleanTitle := cancelledTitleRegex.ReplaceAllString(strings.ToLower(title), "")
	return strings.HasPrefix(cleanTitle, "canceled") || strings.HasPrefix(cleanTitle, "cancelled")
}
