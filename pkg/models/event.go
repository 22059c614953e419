package models

import "time"

// Provider identifies the conferencing backend of a meeting
type Provider string

const (
	ProviderMeet  Provider = "Meet"
	ProviderZoom  Provider = "Zoom"
	ProviderTeams Provider = "Teams"
)

// MeetingRecord is a calendar event reduced to what an alarm needs.
// Records only live for a single reconciliation pass.
type MeetingRecord struct {
	StartTime time.Time // Meeting start time
	JoinURL   string    // Provider join link (Zoom links are rewritten to zoommtg://)
	Provider  Provider  // Conferencing provider the link belongs to
}
