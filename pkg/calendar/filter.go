package calendar

import (
	"time"

	"github.com/rs/zerolog"
	gcal "google.golang.org/api/calendar/v3"
)

type filterStats struct {
	totalEvents           int
	filteredMissingTime   int
	filteredOutsideWindow int
	filteredDuplicates    int
}

// include keeps timed events starting inside [windowStart, windowEnd).
// Cancelled events stay in so a previously scheduled alarm can be cleared.
func (s *filterStats) include(event *gcal.Event, windowStart, windowEnd time.Time) bool {
	if event.Start == nil || event.Start.DateTime == "" {
		s.filteredMissingTime++
		return false
	}

	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		s.filteredMissingTime++
		return false
	}

	if start.Before(windowStart) || !start.Before(windowEnd) {
		s.filteredOutsideWindow++
		return false
	}
	return true
}

func (s *filterStats) log(logger zerolog.Logger, includedCount int) {
	totalFiltered := s.filteredMissingTime + s.filteredOutsideWindow + s.filteredDuplicates
	logger.Debug().
		Int("events", s.totalEvents).
		Int("included", includedCount).
		Int("missing_time", s.filteredMissingTime).
		Int("outside_window", s.filteredOutsideWindow).
		Int("duplicates", s.filteredDuplicates).
		Msgf("[SUMMARY] %d filtered", totalFiltered)
}
