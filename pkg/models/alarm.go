package models

import "time"

// ScheduledAlarm is a timer held by the alarm scheduler
type ScheduledAlarm struct {
	ID        string        // Unique identifier for the alarm (UUID)
	Name      string        // Identity key; meeting alarms are prefix + join URL
	FireAt    time.Time     // When this alarm should fire
	Period    time.Duration // Zero for one-shot alarms, repeat interval otherwise
	CreatedAt time.Time     // When the alarm was first scheduled
	FiredAt   time.Time     // Zero until a one-shot alarm has fired
	KeepUntil time.Time     // A fired alarm may be dropped from then on; zero keeps it until cleared
}

// Fired reports whether a one-shot alarm already went off. A fired alarm is
// kept as a tombstone so the same name is not scheduled again.
func (a ScheduledAlarm) Fired() bool {
	return !a.FiredAt.IsZero()
}

// Expired reports whether a fired alarm has outlived its KeepUntil
func (a ScheduledAlarm) Expired(now time.Time) bool {
	return a.Fired() && !a.KeepUntil.IsZero() && !now.Before(a.KeepUntil)
}

// IsPeriodic reports whether the alarm is re-armed after firing
func (a ScheduledAlarm) IsPeriodic() bool {
	return a.Period > 0
}

// RoundToMinute rounds a time down to the nearest minute
func RoundToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
