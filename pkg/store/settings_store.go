package store

import (
	"fyne.io/fyne/v2"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
)

const (
	keyAlarmEnabled  = "alarm_enabled"
	keyMinutesBefore = "minutes_before"
)

// SettingsStore keeps the reminder settings in Fyne preferences
type SettingsStore struct {
	prefs    fyne.Preferences
	defaults models.Settings
}

// NewSettingsStore creates a SettingsStore over prefs. defaultMinutesBefore
// is used until the user picks a lead time.
func NewSettingsStore(prefs fyne.Preferences, defaultMinutesBefore int) *SettingsStore {
	defaults := models.DefaultSettings()
	defaults.MinutesBefore = models.ClampMinutesBefore(defaultMinutesBefore)
	return &SettingsStore{prefs: prefs, defaults: defaults}
}

// Load reads the current settings. It is called at the start of every pass
// and on every alarm fire, so nothing is cached here.
func (s *SettingsStore) Load() models.Settings {
	return models.Settings{
		AlarmEnabled:  s.prefs.BoolWithFallback(keyAlarmEnabled, s.defaults.AlarmEnabled),
		MinutesBefore: models.ClampMinutesBefore(s.prefs.IntWithFallback(keyMinutesBefore, s.defaults.MinutesBefore)),
	}
}

// SetAlarmEnabled turns meeting reminders on or off
func (s *SettingsStore) SetAlarmEnabled(enabled bool) {
	s.prefs.SetBool(keyAlarmEnabled, enabled)
}

// SetMinutesBefore stores the lead time, clamped to zero, and returns the stored value
func (s *SettingsStore) SetMinutesBefore(minutes int) int {
	minutes = models.ClampMinutesBefore(minutes)
	s.prefs.SetInt(keyMinutesBefore, minutes)
	return minutes
}
