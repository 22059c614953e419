package models

import (
	"errors"
	"fmt"
)

// Settings are the user-editable reminder preferences
type Settings struct {
	AlarmEnabled  bool `json:"alarmEnabled"`
	MinutesBefore int  `json:"minutesBefore"`
}

// DefaultSettings returns the settings used before the user changed anything
func DefaultSettings() Settings {
	return Settings{AlarmEnabled: true, MinutesBefore: 0}
}

// ClampMinutesBefore keeps a user supplied lead time non-negative
func ClampMinutesBefore(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes
}

// Control message types sent by a settings surface
const (
	MessageToggleAlarms         = "toggleAlarms"
	MessageMinutesBeforeChanged = "minutesBeforeChanged"
)

// ControlMessage is a settings change notification
type ControlMessage struct {
	Type          string `json:"type"`
	Enabled       *bool  `json:"enabled,omitempty"`
	MinutesBefore *int   `json:"minutesBefore,omitempty"`
}

// ToggleAlarms builds a toggleAlarms message
func ToggleAlarms(enabled bool) ControlMessage {
	return ControlMessage{Type: MessageToggleAlarms, Enabled: &enabled}
}

// MinutesBeforeChanged builds a minutesBeforeChanged message
func MinutesBeforeChanged(minutes int) ControlMessage {
	return ControlMessage{Type: MessageMinutesBeforeChanged, MinutesBefore: &minutes}
}

// Validate checks that the payload required by the message type is present
func (m ControlMessage) Validate() error {
	switch m.Type {
	case MessageToggleAlarms:
		if m.Enabled == nil {
			return errors.New("toggleAlarms message requires enabled")
		}
	case MessageMinutesBeforeChanged:
		if m.MinutesBefore == nil {
			return errors.New("minutesBeforeChanged message requires minutesBefore")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}
