package models

import "time"

const (
	DefaultCalendarBaseURL       = "https://www.googleapis.com/calendar/v3/"
	DefaultMeetingAlarmPrefix    = "meet-alarm:"
	DefaultRescanAlarmName       = "add-upcoming-alarms"
	DefaultRescanIntervalMinutes = 5
	DefaultLookaheadHours        = 24
	DefaultListenAddr            = "localhost:5500"
	DefaultDatabasePath          = "meeting-alarms.db"
	DefaultTokenFile             = "token.json"
	DefaultRingtoneVolume        = 0.5
	DefaultRingtoneLengthMs      = 20000

	// MemoryDatabasePath as database_path keeps alarms in memory only; they
	// are lost on restart and rebuilt by the first pass
	MemoryDatabasePath = ":memory:"
)

// Config holds daemon configuration loaded from the YAML file
type Config struct {
	AutoStart       bool           `yaml:"auto_start"`
	Email           string         `yaml:"email"`             // authenticated calendar owner
	CalendarBaseURL string         `yaml:"calendar_base_url"` // Google Calendar API root
	OAuth           OAuthConfig    `yaml:"oauth"`
	ICalSources     []ICalSource   `yaml:"ical_sources"`
	DatabasePath    string         `yaml:"database_path"` // sqlite file holding scheduled alarms, or ":memory:"
	ListenAddr      string         `yaml:"listen_addr"`   // control surface address
	Alarms          AlarmConfig    `yaml:"alarms"`
	Ringtone        RingtoneConfig `yaml:"ringtone"`
}

// OAuthConfig describes the Google OAuth client used for the calendar scope
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenFile    string `yaml:"token_file"`
}

// AlarmConfig holds the naming and timing constants of the alarm engine
type AlarmConfig struct {
	MeetingPrefix         string `yaml:"meeting_prefix"`
	RescanName            string `yaml:"rescan_name"`
	RescanIntervalMinutes int    `yaml:"rescan_interval_minutes"`
	LookaheadHours        int    `yaml:"lookahead_hours"`
	DefaultMinutesBefore  int    `yaml:"default_minutes_before"`
}

// RingtoneConfig parameterizes the sound played when a meeting alarm fires
type RingtoneConfig struct {
	File     string  `yaml:"file"` // WAV file, bundled ringtone when empty
	Volume   float64 `yaml:"volume"`
	LengthMs int     `yaml:"length_ms"`
}

// ICalSource represents a named iCal calendar feed
type ICalSource struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Validate checks if the iCal source has required fields
func (s *ICalSource) Validate() bool {
	return s.Name != "" && s.URL != ""
}

// ApplyDefaults fills every zero field with its default
func (c *Config) ApplyDefaults() {
	if c.CalendarBaseURL == "" {
		c.CalendarBaseURL = DefaultCalendarBaseURL
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.OAuth.TokenFile == "" {
		c.OAuth.TokenFile = DefaultTokenFile
	}
	if c.Alarms.MeetingPrefix == "" {
		c.Alarms.MeetingPrefix = DefaultMeetingAlarmPrefix
	}
	if c.Alarms.RescanName == "" {
		c.Alarms.RescanName = DefaultRescanAlarmName
	}
	if c.Alarms.RescanIntervalMinutes <= 0 {
		c.Alarms.RescanIntervalMinutes = DefaultRescanIntervalMinutes
	}
	if c.Alarms.LookaheadHours <= 0 {
		c.Alarms.LookaheadHours = DefaultLookaheadHours
	}
	c.Alarms.DefaultMinutesBefore = ClampMinutesBefore(c.Alarms.DefaultMinutesBefore)
	if c.Ringtone.Volume <= 0 || c.Ringtone.Volume > 1 {
		c.Ringtone.Volume = DefaultRingtoneVolume
	}
	if c.Ringtone.LengthMs <= 0 {
		c.Ringtone.LengthMs = DefaultRingtoneLengthMs
	}
}

// RescanInterval returns the period of the rescan timer
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Alarms.RescanIntervalMinutes) * time.Minute
}

// Lookahead returns the width of the calendar query window
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Alarms.LookaheadHours) * time.Hour
}

// RingtoneLength returns how long the ringtone plays
func (c *Config) RingtoneLength() time.Duration {
	return time.Duration(c.Ringtone.LengthMs) * time.Millisecond
}

// NeedsLogin returns true if no Google account is configured
func (c *Config) NeedsLogin() bool {
	return c.Email == "" || c.OAuth.ClientID == ""
}
