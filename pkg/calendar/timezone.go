package calendar

import (
	"github.com/emersion/go-ical"
)

// Outlook feeds use Windows zone names in TZID, which time.LoadLocation rejects
var windowsToIANA = map[string]string{
	"Pacific Standard Time":          "America/Los_Angeles",
	"Mountain Standard Time":         "America/Denver",
	"Central Standard Time":          "America/Chicago",
	"Eastern Standard Time":          "America/New_York",
	"Atlantic Standard Time":         "America/Halifax",
	"Alaskan Standard Time":          "America/Anchorage",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"GMT Standard Time":              "Europe/London",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Romance Standard Time":          "Europe/Paris",
	"Central Europe Standard Time":   "Europe/Budapest",
	"China Standard Time":            "Asia/Shanghai",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"India Standard Time":            "Asia/Kolkata",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"E. South America Standard Time": "America/Sao_Paulo",
}

// normalizeTimezone rewrites a Windows TZID parameter to its IANA name in place
func normalizeTimezone(prop *ical.Prop) {
	tzid := prop.Params.Get(ical.ParamTimezoneID)
	if tzid == "" {
		return
	}
	if ianaName, ok := windowsToIANA[tzid]; ok {
		prop.Params.Set(ical.ParamTimezoneID, ianaName)
	}
}
