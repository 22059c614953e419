package meeting

import (
	"regexp"
	"strings"
)

var (
	zoomJoinRegex  = regexp.MustCompile(`https://(?:((?:[A-Za-z0-9-]+\.)*[A-Za-z0-9-]+)\.)?zoom\.us/j/(\d+)(?:\?(?:[^\s#"'<>]*?[&;])?pwd=([A-Za-z0-9._-]+))?`)
	teamsJoinRegex = regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[^\s<>"'{}|\\^` + "`" + `]+`)
)

// ExtractZoomURL finds the first Zoom join link in free text and returns it
// in native client form.
func ExtractZoomURL(text string) (string, bool) {
	match := zoomJoinRegex.FindString(text)
	if match == "" {
		return "", false
	}
	return NormalizeZoomURL(match), true
}

// ExtractTeamsURL finds the first Teams meetup-join link in free text
func ExtractTeamsURL(text string) (string, bool) {
	match := teamsJoinRegex.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.TrimRight(match, ".,;)"), true
}

// NormalizeZoomURL rewrites https://<sub>.zoom.us/j/<id>[?...pwd=<pwd>] into
// zoommtg://<sub>.zoom.us/join?action=join&confno=<id>[&pwd=<pwd>]. The
// subdomain may have several labels and pwd may follow other query
// parameters, which are dropped. Links that do not look like a Zoom join
// link are returned unchanged.
func NormalizeZoomURL(link string) string {
	m := zoomJoinRegex.FindStringSubmatch(link)
	if m == nil {
		return link
	}

	host := "zoom.us"
	if m[1] != "" {
		host = m[1] + ".zoom.us"
	}

	var b strings.Builder
	b.WriteString("zoommtg://")
	b.WriteString(host)
	b.WriteString("/join?action=join&confno=")
	b.WriteString(m[2])
	if m[3] != "" {
		b.WriteString("&pwd=")
		b.WriteString(m[3])
	}
	return b.String()
}
