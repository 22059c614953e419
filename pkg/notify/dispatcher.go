// Package notify performs the user-facing side of a fired meeting alarm.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"fyne.io/fyne/v2"
	"github.com/rs/zerolog"
)

// URLOpener opens a link in the user's browser or meeting client
type URLOpener interface {
	OpenURL(u *url.URL) error
}

// Notifier shows a desktop notification
type Notifier interface {
	SendNotification(n *fyne.Notification)
}

// Ringer plays the ringtone
type Ringer interface {
	Ring() error
}

// Broadcaster fans a message out to connected clients
type Broadcaster interface {
	Broadcast(v any) error
}

// RingMessage is the payload broadcast when a meeting alarm fires
type RingMessage struct {
	Action string  `json:"action"`
	URL    string  `json:"url"`
	Volume float64 `json:"volume"`
	Src    string  `json:"src"`
	Length int64   `json:"length"` // milliseconds
}

// RingOptions describes the ringtone announced to clients
type RingOptions struct {
	Volume float64
	Src    string
	Length time.Duration
}

// Dispatcher opens the meeting and rings. Ringer and Broadcaster are optional.
type Dispatcher struct {
	opener      URLOpener
	notifier    Notifier
	ringer      Ringer
	broadcaster Broadcaster
	ring        RingOptions
	logger      zerolog.Logger
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(opener URLOpener, notifier Notifier, ringer Ringer, broadcaster Broadcaster, ring RingOptions, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		opener:      opener,
		notifier:    notifier,
		ringer:      ringer,
		broadcaster: broadcaster,
		ring:        ring,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch opens joinURL and plays the ringtone. A failing ringtone or
// broadcast is logged; only a failure to open the meeting is returned.
func (d *Dispatcher) Dispatch(_ context.Context, joinURL string) error {
	u, err := url.Parse(joinURL)
	if err != nil {
		return fmt.Errorf("parse join url: %w", err)
	}

	d.logger.Info().Str("url", joinURL).Msg("[FIRE] opening meeting")
	openErr := d.opener.OpenURL(u)

	if d.ringer != nil {
		if err := d.ringer.Ring(); err != nil {
			d.logger.Warn().Err(err).Msg("[RING] ringtone unavailable")
		}
	}

	if d.broadcaster != nil {
		msg := RingMessage{
			Action: "ring",
			URL:    joinURL,
			Volume: d.ring.Volume,
			Src:    d.ring.Src,
			Length: d.ring.Length.Milliseconds(),
		}
		if err := d.broadcaster.Broadcast(msg); err != nil {
			d.logger.Warn().Err(err).Msg("[RING] broadcast failed")
		}
	}

	if openErr != nil {
		return fmt.Errorf("open %s: %w", joinURL, openErr)
	}
	return nil
}

// Warn shows message as a desktop notification
func (d *Dispatcher) Warn(_ context.Context, message string) {
	if d.notifier == nil {
		d.logger.Warn().Msg(message)
		return
	}
	d.notifier.SendNotification(fyne.NewNotification("Meeting reminders", message))
}
