package main

import (
	"fmt"
	"net/url"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/lookcw/Google-Meet-Autocall/assets"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
)

// leadTimes are the lead times offered in the tray, in minutes
var leadTimes = []int{0, 1, 2, 5, 10, 15}

type upcomingAlarm struct {
	fireAt  time.Time
	joinURL string
}

// refreshSystemTray may be called from any goroutine
func (ma *MeetingAlarms) refreshSystemTray() {
	if ma.headless {
		return
	}
	fyne.Do(ma.updateSystemTrayMenu)
}

func (ma *MeetingAlarms) updateSystemTrayMenu() {
	desk, ok := ma.app.(desktop.App)
	if !ok {
		return
	}
	ctx := ma.trayCtx
	settings := ma.settings.Load()
	menuItems := []*fyne.MenuItem{}

	// Add upcoming alarms section at the top
	alarms, err := ma.scheduler.GetAll(ctx)
	if err != nil {
		ma.logger.Warn().Err(err).Msg("failed to list alarms for tray")
	}
	upcoming := upcomingAlarms(alarms, ma.reconciler.JoinURL, time.Now(), 5)
	if len(upcoming) > 0 {
		headerItem := fyne.NewMenuItem("Upcoming Alarms:", nil)
		headerItem.Disabled = true
		menuItems = append(menuItems, headerItem)

		for _, alarm := range upcoming {
			joinURL := alarm.joinURL
			text := fmt.Sprintf("  %s - %s", alarm.fireAt.Local().Format("3:04 PM"), truncateString(joinURL, 40))
			menuItems = append(menuItems, fyne.NewMenuItem(text, func() {
				if u, err := url.Parse(joinURL); err == nil {
					ma.app.OpenURL(u)
				}
			}))
		}
		menuItems = append(menuItems, fyne.NewMenuItemSeparator())
	}

	toggleItem := fyne.NewMenuItem("Meeting Reminders", func() {
		go ma.sendMessage(ctx, models.ToggleAlarms(!settings.AlarmEnabled))
	})
	toggleItem.Checked = settings.AlarmEnabled

	leadItems := make([]*fyne.MenuItem, 0, len(leadTimes))
	for _, minutes := range leadTimes {
		item := fyne.NewMenuItem(leadTimeLabel(minutes), func() {
			go ma.sendMessage(ctx, models.MinutesBeforeChanged(minutes))
		})
		item.Checked = minutes == settings.MinutesBefore
		leadItems = append(leadItems, item)
	}
	leadItem := fyne.NewMenuItem("Remind Me", nil)
	leadItem.ChildMenu = fyne.NewMenu("", leadItems...)
	leadItem.Disabled = !settings.AlarmEnabled

	menuItems = append(menuItems,
		toggleItem,
		leadItem,
		fyne.NewMenuItem("Sync Now", func() {
			go ma.syncNow(ctx)
		}),
	)
	if ma.ringer != nil {
		menuItems = append(menuItems, fyne.NewMenuItem("Silence Ringtone", ma.ringer.Stop))
	}
	menuItems = append(menuItems,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			ma.app.Quit()
		}),
	)

	menu := fyne.NewMenu("Meeting Alarms", menuItems...)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(assets.TrayIcon)
}

// upcomingAlarms returns the next limit pending meeting alarms firing after
// now. Entries carry the alarm time, not the meeting start.
func upcomingAlarms(alarms []models.ScheduledAlarm, joinURL func(string) (string, bool), now time.Time, limit int) []upcomingAlarm {
	upcoming := []upcomingAlarm{}
	for _, alarm := range alarms {
		link, ok := joinURL(alarm.Name)
		if !ok || alarm.Fired() || !alarm.FireAt.After(now) {
			continue
		}
		upcoming = append(upcoming, upcomingAlarm{fireAt: alarm.FireAt, joinURL: link})
		if len(upcoming) >= limit {
			break
		}
	}
	return upcoming
}

func leadTimeLabel(minutes int) string {
	switch minutes {
	case 0:
		return "At Start Time"
	case 1:
		return "1 Minute Before"
	default:
		return fmt.Sprintf("%d Minutes Before", minutes)
	}
}

// truncateString truncates a string to maxLen characters, adding "..." if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
