// Package assets bundles the ringtone and tray icon into the binary.
package assets

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

//go:embed ringtone.wav
var Ringtone []byte

//go:embed icon.png
var icon []byte

// TrayIcon is the system tray icon resource
var TrayIcon = fyne.NewStaticResource("icon.png", icon)
