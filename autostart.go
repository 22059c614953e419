package main

import (
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
	"github.com/rs/zerolog"
)

func setupAutostart(enable bool, args []string, logger zerolog.Logger) error {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return err
	}

	app := &autostart.App{
		Name:        "meeting-alarms",
		DisplayName: "Meeting Alarms",
		Exec:        append([]string{execPath}, args...),
	}

	if enable {
		if !app.IsEnabled() {
			if err := app.Enable(); err != nil {
				return err
			}
			logger.Info().Msg("autostart enabled")
		}
	} else {
		if app.IsEnabled() {
			if err := app.Disable(); err != nil {
				return err
			}
			logger.Info().Msg("autostart disabled")
		}
	}

	return nil
}
