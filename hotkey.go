package main

import (
	"context"

	"golang.design/x/hotkey"
)

// registerSilenceHotkey stops a ringing alarm on Ctrl+Shift+M until ctx ends
func (ma *MeetingAlarms) registerSilenceHotkey(ctx context.Context) {
	if ma.ringer == nil {
		return
	}

	go func() {
		hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyM)
		if err := hk.Register(); err != nil {
			ma.logger.Warn().Err(err).Msg("failed to register silence hotkey")
			return
		}
		defer hk.Unregister()

		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				ma.logger.Debug().Msg("[RING] silenced by hotkey")
				ma.ringer.Stop()
			}
		}
	}()
}
