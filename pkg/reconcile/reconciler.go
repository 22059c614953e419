// Package reconcile keeps the set of scheduled meeting alarms in line with
// the user's calendar.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lookcw/Google-Meet-Autocall/pkg/meeting"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

var (
	// ErrAuthentication means no credential or account email was available
	ErrAuthentication = errors.New("authentication failed")
	// ErrFetch means the calendar could not be read
	ErrFetch = errors.New("calendar fetch failed")
)

// SettingsStore holds the user's reminder settings
type SettingsStore interface {
	Load() models.Settings
	SetAlarmEnabled(enabled bool)
	SetMinutesBefore(minutes int) int
}

// TokenProvider supplies the bearer credential and the account email
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Email(ctx context.Context) (string, error)
}

// EventSource fetches the raw events of the query window
type EventSource interface {
	FetchEvents(ctx context.Context, email string, token *oauth2.Token) ([]*calendar.Event, error)
}

// AlarmScheduler is the named timer service alarms are kept in. Fired
// one-shot alarms stay visible through Get and GetAll until cleared.
type AlarmScheduler interface {
	CreateUntil(ctx context.Context, name string, fireAt, keepUntil time.Time) error
	Get(ctx context.Context, name string) (*models.ScheduledAlarm, error)
	Clear(ctx context.Context, name string) (bool, error)
	GetAll(ctx context.Context) ([]models.ScheduledAlarm, error)
}

// Dispatcher carries out the user-facing side effects
type Dispatcher interface {
	Dispatch(ctx context.Context, joinURL string) error
	Warn(ctx context.Context, message string)
}

// Config holds the naming constants of the engine
type Config struct {
	MeetingPrefix string           // marks an alarm as a meeting alarm
	RescanName    string           // name of the periodic rescan timer
	Now           func() time.Time // defaults to time.Now
}

// PassResult summarizes one reconciliation pass
type PassResult struct {
	Skipped bool `json:"skipped"` // reminders disabled, nothing fetched
	Created int  `json:"created"`
	Kept    int  `json:"kept"`
	Cleared int  `json:"cleared"`
	Pruned  int  `json:"pruned"` // tombstones of meetings that started or vanished
	Failed  int  `json:"failed"` // scheduler operations that were rejected
}

// Reconciler turns calendar events into meeting alarms
type Reconciler struct {
	cfg        Config
	settings   SettingsStore
	tokens     TokenProvider
	source     EventSource
	scheduler  AlarmScheduler
	dispatcher Dispatcher
	logger     zerolog.Logger

	// serializes passes and settings changes; fire handling does not take it
	mu sync.Mutex
}

// New creates a Reconciler
func New(cfg Config, settings SettingsStore, tokens TokenProvider, source EventSource, scheduler AlarmScheduler, dispatcher Dispatcher, logger zerolog.Logger) *Reconciler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		cfg:        cfg,
		settings:   settings,
		tokens:     tokens,
		source:     source,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// AlarmName returns the alarm name of a join URL
func (r *Reconciler) AlarmName(joinURL string) string {
	return r.cfg.MeetingPrefix + joinURL
}

// JoinURL recovers the join URL from a meeting alarm name
func (r *Reconciler) JoinURL(name string) (string, bool) {
	if !r.IsMeetingAlarm(name) {
		return "", false
	}
	return strings.TrimPrefix(name, r.cfg.MeetingPrefix), true
}

// IsMeetingAlarm reports whether name carries the meeting alarm prefix
func (r *Reconciler) IsMeetingAlarm(name string) bool {
	return strings.HasPrefix(name, r.cfg.MeetingPrefix)
}

// Reconcile runs one pass: fetch, classify, filter, then create missing
// alarms and clear unwanted ones. A second caller waits for the running pass.
func (r *Reconciler) Reconcile(ctx context.Context) (PassResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconcile(ctx)
}

func (r *Reconciler) reconcile(ctx context.Context) (PassResult, error) {
	logger := r.logger.With().Str("pass", uuid.NewString()).Logger()
	result := PassResult{}

	settings := r.settings.Load()
	if !settings.AlarmEnabled {
		logger.Debug().Msg("[SKIP] reminders disabled")
		result.Skipped = true
		return result, nil
	}

	email, token, err := r.credentials(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("[AUTH] pass aborted")
		r.dispatcher.Warn(ctx, "Meeting reminders need a signed-in Google account. Run with -login and set email in the config.")
		return result, err
	}

	events, err := r.source.FetchEvents(ctx, email, token)
	if err != nil {
		logger.Error().Err(err).Msg("[FETCH] pass aborted")
		return result, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	now := r.cfg.Now()
	accepted := make(map[string]models.MeetingRecord)
	acceptedOrder := []string{}
	declined := []string{}
	// every future meeting of this fetch, whatever the response
	seen := make(map[string]struct{})

	for _, event := range events {
		record, ok := meeting.Classify(event)
		if !ok || !record.StartTime.After(now) {
			continue
		}

		name := r.AlarmName(record.JoinURL)
		seen[name] = struct{}{}
		if !meeting.IsAccepted(event, email) {
			declined = append(declined, name)
			continue
		}
		if _, seen := accepted[name]; !seen {
			accepted[name] = record
			acceptedOrder = append(acceptedOrder, name)
		}
	}

	for _, name := range acceptedOrder {
		record := accepted[name]
		r.ensureAlarm(ctx, logger, name, record, settings.MinutesBefore, now, &result)
	}

	for _, name := range declined {
		// an accepted event with the same join link keeps the alarm
		if _, keep := accepted[name]; keep {
			continue
		}
		r.clearIfPresent(ctx, logger, name, &result)
	}

	r.sweepOrphans(ctx, logger, accepted, seen, now, &result)

	logger.Info().
		Int("events", len(events)).
		Int("accepted", len(acceptedOrder)).
		Int("created", result.Created).
		Int("kept", result.Kept).
		Int("cleared", result.Cleared).
		Int("pruned", result.Pruned).
		Int("failed", result.Failed).
		Msg("[PASS] done")
	return result, nil
}

func (r *Reconciler) credentials(ctx context.Context) (string, *oauth2.Token, error) {
	email, err := r.tokens.Email(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if email == "" {
		return "", nil, fmt.Errorf("%w: empty account email", ErrAuthentication)
	}
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return strings.ToLower(email), token, nil
}

// ensureAlarm creates the alarm when absent. An existing alarm keeps its
// fire time even if the meeting moved, and a fired one blocks the name until
// the meeting it rang for has started. The fire time may already be past for
// a meeting first seen inside its lead window; the scheduler fires it at once.
func (r *Reconciler) ensureAlarm(ctx context.Context, logger zerolog.Logger, name string, record models.MeetingRecord, minutesBefore int, now time.Time, result *PassResult) {
	existing, err := r.scheduler.Get(ctx, name)
	if err != nil {
		logger.Error().Err(err).Str("alarm", name).Msg("[SCHEDULER] lookup failed")
		result.Failed++
		return
	}
	if existing != nil && !existing.Expired(now) {
		if existing.Fired() {
			logger.Debug().Str("alarm", name).Time("fired_at", existing.FiredAt).Msg("[TOMBSTONE] already rang")
		}
		result.Kept++
		return
	}
	if existing != nil {
		// a later meeting reusing the join link of one that already rang
		if !r.prune(ctx, logger, name, result) {
			return
		}
	}

	fireAt := meeting.FireTime(record.StartTime, minutesBefore)
	if err := r.scheduler.CreateUntil(ctx, name, fireAt, record.StartTime); err != nil {
		logger.Error().Err(err).Str("alarm", name).Msg("[SCHEDULER] create failed")
		result.Failed++
		return
	}
	logger.Info().Str("alarm", name).Time("fire_at", fireAt).Msg("alarm created")
	result.Created++
}

func (r *Reconciler) clearIfPresent(ctx context.Context, logger zerolog.Logger, name string, result *PassResult) {
	existing, err := r.scheduler.Get(ctx, name)
	if err != nil {
		logger.Error().Err(err).Str("alarm", name).Msg("[SCHEDULER] lookup failed")
		result.Failed++
		return
	}
	if existing == nil || existing.Fired() {
		return
	}
	r.clear(ctx, logger, name, result)
}

func (r *Reconciler) clear(ctx context.Context, logger zerolog.Logger, name string, result *PassResult) {
	cleared, err := r.scheduler.Clear(ctx, name)
	if err != nil {
		logger.Error().Err(err).Str("alarm", name).Msg("[SCHEDULER] clear failed")
		result.Failed++
		return
	}
	if cleared {
		logger.Info().Str("alarm", name).Msg("alarm cleared")
		result.Cleared++
	}
}

// prune drops a fired tombstone and reports whether the name is free again
func (r *Reconciler) prune(ctx context.Context, logger zerolog.Logger, name string, result *PassResult) bool {
	cleared, err := r.scheduler.Clear(ctx, name)
	if err != nil {
		logger.Error().Err(err).Str("alarm", name).Msg("[SCHEDULER] clear failed")
		result.Failed++
		return false
	}
	if cleared {
		logger.Debug().Str("alarm", name).Msg("[TOMBSTONE] pruned")
		result.Pruned++
	}
	return true
}

// sweepOrphans clears future meeting alarms whose event was not accepted in
// this fetch, e.g. deleted events or meetings moved out of the window. Fired
// alarms are pruned once their meeting has started or left the fetch.
func (r *Reconciler) sweepOrphans(ctx context.Context, logger zerolog.Logger, accepted map[string]models.MeetingRecord, seen map[string]struct{}, now time.Time, result *PassResult) {
	alarms, err := r.scheduler.GetAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("[SCHEDULER] enumerate failed")
		result.Failed++
		return
	}
	for _, alarm := range alarms {
		if !r.IsMeetingAlarm(alarm.Name) {
			continue
		}
		if alarm.Fired() {
			if _, live := seen[alarm.Name]; live && !alarm.Expired(now) {
				continue
			}
			r.prune(ctx, logger, alarm.Name, result)
			continue
		}
		if !alarm.FireAt.After(now) {
			continue
		}
		if _, keep := accepted[alarm.Name]; keep {
			continue
		}
		r.clear(ctx, logger, alarm.Name, result)
	}
}

// ClearAll removes every pending meeting alarm and returns how many were
// cleared. Alarms without the meeting prefix, such as the rescan timer, are
// left alone, and so are fired alarms, which keep their meeting from ringing
// twice.
func (r *Reconciler) ClearAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearAll(ctx)
}

func (r *Reconciler) clearAll(ctx context.Context) (int, error) {
	alarms, err := r.scheduler.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("enumerate alarms: %w", err)
	}

	result := PassResult{}
	for _, alarm := range alarms {
		if r.IsMeetingAlarm(alarm.Name) && !alarm.Fired() {
			r.clear(ctx, r.logger, alarm.Name, &result)
		}
	}
	return result.Cleared, nil
}

// HandleMessage applies a settings control message: the new value is
// stored, every pending meeting alarm is cleared, and when reminders are on
// the alarm set is rebuilt under the new settings.
func (r *Reconciler) HandleMessage(ctx context.Context, msg models.ControlMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Type {
	case models.MessageToggleAlarms:
		r.settings.SetAlarmEnabled(*msg.Enabled)
		r.logger.Info().Bool("enabled", *msg.Enabled).Msg("[SETTINGS] reminders toggled")
	case models.MessageMinutesBeforeChanged:
		stored := r.settings.SetMinutesBefore(*msg.MinutesBefore)
		r.logger.Info().Int("minutes_before", stored).Msg("[SETTINGS] lead time changed")
	}

	cleared, err := r.clearAll(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug().Int("cleared", cleared).Msg("[SETTINGS] meeting alarms cleared")

	if !r.settings.Load().AlarmEnabled {
		return nil
	}
	_, err = r.reconcile(ctx)
	return err
}

// HandleFire reacts to a scheduler fire event. Meeting alarms open the
// meeting unless reminders were switched off after scheduling; the rescan
// timer starts a new pass.
func (r *Reconciler) HandleFire(ctx context.Context, name string) {
	if name == r.cfg.RescanName {
		if _, err := r.Reconcile(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("[RESCAN] pass failed, retrying next tick")
		}
		return
	}

	joinURL, ok := r.JoinURL(name)
	if !ok {
		r.logger.Debug().Str("alarm", name).Msg("[FIRE] ignoring foreign alarm")
		return
	}

	if !r.settings.Load().AlarmEnabled {
		r.logger.Info().Str("alarm", name).Msg("[FIRE] suppressed, reminders disabled")
		return
	}

	if err := r.dispatcher.Dispatch(ctx, joinURL); err != nil {
		r.logger.Error().Err(err).Str("url", joinURL).Msg("[FIRE] dispatch failed")
	}
}
