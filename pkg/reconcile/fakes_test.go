package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

type fakeSettings struct {
	mu       sync.Mutex
	settings models.Settings
}

func (s *fakeSettings) Load() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeSettings) SetAlarmEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AlarmEnabled = enabled
}

func (s *fakeSettings) SetMinutesBefore(minutes int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.MinutesBefore = models.ClampMinutesBefore(minutes)
	return s.settings.MinutesBefore
}

type fakeTokens struct {
	email string
	err   error
}

func (f fakeTokens) Token(context.Context) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (f fakeTokens) Email(context.Context) (string, error) {
	return f.email, nil
}

type fakeSource struct {
	mu     sync.Mutex
	events []*calendar.Event
	err    error
	calls  int
}

func (f *fakeSource) FetchEvents(_ context.Context, _ string, _ *oauth2.Token) ([]*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.events, f.err
}

func (f *fakeSource) set(events ...*calendar.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

func (f *fakeSource) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScheduler struct {
	mu         sync.Mutex
	alarms     map[string]models.ScheduledAlarm
	creates    int
	clears     int
	failCreate map[string]bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		alarms:     make(map[string]models.ScheduledAlarm),
		failCreate: make(map[string]bool),
	}
}

func (f *fakeScheduler) CreateUntil(_ context.Context, name string, fireAt, keepUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate[name] {
		return errors.New("quota exceeded")
	}
	if _, exists := f.alarms[name]; !exists {
		f.alarms[name] = models.ScheduledAlarm{Name: name, FireAt: fireAt, KeepUntil: keepUntil}
	}
	return nil
}

func (f *fakeScheduler) Get(_ context.Context, name string) (*models.ScheduledAlarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[name]
	if !ok {
		return nil, nil
	}
	return &alarm, nil
}

func (f *fakeScheduler) Clear(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	_, ok := f.alarms[name]
	delete(f.alarms, name)
	return ok, nil
}

func (f *fakeScheduler) GetAll(context.Context) ([]models.ScheduledAlarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]models.ScheduledAlarm, 0, len(f.alarms))
	for _, alarm := range f.alarms {
		all = append(all, alarm)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (f *fakeScheduler) put(name string, fireAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alarms[name] = models.ScheduledAlarm{Name: name, FireAt: fireAt}
}

// fire turns a pending alarm into a tombstone the way the scheduler loop does
func (f *fakeScheduler) fire(name string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[name]
	if !ok {
		return
	}
	alarm.FiredAt = at
	f.alarms[name] = alarm
}

func (f *fakeScheduler) names() []string {
	all, _ := f.GetAll(context.Background())
	names := make([]string, 0, len(all))
	for _, alarm := range all {
		names = append(names, alarm.Name)
	}
	return names
}

func (f *fakeScheduler) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

type fakeDispatcher struct {
	mu       sync.Mutex
	opened   []string
	warnings []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, joinURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, joinURL)
	return nil
}

func (f *fakeDispatcher) Warn(_ context.Context, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, message)
}
