package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
)

// MemoryAlarmStore keeps scheduled alarms in process memory. Alarms do not
// survive a restart; use SQLiteAlarmStore for that. Selected with
// database_path ":memory:".
type MemoryAlarmStore struct {
	mu sync.RWMutex

	// Map of alarm name to alarm
	alarmsByName map[string]*models.ScheduledAlarm

	// Map of timestamp (minute precision) to the names of pending alarms due in that minute
	// Key format: Unix timestamp rounded to minute
	namesByTime map[int64][]string
}

// NewMemoryAlarmStore creates an empty MemoryAlarmStore
func NewMemoryAlarmStore() *MemoryAlarmStore {
	return &MemoryAlarmStore{
		alarmsByName: make(map[string]*models.ScheduledAlarm),
		namesByTime:  make(map[int64][]string),
	}
}

func timeKey(t time.Time) int64 {
	return models.RoundToMinute(t).Unix()
}

// Insert adds alarm unless an alarm with the same name exists
func (s *MemoryAlarmStore) Insert(_ context.Context, alarm models.ScheduledAlarm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alarmsByName[alarm.Name]; exists {
		return false, nil
	}

	s.alarmsByName[alarm.Name] = &alarm
	if !alarm.Fired() {
		key := timeKey(alarm.FireAt)
		s.namesByTime[key] = append(s.namesByTime[key], alarm.Name)
	}
	return true, nil
}

// Close is a no-op; it lets the store stand in for SQLiteAlarmStore
func (s *MemoryAlarmStore) Close() error {
	return nil
}

// Get returns the alarm called name, or nil
func (s *MemoryAlarmStore) Get(_ context.Context, name string) (*models.ScheduledAlarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alarm, exists := s.alarmsByName[name]
	if !exists {
		return nil, nil
	}
	copied := *alarm
	return &copied, nil
}

// Delete removes the alarm called name and reports whether it existed
func (s *MemoryAlarmStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarm, exists := s.alarmsByName[name]
	if !exists {
		return false, nil
	}
	if !alarm.Fired() {
		s.removeFromTimeIndex(timeKey(alarm.FireAt), name)
	}
	delete(s.alarmsByName, name)
	return true, nil
}

// MarkFired turns a pending one-shot alarm into a tombstone. It reports false
// when the alarm is missing, periodic or already fired.
func (s *MemoryAlarmStore) MarkFired(_ context.Context, name string, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarm, exists := s.alarmsByName[name]
	if !exists || alarm.IsPeriodic() || alarm.Fired() {
		return false, nil
	}
	s.removeFromTimeIndex(timeKey(alarm.FireAt), name)
	alarm.FiredAt = firedAt
	return true, nil
}

// UpdateFireAt moves an existing alarm to fireAt
func (s *MemoryAlarmStore) UpdateFireAt(_ context.Context, name string, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarm, exists := s.alarmsByName[name]
	if !exists || alarm.Fired() {
		return nil
	}
	s.removeFromTimeIndex(timeKey(alarm.FireAt), name)
	alarm.FireAt = fireAt
	key := timeKey(fireAt)
	s.namesByTime[key] = append(s.namesByTime[key], name)
	return nil
}

// List returns every alarm, tombstones included, sorted by fire time
func (s *MemoryAlarmStore) List(_ context.Context) ([]models.ScheduledAlarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ScheduledAlarm, 0, len(s.alarmsByName))
	for _, alarm := range s.alarmsByName {
		result = append(result, *alarm)
	}
	sortByFireAt(result)
	return result, nil
}

// Due returns the pending alarms whose fire time is at or before now
func (s *MemoryAlarmStore) Due(_ context.Context, now time.Time) ([]models.ScheduledAlarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nowKey := timeKey(now)
	result := []models.ScheduledAlarm{}
	for key, names := range s.namesByTime {
		if key > nowKey {
			continue
		}
		for _, name := range names {
			alarm := s.alarmsByName[name]
			if alarm != nil && !alarm.FireAt.After(now) {
				result = append(result, *alarm)
			}
		}
	}
	sortByFireAt(result)
	return result, nil
}

// Next returns the pending alarm that fires first, or nil when nothing is pending
func (s *MemoryAlarmStore) Next(_ context.Context) (*models.ScheduledAlarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *models.ScheduledAlarm
	for _, alarm := range s.alarmsByName {
		if alarm.Fired() {
			continue
		}
		if next == nil || alarm.FireAt.Before(next.FireAt) {
			next = alarm
		}
	}
	if next == nil {
		return nil, nil
	}
	copied := *next
	return &copied, nil
}

// removeFromTimeIndex removes a name from the time-based index
func (s *MemoryAlarmStore) removeFromTimeIndex(key int64, name string) {
	names := s.namesByTime[key]
	for i, n := range names {
		if n == name {
			s.namesByTime[key] = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(s.namesByTime[key]) == 0 {
		delete(s.namesByTime, key)
	}
}

func sortByFireAt(alarms []models.ScheduledAlarm) {
	sort.Slice(alarms, func(i, j int) bool {
		if alarms[i].FireAt.Equal(alarms[j].FireAt) {
			return alarms[i].Name < alarms[j].Name
		}
		return alarms[i].FireAt.Before(alarms[j].FireAt)
	})
}
