// Package scheduler is a persistent named-timer service: alarms are created
// if absent, looked up, cleared and enumerated by name, and each one fires
// exactly once at or after its fire time. A fired one-shot alarm stays in
// the store as a tombstone until it is cleared, so creating it again is a
// no-op.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/rs/zerolog"
)

// maxWait bounds how long the loop sleeps so wall clock jumps (suspend,
// resume) are noticed.
const maxWait = time.Minute

// Store persists scheduled alarms
type Store interface {
	Insert(ctx context.Context, alarm models.ScheduledAlarm) (bool, error)
	Get(ctx context.Context, name string) (*models.ScheduledAlarm, error)
	Delete(ctx context.Context, name string) (bool, error)
	MarkFired(ctx context.Context, name string, firedAt time.Time) (bool, error)
	UpdateFireAt(ctx context.Context, name string, fireAt time.Time) error
	List(ctx context.Context) ([]models.ScheduledAlarm, error)
	Due(ctx context.Context, now time.Time) ([]models.ScheduledAlarm, error)
	Next(ctx context.Context) (*models.ScheduledAlarm, error)
}

// FireFunc receives the name of an alarm that went off
type FireFunc func(ctx context.Context, name string)

// Scheduler owns the alarm set and the loop that fires it
type Scheduler struct {
	store       Store
	now         func() time.Time
	missedAfter time.Duration
	wake        chan struct{}
	logger      zerolog.Logger
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithMissedAfter drops one-shot alarms that are more than d overdue, e.g.
// after the process was down through their fire time. They are tombstoned
// without firing. An alarm created with a fire time already in the past
// counts as due from its creation. Zero fires every overdue alarm.
func WithMissedAfter(d time.Duration) Option {
	return func(s *Scheduler) { s.missedAfter = d }
}

// New creates a Scheduler over store
func New(store Store, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create schedules a one-shot alarm. It is a no-op when name already exists,
// fired or not.
func (s *Scheduler) Create(ctx context.Context, name string, fireAt time.Time) error {
	return s.insert(ctx, models.ScheduledAlarm{Name: name, FireAt: fireAt})
}

// CreateUntil is Create for an alarm whose tombstone lapses at keepUntil,
// after which the caller may clear it and schedule the name again
func (s *Scheduler) CreateUntil(ctx context.Context, name string, fireAt, keepUntil time.Time) error {
	return s.insert(ctx, models.ScheduledAlarm{Name: name, FireAt: fireAt, KeepUntil: keepUntil})
}

// CreatePeriodic schedules an alarm that fires every period, first one
// period from now. It is a no-op when name already exists.
func (s *Scheduler) CreatePeriodic(ctx context.Context, name string, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("period of %s must be positive", name)
	}
	return s.insert(ctx, models.ScheduledAlarm{Name: name, FireAt: s.now().Add(period), Period: period})
}

func (s *Scheduler) insert(ctx context.Context, alarm models.ScheduledAlarm) error {
	alarm.ID = uuid.NewString()
	alarm.CreatedAt = s.now()
	created, err := s.store.Insert(ctx, alarm)
	if err != nil {
		return err
	}
	if created {
		s.logger.Debug().Str("alarm", alarm.Name).Time("fire_at", alarm.FireAt).Msg("[CREATED]")
		s.poke()
	}
	return nil
}

// Get returns the alarm called name, or nil when it is not scheduled. Fired
// alarms are returned with FiredAt set.
func (s *Scheduler) Get(ctx context.Context, name string) (*models.ScheduledAlarm, error) {
	return s.store.Get(ctx, name)
}

// Clear removes the alarm called name, tombstone or not, and reports whether
// it existed
func (s *Scheduler) Clear(ctx context.Context, name string) (bool, error) {
	cleared, err := s.store.Delete(ctx, name)
	if err != nil {
		return false, err
	}
	if cleared {
		s.logger.Debug().Str("alarm", name).Msg("[CLEARED]")
		s.poke()
	}
	return cleared, nil
}

// GetAll returns every alarm, tombstones included, sorted by fire time
func (s *Scheduler) GetAll(ctx context.Context) ([]models.ScheduledAlarm, error) {
	return s.store.List(ctx)
}

// Run fires due alarms until ctx is cancelled. Alarms missed while the
// process was down fire on the first iteration unless they are older than
// the missed threshold. Each fire is delivered on its own goroutine after the
// alarm has been tombstoned (or re-armed, for periodic alarms), so a handler
// may freely call back into the scheduler.
func (s *Scheduler) Run(ctx context.Context, onFire FireFunc) error {
	for {
		if err := s.fireDue(ctx, onFire); err != nil {
			s.logger.Error().Err(err).Msg("firing due alarms failed")
		}

		timer := time.NewTimer(s.nextWait(ctx))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context, onFire FireFunc) error {
	now := s.now()
	due, err := s.store.Due(ctx, now)
	if err != nil {
		return err
	}

	for _, alarm := range due {
		if alarm.IsPeriodic() {
			next := alarm.FireAt.Add(alarm.Period)
			for !next.After(now) {
				next = next.Add(alarm.Period)
			}
			if err := s.store.UpdateFireAt(ctx, alarm.Name, next); err != nil {
				s.logger.Error().Err(err).Str("alarm", alarm.Name).Msg("re-arming periodic alarm failed")
				continue
			}
		} else {
			marked, err := s.store.MarkFired(ctx, alarm.Name, now)
			if err != nil {
				s.logger.Error().Err(err).Str("alarm", alarm.Name).Msg("marking fired alarm failed")
				continue
			}
			if !marked {
				// cleared between Due and MarkFired
				continue
			}
			if s.missed(alarm, now) {
				s.logger.Warn().Str("alarm", alarm.Name).Time("fire_at", alarm.FireAt).Msg("[MISSED] too late to fire")
				continue
			}
		}

		s.logger.Info().Str("alarm", alarm.Name).Time("fire_at", alarm.FireAt).Msg("[FIRED]")
		go onFire(ctx, alarm.Name)
	}
	return nil
}

// missed reports whether a one-shot alarm is overdue past the threshold
func (s *Scheduler) missed(alarm models.ScheduledAlarm, now time.Time) bool {
	if s.missedAfter <= 0 {
		return false
	}
	due := alarm.FireAt
	if alarm.CreatedAt.After(due) {
		due = alarm.CreatedAt
	}
	return now.Sub(due) > s.missedAfter
}

func (s *Scheduler) nextWait(ctx context.Context) time.Duration {
	next, err := s.store.Next(ctx)
	if err != nil || next == nil {
		return maxWait
	}
	wait := next.FireAt.Sub(s.now())
	if wait < 0 {
		return 0
	}
	if wait > maxWait {
		return maxWait
	}
	return wait
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
