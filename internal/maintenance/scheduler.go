package maintenance

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/metrics"
	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/shared/keylock"
	"backend-mchanga/internal/stream"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

const (
	EventServiceReminder    = "service-reminder"
	EventServiceCompleted   = "service-completed"
	EventServiceRescheduled = "service-rescheduled"

	DefaultReminderLead = 24 * time.Hour
	DefaultUpcomingDays = 7
)

type Store interface {
	Insert(ctx context.Context, r Record) (Record, error)
	FindByID(ctx context.Context, id string) (Record, error)
	Complete(ctx context.Context, id string, at time.Time) (Record, error)
	Reschedule(ctx context.Context, id string, date time.Time) (Record, error)
	Query(ctx context.Context, f Filter) ([]Record, error)
	Count(ctx context.Context, f Filter) (int, error)
	CompletedCost(ctx context.Context) (float64, error)
}

type reminder struct {
	serviceID string
	timer     clock.Timer
}

// Scheduler persists service appointments and arms a one-shot reminder
// ahead of each future service date.
type Scheduler struct {
	store   Store
	hub     *stream.Hub
	clock   clock.WithDelayedExecution
	lead    time.Duration
	log     zerolog.Logger
	metrics *metrics.Collector

	locks keylock.Map

	mu        sync.Mutex
	reminders map[string][]*reminder
	stopped   bool
}

type Option func(*Scheduler)

func WithClock(c clock.WithDelayedExecution) Option { return func(s *Scheduler) { s.clock = c } }

// WithLead sets how long before the service date the reminder fires.
func WithLead(d time.Duration) Option { return func(s *Scheduler) { s.lead = d } }

func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithMetrics(m *metrics.Collector) Option { return func(s *Scheduler) { s.metrics = m } }

func NewScheduler(store Store, hub *stream.Hub, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		hub:       hub,
		clock:     clock.RealClock{},
		lead:      DefaultReminderLead,
		log:       logging.Nop(),
		reminders: map[string][]*reminder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) ScheduleService(ctx context.Context, in Record) (Record, error) {
	if in.VehicleID == "" {
		return Record{}, apperr.Invalid("vehicleId required")
	}
	if !validServiceType(in.ServiceType) {
		return Record{}, apperr.Invalid("unknown service type %q", in.ServiceType)
	}
	if in.ServiceDate.IsZero() {
		return Record{}, apperr.Invalid("serviceDate required")
	}
	if in.Status == "" {
		in.Status = StatusScheduled
	}

	r, err := s.store.Insert(ctx, in)
	if err != nil {
		return Record{}, err
	}
	s.arm(r)
	s.log.Info().Str("service", r.ID).Str("vehicle", r.VehicleID).Time("date", r.ServiceDate).Msg("service scheduled")
	return r, nil
}

// UpcomingServices lists scheduled services due within the next days. A
// non-positive window uses DefaultUpcomingDays.
func (s *Scheduler) UpcomingServices(ctx context.Context, days int) ([]Record, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	now := s.clock.Now()
	return s.store.Query(ctx, Filter{Status: StatusScheduled, From: now, To: now.AddDate(0, 0, days)})
}

// OverdueServices lists scheduled services whose date has passed.
func (s *Scheduler) OverdueServices(ctx context.Context) ([]Record, error) {
	return s.store.Query(ctx, Filter{Status: StatusScheduled, Before: s.clock.Now()})
}

func (s *Scheduler) VehicleServices(ctx context.Context, vehicleID string) ([]Record, error) {
	if vehicleID == "" {
		return nil, apperr.Invalid("vehicleId required")
	}
	return s.store.Query(ctx, Filter{VehicleID: vehicleID})
}

func (s *Scheduler) CompleteService(ctx context.Context, id string) (Record, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.store.Complete(ctx, id, s.clock.Now())
	if err != nil {
		return Record{}, err
	}
	s.cancel(r.VehicleID, r.ID)

	s.log.Info().Str("service", r.ID).Msg("service completed")
	s.hub.Broadcast(EventServiceCompleted, map[string]string{
		"serviceId":   r.ID,
		"vehicleId":   r.VehicleID,
		"serviceType": r.ServiceType,
	})
	return r, nil
}

// RescheduleService moves the service date and re-arms its reminder.
func (s *Scheduler) RescheduleService(ctx context.Context, id string, newDate time.Time) (Record, error) {
	if newDate.IsZero() {
		return Record{}, apperr.Invalid("newDate required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.store.Reschedule(ctx, id, newDate)
	if err != nil {
		return Record{}, err
	}
	s.cancel(r.VehicleID, r.ID)
	if r.Status == StatusScheduled {
		s.arm(r)
	}

	s.log.Info().Str("service", r.ID).Time("date", newDate).Msg("service rescheduled")
	s.hub.Broadcast(EventServiceRescheduled, map[string]any{
		"serviceId": r.ID,
		"newDate":   newDate,
		"vehicleId": r.VehicleID,
	})
	return r, nil
}

func (s *Scheduler) Statistics(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Total, err = s.store.Count(ctx, Filter{}); err != nil {
		return Stats{}, err
	}
	if st.Scheduled, err = s.store.Count(ctx, Filter{Status: StatusScheduled}); err != nil {
		return Stats{}, err
	}
	if st.Completed, err = s.store.Count(ctx, Filter{Status: StatusCompleted}); err != nil {
		return Stats{}, err
	}
	if st.InProgress, err = s.store.Count(ctx, Filter{Status: StatusInProgress}); err != nil {
		return Stats{}, err
	}
	if st.TotalCost, err = s.store.CompletedCost(ctx); err != nil {
		return Stats{}, err
	}
	if st.Total > 0 {
		st.CompletionRate = math.Round(float64(st.Completed)/float64(st.Total)*100*100) / 100
	}
	return st, nil
}

// PendingReminders returns the service ids with an armed reminder for a vehicle.
func (s *Scheduler) PendingReminders(vehicleID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.reminders[vehicleID]))
	for _, rem := range s.reminders[vehicleID] {
		ids = append(ids, rem.serviceID)
	}
	return ids
}

// Stop cancels every pending reminder. Later schedules are stored but not armed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	var timers []clock.Timer
	for vehicleID, rems := range s.reminders {
		for _, rem := range rems {
			if rem.timer != nil {
				timers = append(timers, rem.timer)
			}
		}
		delete(s.reminders, vehicleID)
	}
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

// arm and cancel only call the clock with s.mu released. A fake clock runs
// fire under its own lock, and fire takes s.mu.
func (s *Scheduler) arm(r Record) {
	wait := r.ServiceDate.Add(-s.lead).Sub(s.clock.Now())
	if wait <= 0 {
		s.metrics.Reminder("skipped")
		return
	}

	payload := Reminder{
		VehicleID:     r.VehicleID,
		ServiceID:     r.ID,
		ServiceType:   r.ServiceType,
		ScheduledDate: r.ServiceDate,
		Message:       fmt.Sprintf("Service reminder: %s scheduled for %s", r.ServiceType, r.ServiceDate.Format("2006-01-02")),
	}
	rem := &reminder{serviceID: r.ID}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.reminders[r.VehicleID] = append(s.reminders[r.VehicleID], rem)
	s.mu.Unlock()
	s.metrics.Reminder("armed")

	timer := s.clock.AfterFunc(wait, func() { s.fire(r.VehicleID, rem, payload) })

	s.mu.Lock()
	rem.timer = timer
	live := slices.Contains(s.reminders[r.VehicleID], rem)
	s.mu.Unlock()
	if !live {
		// cancelled or stopped while the timer was being created
		timer.Stop()
	}
}

// fire must not call the clock: fake clocks run it under their own lock.
func (s *Scheduler) fire(vehicleID string, rem *reminder, payload Reminder) {
	s.mu.Lock()
	rems := s.reminders[vehicleID]
	i := slices.Index(rems, rem)
	if i < 0 {
		// cancelled after the timer expired
		s.mu.Unlock()
		return
	}
	s.reminders[vehicleID] = slices.Delete(rems, i, i+1)
	if len(s.reminders[vehicleID]) == 0 {
		delete(s.reminders, vehicleID)
	}
	s.mu.Unlock()

	s.metrics.Reminder("fired")
	s.log.Info().Str("service", payload.ServiceID).Str("vehicle", vehicleID).Msg("service reminder")
	s.hub.Broadcast(EventServiceReminder, payload)
}

func (s *Scheduler) cancel(vehicleID, serviceID string) {
	s.mu.Lock()
	rems := s.reminders[vehicleID]
	i := slices.IndexFunc(rems, func(r *reminder) bool { return r.serviceID == serviceID })
	if i < 0 {
		s.mu.Unlock()
		return
	}
	timer := rems[i].timer
	s.reminders[vehicleID] = slices.Delete(rems, i, i+1)
	if len(s.reminders[vehicleID]) == 0 {
		delete(s.reminders, vehicleID)
	}
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	s.metrics.Reminder("cancelled")
}
