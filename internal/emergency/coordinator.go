package emergency

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"backend-mchanga/internal/config"
	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/metrics"
	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/shared/keylock"
	"backend-mchanga/internal/stream"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

const (
	EventEmergencyAlert = "emergency-alert"
	EventCriticalAlert  = "critical-alert"
	EventAlertClosed    = "alert-closed"
)

type Store interface {
	Insert(ctx context.Context, e Emergency) (Emergency, error)
	FindByID(ctx context.Context, id string) (Emergency, error)
	UpdateStatus(ctx context.Context, id, status string, resolvedAt *time.Time) (Emergency, error)
	Query(ctx context.Context, f Filter) ([]Emergency, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// Coordinator owns the active alert mirror and the severity subscriber sets.
type Coordinator struct {
	store   Store
	hub     *stream.Hub
	fanout  string
	clock   clock.PassiveClock
	log     zerolog.Logger
	metrics *metrics.Collector

	subs  *stream.Registry
	locks keylock.Map

	mu     sync.RWMutex
	active map[string]Alert
}

type Option func(*Coordinator)

// WithFanout selects config.FanoutUnion or config.FanoutScoped delivery.
func WithFanout(policy string) Option { return func(c *Coordinator) { c.fanout = policy } }

func WithClock(cl clock.PassiveClock) Option { return func(c *Coordinator) { c.clock = cl } }

func WithLogger(l zerolog.Logger) Option { return func(c *Coordinator) { c.log = l } }

func WithMetrics(m *metrics.Collector) Option { return func(c *Coordinator) { c.metrics = m } }

func NewCoordinator(store Store, hub *stream.Hub, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		hub:    hub,
		fanout: config.FanoutUnion,
		clock:  clock.RealClock{},
		log:    logging.Nop(),
		subs:   stream.NewRegistry(),
		active: map[string]Alert{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) CreateAlert(ctx context.Context, in Emergency) (Emergency, error) {
	if in.VehicleID == "" || in.Description == "" {
		return Emergency{}, apperr.Invalid("vehicleId and description required")
	}
	if !slices.Contains(EmergencyTypes, in.EmergencyType) {
		return Emergency{}, apperr.Invalid("unknown emergency type %q", in.EmergencyType)
	}
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if !validSeverity(in.Severity) {
		return Emergency{}, apperr.Invalid("unknown severity %q", in.Severity)
	}
	in.Status = StatusReported

	e, err := c.store.Insert(ctx, in)
	if err != nil {
		return Emergency{}, err
	}

	alert := alertOf(e)
	c.mu.Lock()
	c.active[e.ID] = alert
	c.mu.Unlock()

	c.metrics.AlertReported(e.Severity)
	c.log.Info().Str("emergency", e.ID).Str("vehicle", e.VehicleID).Str("severity", e.Severity).Msg("emergency reported")
	c.broadcast(alert)
	return e, nil
}

// UpdateAlertStatus moves an emergency through its lifecycle and re-broadcasts
// it under its severity. Moving to closed behaves like CloseAlert.
func (c *Coordinator) UpdateAlertStatus(ctx context.Context, id, status string) (Emergency, error) {
	if status == StatusClosed {
		return c.CloseAlert(ctx, id)
	}

	unlock := c.locks.Lock(id)
	defer unlock()

	current, err := c.store.FindByID(ctx, id)
	if err != nil {
		return Emergency{}, err
	}
	if err := transition(ctx, current.Status, status); err != nil {
		return Emergency{}, err
	}

	var resolvedAt *time.Time
	if status == StatusResolved {
		now := c.clock.Now()
		resolvedAt = &now
	}
	e, err := c.store.UpdateStatus(ctx, id, status, resolvedAt)
	if err != nil {
		return Emergency{}, err
	}

	alert := alertOf(e)
	c.mu.Lock()
	if mirrored, ok := c.active[id]; ok {
		mirrored.Status = e.Status
		c.active[id] = mirrored
		alert = mirrored
	}
	c.mu.Unlock()

	c.log.Info().Str("emergency", id).Str("from", current.Status).Str("to", e.Status).Msg("emergency status updated")
	c.broadcast(alert)
	return e, nil
}

// CloseAlert marks the emergency closed, drops its mirror and tells every
// connected client.
func (c *Coordinator) CloseAlert(ctx context.Context, id string) (Emergency, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	current, err := c.store.FindByID(ctx, id)
	if err != nil {
		return Emergency{}, err
	}
	if err := transition(ctx, current.Status, StatusClosed); err != nil {
		return Emergency{}, err
	}

	now := c.clock.Now()
	e, err := c.store.UpdateStatus(ctx, id, StatusClosed, &now)
	if err != nil {
		return Emergency{}, err
	}

	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()

	c.log.Info().Str("emergency", id).Msg("emergency closed")
	c.hub.Broadcast(EventAlertClosed, map[string]string{"emergencyId": id, "status": StatusClosed})
	return e, nil
}

// SubscribeToAlerts registers clientID under a severity or TopicAll.
func (c *Coordinator) SubscribeToAlerts(severity, clientID string) error {
	if severity == "" {
		return apperr.Invalid("severity required")
	}
	if severity != TopicAll && !validSeverity(severity) {
		return apperr.Invalid("unknown severity %q", severity)
	}
	c.subs.Subscribe(severity, clientID)
	return nil
}

func (c *Coordinator) UnsubscribeFromAlerts(severity, clientID string) {
	c.subs.Unsubscribe(severity, clientID)
}

func (c *Coordinator) Subscribers(severity string) []string {
	return c.subs.Subscribers(severity)
}

func (c *Coordinator) RemoveClient(clientID string) {
	c.subs.RemoveClient(clientID)
}

func (c *Coordinator) CriticalAlerts(ctx context.Context) ([]Emergency, error) {
	return c.store.Query(ctx, Filter{Severity: SeverityCritical, Statuses: activeStatuses})
}

func (c *Coordinator) ActiveAlerts(ctx context.Context) ([]Emergency, error) {
	return c.store.Query(ctx, Filter{Statuses: activeStatuses})
}

func (c *Coordinator) Statistics(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Total, err = c.store.Count(ctx, Filter{}); err != nil {
		return Stats{}, err
	}
	if st.Critical, err = c.store.Count(ctx, Filter{Severity: SeverityCritical}); err != nil {
		return Stats{}, err
	}
	if st.Active, err = c.store.Count(ctx, Filter{Statuses: activeStatuses}); err != nil {
		return Stats{}, err
	}
	if st.Resolved, err = c.store.Count(ctx, Filter{Statuses: []string{StatusResolved}}); err != nil {
		return Stats{}, err
	}
	if st.Total > 0 {
		st.ResolutionRate = math.Round(float64(st.Resolved)/float64(st.Total)*100*100) / 100
	}
	return st, nil
}

// ActiveMirror returns the in-memory alerts, oldest first.
func (c *Coordinator) ActiveMirror() []Alert {
	c.mu.RLock()
	out := make([]Alert, 0, len(c.active))
	for _, a := range c.active {
		out = append(out, a)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (c *Coordinator) broadcast(a Alert) {
	switch c.fanout {
	case config.FanoutScoped:
		c.hub.SendToMany(c.scopedTargets(a.Severity), EventEmergencyAlert, a)
		if a.Severity == SeverityCritical {
			c.hub.Broadcast(EventCriticalAlert, a)
		}
	default:
		c.hub.SendToMany(c.subs.Subscribers(a.Severity), EventEmergencyAlert, a)
		if a.Severity == SeverityCritical {
			c.hub.Broadcast(EventCriticalAlert, a)
		}
		// every other severity topic hears about it as well
		for _, topic := range c.subs.Topics() {
			if topic != a.Severity {
				c.hub.SendToMany(c.subs.Subscribers(topic), EventEmergencyAlert, a)
			}
		}
	}
}

func (c *Coordinator) scopedTargets(severity string) []string {
	targets := c.subs.Subscribers(severity)
	for _, id := range c.subs.Subscribers(TopicAll) {
		if !slices.Contains(targets, id) {
			targets = append(targets, id)
		}
	}
	return targets
}
