package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/shared/geo"
	"backend-mchanga/internal/shared/keylock"
	"backend-mchanga/internal/stream"
	"backend-mchanga/internal/vehicle"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

const (
	EventLocationUpdate  = "location-update"
	EventTrackingStopped = "tracking-stopped"
)

type VehicleStore interface {
	FindByID(ctx context.Context, id string) (vehicle.Vehicle, error)
	UpdateLocation(ctx context.Context, id string, p geo.Point, distanceKm float64, at time.Time) (vehicle.Vehicle, error)
}

type LiveStateWriter interface {
	Record(ctx context.Context, st LiveState) error
}

// Coordinator owns the tracking sessions and the vehicle subscriber sets.
// Mutations for one vehicle are serialized across the store round-trip.
type Coordinator struct {
	store VehicleStore
	hub   *stream.Hub
	live  LiveStateWriter
	clock clock.PassiveClock
	log   zerolog.Logger

	subs  *stream.Registry
	locks keylock.Map

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

type Option func(*Coordinator)

func WithClock(c clock.PassiveClock) Option { return func(co *Coordinator) { co.clock = c } }

func WithLiveState(w LiveStateWriter) Option { return func(co *Coordinator) { co.live = w } }

func WithLogger(l zerolog.Logger) Option { return func(co *Coordinator) { co.log = l } }

func NewCoordinator(store VehicleStore, hub *stream.Hub, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		hub:      hub,
		clock:    clock.RealClock{},
		log:      logging.Nop(),
		subs:     stream.NewRegistry(),
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartTracking opens a fresh session at the vehicle's last known location,
// replacing any previous session for it.
func (c *Coordinator) StartTracking(ctx context.Context, vehicleID string) (Session, error) {
	unlock := c.locks.Lock(vehicleID)
	defer unlock()

	v, err := c.store.FindByID(ctx, vehicleID)
	if err != nil {
		return Session{}, err
	}

	now := c.clock.Now()
	s := &Session{
		VehicleID:       vehicleID,
		Status:          StatusTracking,
		StartTime:       now,
		LastUpdate:      now,
		CurrentLocation: v.LastKnownLocation(),
	}

	c.mu.Lock()
	if _, ok := c.sessions[vehicleID]; !ok {
		c.order = append(c.order, vehicleID)
	}
	c.sessions[vehicleID] = s
	snapshot := *s
	c.mu.Unlock()

	c.log.Info().Str("vehicle", vehicleID).Msg("tracking started")
	c.push(vehicleID, &snapshot)
	return snapshot, nil
}

// UpdateLocation persists a position report. While the vehicle is tracked
// the leg from the previous position is added to the session distance.
func (c *Coordinator) UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) (vehicle.Vehicle, error) {
	unlock := c.locks.Lock(vehicleID)
	defer unlock()

	next := geo.Point{Latitude: lat, Longitude: lng}
	leg := 0.0
	c.mu.RLock()
	if s, ok := c.sessions[vehicleID]; ok && s.Status == StatusTracking {
		leg = geo.DistanceKm(s.CurrentLocation, next)
	}
	c.mu.RUnlock()
	if math.IsNaN(leg) {
		leg = 0
	}

	now := c.clock.Now()
	v, err := c.store.UpdateLocation(ctx, vehicleID, next, leg, now)
	if err != nil {
		return vehicle.Vehicle{}, err
	}

	var snapshot *Session
	c.mu.Lock()
	if s, ok := c.sessions[vehicleID]; ok {
		if s.Status == StatusTracking {
			s.CurrentLocation = next
			s.LastUpdate = now
			s.Distance += leg
		}
		cp := *s
		snapshot = &cp
	}
	c.mu.Unlock()

	c.recordLive(ctx, vehicleID, next, now, snapshot)
	c.push(vehicleID, snapshot)
	return v, nil
}

// StopTracking marks the session stopped. Stopping an untracked vehicle
// returns nil and is not an error.
func (c *Coordinator) StopTracking(vehicleID string) *Session {
	unlock := c.locks.Lock(vehicleID)
	defer unlock()

	c.mu.Lock()
	s, ok := c.sessions[vehicleID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	now := c.clock.Now()
	s.Status = StatusStopped
	s.EndTime = &now
	snapshot := *s
	c.mu.Unlock()

	c.log.Info().Str("vehicle", vehicleID).Float64("distance_km", snapshot.Distance).Msg("tracking stopped")
	c.push(vehicleID, &snapshot)
	c.hub.Broadcast(EventTrackingStopped, map[string]any{"vehicleId": vehicleID, "tracking": snapshot})
	return &snapshot
}

func (c *Coordinator) Subscribe(vehicleID, clientID string) {
	c.subs.Subscribe(vehicleID, clientID)
}

func (c *Coordinator) Unsubscribe(vehicleID, clientID string) {
	c.subs.Unsubscribe(vehicleID, clientID)
}

func (c *Coordinator) Subscribers(vehicleID string) []string {
	return c.subs.Subscribers(vehicleID)
}

// RemoveClient drops a disconnected client from every vehicle topic.
func (c *Coordinator) RemoveClient(clientID string) {
	c.subs.RemoveClient(clientID)
}

func (c *Coordinator) Session(vehicleID string) *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[vehicleID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// Sessions returns a snapshot of every session in the order vehicles were
// first tracked.
func (c *Coordinator) Sessions() []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Session, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.sessions[id])
	}
	return out
}

func (c *Coordinator) Statistics(vehicleID string) *Stats {
	s := c.Session(vehicleID)
	if s == nil {
		return nil
	}
	elapsed := c.clock.Since(s.StartTime)
	avg := 0.0
	if hours := elapsed.Hours(); hours > 0 {
		avg = s.Distance / hours
	}
	return &Stats{
		VehicleID:       vehicleID,
		Distance:        round2(s.Distance),
		DurationSeconds: int64(elapsed / time.Second),
		AverageSpeed:    round2(avg),
		CurrentSpeed:    s.Speed,
		Status:          s.Status,
	}
}

// push sends the session to the vehicle's subscribers. Without a session
// subscribers still learn that the vehicle reported.
func (c *Coordinator) push(vehicleID string, s *Session) {
	subs := c.subs.Subscribers(vehicleID)
	if len(subs) == 0 {
		return
	}
	if s == nil {
		c.hub.SendToMany(subs, EventLocationUpdate, map[string]string{"vehicleId": vehicleID})
		return
	}
	c.hub.SendToMany(subs, EventLocationUpdate, s)
}

func (c *Coordinator) recordLive(ctx context.Context, vehicleID string, p geo.Point, at time.Time, s *Session) {
	if c.live == nil {
		return
	}
	st := LiveState{VehicleID: vehicleID, Location: p, Status: "idle", UpdatedAt: at}
	if s != nil {
		st.Status = s.Status
		st.Distance = s.Distance
	}
	if err := c.live.Record(ctx, st); err != nil {
		c.log.Warn().Err(err).Str("vehicle", vehicleID).Msg("live state write failed")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
