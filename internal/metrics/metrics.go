package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups the real-time layer metrics. A nil *Collector is valid and
// records nothing, so components can be built without metrics in tests.
type Collector struct {
	connections   prometheus.Gauge
	eventsSent    *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	reminders     *prometheus.CounterVec
	alerts        *prometheus.CounterVec
}

// New registers the collectors on reg (the default registerer when nil).
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Number of open websocket connections",
		}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_events_sent_total",
			Help: "Events queued to client connections",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events dropped because a connection send buffer was full",
		}, []string{"event"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "service_reminders_total",
			Help: "Service reminder timers by outcome",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emergency_alerts_total",
			Help: "Emergency alerts reported by severity",
		}, []string{"severity"}),
	}

	var err error
	if c.connections, err = register(reg, c.connections); err != nil {
		return nil, err
	}
	if c.eventsSent, err = register(reg, c.eventsSent); err != nil {
		return nil, err
	}
	if c.eventsDropped, err = register(reg, c.eventsDropped); err != nil {
		return nil, err
	}
	if c.reminders, err = register(reg, c.reminders); err != nil {
		return nil, err
	}
	if c.alerts, err = register(reg, c.alerts); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connections.Dec()
}

func (c *Collector) EventSent(event string) {
	if c == nil {
		return
	}
	c.eventsSent.WithLabelValues(event).Inc()
}

func (c *Collector) EventDropped(event string) {
	if c == nil {
		return
	}
	c.eventsDropped.WithLabelValues(event).Inc()
}

// Reminder records a reminder outcome: armed, fired, cancelled or skipped.
func (c *Collector) Reminder(outcome string) {
	if c == nil {
		return
	}
	c.reminders.WithLabelValues(outcome).Inc()
}

func (c *Collector) AlertReported(severity string) {
	if c == nil {
		return
	}
	c.alerts.WithLabelValues(severity).Inc()
}
