package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/metrics"
	"backend-mchanga/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	EventError = "error"

	defaultSendBuffer = 64
	redisEventPrefix  = "fleet:events:"
)

// Envelope is the wire frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Conn is one connected client. Frames queued on Send are written by the
// transport; a full buffer drops the frame.
type Conn struct {
	ID   string
	Send chan []byte
}

// HandlerFunc handles one inbound named event for a connection.
type HandlerFunc func(ctx context.Context, c *Conn, data json.RawMessage) error

type Hub struct {
	redis   *redis.Client
	log     zerolog.Logger
	metrics *metrics.Collector
	bufSize int

	mu    sync.RWMutex
	conns map[string]*Conn

	hooksMu      sync.RWMutex
	handlers     map[string]HandlerFunc
	onConnect    []func(*Conn)
	onDisconnect []func(*Conn)
}

type Option func(*Hub)

func WithLogger(l zerolog.Logger) Option { return func(h *Hub) { h.log = l } }

func WithMetrics(m *metrics.Collector) Option { return func(h *Hub) { h.metrics = m } }

func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// NewHub builds a hub. When redisClient is set every broadcast is mirrored to
// the redis channel fleet:events:<event> for external consumers.
func NewHub(redisClient *redis.Client, opts ...Option) *Hub {
	h := &Hub{
		redis:    redisClient,
		log:      logging.Nop(),
		bufSize:  defaultSendBuffer,
		conns:    map[string]*Conn{},
		handlers: map[string]HandlerFunc{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) On(event string, fn HandlerFunc) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.handlers[event] = fn
}

func (h *Hub) OnConnect(fn func(*Conn)) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.onConnect = append(h.onConnect, fn)
}

func (h *Hub) OnDisconnect(fn func(*Conn)) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.onDisconnect = append(h.onDisconnect, fn)
}

func (h *Hub) Connect() *Conn {
	c := &Conn{
		ID:   uuid.NewString(),
		Send: make(chan []byte, h.bufSize),
	}

	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
	h.log.Debug().Str("conn", c.ID).Msg("client connected")

	h.hooksMu.RLock()
	hooks := append([]func(*Conn){}, h.onConnect...)
	h.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
	return c
}

func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.ID)
	close(c.Send)
	h.mu.Unlock()
	h.metrics.ConnectionClosed()
	h.log.Debug().Str("conn", c.ID).Msg("client disconnected")

	h.hooksMu.RLock()
	hooks := append([]func(*Conn){}, h.onDisconnect...)
	h.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SendTo queues an event for one connection. Unknown ids are ignored.
func (h *Hub) SendTo(connID, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[connID]; ok {
		h.enqueue(c, event, frame)
	}
}

// SendToMany queues the same event for every listed connection in order.
func (h *Hub) SendToMany(connIDs []string, event string, payload any) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if c, ok := h.conns[id]; ok {
			h.enqueue(c, event, frame)
		}
	}
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	for _, c := range h.conns {
		h.enqueue(c, event, frame)
	}
	h.mu.RUnlock()

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(event), frame).Err()
		if err != nil {
			h.log.Warn().Err(err).Str("event", event).Msg("redis publish")
		}
	}
}

// Dispatch decodes one inbound frame and runs the registered handler. Handler
// failures are reported to the connection as an error event.
func (h *Hub) Dispatch(ctx context.Context, c *Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.SendTo(c.ID, EventError, ErrorPayload{Message: "invalid message"})
		return
	}

	h.hooksMu.RLock()
	fn, ok := h.handlers[env.Event]
	h.hooksMu.RUnlock()
	if !ok {
		h.log.Debug().Str("conn", c.ID).Str("event", env.Event).Msg("no handler")
		return
	}

	if err := h.run(ctx, fn, c, env.Data); err != nil {
		h.log.Error().Err(err).Str("conn", c.ID).Str("event", env.Event).Msg("handler failed")
		h.SendTo(c.ID, EventError, ErrorPayload{Event: env.Event, Message: clientMessage(env.Event, err)})
	}
}

func (h *Hub) run(ctx context.Context, fn HandlerFunc, c *Conn, data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, c, data)
}

// enqueue must be called with h.mu held so Disconnect cannot close Send
// concurrently.
func (h *Hub) enqueue(c *Conn, event string, frame []byte) {
	select {
	case c.Send <- frame:
		h.metrics.EventSent(event)
	default:
		h.metrics.EventDropped(event)
		h.log.Warn().Str("conn", c.ID).Str("event", event).Msg("send buffer full, dropping event")
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// clientMessage keeps typed errors readable and hides store internals.
func clientMessage(event string, err error) string {
	if apperr.IsNotFound(err) || apperr.IsInvalid(err) {
		return err.Error()
	}
	return "failed to handle " + event
}

func redisChannel(event string) string {
	return redisEventPrefix + event
}

// Decode unmarshals an inbound payload, reporting malformed data as invalid input.
func Decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.Invalid("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Invalid("malformed payload")
	}
	return nil
}
