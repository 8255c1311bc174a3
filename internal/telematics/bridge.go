// Package telematics feeds device location reports from an MQTT broker into
// the tracking coordinator.
package telematics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/vehicle"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	DefaultTopic   = "fleet/vehicles/+/location"
	DefaultTimeout = 5 * time.Second
)

// Client is the subset of paho.Client the bridge uses.
type Client interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

type LocationUpdater interface {
	UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) (vehicle.Vehicle, error)
}

type Bridge struct {
	cli     Client
	topic   string
	updater LocationUpdater
	timeout time.Duration
	log     zerolog.Logger
}

type Option func(*Bridge)

func WithLogger(l zerolog.Logger) Option { return func(b *Bridge) { b.log = l } }

// WithTimeout bounds each location update triggered by a message. Non-positive
// durations keep the default.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

type report struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return cli, nil
}

func NewBridge(cli Client, topic string, updater LocationUpdater, opts ...Option) *Bridge {
	if topic == "" {
		topic = DefaultTopic
	}
	b := &Bridge{
		cli:     cli,
		topic:   topic,
		updater: updater,
		timeout: DefaultTimeout,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Start() error {
	if token := b.cli.Subscribe(b.topic, 1, b.handle); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", b.topic, token.Error())
	}
	b.log.Info().Str("topic", b.topic).Msg("telematics bridge subscribed")
	return nil
}

func (b *Bridge) Close() {
	b.cli.Unsubscribe(b.topic).WaitTimeout(time.Second)
	b.cli.Disconnect(250)
}

func (b *Bridge) handle(_ paho.Client, msg paho.Message) {
	vehicleID := vehicleIDFromTopic(b.topic, msg.Topic())
	lat, lng, err := parseReport(msg.Payload())
	if vehicleID == "" || err != nil {
		b.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping location report")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if _, err := b.updater.UpdateLocation(ctx, vehicleID, lat, lng); err != nil {
		b.log.Error().Err(err).Str("vehicle", vehicleID).Msg("location report rejected")
	}
}

func parseReport(payload []byte) (float64, float64, error) {
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		return 0, 0, err
	}
	if r.Latitude == nil || r.Longitude == nil {
		return 0, 0, errors.New("latitude and longitude required")
	}
	return *r.Latitude, *r.Longitude, nil
}

// vehicleIDFromTopic returns the topic level matched by the single-level
// wildcard in pattern.
func vehicleIDFromTopic(pattern, topic string) string {
	want := strings.Split(pattern, "/")
	got := strings.Split(topic, "/")
	if len(want) != len(got) {
		return ""
	}
	id := ""
	for i, level := range want {
		switch {
		case level == "+":
			id = got[i]
		case level != got[i]:
			return ""
		}
	}
	return id
}
