package telematics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-mchanga/internal/vehicle"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type mockToken struct{ err error }

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockClient struct {
	subscribed   string
	handler      paho.MessageHandler
	subErr       error
	disconnected bool
}

func (m *mockClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	m.subscribed, m.handler = topic, cb
	return &mockToken{err: m.subErr}
}

func (m *mockClient) Unsubscribe(...string) paho.Token { return &mockToken{} }
func (m *mockClient) Disconnect(uint)                  { m.disconnected = true }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type update struct {
	vehicleID string
	lat, lng  float64
}

type recorder struct {
	mu        sync.Mutex
	updates   []update
	deadlines []time.Time
	err       error
}

func (r *recorder) UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) (vehicle.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{vehicleID, lat, lng})
	if d, ok := ctx.Deadline(); ok {
		r.deadlines = append(r.deadlines, d)
	}
	return vehicle.Vehicle{ID: vehicleID}, r.err
}

func TestBridgeForwardsReports(t *testing.T) {
	cli := &mockClient{}
	rec := &recorder{}
	b := NewBridge(cli, "", rec)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if cli.subscribed != DefaultTopic {
		t.Fatalf("subscribed to %q", cli.subscribed)
	}

	cli.handler(nil, &mockMessage{topic: "fleet/vehicles/KBX-123/location", payload: []byte(`{"latitude":-1.29,"longitude":36.82}`)})
	cli.handler(nil, &mockMessage{topic: "fleet/vehicles/KBX-123/location", payload: []byte(`{"latitude":-1.29}`)})
	cli.handler(nil, &mockMessage{topic: "fleet/vehicles/KBX-123/location", payload: []byte(`not json`)})
	cli.handler(nil, &mockMessage{topic: "fleet/drivers/D1/location", payload: []byte(`{"latitude":0,"longitude":0}`)})

	if len(rec.updates) != 1 {
		t.Fatalf("expected one forwarded update, got %v", rec.updates)
	}
	if got := rec.updates[0]; got != (update{"KBX-123", -1.29, 36.82}) {
		t.Fatalf("unexpected update %+v", got)
	}

	b.Close()
	if !cli.disconnected {
		t.Fatalf("expected disconnect")
	}
}

func TestBridgeSurvivesRejectedUpdate(t *testing.T) {
	cli := &mockClient{}
	rec := &recorder{err: errors.New("vehicle V9: not found")}
	b := NewBridge(cli, "", rec)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	cli.handler(nil, &mockMessage{topic: "fleet/vehicles/V9/location", payload: []byte(`{"latitude":1,"longitude":2}`)})
	cli.handler(nil, &mockMessage{topic: "fleet/vehicles/V9/location", payload: []byte(`{"latitude":1,"longitude":3}`)})
	if len(rec.updates) != 2 {
		t.Fatalf("expected both reports attempted, got %d", len(rec.updates))
	}
}

func TestBridgeUpdateTimeout(t *testing.T) {
	for _, tc := range []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"configured", 2 * time.Second, 2 * time.Second},
		{"zero keeps default", 0, DefaultTimeout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cli := &mockClient{}
			rec := &recorder{}
			if err := NewBridge(cli, "", rec, WithTimeout(tc.timeout)).Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			before := time.Now()
			cli.handler(nil, &mockMessage{topic: "fleet/vehicles/V1/location", payload: []byte(`{"latitude":1,"longitude":2}`)})
			after := time.Now()

			if len(rec.deadlines) != 1 {
				t.Fatalf("expected a bounded update context, got %v", rec.deadlines)
			}
			d := rec.deadlines[0]
			if d.Before(before.Add(tc.want)) || d.After(after.Add(tc.want)) {
				t.Fatalf("deadline %v outside [%v, %v]", d, before.Add(tc.want), after.Add(tc.want))
			}
		})
	}
}

func TestBridgeStartFails(t *testing.T) {
	cli := &mockClient{subErr: errors.New("not authorized")}
	if err := NewBridge(cli, "custom/+/gps", &recorder{}).Start(); err == nil {
		t.Fatalf("expected subscribe error")
	}
}

func TestVehicleIDFromTopic(t *testing.T) {
	cases := map[string]string{
		"fleet/vehicles/V1/location":     "V1",
		"fleet/vehicles/V1/speed":        "",
		"fleet/vehicles/V1/location/raw": "",
	}
	for topic, want := range cases {
		if got := vehicleIDFromTopic(DefaultTopic, topic); got != want {
			t.Errorf("%s: got %q want %q", topic, got, want)
		}
	}
}
