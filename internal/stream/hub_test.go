package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backend-mchanga/internal/shared/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func readFrame(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case msg := <-c.Send:
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
	return Envelope{}
}

func expectNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected frame: %s", msg)
	default:
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Connect()
	b := hub.Connect()
	defer hub.Disconnect(a)
	defer hub.Disconnect(b)

	hub.Broadcast("service-reminder", map[string]string{"vehicleId": "v1"})

	for _, c := range []*Conn{a, b} {
		env := readFrame(t, c)
		if env.Event != "service-reminder" {
			t.Fatalf("unexpected event %q", env.Event)
		}
		var data map[string]string
		if err := json.Unmarshal(env.Data, &data); err != nil || data["vehicleId"] != "v1" {
			t.Fatalf("unexpected payload %s", env.Data)
		}
	}
}

func TestHubSendTo(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Connect()
	b := hub.Connect()

	hub.SendTo(a.ID, "tracking-data", "x")
	if env := readFrame(t, a); env.Event != "tracking-data" {
		t.Fatalf("unexpected event %q", env.Event)
	}
	expectNoFrame(t, b)

	// unknown and disconnected ids are silent no-ops
	hub.SendTo("ghost", "tracking-data", "x")
	hub.Disconnect(b)
	hub.SendTo(b.ID, "tracking-data", "x")
	hub.SendToMany([]string{b.ID, a.ID}, "location-update", 1)
	if env := readFrame(t, a); env.Event != "location-update" {
		t.Fatalf("unexpected event %q", env.Event)
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Connect()
	hub.Disconnect(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
	// second disconnect must not panic on a closed channel
	hub.Disconnect(client)
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected no connections")
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil, WithSendBuffer(1))
	c := hub.Connect()
	hub.SendTo(c.ID, "a", 1)
	hub.SendTo(c.ID, "b", 2)
	if env := readFrame(t, c); env.Event != "a" {
		t.Fatalf("expected first frame kept")
	}
	expectNoFrame(t, c)
}

func TestHubLifecycleHooks(t *testing.T) {
	hub := NewHub(nil)
	var connected, disconnected string
	hub.OnConnect(func(c *Conn) { connected = c.ID })
	hub.OnDisconnect(func(c *Conn) { disconnected = c.ID })

	c := hub.Connect()
	hub.Disconnect(c)
	if connected != c.ID || disconnected != c.ID {
		t.Fatalf("hooks not called")
	}
}

func TestHubDispatch(t *testing.T) {
	hub := NewHub(nil)
	c := hub.Connect()

	var got string
	hub.On("start-tracking", func(_ context.Context, conn *Conn, data json.RawMessage) error {
		return Decode(data, &got)
	})
	hub.Dispatch(context.Background(), c, []byte(`{"event":"start-tracking","data":"V1"}`))
	if got != "V1" {
		t.Fatalf("handler did not receive payload, got %q", got)
	}
	expectNoFrame(t, c)

	// unknown events are ignored
	hub.Dispatch(context.Background(), c, []byte(`{"event":"nope"}`))
	expectNoFrame(t, c)
}

func TestHubDispatchErrors(t *testing.T) {
	hub := NewHub(nil)
	c := hub.Connect()

	hub.Dispatch(context.Background(), c, []byte(`not-json`))
	env := readFrame(t, c)
	if env.Event != EventError {
		t.Fatalf("expected error event")
	}

	hub.On("close-alert", func(context.Context, *Conn, json.RawMessage) error {
		return apperr.NotFound("emergency", "e1")
	})
	hub.Dispatch(context.Background(), c, []byte(`{"event":"close-alert","data":"e1"}`))
	env = readFrame(t, c)
	var payload ErrorPayload
	_ = json.Unmarshal(env.Data, &payload)
	if env.Event != EventError || payload.Message != "emergency e1: not found" || payload.Event != "close-alert" {
		t.Fatalf("unexpected error payload %+v", payload)
	}

	hub.On("get-alert-stats", func(context.Context, *Conn, json.RawMessage) error {
		return apperr.Store("count emergencies", errors.New("connection refused"))
	})
	hub.Dispatch(context.Background(), c, []byte(`{"event":"get-alert-stats"}`))
	env = readFrame(t, c)
	_ = json.Unmarshal(env.Data, &payload)
	if payload.Message != "failed to handle get-alert-stats" {
		t.Fatalf("store details leaked: %q", payload.Message)
	}

	hub.On("boom", func(context.Context, *Conn, json.RawMessage) error { panic("bad") })
	hub.Dispatch(context.Background(), c, []byte(`{"event":"boom"}`))
	if env := readFrame(t, c); env.Event != EventError {
		t.Fatalf("expected panic to become error event")
	}
}

func TestDecodeMissingPayload(t *testing.T) {
	var v string
	if err := Decode(nil, &v); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := Decode([]byte(`{`), &v); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHubRedisMirror(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	sub := client.Subscribe(context.Background(), redisChannel("alert-closed"))
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub := NewHub(client)
	hub.Broadcast("alert-closed", map[string]string{"status": "closed"})

	select {
	case msg := <-sub.Channel():
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event != "alert-closed" {
			t.Fatalf("unexpected mirrored payload %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis mirror")
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	c := hub.Connect()
	defer hub.Disconnect(c)

	hub.Broadcast("service-reminder", "ping")
	if env := readFrame(t, c); env.Event != "service-reminder" {
		t.Fatalf("local delivery must not depend on redis")
	}
}
