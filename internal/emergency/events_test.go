package emergency

import (
	"context"
	"encoding/json"
	"testing"

	"backend-mchanga/internal/config"
	"backend-mchanga/internal/stream"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func dispatch(hub *stream.Hub, c *stream.Conn, event string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(stream.Envelope{Event: event, Data: raw})
	hub.Dispatch(context.Background(), c, frame)
}

func TestEmergencyEvents(t *testing.T) {
	co, _, hub := newTestCoordinator(config.FanoutUnion)
	RegisterEvents(hub, co)
	client := hub.Connect()

	dispatch(hub, client, "subscribe-alerts", SeverityHigh)
	env := readEvent(t, client)
	require.Equal(t, EventActiveAlerts, env.Event)
	require.JSONEq(t, `[]`, string(env.Data))

	dispatch(hub, client, "report-emergency", report(SeverityHigh))
	require.Equal(t, EventEmergencyAlert, readEvent(t, client).Event)
	env = readEvent(t, client)
	require.Equal(t, EventEmergencyReported, env.Event)
	var reported Emergency
	require.NoError(t, json.Unmarshal(env.Data, &reported))
	require.NotEmpty(t, reported.ID)

	dispatch(hub, client, "update-alert-status", map[string]string{"emergencyId": reported.ID, "status": StatusInProgress})
	require.Equal(t, EventEmergencyAlert, readEvent(t, client).Event)
	require.Equal(t, EventAlertStatusUpdated, readEvent(t, client).Event)

	dispatch(hub, client, "get-active-alerts", nil)
	require.Equal(t, EventActiveAlerts, readEvent(t, client).Event)

	dispatch(hub, client, "get-critical-alerts", nil)
	env = readEvent(t, client)
	require.Equal(t, EventCriticalAlerts, env.Event)
	require.JSONEq(t, `[]`, string(env.Data))

	dispatch(hub, client, "get-alert-stats", nil)
	env = readEvent(t, client)
	require.Equal(t, EventAlertStats, env.Event)
	var stats Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, 1, stats.Active)

	dispatch(hub, client, "close-alert", reported.ID)
	require.Equal(t, EventAlertClosed, readEvent(t, client).Event)

	dispatch(hub, client, "unsubscribe-alerts", SeverityHigh)
	require.Empty(t, co.Subscribers(SeverityHigh))
}

func TestEmergencyEventErrors(t *testing.T) {
	co, _, hub := newTestCoordinator(config.FanoutUnion)
	RegisterEvents(hub, co)
	client := hub.Connect()

	dispatch(hub, client, "subscribe-alerts", "severe")
	require.Equal(t, stream.EventError, readEvent(t, client).Event)

	dispatch(hub, client, "update-alert-status", map[string]string{"status": StatusResolved})
	require.Equal(t, stream.EventError, readEvent(t, client).Event)

	dispatch(hub, client, "close-alert", map[string]string{"emergencyId": "missing"})
	env := readEvent(t, client)
	require.Equal(t, stream.EventError, env.Event)
	var payload stream.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "emergency missing: not found", payload.Message)
}

func TestReportEmergencyUnknownVehicle(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO emergencies`).WillReturnError(&pgconn.PgError{Code: "23503"})

	hub := stream.NewHub(nil)
	RegisterEvents(hub, NewCoordinator(NewStore(mock), hub))
	client := hub.Connect()

	in := report(SeverityHigh)
	in.VehicleID = "V404"
	dispatch(hub, client, "report-emergency", in)
	env := readEvent(t, client)
	require.Equal(t, stream.EventError, env.Event)
	var payload stream.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "vehicle V404: not found", payload.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmergencyEventsDisconnectPurges(t *testing.T) {
	co, _, hub := newTestCoordinator(config.FanoutUnion)
	RegisterEvents(hub, co)
	client := hub.Connect()

	dispatch(hub, client, "subscribe-alerts", TopicAll)
	readEvent(t, client)
	hub.Disconnect(client)
	require.Empty(t, co.Subscribers(TopicAll))
}
