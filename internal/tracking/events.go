package tracking

import (
	"context"
	"encoding/json"

	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/stream"
)

const (
	EventTrackingData    = "tracking-data"
	EventTrackingStarted = "tracking-started"
	EventLocationUpdated = "location-updated"
	EventTrackingStats   = "tracking-stats"
	EventAllTracking     = "all-tracking"
)

type locationReport struct {
	VehicleID string   `json:"vehicleId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// RegisterEvents wires the tracking events onto the hub. Disconnected clients
// are removed from every vehicle topic.
func RegisterEvents(hub *stream.Hub, co *Coordinator) {
	hub.OnDisconnect(func(c *stream.Conn) { co.RemoveClient(c.ID) })

	hub.On("subscribe-tracking", func(_ context.Context, c *stream.Conn, data json.RawMessage) error {
		vehicleID, err := decodeVehicleID(data)
		if err != nil {
			return err
		}
		co.Subscribe(vehicleID, c.ID)
		if s := co.Session(vehicleID); s != nil {
			hub.SendTo(c.ID, EventTrackingData, s)
		}
		return nil
	})

	hub.On("unsubscribe-tracking", func(_ context.Context, c *stream.Conn, data json.RawMessage) error {
		vehicleID, err := decodeVehicleID(data)
		if err != nil {
			return err
		}
		co.Unsubscribe(vehicleID, c.ID)
		return nil
	})

	hub.On("start-tracking", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		vehicleID, err := decodeVehicleID(data)
		if err != nil {
			return err
		}
		s, err := co.StartTracking(ctx, vehicleID)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventTrackingStarted, s)
		return nil
	})

	hub.On("stop-tracking", func(_ context.Context, _ *stream.Conn, data json.RawMessage) error {
		vehicleID, err := decodeVehicleID(data)
		if err != nil {
			return err
		}
		if co.StopTracking(vehicleID) == nil {
			// no session: socket clients still get a stop with a null session
			hub.Broadcast(EventTrackingStopped, map[string]any{"vehicleId": vehicleID, "tracking": nil})
		}
		return nil
	})

	hub.On("update-location", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var req locationReport
		if err := stream.Decode(data, &req); err != nil {
			return err
		}
		if req.VehicleID == "" || req.Latitude == nil || req.Longitude == nil {
			return apperr.Invalid("vehicleId, latitude and longitude required")
		}
		v, err := co.UpdateLocation(ctx, req.VehicleID, *req.Latitude, *req.Longitude)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventLocationUpdated, map[string]any{"vehicleId": req.VehicleID, "vehicle": v})
		return nil
	})

	hub.On("get-stats", func(_ context.Context, c *stream.Conn, data json.RawMessage) error {
		vehicleID, err := decodeVehicleID(data)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventTrackingStats, co.Statistics(vehicleID))
		return nil
	})

	hub.On("get-all-tracking", func(_ context.Context, c *stream.Conn, _ json.RawMessage) error {
		hub.SendTo(c.ID, EventAllTracking, co.Sessions())
		return nil
	})
}

// decodeVehicleID accepts a bare "id" string or {"vehicleId": "id"}.
func decodeVehicleID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			VehicleID string `json:"vehicleId"`
		}
		if err := stream.Decode(data, &obj); err != nil {
			return "", err
		}
		id = obj.VehicleID
	}
	if id == "" {
		return "", apperr.Invalid("vehicleId required")
	}
	return id, nil
}
