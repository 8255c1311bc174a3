package emergency

import (
	"context"
	"encoding/json"

	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/stream"
)

const (
	EventActiveAlerts       = "active-alerts"
	EventCriticalAlerts     = "critical-alerts"
	EventEmergencyReported  = "emergency-reported"
	EventAlertStatusUpdated = "alert-status-updated"
	EventAlertStats         = "alert-stats"
)

func RegisterEvents(hub *stream.Hub, co *Coordinator) {
	hub.OnDisconnect(func(c *stream.Conn) { co.RemoveClient(c.ID) })

	hub.On("subscribe-alerts", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var severity string
		if err := stream.Decode(data, &severity); err != nil {
			return err
		}
		if err := co.SubscribeToAlerts(severity, c.ID); err != nil {
			return err
		}
		var (
			alerts []Emergency
			err    error
		)
		if severity == SeverityCritical {
			alerts, err = co.CriticalAlerts(ctx)
		} else {
			alerts, err = co.ActiveAlerts(ctx)
		}
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventActiveAlerts, alerts)
		return nil
	})

	hub.On("unsubscribe-alerts", func(_ context.Context, c *stream.Conn, data json.RawMessage) error {
		var severity string
		if err := stream.Decode(data, &severity); err != nil {
			return err
		}
		co.UnsubscribeFromAlerts(severity, c.ID)
		return nil
	})

	hub.On("report-emergency", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var req Emergency
		if err := stream.Decode(data, &req); err != nil {
			return err
		}
		e, err := co.CreateAlert(ctx, req)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventEmergencyReported, e)
		return nil
	})

	hub.On("update-alert-status", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var req struct {
			EmergencyID string `json:"emergencyId"`
			Status      string `json:"status"`
		}
		if err := stream.Decode(data, &req); err != nil {
			return err
		}
		if req.EmergencyID == "" {
			return apperr.Invalid("emergencyId required")
		}
		e, err := co.UpdateAlertStatus(ctx, req.EmergencyID, req.Status)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventAlertStatusUpdated, e)
		return nil
	})

	hub.On("close-alert", func(ctx context.Context, _ *stream.Conn, data json.RawMessage) error {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			var obj struct {
				EmergencyID string `json:"emergencyId"`
			}
			if err := stream.Decode(data, &obj); err != nil {
				return err
			}
			id = obj.EmergencyID
		}
		if id == "" {
			return apperr.Invalid("emergencyId required")
		}
		_, err := co.CloseAlert(ctx, id)
		return err
	})

	hub.On("get-critical-alerts", func(ctx context.Context, c *stream.Conn, _ json.RawMessage) error {
		alerts, err := co.CriticalAlerts(ctx)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventCriticalAlerts, alerts)
		return nil
	})

	hub.On("get-active-alerts", func(ctx context.Context, c *stream.Conn, _ json.RawMessage) error {
		alerts, err := co.ActiveAlerts(ctx)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventActiveAlerts, alerts)
		return nil
	})

	hub.On("get-alert-stats", func(ctx context.Context, c *stream.Conn, _ json.RawMessage) error {
		stats, err := co.Statistics(ctx)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventAlertStats, stats)
		return nil
	})
}
