package maintenance

import (
	"context"
	"encoding/json"
	"time"

	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/stream"
)

const (
	EventServiceScheduled = "service-scheduled"
	EventUpcomingServices = "upcoming-services"
	EventOverdueServices  = "overdue-services"
	EventServiceStats     = "service-stats"
	EventVehicleServices  = "vehicle-services"

	broadcastSuffix = "-broadcast"
)

// RegisterEvents wires the scheduling events. Mutations reply to the caller
// with the record and repeat it to everyone under the -broadcast name.
func RegisterEvents(hub *stream.Hub, s *Scheduler) {
	reply := func(c *stream.Conn, event string, r Record) {
		hub.SendTo(c.ID, event, r)
		hub.Broadcast(event+broadcastSuffix, r)
	}

	hub.On("schedule-service", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var req Record
		if err := stream.Decode(data, &req); err != nil {
			return err
		}
		r, err := s.ScheduleService(ctx, req)
		if err != nil {
			return err
		}
		reply(c, EventServiceScheduled, r)
		return nil
	})

	hub.On("complete-service", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		id, err := decodeServiceID(data)
		if err != nil {
			return err
		}
		r, err := s.CompleteService(ctx, id)
		if err != nil {
			return err
		}
		reply(c, EventServiceCompleted, r)
		return nil
	})

	hub.On("reschedule-service", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var req struct {
			ServiceID string    `json:"serviceId"`
			NewDate   time.Time `json:"newDate"`
		}
		if err := stream.Decode(data, &req); err != nil {
			return err
		}
		if req.ServiceID == "" {
			return apperr.Invalid("serviceId required")
		}
		r, err := s.RescheduleService(ctx, req.ServiceID, req.NewDate)
		if err != nil {
			return err
		}
		reply(c, EventServiceRescheduled, r)
		return nil
	})

	hub.On("get-upcoming-services", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var days int
		if len(data) > 0 && string(data) != "null" {
			if err := stream.Decode(data, &days); err != nil {
				return err
			}
		}
		list, err := s.UpcomingServices(ctx, days)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventUpcomingServices, list)
		return nil
	})

	hub.On("get-overdue-services", func(ctx context.Context, c *stream.Conn, _ json.RawMessage) error {
		list, err := s.OverdueServices(ctx)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventOverdueServices, list)
		return nil
	})

	hub.On("get-service-stats", func(ctx context.Context, c *stream.Conn, _ json.RawMessage) error {
		stats, err := s.Statistics(ctx)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventServiceStats, stats)
		return nil
	})

	hub.On("get-vehicle-services", func(ctx context.Context, c *stream.Conn, data json.RawMessage) error {
		var vehicleID string
		if err := stream.Decode(data, &vehicleID); err != nil {
			return err
		}
		list, err := s.VehicleServices(ctx, vehicleID)
		if err != nil {
			return err
		}
		hub.SendTo(c.ID, EventVehicleServices, list)
		return nil
	})
}

func decodeServiceID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			ServiceID string `json:"serviceId"`
		}
		if err := stream.Decode(data, &obj); err != nil {
			return "", err
		}
		id = obj.ServiceID
	}
	if id == "" {
		return "", apperr.Invalid("serviceId required")
	}
	return id, nil
}
