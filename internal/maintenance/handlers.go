package maintenance

import (
	"time"

	"backend-mchanga/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store Store, s *Scheduler) {
	r.Get("/", func(c *fiber.Ctx) error {
		list, err := store.Query(c.Context(), Filter{Status: c.Query("status"), VehicleID: c.Query("vehicleId")})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req Record
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec, err := s.ScheduleService(c.Context(), req)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	})

	r.Get("/upcoming", func(c *fiber.Ctx) error {
		list, err := s.UpcomingServices(c.Context(), c.QueryInt("days", DefaultUpcomingDays))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/overdue", func(c *fiber.Ctx) error {
		list, err := s.OverdueServices(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := s.Statistics(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		rec, err := store.FindByID(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(rec)
	})

	r.Post("/:id/complete", func(c *fiber.Ctx) error {
		rec, err := s.CompleteService(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(rec)
	})

	r.Put("/:id/reschedule", func(c *fiber.Ctx) error {
		var body struct {
			NewDate time.Time `json:"newDate"`
		}
		if err := c.BodyParser(&body); err != nil || body.NewDate.IsZero() {
			return fiber.NewError(fiber.StatusBadRequest, "newDate required")
		}
		rec, err := s.RescheduleService(c.Context(), c.Params("id"), body.NewDate)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(rec)
	})
}
