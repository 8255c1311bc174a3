package tracking

import (
	"backend-mchanga/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, co *Coordinator) {
	r.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(co.Sessions())
	})

	r.Get("/sessions/:vehicleId", func(c *fiber.Ctx) error {
		s := co.Session(c.Params("vehicleId"))
		if s == nil {
			return fiber.NewError(fiber.StatusNotFound, "tracking session not found")
		}
		return c.JSON(s)
	})

	r.Get("/sessions/:vehicleId/stats", func(c *fiber.Ctx) error {
		stats := co.Statistics(c.Params("vehicleId"))
		if stats == nil {
			return fiber.NewError(fiber.StatusNotFound, "tracking session not found")
		}
		return c.JSON(stats)
	})

	r.Post("/:vehicleId/start", func(c *fiber.Ctx) error {
		s, err := co.StartTracking(c.Context(), c.Params("vehicleId"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	})

	r.Post("/:vehicleId/stop", func(c *fiber.Ctx) error {
		s := co.StopTracking(c.Params("vehicleId"))
		if s == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(s)
	})
}
