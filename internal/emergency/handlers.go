package emergency

import (
	"backend-mchanga/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store Store, co *Coordinator) {
	r.Get("/", func(c *fiber.Ctx) error {
		f := Filter{Severity: c.Query("severity"), VehicleID: c.Query("vehicleId")}
		if status := c.Query("status"); status != "" {
			f.Statuses = []string{status}
		}
		list, err := store.Query(c.Context(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req Emergency
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e, err := co.CreateAlert(c.Context(), req)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	})

	r.Get("/critical", func(c *fiber.Ctx) error {
		list, err := co.CriticalAlerts(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/active", func(c *fiber.Ctx) error {
		list, err := co.ActiveAlerts(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	r.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := co.Statistics(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		e, err := store.FindByID(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(e)
	})

	r.Patch("/:id/status", func(c *fiber.Ctx) error {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return fiber.NewError(fiber.StatusBadRequest, "status required")
		}
		e, err := co.UpdateAlertStatus(c.Context(), c.Params("id"), body.Status)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(e)
	})

	r.Post("/:id/close", func(c *fiber.Ctx) error {
		e, err := co.CloseAlert(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(e)
	})
}
