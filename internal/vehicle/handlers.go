package vehicle

import (
	"context"

	"backend-mchanga/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// LocationUpdater applies a location report through the tracking layer so
// subscribers and session distance stay in sync with the store.
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) (Vehicle, error)
}

func RegisterRoutes(r fiber.Router, store *Store, tracker LocationUpdater) {
	r.Get("/", func(c *fiber.Ctx) error {
		vehicles, err := store.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(vehicles)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req Vehicle
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		v, err := store.Insert(c.Context(), req)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		v, err := store.FindByID(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(v)
	})

	r.Put("/:id/location", func(c *fiber.Ctx) error {
		var body struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := c.BodyParser(&body); err != nil || body.Latitude == nil || body.Longitude == nil {
			return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude required")
		}
		v, err := tracker.UpdateLocation(c.Context(), c.Params("id"), *body.Latitude, *body.Longitude)
		if err != nil {
			return fiber.NewError(apperr.HTTPStatus(err), err.Error())
		}
		return c.JSON(v)
	})
}
