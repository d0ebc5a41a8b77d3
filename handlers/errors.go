package handlers

import (
	"errors"

	"team-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

// serviceError maps the service failure taxonomy onto HTTP statuses.
// Rate limiting surfaces as a "slow down" signal; everything unexpected is a
// plain 500 with the cause attached.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "slow down — too many taps, try again in a few seconds",
		})
	case errors.Is(err, services.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "operation not valid in current state",
			"cause": err.Error(),
		})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
			"cause": err.Error(),
		})
	}
}
