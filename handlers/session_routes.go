package handlers

import (
	"team-engagement-system/middleware"
	"team-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSessionRoutes(app *fiber.App, sessionService *services.SessionService, scheduler *services.LifecycleScheduler) {
	// 🔐 Secured routes — require user context (userID), enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Coaches create a session for a game event ahead of schedule.
	secured.Post("/sessions", func(c *fiber.Ctx) error {
		type Req struct {
			EventID string `json:"event_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.EventID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "event_id is required",
			})
		}

		session, err := sessionService.CreateForEvent(req.EventID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	secured.Get("/sessions/:id", func(c *fiber.Ctx) error {
		session, err := sessionService.GetSession(c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(session)
	})

	secured.Post("/sessions/:id/start", func(c *fiber.Ctx) error {
		actorID := c.Locals("user_id").(string)
		session, err := sessionService.Start(c.Params("id"), actorID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(session)
	})

	secured.Post("/sessions/:id/end", func(c *fiber.Ctx) error {
		actorID := c.Locals("user_id").(string)
		session, err := sessionService.End(c.Params("id"), actorID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(session)
	})

	// "Keep cheering" — pushes the effective end forward while live.
	secured.Post("/sessions/:id/extend", func(c *fiber.Ctx) error {
		type Req struct {
			Minutes int `json:"minutes"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.Minutes < 1 || req.Minutes > 240 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "minutes must be between 1 and 240",
			})
		}

		session, err := sessionService.Extend(c.Params("id"), req.Minutes)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(session)
	})

	// 🔓 Gateway-only (no user context): clients ping this on page load so the
	// lifecycle sweep also runs on demand, not just on the timer.
	app.Post("/sweep", func(c *fiber.Ctx) error {
		if err := scheduler.Sweep(); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "sweep failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "sweep complete"})
	})
}
