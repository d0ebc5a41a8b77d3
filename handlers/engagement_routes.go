package handlers

import (
	"team-engagement-system/middleware"
	"team-engagement-system/models"
	"team-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

// tapRequest is the validated-struct boundary for tap bursts: arbitrary JSON
// is rejected on shape mismatch instead of leaking untyped values into the
// aggregates.
type tapRequest struct {
	Count int64 `json:"count"`
}

func (r *tapRequest) validate() string {
	if r.Count < 1 {
		return "count must be a positive integer"
	}
	if r.Count > 100 {
		return "count must be at most 100 per burst"
	}
	return ""
}

type shoutoutRequest struct {
	AthleteID string `json:"athlete_id"`
	Message   string `json:"message"`
}

func (r *shoutoutRequest) validate() string {
	if r.AthleteID == "" {
		return "athlete_id is required"
	}
	if r.Message == "" {
		return "message is required"
	}
	if len(r.Message) > models.MaxShoutoutLength {
		return "message is too long"
	}
	return ""
}

func SetupEngagementRoutes(app *fiber.App, engagementService *services.EngagementService, badgeService *services.BadgeService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	tapHandler := func(targetOf func(*fiber.Ctx) models.TapTarget) fiber.Handler {
		return func(c *fiber.Ctx) error {
			supporterID := c.Locals("user_id").(string)

			var req tapRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
					"cause": err.Error(),
				})
			}
			if msg := req.validate(); msg != "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
			}

			result, err := engagementService.RecordTap(targetOf(c), supporterID, req.Count)
			if err != nil {
				return serviceError(c, err)
			}
			return c.JSON(result)
		}
	}

	shoutoutHandler := func(targetOf func(*fiber.Ctx) models.TapTarget) fiber.Handler {
		return func(c *fiber.Ctx) error {
			supporterID := c.Locals("user_id").(string)

			var req shoutoutRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
					"cause": err.Error(),
				})
			}
			if msg := req.validate(); msg != "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
			}

			shoutout, err := engagementService.RecordShoutout(targetOf(c), supporterID, req.AthleteID, req.Message)
			if err != nil {
				return serviceError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(shoutout)
		}
	}

	sessionTarget := func(c *fiber.Ctx) models.TapTarget { return models.SessionTarget(c.Params("id")) }
	gameTarget := func(c *fiber.Ctx) models.TapTarget { return models.GameTarget(c.Params("id")) }

	secured.Post("/sessions/:id/taps", tapHandler(sessionTarget))
	secured.Post("/sessions/:id/shoutouts", shoutoutHandler(sessionTarget))

	// Legacy game-day flow kept for older clients.
	secured.Post("/games/:id/taps", tapHandler(gameTarget))
	secured.Post("/games/:id/shoutouts", shoutoutHandler(gameTarget))

	secured.Get("/supporters/me/taps/:team_id", func(c *fiber.Ctx) error {
		supporterID := c.Locals("user_id").(string)
		teamID := c.Params("team_id")
		season := engagementService.CurrentSeason(teamID)

		total, err := engagementService.SeasonTotal(supporterID, teamID, season)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"team_id":    teamID,
			"season":     season,
			"total_taps": total,
		})
	})

	secured.Get("/supporters/me/badges/:team_id", func(c *fiber.Ctx) error {
		supporterID := c.Locals("user_id").(string)
		teamID := c.Params("team_id")
		season := engagementService.CurrentSeason(teamID)

		// Run the unlock check on read too, so badges earned outside the tap
		// path (e.g., after a season archive) still land.
		unlocks, err := badgeService.EvaluateUnlocks(supporterID, teamID, season)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"season": season,
			"badges": unlocks.All,
			"newly":  unlocks.Newly,
		})
	})

	secured.Get("/supporters/me/themes", func(c *fiber.Ctx) error {
		supporterID := c.Locals("user_id").(string)
		themes, err := badgeService.Themes(supporterID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(themes)
	})

	secured.Post("/themes/:id/activate", func(c *fiber.Ctx) error {
		supporterID := c.Locals("user_id").(string)
		if err := badgeService.ActivateTheme(supporterID, c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "theme activated"})
	})

	// 🔒 Admin: archive the season and roll the team onto a new one.
	admin := secured.Group("/admin")
	admin.Post("/teams/:id/season/end", func(c *fiber.Ctx) error {
		type Req struct {
			NewSeason string `json:"new_season"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.NewSeason == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "new_season is required",
			})
		}

		archived, err := engagementService.EndSeason(c.Params("id"), req.NewSeason)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":         "season archived",
			"totals_archived": archived,
			"new_season":      req.NewSeason,
		})
	})
}
