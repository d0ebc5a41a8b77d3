package handlers

import (
	"fmt"
	"strconv"

	"team-engagement-system/middleware"
	"team-engagement-system/services"
	"team-engagement-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func SetupBadgeRoutes(app *fiber.App, badgeService *services.BadgeService) {
	// 🔓 Gateway-only: the ladder itself is not user-specific.
	app.Get("/badges", func(c *fiber.Ctx) error {
		defs, err := badgeService.ListDefinitions()
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(defs)
	})

	// 🔒 Admin: register a new tier, icon art uploaded to R2.
	admin := app.Group("/admin", middleware.UserContextMiddleware())
	admin.Post("/badges", func(c *fiber.Ctx) error {
		name := c.FormValue("name")
		description := c.FormValue("description")
		rarity := c.FormValue("rarity", "common")
		tierStr := c.FormValue("tier")
		thresholdStr := c.FormValue("tap_threshold")

		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		tier, err := strconv.Atoi(tierStr)
		if err != nil || tier < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tier must be a positive integer"})
		}
		threshold, err := strconv.ParseInt(thresholdStr, 10, 64)
		if err != nil || threshold < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tap_threshold must be a positive integer"})
		}

		iconURL := ""
		if icon, err := c.FormFile("icon"); err == nil && icon != nil {
			key := fmt.Sprintf("badges/%s-%s%s", slug.Make(name), uuid.NewString()[:8], utils.SafeExt(icon.Filename))
			iconURL, err = utils.UploadAssetToR2(icon, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "icon upload failed",
					"cause": err.Error(),
				})
			}
		}

		def, err := badgeService.CreateDefinition(name, description, tier, threshold, rarity, iconURL)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(def)
	})
}
