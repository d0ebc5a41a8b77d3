package handlers

import (
	"strings"

	"team-engagement-system/middleware"
	"team-engagement-system/models"
	"team-engagement-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupChatRoutes(app *fiber.App, notificationService *services.NotificationService, presenceService *services.PresenceService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Sending a message dispatches a notification to the recipient. Direct
	// messages are deferred 5s so an already-reading recipient is never woken.
	secured.Post("/chat/messages", func(c *fiber.Ctx) error {
		type Req struct {
			Kind        string `json:"kind"` // "direct" or "team"
			TeamID      string `json:"team_id"`
			RecipientID string `json:"recipient_id"` // direct only
			Text        string `json:"text"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" || len(req.Text) > models.MaxShoutoutLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text must be 1-500 chars"})
		}
		if req.TeamID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "team_id is required"})
		}

		senderID := c.Locals("user_id").(string)
		senderName := memberName(notificationService.DB, senderID, req.TeamID)
		preview := messagePreview(req.Text)

		switch req.Kind {
		case "direct":
			if req.RecipientID == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient_id is required for direct messages"})
			}
			link := "/teams/" + req.TeamID + "/chat/" + senderID
			notificationService.Notify(services.Notification{
				RecipientID: req.RecipientID,
				TeamID:      req.TeamID,
				Category:    models.NotificationCategoryDirectMessage,
				Title:       "New message from " + senderName,
				Body:        preview,
				Link:        link,
				Data:        map[string]string{"sender_id": senderID, "team_id": req.TeamID},
				SenderID:    senderID,
				EmailFields: map[string]string{
					"sender_name": senderName,
					"preview":     preview,
					"link":        link,
				},
			})

		case "team":
			// Team chat pings every other member; not presence-suppressed.
			var members []models.TeamMember
			if err := notificationService.DB.
				Where("team_id = ? AND external_user_id <> ?", req.TeamID, senderID).
				Find(&members).Error; err != nil {
				return serviceError(c, err)
			}
			link := "/teams/" + req.TeamID + "/chat"
			team := teamDisplayName(notificationService.DB, req.TeamID)
			for _, m := range members {
				notificationService.Notify(services.Notification{
					RecipientID: m.ExternalUserID,
					TeamID:      req.TeamID,
					Category:    models.NotificationCategoryTeamChat,
					Title:       senderName + " in team chat",
					Body:        preview,
					Link:        link,
					Data:        map[string]string{"sender_id": senderID, "team_id": req.TeamID},
					SenderID:    senderID,
					EmailFields: map[string]string{
						"sender_name": senderName,
						"team_name":   team,
						"preview":     preview,
						"link":        link,
					},
				})
			}

		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be 'direct' or 'team'"})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "delivered"})
	})

	// Presence heartbeat: "I'm looking at this conversation right now."
	secured.Post("/presence/heartbeat", func(c *fiber.Ctx) error {
		type Req struct {
			TeamID                 string `json:"team_id"`
			ConversationWithUserID string `json:"conversation_with_user_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.TeamID == "" || req.ConversationWithUserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "team_id and conversation_with_user_id are required",
			})
		}

		userID := c.Locals("user_id").(string)
		if err := presenceService.Heartbeat(userID, req.TeamID, req.ConversationWithUserID); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "ok"})
	})

	secured.Delete("/presence", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		teamID := c.Query("team_id")
		if teamID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "team_id is required"})
		}
		if err := presenceService.Clear(userID, teamID); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "ok"})
	})

	// Per-user channel toggles; absent rows read as all-on.
	secured.Get("/users/me/notification-preferences", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var prefs models.NotificationPreferences
		err := notificationService.DB.Where("external_user_id = ?", userID).First(&prefs).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.JSON(models.DefaultNotificationPreferences(userID))
			}
			return serviceError(c, err)
		}
		return c.JSON(prefs)
	})

	secured.Put("/users/me/notification-preferences", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req models.NotificationPreferences
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		req.ExternalUserID = userID

		var existing models.NotificationPreferences
		err := notificationService.DB.Where("external_user_id = ?", userID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			req.ID = uuid.NewString()
			if err := notificationService.DB.Create(&req).Error; err != nil {
				return serviceError(c, err)
			}
			return c.JSON(req)
		}
		if err != nil {
			return serviceError(c, err)
		}

		req.ID = existing.ID
		if err := notificationService.DB.Model(&existing).Select(
			"push_on_message", "email_on_message",
			"push_on_hype", "email_on_hype",
			"push_on_event", "email_on_event",
		).Updates(&req).Error; err != nil {
			return serviceError(c, err)
		}
		return c.JSON(req)
	})
}

func memberName(db *gorm.DB, userID, teamID string) string {
	var member models.TeamMember
	if err := db.Where("external_user_id = ? AND team_id = ?", userID, teamID).
		First(&member).Error; err != nil || member.Name == "" {
		return "A teammate"
	}
	return member.Name
}

func teamDisplayName(db *gorm.DB, teamID string) string {
	var team models.Team
	if err := db.Where("id = ?", teamID).First(&team).Error; err != nil || team.Name == "" {
		return "your team"
	}
	return team.Name
}

// messagePreview shortens chat text for notification bodies. Truncation is on
// runes so multi-byte characters are never split.
func messagePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= 120 {
		return text
	}
	return string(runes[:117]) + "..."
}
