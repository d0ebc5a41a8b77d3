package services

import (
	"errors"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresenceService keeps the short-TTL "user is looking at conversation X"
// records the dispatcher consults before waking anyone up.
type PresenceService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewPresenceService(db *gorm.DB, clock clockwork.Clock) *PresenceService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PresenceService{DB: db, Clock: clock}
}

// Heartbeat records that the user is viewing a conversation right now.
// One row per (user, team); each heartbeat overwrites it.
func (s *PresenceService) Heartbeat(userID, teamID, conversationWithUserID string) error {
	row := models.ChatPresence{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		TeamID:                 teamID,
		ConversationWithUserID: conversationWithUserID,
		LastSeenAt:             s.Clock.Now(),
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"conversation_with_user_id", "last_seen_at",
		}),
	}).Create(&row).Error
}

// Clear drops the presence record when the user leaves the screen.
func (s *PresenceService) Clear(userID, teamID string) error {
	return s.DB.Where("user_id = ? AND team_id = ?", userID, teamID).
		Delete(&models.ChatPresence{}).Error
}

// IsViewingConversation reports whether the user has a fresh heartbeat for
// that exact conversation partner. Records older than PresenceTTL are stale.
func (s *PresenceService) IsViewingConversation(userID, teamID, partnerID string) bool {
	var row models.ChatPresence
	err := s.DB.Where("user_id = ? AND team_id = ?", userID, teamID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if err != nil {
		return false
	}
	if row.ConversationWithUserID != partnerID {
		return false
	}
	return s.Clock.Now().Sub(row.LastSeenAt) < models.PresenceTTL
}
