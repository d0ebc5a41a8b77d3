package models

import (
	"time"
)

// PresenceTTL is how long a heartbeat counts as "actively viewing". Checked
// at send time, not at enqueue time.
const PresenceTTL = 15 * time.Second

// ChatPresence marks that a user is currently looking at a conversation.
// Single row per (user, team), overwritten on every heartbeat; stale past
// PresenceTTL.
type ChatPresence struct {
	ID                     string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID                 string    `gorm:"not null;uniqueIndex:idx_chat_presence_key" json:"user_id"`
	TeamID                 string    `gorm:"not null;uniqueIndex:idx_chat_presence_key" json:"team_id"`
	ConversationWithUserID string    `gorm:"not null" json:"conversation_with_user_id"`
	LastSeenAt             time.Time `gorm:"not null" json:"last_seen_at"`
}
