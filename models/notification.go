package models

// Notification categories routed through the dispatcher.
const (
	NotificationCategoryDirectMessage   = "direct_message"
	NotificationCategoryTeamChat        = "team_chat"
	NotificationCategorySessionStarted  = "session_started"
	NotificationCategoryPreGameReminder = "pre_game_reminder"
	NotificationCategoryHype            = "hype"
	NotificationCategoryNewFollower     = "new_follower"
)

// NotificationPreferences holds per-user channel toggles. A missing row reads
// as DefaultNotificationPreferences (all on). No gorm column defaults here:
// gorm omits zero-value fields when a default tag is set, which would turn a
// stored false back into true on insert.
type NotificationPreferences struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	PushOnMessage  bool `json:"push_on_message"`
	EmailOnMessage bool `json:"email_on_message"`
	PushOnHype     bool `json:"push_on_hype"`
	EmailOnHype    bool `json:"email_on_hype"`
	PushOnEvent    bool `json:"push_on_event"`
	EmailOnEvent   bool `json:"email_on_event"`

	Timestamps
}

// DefaultNotificationPreferences is what absent rows resolve to: all on.
func DefaultNotificationPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		ExternalUserID: userID,
		PushOnMessage:  true,
		EmailOnMessage: true,
		PushOnHype:     true,
		EmailOnHype:    true,
		PushOnEvent:    true,
		EmailOnEvent:   true,
	}
}

// PushWanted reports whether the push channel is enabled for a category.
func (p *NotificationPreferences) PushWanted(category string) bool {
	switch category {
	case NotificationCategoryDirectMessage, NotificationCategoryTeamChat:
		return p.PushOnMessage
	case NotificationCategoryHype, NotificationCategoryNewFollower:
		return p.PushOnHype
	case NotificationCategorySessionStarted, NotificationCategoryPreGameReminder:
		return p.PushOnEvent
	}
	return true
}

// EmailWanted reports whether the email channel is enabled for a category.
func (p *NotificationPreferences) EmailWanted(category string) bool {
	switch category {
	case NotificationCategoryDirectMessage, NotificationCategoryTeamChat:
		return p.EmailOnMessage
	case NotificationCategoryHype, NotificationCategoryNewFollower:
		return p.EmailOnHype
	case NotificationCategorySessionStarted, NotificationCategoryPreGameReminder:
		return p.EmailOnEvent
	}
	return true
}
