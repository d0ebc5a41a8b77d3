package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Team carries the engagement-relevant slice of a team: its current season
// string, which keys every tap total and badge.
type Team struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	Name          string `gorm:"not null" json:"name"`
	CurrentSeason string `gorm:"not null" json:"current_season"` // e.g., "2024-2025"

	Timestamps
}

// Event categories we care about; only "game" events get live sessions.
const EventCategoryGame = "game"

// TeamEvent is the calendar entry the lifecycle scheduler sweeps over.
type TeamEvent struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID    string    `gorm:"index;not null" json:"team_id"`
	Category  string    `gorm:"type:varchar(32);not null;index" json:"category"`
	Title     string    `json:"title"`
	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	Timestamps
}

// Member roles as mirrored from the team service.
const (
	MemberRoleSupporter = "supporter"
	MemberRoleAthlete   = "athlete"
	MemberRoleCoach     = "coach"
)

// TeamMember is a local snapshot of roster data needed for notification
// fan-out. Owned solely by this service; populated by the roster sync worker
// from the team service.
type TeamMember struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_team_members_key" json:"external_user_id"`
	TeamID         string `gorm:"not null;uniqueIndex:idx_team_members_key" json:"team_id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Role           string `gorm:"type:varchar(16);not null;default:'supporter';index" json:"role"`

	Timestamps
}

// SupporterFollow is one edge of the supporter → athlete follow graph,
// mirrored alongside the roster. Drives the personalized athlete list in
// session-started notifications.
type SupporterFollow struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SupporterID string    `gorm:"not null;uniqueIndex:idx_supporter_follows_key" json:"supporter_id"`
	TeamID      string    `gorm:"not null;uniqueIndex:idx_supporter_follows_key;index" json:"team_id"`
	AthleteID   string    `gorm:"not null;uniqueIndex:idx_supporter_follows_key" json:"athlete_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Legacy game statuses. Older clients still tap against games directly
// instead of live sessions.
const (
	GameStatusUpcoming = "upcoming"
	GameStatusLive     = "live"
	GameStatusFinal    = "final"
)

// Game is the legacy tap target kept for backward compatibility with the old
// game-day flow. New code should only ever create LiveSessions.
type Game struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID    string    `gorm:"index;not null" json:"team_id"`
	Opponent  string    `json:"opponent"`
	Status    string    `gorm:"type:varchar(16);not null;default:'upcoming'" json:"status"`
	StartTime time.Time `json:"start_time"`

	Timestamps
}

// DeviceToken is the push token registry row. The dispatcher never writes
// these; it only reports invalid tokens back so the registry can prune them.
type DeviceToken struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	Token          string    `gorm:"uniqueIndex;not null" json:"token"`
	Platform       string    `gorm:"type:varchar(16)" json:"platform"` // ios, android, web
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
