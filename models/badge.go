package models

import (
	"time"
)

// BadgeDefinition: static config (seeded at startup, editable by admins)
type BadgeDefinition struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Code         string    `gorm:"uniqueIndex;not null" json:"code"` // e.g., "bronze-fan", "legend"
	Name         string    `gorm:"not null" json:"name"`             // "Bronze Fan", "Legend"
	Description  string    `json:"description"`
	Tier         int       `gorm:"not null;index" json:"tier"` // award/order key, ascending
	TapThreshold int64     `gorm:"not null" json:"tap_threshold"`
	ThemeID      string    `gorm:"not null" json:"theme_id"` // cosmetic theme unlocked with the badge
	IconURL      string    `gorm:"type:text" json:"icon_url"`
	Rarity       string    `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BronzeBadgeCode is the entry tier the Legend rule anchors on: Legend needs
// the Bronze threshold reached this season, whatever other tiers admins add.
const BronzeBadgeCode = "bronze-fan"

// LegendBadgeCode marks the one definition that is awarded by the returning-
// supporter rule instead of a threshold comparison. Its TapThreshold is 0.
const LegendBadgeCode = "legend"

// LegendPriorSeasonTaps is the accumulated-tap floor a prior season must have
// reached for the Legend badge.
const LegendPriorSeasonTaps = 1500

// DefaultBadgeDefinitions seed the tier ladder. Bronze is the entry tier the
// Legend rule anchors on.
var DefaultBadgeDefinitions = []BadgeDefinition{
	{
		Code:         BronzeBadgeCode,
		Name:         "Bronze Fan",
		Description:  "Sent 100 taps this season",
		Tier:         1,
		TapThreshold: 100,
		ThemeID:      "theme-bronze",
		Rarity:       "common",
	},
	{
		Code:         "silver-fan",
		Name:         "Silver Fan",
		Description:  "Sent 500 taps this season",
		Tier:         2,
		TapThreshold: 500,
		ThemeID:      "theme-silver",
		Rarity:       "rare",
	},
	{
		Code:         "gold-fan",
		Name:         "Gold Fan",
		Description:  "Sent 1,500 taps this season",
		Tier:         3,
		TapThreshold: 1500,
		ThemeID:      "theme-gold",
		Rarity:       "epic",
	},
	{
		Code:         "platinum-fan",
		Name:         "Platinum Fan",
		Description:  "Sent 5,000 taps this season",
		Tier:         4,
		TapThreshold: 5000,
		ThemeID:      "theme-platinum",
		Rarity:       "epic",
	},
	{
		Code:         LegendBadgeCode,
		Name:         "Legend",
		Description:  "Came back for another season after 1,500+ taps",
		Tier:         5,
		TapThreshold: 0, // historical rule, not a threshold
		ThemeID:      "theme-legend",
		Rarity:       "legendary",
	},
}

// SupporterBadge: awarded instance, at most once per
// (supporter, badge, team, season) tuple.
type SupporterBadge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SupporterID string    `gorm:"not null;uniqueIndex:idx_supporter_badges_key" json:"supporter_id"`
	BadgeID     string    `gorm:"not null;uniqueIndex:idx_supporter_badges_key" json:"badge_id"`
	TeamID      string    `gorm:"not null;uniqueIndex:idx_supporter_badges_key" json:"team_id"`
	Season      string    `gorm:"not null;uniqueIndex:idx_supporter_badges_key" json:"season"`
	AwardedAt   time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// ThemeUnlock: cosmetic unlock granted alongside a badge. At most one row per
// supporter may have is_active = true.
type ThemeUnlock struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SupporterID string    `gorm:"not null;uniqueIndex:idx_theme_unlocks_key" json:"supporter_id"`
	ThemeID     string    `gorm:"not null;uniqueIndex:idx_theme_unlocks_key" json:"theme_id"`
	IsActive    bool      `gorm:"default:false" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
