package models

import (
	"time"
)

// Session lifecycle statuses. Transitions are one-directional:
// scheduled → live → ended.
const (
	SessionStatusScheduled = "scheduled"
	SessionStatusLive      = "live"
	SessionStatusEnded     = "ended"
)

// LiveSession is the game-day engagement window for a single calendar event.
// At most one non-ended session may exist per event at a time.
type LiveSession struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	EventID        string     `gorm:"index;not null" json:"event_id"`
	TeamID         string     `gorm:"index;not null" json:"team_id"`
	Status         string     `gorm:"type:varchar(16);not null;default:'scheduled';index" json:"status"`
	ScheduledStart time.Time  `gorm:"not null" json:"scheduled_start"`
	ScheduledEnd   time.Time  `gorm:"not null" json:"scheduled_end"`
	ExtendedUntil  *time.Time `json:"extended_until,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	StartedBy      string     `json:"started_by,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	EndedBy        string     `json:"ended_by,omitempty"`

	Timestamps
}

// EffectiveEnd is the moment the session is considered over for auto-end
// purposes: ExtendedUntil when a supporter kept it open, else ScheduledEnd.
func (s *LiveSession) EffectiveEnd() time.Time {
	if s.ExtendedUntil != nil {
		return *s.ExtendedUntil
	}
	return s.ScheduledEnd
}

// TapTargetKind discriminates where taps/shoutouts land: the current session
// flow or the legacy game flow kept for older clients.
type TapTargetKind string

const (
	TapTargetSession TapTargetKind = "session"
	TapTargetGame    TapTargetKind = "game"
)

// TapTarget is the tagged variant (session | game) used everywhere instead of
// nullable dual foreign keys, so the liveness check stays exhaustive.
type TapTarget struct {
	Kind TapTargetKind `json:"kind"`
	ID   string        `json:"id"`
}

func SessionTarget(id string) TapTarget {
	return TapTarget{Kind: TapTargetSession, ID: id}
}

func GameTarget(id string) TapTarget {
	return TapTarget{Kind: TapTargetGame, ID: id}
}

// TapEvent is the immutable append-only record of a burst of taps. Never
// updated; source of truth for every count.
type TapEvent struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	TargetKind  TapTargetKind `gorm:"type:varchar(16);not null;index:idx_tap_events_target" json:"target_kind"`
	TargetID    string        `gorm:"not null;index:idx_tap_events_target" json:"target_id"`
	SupporterID string        `gorm:"index;not null" json:"supporter_id"`
	TeamID      string        `gorm:"index;not null" json:"team_id"`
	TapCount    int64         `gorm:"not null" json:"tap_count"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TapTotal is the mutable season aggregate. total_taps only ever grows and
// must equal the sum of accepted TapEvents for the key within the season.
type TapTotal struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SupporterID string    `gorm:"not null;uniqueIndex:idx_tap_totals_key" json:"supporter_id"`
	TeamID      string    `gorm:"not null;uniqueIndex:idx_tap_totals_key" json:"team_id"`
	Season      string    `gorm:"not null;uniqueIndex:idx_tap_totals_key" json:"season"`
	TotalTaps   int64     `gorm:"not null;default:0" json:"total_taps"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SeasonTapArchive is a frozen TapTotal written when a team's season is ended.
// The badge engine scans these for the cross-season loyalty rule.
type SeasonTapArchive struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SupporterID string    `gorm:"index;not null;uniqueIndex:idx_season_archive_key" json:"supporter_id"`
	TeamID      string    `gorm:"not null;uniqueIndex:idx_season_archive_key" json:"team_id"`
	Season      string    `gorm:"not null;uniqueIndex:idx_season_archive_key" json:"season"`
	TotalTaps   int64     `gorm:"not null;default:0" json:"total_taps"`
	ArchivedAt  time.Time `gorm:"autoCreateTime" json:"archived_at"`
}

// MaxShoutoutLength mirrors the team-chat message cap.
const MaxShoutoutLength = 500

// Shoutout is an immutable free-text cheer from a supporter to an athlete,
// accepted only while the owning session/game is live.
type Shoutout struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	TargetKind  TapTargetKind `gorm:"type:varchar(16);not null;index:idx_shoutouts_target" json:"target_kind"`
	TargetID    string        `gorm:"not null;index:idx_shoutouts_target" json:"target_id"`
	SupporterID string        `gorm:"index;not null" json:"supporter_id"`
	AthleteID   string        `gorm:"index;not null" json:"athlete_id"`
	Message     string        `gorm:"type:varchar(500);not null" json:"message"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}
