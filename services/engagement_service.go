package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementService ingests taps and shoutouts while a session (or legacy
// game) is live, and maintains the season aggregates the badge engine reads.
type EngagementService struct {
	DB       *gorm.DB
	Limiter  *TapRateLimiter
	Badges   *BadgeService
	Notifier *NotificationService
	Clock    clockwork.Clock
}

func NewEngagementService(db *gorm.DB, limiter *TapRateLimiter, badges *BadgeService, notifier *NotificationService, clock clockwork.Clock) *EngagementService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EngagementService{DB: db, Limiter: limiter, Badges: badges, Notifier: notifier, Clock: clock}
}

// TapResult is the immediate UI feedback for an accepted tap burst.
type TapResult struct {
	SeasonTotal  int64                    `json:"season_total"`
	RunningTotal int64                    `json:"running_total"` // for the tapped session/game
	Season       string                   `json:"season"`
	NewBadges    []models.BadgeDefinition `json:"new_badges,omitempty"`
}

// RecordTap validates liveness and rate limits, appends an immutable
// TapEvent, and atomically adds the count into the season total. A rejected
// attempt leaves every counter untouched.
func (s *EngagementService) RecordTap(target models.TapTarget, supporterID string, count int64) (*TapResult, error) {
	if count < 1 {
		return nil, fmt.Errorf("tap count must be positive: %w", ErrInvalidState)
	}

	teamID, err := s.requireLive(target)
	if err != nil {
		return nil, err
	}

	if !s.Limiter.Allow(supporterID, target.ID) {
		return nil, fmt.Errorf("supporter %s over budget for %s: %w", supporterID, target.ID, ErrRateLimited)
	}

	season := s.currentSeason(teamID)

	tap := models.TapEvent{
		ID:          uuid.NewString(),
		TargetKind:  target.Kind,
		TargetID:    target.ID,
		SupporterID: supporterID,
		TeamID:      teamID,
		TapCount:    count,
	}
	if err := s.DB.Create(&tap).Error; err != nil {
		return nil, err
	}

	// Atomic upsert-increment; never read-modify-write, so concurrent taps
	// from many supporters cannot lose updates.
	total := models.TapTotal{
		ID:          uuid.NewString(),
		SupporterID: supporterID,
		TeamID:      teamID,
		Season:      season,
		TotalTaps:   count,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supporter_id"}, {Name: "team_id"}, {Name: "season"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_taps": gorm.Expr("total_taps + ?", count),
		}),
	}).Create(&total).Error; err != nil {
		return nil, err
	}

	seasonTotal, err := s.SeasonTotal(supporterID, teamID, season)
	if err != nil {
		return nil, err
	}
	runningTotal, err := s.RunningTotal(target)
	if err != nil {
		return nil, err
	}

	result := &TapResult{SeasonTotal: seasonTotal, RunningTotal: runningTotal, Season: season}

	// Unlock check rides on the tap; its failures never fail the tap itself.
	if s.Badges != nil {
		unlocks, err := s.Badges.EvaluateUnlocks(supporterID, teamID, season)
		if err != nil {
			log.Printf("⚠️ Badge evaluation failed for %s/%s: %v", supporterID, teamID, err)
		} else if len(unlocks.Newly) > 0 {
			result.NewBadges = unlocks.Newly
			if s.Notifier != nil {
				go s.Notifier.NotifyBadgesAwarded(supporterID, teamID, unlocks.Newly)
			}
		}
	}

	return result, nil
}

// RecordShoutout passes the same liveness and rate-limit gates as taps but
// has no counter side effect. The message must already be trimmed non-empty
// and within MaxShoutoutLength (the ingestion boundary enforces shape).
func (s *EngagementService) RecordShoutout(target models.TapTarget, supporterID, athleteID, message string) (*models.Shoutout, error) {
	message = strings.TrimSpace(message)
	if message == "" || len(message) > models.MaxShoutoutLength {
		return nil, fmt.Errorf("shoutout message must be 1-%d chars: %w", models.MaxShoutoutLength, ErrInvalidState)
	}

	if _, err := s.requireLive(target); err != nil {
		return nil, err
	}

	if !s.Limiter.Allow(supporterID, target.ID) {
		return nil, fmt.Errorf("supporter %s over budget for %s: %w", supporterID, target.ID, ErrRateLimited)
	}

	shoutout := models.Shoutout{
		ID:          uuid.NewString(),
		TargetKind:  target.Kind,
		TargetID:    target.ID,
		SupporterID: supporterID,
		AthleteID:   athleteID,
		Message:     message,
	}
	if err := s.DB.Create(&shoutout).Error; err != nil {
		return nil, err
	}
	return &shoutout, nil
}

// SeasonTotal reads the accumulated taps for (supporter, team, season);
// absent rows read as 0.
func (s *EngagementService) SeasonTotal(supporterID, teamID, season string) (int64, error) {
	var total models.TapTotal
	err := s.DB.Where("supporter_id = ? AND team_id = ? AND season = ?", supporterID, teamID, season).
		First(&total).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return total.TotalTaps, nil
}

// RunningTotal sums all TapEvents recorded against one session/game.
func (s *EngagementService) RunningTotal(target models.TapTarget) (int64, error) {
	var sum int64
	err := s.DB.Model(&models.TapEvent{}).
		Where("target_kind = ? AND target_id = ?", target.Kind, target.ID).
		Select("COALESCE(SUM(tap_count), 0)").
		Scan(&sum).Error
	return sum, err
}

// CurrentSeason resolves the accumulation period for a team, deriving an
// Aug–Jul season string when the team row has none yet.
func (s *EngagementService) CurrentSeason(teamID string) string {
	return s.currentSeason(teamID)
}

func (s *EngagementService) currentSeason(teamID string) string {
	var team models.Team
	err := s.DB.Where("id = ?", teamID).First(&team).Error
	if err == nil && team.CurrentSeason != "" {
		return team.CurrentSeason
	}
	now := s.Clock.Now()
	year := now.Year()
	if now.Month() < 8 {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

// EndSeason archives every tap total for the team under the closing season,
// resets the aggregates, and moves the team onto the new season string.
// Returns how many supporter totals were archived.
func (s *EngagementService) EndSeason(teamID, newSeason string) (int64, error) {
	newSeason = strings.TrimSpace(newSeason)
	if newSeason == "" {
		return 0, fmt.Errorf("new season string required: %w", ErrInvalidState)
	}

	var archived int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var totals []models.TapTotal
		if err := tx.Where("team_id = ?", teamID).Find(&totals).Error; err != nil {
			return err
		}

		for _, t := range totals {
			archive := models.SeasonTapArchive{
				ID:          uuid.NewString(),
				SupporterID: t.SupporterID,
				TeamID:      t.TeamID,
				Season:      t.Season,
				TotalTaps:   t.TotalTaps,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "supporter_id"}, {Name: "team_id"}, {Name: "season"}},
				DoNothing: true,
			}).Create(&archive).Error; err != nil {
				return err
			}
		}
		archived = int64(len(totals))

		if err := tx.Where("team_id = ?", teamID).Delete(&models.TapTotal{}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Team{}).Where("id = ?", teamID).Update("current_season", newSeason)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// No team row mirrored yet; create one so the new season sticks.
			return tx.Create(&models.Team{ID: teamID, Name: teamID, CurrentSeason: newSeason}).Error
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("🗃️ Season ended for team %s: %d totals archived, new season %s", teamID, archived, newSeason)
	return archived, nil
}

// requireLive resolves the tap target and returns its owning team id, or
// ErrNotFound / ErrInvalidState. The switch is exhaustive over TapTargetKind.
func (s *EngagementService) requireLive(target models.TapTarget) (string, error) {
	switch target.Kind {
	case models.TapTargetSession:
		var session models.LiveSession
		if err := s.DB.Where("id = ?", target.ID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
		if session.Status != models.SessionStatusLive {
			return "", fmt.Errorf("session %s is %s: %w", session.ID, session.Status, ErrInvalidState)
		}
		return session.TeamID, nil

	case models.TapTargetGame:
		var game models.Game
		if err := s.DB.Where("id = ?", target.ID).First(&game).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
		if game.Status != models.GameStatusLive {
			return "", fmt.Errorf("game %s is %s: %w", game.ID, game.Status, ErrInvalidState)
		}
		return game.TeamID, nil

	default:
		return "", fmt.Errorf("unknown tap target kind %q: %w", target.Kind, ErrInvalidState)
	}
}
