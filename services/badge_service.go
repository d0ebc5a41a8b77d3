package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeService evaluates season totals against the badge ladder and manages
// the cosmetic theme unlocks that ride along with awards.
type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// UnlockResult is the outcome of one evaluation pass. All is the full badge
// set in ascending tier order; Newly is the subset awarded by this call, for
// celebratory UI.
type UnlockResult struct {
	All   []models.BadgeDefinition `json:"all"`
	Newly []models.BadgeDefinition `json:"newly"`
}

// SeedDefaults inserts the default badge ladder if absent (idempotent).
func (s *BadgeService) SeedDefaults() error {
	for _, def := range models.DefaultBadgeDefinitions {
		def.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&def).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDefinition registers an admin-supplied badge tier. Code and theme id
// are derived from the display name so they stay URL- and storage-safe.
func (s *BadgeService) CreateDefinition(name, description string, tier int, threshold int64, rarity, iconURL string) (*models.BadgeDefinition, error) {
	code := slug.Make(name)
	def := models.BadgeDefinition{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         name,
		Description:  description,
		Tier:         tier,
		TapThreshold: threshold,
		ThemeID:      "theme-" + code,
		IconURL:      iconURL,
		Rarity:       rarity,
	}
	if err := s.DB.Create(&def).Error; err != nil {
		return nil, err
	}
	log.Printf("🎖️ Badge definition created: %s (tier %d, threshold %d)", def.Code, def.Tier, def.TapThreshold)
	return &def, nil
}

// ListDefinitions returns the full ladder, tier ascending.
func (s *BadgeService) ListDefinitions() ([]models.BadgeDefinition, error) {
	var defs []models.BadgeDefinition
	err := s.DB.Order("tier ASC").Find(&defs).Error
	return defs, err
}

// EvaluateUnlocks is the pure unlock pass: it loads the ladder and the
// supporter's current state, awards everything newly earned (threshold tiers
// in ascending order, then the Legend loyalty rule), and guarantees a theme
// unlock exists for every award. Calling it again with unchanged totals
// returns the same set and an empty Newly list.
func (s *BadgeService) EvaluateUnlocks(supporterID, teamID, season string) (*UnlockResult, error) {
	defs, err := s.ListDefinitions()
	if err != nil {
		return nil, err
	}

	var existing []models.SupporterBadge
	if err := s.DB.Where("supporter_id = ? AND team_id = ? AND season = ?", supporterID, teamID, season).
		Find(&existing).Error; err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(existing))
	for _, b := range existing {
		owned[b.BadgeID] = true
	}

	var total models.TapTotal
	var totalTaps int64
	err = s.DB.Where("supporter_id = ? AND team_id = ? AND season = ?", supporterID, teamID, season).
		First(&total).Error
	if err == nil {
		totalTaps = total.TotalTaps
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result := &UnlockResult{}

	// Legend anchors on the Bronze tier itself; an admin-created tier below
	// Bronze must not relax the rule. Without a Bronze definition Legend is
	// unawardable.
	var bronzeThreshold int64 = -1
	for _, def := range defs {
		if def.Code == models.BronzeBadgeCode {
			bronzeThreshold = def.TapThreshold
			break
		}
	}

	for _, def := range defs {
		if owned[def.ID] {
			result.All = append(result.All, def)
			continue
		}

		earned := false
		if def.Code == models.LegendBadgeCode {
			earned = bronzeThreshold >= 0 && totalTaps >= bronzeThreshold &&
				s.hasLoyalPriorSeason(supporterID, teamID, season)
		} else {
			earned = totalTaps >= def.TapThreshold
		}
		if !earned {
			continue
		}

		awarded, err := s.award(supporterID, teamID, season, def)
		if err != nil {
			return nil, err
		}
		result.All = append(result.All, def)
		if awarded {
			result.Newly = append(result.Newly, def)
		}
	}

	sort.Slice(result.All, func(i, j int) bool { return result.All[i].Tier < result.All[j].Tier })
	sort.Slice(result.Newly, func(i, j int) bool { return result.Newly[i].Tier < result.Newly[j].Tier })
	return result, nil
}

// award inserts the badge and its theme unlock, both insert-if-absent so
// concurrent evaluations award at most once. Returns whether this call won
// the insert.
func (s *BadgeService) award(supporterID, teamID, season string, def models.BadgeDefinition) (bool, error) {
	badge := models.SupporterBadge{
		ID:          uuid.NewString(),
		SupporterID: supporterID,
		BadgeID:     def.ID,
		TeamID:      teamID,
		Season:      season,
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supporter_id"}, {Name: "badge_id"}, {Name: "team_id"}, {Name: "season"}},
		DoNothing: true,
	}).Create(&badge)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	// Newly unlocked themes start inactive; the supporter opts in.
	unlock := models.ThemeUnlock{
		ID:          uuid.NewString(),
		SupporterID: supporterID,
		ThemeID:     def.ThemeID,
		IsActive:    false,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supporter_id"}, {Name: "theme_id"}},
		DoNothing: true,
	}).Create(&unlock).Error; err != nil {
		return false, err
	}

	log.Printf("🎖️ Badge awarded: %s → %s (team %s, season %s)", def.Code, supporterID, teamID, season)
	return true, nil
}

// hasLoyalPriorSeason scans the supporter's archived seasons for the same
// team for one with at least LegendPriorSeasonTaps. Archives without the
// field — or any scan failure — read as "no match", never as an error.
func (s *BadgeService) hasLoyalPriorSeason(supporterID, teamID, currentSeason string) bool {
	var count int64
	err := s.DB.Model(&models.SeasonTapArchive{}).
		Where("supporter_id = ? AND team_id = ? AND season <> ? AND total_taps >= ?",
			supporterID, teamID, currentSeason, models.LegendPriorSeasonTaps).
		Count(&count).Error
	if err != nil {
		log.Printf("⚠️ Legend archive scan failed for %s/%s, treating as no match: %v", supporterID, teamID, err)
		return false
	}
	return count > 0
}

// SupporterBadges lists the awarded definitions for a supporter, tier
// ascending.
func (s *BadgeService) SupporterBadges(supporterID, teamID, season string) ([]models.BadgeDefinition, error) {
	var rows []models.SupporterBadge
	if err := s.DB.Where("supporter_id = ? AND team_id = ? AND season = ?", supporterID, teamID, season).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BadgeID)
	}
	var defs []models.BadgeDefinition
	err := s.DB.Where("id IN ?", ids).Order("tier ASC").Find(&defs).Error
	return defs, err
}

// Themes lists a supporter's unlocks.
func (s *BadgeService) Themes(supporterID string) ([]models.ThemeUnlock, error) {
	var unlocks []models.ThemeUnlock
	err := s.DB.Where("supporter_id = ?", supporterID).Order("created_at ASC").Find(&unlocks).Error
	return unlocks, err
}

// ActivateTheme makes one unlocked theme active and every other one inactive,
// preserving the at-most-one-active invariant in a single transaction.
func (s *BadgeService) ActivateTheme(supporterID, themeID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var unlock models.ThemeUnlock
		if err := tx.Where("supporter_id = ? AND theme_id = ?", supporterID, themeID).
			First(&unlock).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("theme %s not unlocked for %s: %w", themeID, supporterID, ErrNotFound)
			}
			return err
		}

		if err := tx.Model(&models.ThemeUnlock{}).
			Where("supporter_id = ? AND is_active = ?", supporterID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.ThemeUnlock{}).
			Where("id = ?", unlock.ID).
			Update("is_active", true).Error
	})
}
