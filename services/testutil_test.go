package services

import (
	"fmt"
	"testing"
	"time"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Team{},
		&models.TeamEvent{},
		&models.TeamMember{},
		&models.SupporterFollow{},
		&models.Game{},
		&models.DeviceToken{},
		&models.LiveSession{},
		&models.TapEvent{},
		&models.TapTotal{},
		&models.SeasonTapArchive{},
		&models.Shoutout{},
		&models.BadgeDefinition{},
		&models.SupporterBadge{},
		&models.ThemeUnlock{},
		&models.ChatPresence{},
		&models.NotificationPreferences{},
	))
	return db
}

func seedTeam(t *testing.T, db *gorm.DB, season string) *models.Team {
	t.Helper()
	team := models.Team{ID: uuid.NewString(), Name: "Ridgeview Hawks", CurrentSeason: season}
	require.NoError(t, db.Create(&team).Error)
	return &team
}

func seedEvent(t *testing.T, db *gorm.DB, teamID string, start, end time.Time) *models.TeamEvent {
	t.Helper()
	event := models.TeamEvent{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Category:  models.EventCategoryGame,
		Title:     "vs. Lakeside",
		StartTime: start,
		EndTime:   end,
	}
	require.NoError(t, db.Create(&event).Error)
	return &event
}

func seedLiveSession(t *testing.T, db *gorm.DB, teamID, eventID string, start, end time.Time) *models.LiveSession {
	t.Helper()
	now := start
	session := models.LiveSession{
		ID:             uuid.NewString(),
		EventID:        eventID,
		TeamID:         teamID,
		Status:         models.SessionStatusLive,
		ScheduledStart: start,
		ScheduledEnd:   end,
		StartedAt:      &now,
		StartedBy:      "coach-1",
	}
	require.NoError(t, db.Create(&session).Error)
	return &session
}
