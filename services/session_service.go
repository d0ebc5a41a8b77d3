package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// SessionService owns the scheduled → live → ended state machine. Every
// transition is an atomic compare-and-set on status so two concurrent callers
// can never both win; the loser observes the post-transition state.
type SessionService struct {
	DB       *gorm.DB
	Notifier *NotificationService
	Clock    clockwork.Clock
}

func NewSessionService(db *gorm.DB, notifier *NotificationService, clock clockwork.Clock) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{DB: db, Notifier: notifier, Clock: clock}
}

// GetSession loads one session by id.
func (s *SessionService) GetSession(sessionID string) (*models.LiveSession, error) {
	var session models.LiveSession
	if err := s.DB.Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// CreateForEvent creates a scheduled session for a game event, initializing
// the window from the event's calendar times. Fails with ErrInvalidState if a
// non-ended session already exists for the event.
func (s *SessionService) CreateForEvent(eventID string) (*models.LiveSession, error) {
	var event models.TeamEvent
	if err := s.DB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var open int64
	if err := s.DB.Model(&models.LiveSession{}).
		Where("event_id = ? AND status <> ?", eventID, models.SessionStatusEnded).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, fmt.Errorf("event %s already has an open session: %w", eventID, ErrInvalidState)
	}

	session := models.LiveSession{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		TeamID:         event.TeamID,
		Status:         models.SessionStatusScheduled,
		ScheduledStart: event.StartTime,
		ScheduledEnd:   event.EndTime,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}

	log.Printf("📅 Session %s created for event %s (team %s)", session.ID, event.ID, event.TeamID)
	return &session, nil
}

// Start flips a scheduled session live. Starting an already-ended session
// re-opens game day by minting a fresh session for the same event and
// starting that instead (same-day double-headers re-trigger this path).
// Starting a live session is rejected with ErrInvalidState.
func (s *SessionService) Start(sessionID, actorID string) (*models.LiveSession, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusEnded {
		return s.restart(session, actorID)
	}

	now := s.Clock.Now()
	res := s.DB.Model(&models.LiveSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusScheduled).
		Updates(map[string]interface{}{
			"status":     models.SessionStatusLive,
			"started_at": now,
			"started_by": actorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race or already live.
		return nil, fmt.Errorf("session %s is not startable: %w", sessionID, ErrInvalidState)
	}

	started, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	log.Printf("🟢 Session %s started by %s (team %s)", started.ID, actorID, started.TeamID)
	s.fanOutStarted(started)
	return started, nil
}

// restart mints and starts a fresh session for the same event after the
// previous one ended. The insert is guarded on "no non-ended session for the
// event" in the statement itself, so concurrent restarts (or a restart racing
// the scheduler) leave exactly one open session. Logged loudly: product has
// not yet confirmed whether this path is a feature (double-headers) or masks
// duplicate starts.
func (s *SessionService) restart(ended *models.LiveSession, actorID string) (*models.LiveSession, error) {
	now := s.Clock.Now()
	freshID := uuid.NewString()

	res := s.DB.Exec(
		`INSERT INTO live_sessions
			(id, event_id, team_id, status, scheduled_start, scheduled_end, started_at, started_by, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
			SELECT 1 FROM live_sessions
			WHERE event_id = ? AND status <> ? AND deleted_at IS NULL
		 )`,
		freshID, ended.EventID, ended.TeamID, models.SessionStatusLive,
		ended.ScheduledStart, ended.ScheduledEnd, now, actorID, now, now,
		ended.EventID, models.SessionStatusEnded,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("event %s already has an open session: %w", ended.EventID, ErrInvalidState)
	}

	fresh, err := s.GetSession(freshID)
	if err != nil {
		return nil, err
	}

	log.Printf("🔄 Session %s re-opened as %s by %s (event %s)", ended.ID, fresh.ID, actorID, ended.EventID)
	s.fanOutStarted(fresh)
	return fresh, nil
}

// End closes a live session. Only legal from live; no tap or shoutout writes
// are accepted against the session id afterwards.
func (s *SessionService) End(sessionID, actorID string) (*models.LiveSession, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	res := s.DB.Model(&models.LiveSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusLive).
		Updates(map[string]interface{}{
			"status":   models.SessionStatusEnded,
			"ended_at": now,
			"ended_by": actorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("session %s is not live: %w", sessionID, ErrInvalidState)
	}

	log.Printf("⏹️ Session %s ended by %s", sessionID, actorID)
	return s.GetSession(sessionID)
}

// extendRetries bounds the CAS loop in Extend under contention.
const extendRetries = 5

// Extend pushes the effective end forward while live:
// extendedUntil = max(extendedUntil, scheduledEnd) + minutes. Supporters hit
// this via "keep cheering", so it can run repeatedly and concurrently; the
// write is a compare-and-set on the value we read, retried on a lost race, so
// no extension is ever dropped.
func (s *SessionService) Extend(sessionID string, minutes int) (*models.LiveSession, error) {
	for attempt := 0; attempt < extendRetries; attempt++ {
		session, err := s.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		if session.Status != models.SessionStatusLive {
			return nil, fmt.Errorf("session %s is not live: %w", sessionID, ErrInvalidState)
		}

		base := session.ScheduledEnd
		if session.ExtendedUntil != nil && session.ExtendedUntil.After(base) {
			base = *session.ExtendedUntil
		}
		extended := base.Add(time.Duration(minutes) * time.Minute)

		q := s.DB.Model(&models.LiveSession{}).
			Where("id = ? AND status = ?", sessionID, models.SessionStatusLive)
		if session.ExtendedUntil == nil {
			q = q.Where("extended_until IS NULL")
		} else {
			q = q.Where("extended_until = ?", *session.ExtendedUntil)
		}
		res := q.Update("extended_until", extended)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another extension (or an end); re-read and retry.
			continue
		}

		log.Printf("⏩ Session %s extended until %s", sessionID, extended.Format(time.RFC3339))
		return s.GetSession(sessionID)
	}
	return nil, fmt.Errorf("session %s extension contended, retry: %w", sessionID, ErrInvalidState)
}

func (s *SessionService) fanOutStarted(session *models.LiveSession) {
	if s.Notifier == nil {
		return
	}
	go s.Notifier.NotifySessionStarted(session)
}
