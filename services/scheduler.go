// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"team-engagement-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

const (
	// AutoCreateLead: sessions are created once the game is this close.
	AutoCreateLead = 15 * time.Minute
	// AutoStartLead: scheduled sessions go live this far before kickoff.
	AutoStartLead = 15 * time.Minute
	// AutoEndGrace: live sessions are closed this long after the effective end.
	AutoEndGrace = 30 * time.Minute
)

// LifecycleScheduler sweeps every team's game calendar and drives the session
// state machine: auto-create, auto-start, auto-end. Each check is idempotent
// and safe to re-run concurrently; the state machine's CAS transitions are
// the sole correctness guard.
type LifecycleScheduler struct {
	DB       *gorm.DB
	Sessions *SessionService
	Notifier *NotificationService
	Clock    clockwork.Clock

	sched gocron.Scheduler
}

func NewLifecycleScheduler(db *gorm.DB, sessions *SessionService, notifier *NotificationService, clock clockwork.Clock) *LifecycleScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LifecycleScheduler{DB: db, Sessions: sessions, Notifier: notifier, Clock: clock}
}

// Start runs the sweep every minute in the background. Sweep stays exported
// so request handlers can also trigger it on demand; worst-case staleness of
// auto-transitions is one timer interval.
func (s *LifecycleScheduler) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return err
	}
	s.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if err := s.Sweep(); err != nil {
				log.Printf("[Scheduler] Sweep error: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Println("⏰ Lifecycle scheduler running (sweep every 1m)")
	return nil
}

// Stop shuts the timer down.
func (s *LifecycleScheduler) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("[Scheduler] Shutdown error: %v", err)
		}
	}
}

// Sweep runs the three lifecycle checks once. Starts run before creates, so
// a session minted in this sweep goes live on a later sweep, never in the
// same pass it was created.
func (s *LifecycleScheduler) Sweep() error {
	now := s.Clock.Now()

	if err := s.autoStart(now); err != nil {
		return err
	}
	if err := s.autoCreate(now); err != nil {
		return err
	}
	return s.autoEnd(now)
}

// autoCreate mints scheduled sessions for game events starting within
// AutoCreateLead that have none yet, and fires the pre-game reminder.
func (s *LifecycleScheduler) autoCreate(now time.Time) error {
	var events []models.TeamEvent
	err := s.DB.Where("category = ? AND start_time > ? AND start_time <= ?",
		models.EventCategoryGame, now, now.Add(AutoCreateLead)).
		Find(&events).Error
	if err != nil {
		return err
	}

	for i := range events {
		event := events[i]

		var existing int64
		if err := s.DB.Model(&models.LiveSession{}).
			Where("event_id = ?", event.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}

		session, err := s.Sessions.CreateForEvent(event.ID)
		if err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue // another sweep got there first
			}
			log.Printf("[Scheduler] Failed to create session for event %s: %v", event.ID, err)
			continue
		}
		log.Printf("✅ Auto-created session %s for event %s", session.ID, event.ID)

		if s.Notifier != nil {
			go s.Notifier.NotifyPreGameReminder(&event, session)
		}
	}
	return nil
}

// autoStart flips scheduled sessions live once now ≥ scheduledStart − lead,
// firing the same notification path as a manual start.
func (s *LifecycleScheduler) autoStart(now time.Time) error {
	var sessions []models.LiveSession
	err := s.DB.Where("status = ? AND scheduled_start <= ?",
		models.SessionStatusScheduled, now.Add(AutoStartLead)).
		Find(&sessions).Error
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if _, err := s.Sessions.Start(session.ID, "scheduler"); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue // concurrent sweep already started it
			}
			log.Printf("[Scheduler] Failed to auto-start session %s: %v", session.ID, err)
			continue
		}
		log.Printf("✅ Auto-started session %s", session.ID)
	}
	return nil
}

// autoEnd closes live sessions once now ≥ effective end + grace. The
// effective end honors supporter extensions, so the filter happens in Go.
func (s *LifecycleScheduler) autoEnd(now time.Time) error {
	var sessions []models.LiveSession
	err := s.DB.Where("status = ?", models.SessionStatusLive).Find(&sessions).Error
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if now.Before(session.EffectiveEnd().Add(AutoEndGrace)) {
			continue
		}
		if _, err := s.Sessions.End(session.ID, "scheduler"); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			log.Printf("[Scheduler] Failed to auto-end session %s: %v", session.ID, err)
			continue
		}
		log.Printf("✅ Auto-ended session %s", session.ID)
	}
	return nil
}
