package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"team-engagement-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// DirectMessageDelay is how long direct-message dispatch waits before the
// presence check runs. A recipient who opens the conversation inside this
// window never gets a redundant notification for a message they are already
// reading. Deliberate UX trade-off, not a retry mechanism.
const DirectMessageDelay = 5 * time.Second

// TokenRegistry is the push-token store contract. The dispatcher never owns
// token storage; it only reads tokens and reports invalid ones for pruning.
type TokenRegistry interface {
	TokensForUser(userID string) ([]string, error)
	DeleteToken(token string) error
}

// GormTokenRegistry backs the registry with the local device_tokens table.
type GormTokenRegistry struct {
	DB *gorm.DB
}

func NewGormTokenRegistry(db *gorm.DB) *GormTokenRegistry {
	return &GormTokenRegistry{DB: db}
}

func (r *GormTokenRegistry) TokensForUser(userID string) ([]string, error) {
	var rows []models.DeviceToken
	if err := r.DB.Where("external_user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.Token)
	}
	return tokens, nil
}

func (r *GormTokenRegistry) DeleteToken(token string) error {
	return r.DB.Where("token = ?", token).Delete(&models.DeviceToken{}).Error
}

// Notification is one dispatch request. SenderID identifies the conversation
// partner for presence suppression on direct messages.
type Notification struct {
	RecipientID string
	TeamID      string
	Category    string
	Title       string
	Body        string
	Link        string
	Data        map[string]string
	SenderID    string
	EmailFields map[string]string
}

// NotificationService is the presence-aware, multi-channel dispatcher shared
// by chat messages, session starts, badge unlocks, and pre-game reminders.
// Delivery failures are logged and swallowed here: notification loss must
// never fail the triggering business operation.
type NotificationService struct {
	DB       *gorm.DB
	Presence *PresenceService
	Push     PushSender
	Email    EmailSender
	Tokens   TokenRegistry
	Clock    clockwork.Clock

	sched gocron.Scheduler
}

func NewNotificationService(db *gorm.DB, presence *PresenceService, push PushSender, email EmailSender, tokens TokenRegistry, clock clockwork.Clock) (*NotificationService, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, err
	}
	sched.Start()
	return &NotificationService{
		DB:       db,
		Presence: presence,
		Push:     push,
		Email:    email,
		Tokens:   tokens,
		Clock:    clock,
		sched:    sched,
	}, nil
}

// Shutdown stops the delayed-dispatch scheduler.
func (s *NotificationService) Shutdown() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("⚠️ Notification scheduler shutdown: %v", err)
		}
	}
}

// Notify routes one notification. Suppressible categories (direct messages)
// are deferred by DirectMessageDelay so presence is checked at send time;
// everything else delivers immediately.
func (s *NotificationService) Notify(n Notification) {
	if n.Category == models.NotificationCategoryDirectMessage {
		runAt := s.Clock.Now().Add(DirectMessageDelay)
		_, err := s.sched.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(runAt)),
			gocron.NewTask(s.deliver, n),
		)
		if err != nil {
			log.Printf("⚠️ Failed to schedule delayed dispatch for %s, delivering now: %v", n.RecipientID, err)
			s.deliver(n)
		}
		return
	}
	s.deliver(n)
}

// deliver runs the channel-selection chain: presence suppression, then push
// to every registered token, then a single fallback email, else drop.
func (s *NotificationService) deliver(n Notification) {
	if n.Category == models.NotificationCategoryDirectMessage &&
		s.Presence != nil &&
		s.Presence.IsViewingConversation(n.RecipientID, n.TeamID, n.SenderID) {
		log.Printf("🤫 Suppressed %s notification for %s — already viewing conversation with %s",
			n.Category, n.RecipientID, n.SenderID)
		return
	}

	prefs := s.preferencesFor(n.RecipientID)

	if prefs.PushWanted(n.Category) && s.Push != nil && s.Tokens != nil {
		tokens, err := s.Tokens.TokensForUser(n.RecipientID)
		if err != nil {
			log.Printf("⚠️ Token lookup failed for %s: %v", n.RecipientID, err)
		} else if len(tokens) > 0 {
			res, err := s.Push.SendPush(tokens, n.Title, n.Body, n.Data, n.Link)
			if err == nil {
				s.pruneInvalidTokens(res.InvalidTokens)
				if res.SuccessCount > 0 {
					return
				}
				log.Printf("⚠️ Push delivered to 0 of %d tokens for %s, falling back to email",
					len(tokens), n.RecipientID)
			} else {
				log.Printf("⚠️ Push delivery failed for %s, falling back to email: %v", n.RecipientID, err)
			}
		}
	}

	if prefs.EmailWanted(n.Category) && s.Email != nil {
		email := s.emailForUser(n.RecipientID, n.TeamID)
		if email != "" {
			if err := s.Email.SendTemplate(email, n.Category, n.EmailFields); err != nil {
				log.Printf("❌ Email delivery failed for %s (%s): %v", n.RecipientID, n.Category, err)
				return
			}
			return
		}
	}

	// Neither channel viable: dropped by design, this is not a durable queue.
	log.Printf("🗑️ Dropped %s notification for %s — no viable channel", n.Category, n.RecipientID)
}

func (s *NotificationService) pruneInvalidTokens(tokens []string) {
	for _, token := range tokens {
		if err := s.Tokens.DeleteToken(token); err != nil {
			log.Printf("⚠️ Failed to prune invalid push token: %v", err)
		}
	}
}

// preferencesFor loads the recipient's channel toggles; a missing row means
// everything on.
func (s *NotificationService) preferencesFor(userID string) models.NotificationPreferences {
	var prefs models.NotificationPreferences
	err := s.DB.Where("external_user_id = ?", userID).First(&prefs).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Preference lookup failed for %s, using defaults: %v", userID, err)
		}
		return models.DefaultNotificationPreferences(userID)
	}
	return prefs
}

func (s *NotificationService) emailForUser(userID, teamID string) string {
	q := s.DB.Where("external_user_id = ?", userID)
	if teamID != "" {
		q = q.Where("team_id = ?", teamID)
	}
	var member models.TeamMember
	if err := q.First(&member).Error; err != nil {
		return ""
	}
	return member.Email
}

// NotifySessionStarted fans out "we're live" to every supporter of the team,
// each personalized with the athletes they follow.
func (s *NotificationService) NotifySessionStarted(session *models.LiveSession) {
	supporters, err := s.teamSupporters(session.TeamID)
	if err != nil {
		log.Printf("⚠️ Session-started fan-out aborted for %s: %v", session.ID, err)
		return
	}
	teamName := s.teamName(session.TeamID)
	link := fmt.Sprintf("/teams/%s/sessions/%s", session.TeamID, session.ID)

	for _, supporter := range supporters {
		athleteLine := s.followedAthleteLine(supporter.ExternalUserID, session.TeamID)
		body := fmt.Sprintf("%s is live — send your taps!", teamName)
		if athleteLine != "" {
			body = fmt.Sprintf("%s is live — cheer on %s!", teamName, athleteLine)
		}
		s.Notify(Notification{
			RecipientID: supporter.ExternalUserID,
			TeamID:      session.TeamID,
			Category:    models.NotificationCategorySessionStarted,
			Title:       "Game day!",
			Body:        body,
			Link:        link,
			Data:        map[string]string{"session_id": session.ID, "team_id": session.TeamID},
			EmailFields: map[string]string{
				"team_name":    teamName,
				"athlete_line": athleteLine,
				"link":         link,
			},
		})
	}
	log.Printf("📣 Session-started fan-out for %s reached %d supporters", session.ID, len(supporters))
}

// NotifyPreGameReminder fans out the "starts soon" nudge when the scheduler
// auto-creates a session ahead of kickoff.
func (s *NotificationService) NotifyPreGameReminder(event *models.TeamEvent, session *models.LiveSession) {
	supporters, err := s.teamSupporters(event.TeamID)
	if err != nil {
		log.Printf("⚠️ Pre-game fan-out aborted for event %s: %v", event.ID, err)
		return
	}
	teamName := s.teamName(event.TeamID)
	link := fmt.Sprintf("/teams/%s/sessions/%s", event.TeamID, session.ID)

	for _, supporter := range supporters {
		s.Notify(Notification{
			RecipientID: supporter.ExternalUserID,
			TeamID:      event.TeamID,
			Category:    models.NotificationCategoryPreGameReminder,
			Title:       fmt.Sprintf("%s plays soon", teamName),
			Body:        fmt.Sprintf("%s starts at %s", event.Title, event.StartTime.Format("3:04 PM")),
			Link:        link,
			Data:        map[string]string{"session_id": session.ID, "event_id": event.ID},
			EmailFields: map[string]string{
				"team_name":   teamName,
				"event_title": event.Title,
				"start_time":  event.StartTime.Format(time.RFC1123),
				"link":        link,
			},
		})
	}
}

// NotifyBadgesAwarded celebrates freshly unlocked badges with the supporter.
func (s *NotificationService) NotifyBadgesAwarded(supporterID, teamID string, defs []models.BadgeDefinition) {
	link := fmt.Sprintf("/teams/%s/badges", teamID)
	for _, def := range defs {
		s.Notify(Notification{
			RecipientID: supporterID,
			TeamID:      teamID,
			Category:    models.NotificationCategoryHype,
			Title:       fmt.Sprintf("You earned %s!", def.Name),
			Body:        def.Description,
			Link:        link,
			Data:        map[string]string{"badge_code": def.Code, "theme_id": def.ThemeID},
			EmailFields: map[string]string{"badge_name": def.Name, "link": link},
		})
	}
}

func (s *NotificationService) teamSupporters(teamID string) ([]models.TeamMember, error) {
	var supporters []models.TeamMember
	err := s.DB.Where("team_id = ? AND role = ?", teamID, models.MemberRoleSupporter).
		Find(&supporters).Error
	return supporters, err
}

func (s *NotificationService) teamName(teamID string) string {
	var team models.Team
	if err := s.DB.Where("id = ?", teamID).First(&team).Error; err != nil {
		return "Your team"
	}
	return team.Name
}

// followedAthleteLine renders "A, B and C" for the athletes the supporter
// follows on this team; empty when they follow nobody.
func (s *NotificationService) followedAthleteLine(supporterID, teamID string) string {
	var names []string
	err := s.DB.Model(&models.SupporterFollow{}).
		Select("team_members.name").
		Joins("JOIN team_members ON team_members.external_user_id = supporter_follows.athlete_id AND team_members.team_id = supporter_follows.team_id").
		Where("supporter_follows.supporter_id = ? AND supporter_follows.team_id = ?", supporterID, teamID).
		Scan(&names).Error
	if err != nil || len(names) == 0 {
		return ""
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
