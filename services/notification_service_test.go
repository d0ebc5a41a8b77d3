package services

import (
	"sync"
	"testing"
	"time"

	"team-engagement-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePushSender struct {
	mu     sync.Mutex
	calls  [][]string
	result *PushResult
	err    error
}

func (f *fakePushSender) SendPush(tokens []string, title, body string, data map[string]string, link string) (*PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tokens)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &PushResult{SuccessCount: len(tokens)}, nil
}

func (f *fakePushSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sentEmail struct {
	to       string
	template string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmailSender) SendTemplate(to, template string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, template: template})
	return f.err
}

func (f *fakeEmailSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type dispatchFixture struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	push     *fakePushSender
	email    *fakeEmailSender
	presence *PresenceService
	svc      *NotificationService
}

// newDispatchFixture builds a dispatcher without the delayed-job scheduler so
// deliver runs synchronously and deterministically.
func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClock()
	push := &fakePushSender{}
	email := &fakeEmailSender{}
	presence := NewPresenceService(db, clock)
	svc := &NotificationService{
		DB:       db,
		Presence: presence,
		Push:     push,
		Email:    email,
		Tokens:   NewGormTokenRegistry(db),
		Clock:    clock,
	}
	return &dispatchFixture{db: db, clock: clock, push: push, email: email, presence: presence, svc: svc}
}

func registerToken(t *testing.T, db *gorm.DB, userID, token string) {
	t.Helper()
	require.NoError(t, db.Create(&models.DeviceToken{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Token:          token,
		Platform:       "ios",
	}).Error)
}

func addMember(t *testing.T, db *gorm.DB, userID, teamID, name, email, role string) {
	t.Helper()
	require.NoError(t, db.Create(&models.TeamMember{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		TeamID:         teamID,
		Name:           name,
		Email:          email,
		Role:           role,
	}).Error)
}

func directMessage(recipient, sender string) Notification {
	return Notification{
		RecipientID: recipient,
		TeamID:      "team-1",
		Category:    models.NotificationCategoryDirectMessage,
		Title:       "New message",
		Body:        "hey",
		SenderID:    sender,
	}
}

func TestDeliverPushFirst(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-1")
	addMember(t, f.db, "user-1", "team-1", "Riley", "riley@example.com", models.MemberRoleSupporter)

	f.svc.deliver(directMessage("user-1", "user-2"))

	assert.Equal(t, 1, f.push.callCount())
	assert.Zero(t, f.email.sentCount(), "successful push never also emails")
}

func TestDeliverFallsBackToEmailWhenNoTokens(t *testing.T) {
	f := newDispatchFixture(t)
	addMember(t, f.db, "user-1", "team-1", "Riley", "riley@example.com", models.MemberRoleSupporter)

	f.svc.deliver(directMessage("user-1", "user-2"))

	assert.Zero(t, f.push.callCount())
	require.Equal(t, 1, f.email.sentCount())
	assert.Equal(t, "riley@example.com", f.email.sent[0].to)
	assert.Equal(t, models.NotificationCategoryDirectMessage, f.email.sent[0].template)
}

func TestDeliverFallsBackToEmailOnZeroSuccess(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-1")
	addMember(t, f.db, "user-1", "team-1", "Riley", "riley@example.com", models.MemberRoleSupporter)
	f.push.result = &PushResult{SuccessCount: 0, FailureCount: 1}

	f.svc.deliver(directMessage("user-1", "user-2"))

	assert.Equal(t, 1, f.push.callCount())
	assert.Equal(t, 1, f.email.sentCount(), "a push that reached nobody falls through to email")
}

func TestDeliverDropsWithoutViableChannel(t *testing.T) {
	f := newDispatchFixture(t)
	// No tokens, no roster row, so no email address either.

	f.svc.deliver(directMessage("user-1", "user-2"))

	assert.Zero(t, f.push.callCount())
	assert.Zero(t, f.email.sentCount())
}

func TestDeliverPrunesInvalidTokens(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-good")
	registerToken(t, f.db, "user-1", "tok-dead")
	f.push.result = &PushResult{SuccessCount: 1, FailureCount: 1, InvalidTokens: []string{"tok-dead"}}

	f.svc.deliver(directMessage("user-1", "user-2"))

	var remaining []models.DeviceToken
	require.NoError(t, f.db.Where("external_user_id = ?", "user-1").Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "tok-good", remaining[0].Token)
}

func TestDeliverSuppressedWhileViewingConversation(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-1")
	require.NoError(t, f.presence.Heartbeat("user-1", "team-1", "user-2"))

	f.svc.deliver(directMessage("user-1", "user-2"))
	assert.Zero(t, f.push.callCount(), "recipient is reading the conversation already")

	// A heartbeat for a different partner does not suppress.
	f.svc.deliver(directMessage("user-1", "user-3"))
	assert.Equal(t, 1, f.push.callCount())

	// A stale heartbeat does not suppress.
	f.clock.Advance(models.PresenceTTL + time.Second)
	f.svc.deliver(directMessage("user-1", "user-2"))
	assert.Equal(t, 2, f.push.callCount())
}

func TestDeliverPresenceNeverSuppressesOtherCategories(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-1")
	require.NoError(t, f.presence.Heartbeat("user-1", "team-1", "user-2"))

	f.svc.deliver(Notification{
		RecipientID: "user-1",
		TeamID:      "team-1",
		Category:    models.NotificationCategorySessionStarted,
		Title:       "Game day!",
	})
	assert.Equal(t, 1, f.push.callCount())
}

func TestDeliverHonorsChannelPreferences(t *testing.T) {
	f := newDispatchFixture(t)
	registerToken(t, f.db, "user-1", "tok-1")
	addMember(t, f.db, "user-1", "team-1", "Riley", "riley@example.com", models.MemberRoleSupporter)

	prefs := models.DefaultNotificationPreferences("user-1")
	prefs.ID = uuid.NewString()
	prefs.PushOnMessage = false
	require.NoError(t, f.db.Create(&prefs).Error)

	f.svc.deliver(directMessage("user-1", "user-2"))

	assert.Zero(t, f.push.callCount(), "push disabled by preference")
	assert.Equal(t, 1, f.email.sentCount())
}

func TestPreferenceOptOutsPersistOnInsert(t *testing.T) {
	db := newTestDB(t)

	prefs := models.DefaultNotificationPreferences("user-1")
	prefs.ID = uuid.NewString()
	prefs.PushOnMessage = false
	prefs.EmailOnHype = false
	require.NoError(t, db.Create(&prefs).Error)

	var got models.NotificationPreferences
	require.NoError(t, db.Where("external_user_id = ?", "user-1").First(&got).Error)
	assert.False(t, got.PushOnMessage, "a first-write opt-out must survive the insert")
	assert.False(t, got.EmailOnHype)
	assert.True(t, got.EmailOnMessage)
	assert.True(t, got.PushOnEvent)
}

func TestNotifyDelaysDirectMessages(t *testing.T) {
	db := newTestDB(t)
	clock := clockwork.NewFakeClock()
	push := &fakePushSender{}
	presence := NewPresenceService(db, clock)
	svc, err := NewNotificationService(db, presence, push, nil, NewGormTokenRegistry(db), clock)
	require.NoError(t, err)
	defer svc.Shutdown()

	registerToken(t, db, "user-1", "tok-1")

	svc.Notify(directMessage("user-1", "user-2"))
	assert.Zero(t, push.callCount(), "direct messages never dispatch immediately")

	// Give the scheduler a beat to arm the timer, then jump past the delay.
	time.Sleep(50 * time.Millisecond)
	clock.Advance(DirectMessageDelay + time.Second)

	assert.Eventually(t, func() bool { return push.callCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestNotifySessionStartedFansOutToSupporters(t *testing.T) {
	f := newDispatchFixture(t)

	team := seedTeam(t, f.db, "2024-2025")
	addMember(t, f.db, "supporter-1", team.ID, "Riley", "riley@example.com", models.MemberRoleSupporter)
	addMember(t, f.db, "supporter-2", team.ID, "Sam", "sam@example.com", models.MemberRoleSupporter)
	addMember(t, f.db, "athlete-1", team.ID, "Jordan", "", models.MemberRoleAthlete)
	registerToken(t, f.db, "supporter-1", "tok-1")
	registerToken(t, f.db, "supporter-2", "tok-2")

	event := seedEvent(t, f.db, team.ID, f.clock.Now(), f.clock.Now().Add(2*time.Hour))
	session := seedLiveSession(t, f.db, team.ID, event.ID, f.clock.Now(), f.clock.Now().Add(2*time.Hour))

	f.svc.NotifySessionStarted(session)

	assert.Equal(t, 2, f.push.callCount(), "athletes and coaches are not in the fan-out")
}

func TestFollowedAthleteLine(t *testing.T) {
	f := newDispatchFixture(t)

	addMember(t, f.db, "athlete-1", "team-1", "Jordan", "", models.MemberRoleAthlete)
	addMember(t, f.db, "athlete-2", "team-1", "Casey", "", models.MemberRoleAthlete)

	assert.Equal(t, "", f.svc.followedAthleteLine("supporter-1", "team-1"))

	require.NoError(t, f.db.Create(&models.SupporterFollow{
		ID: uuid.NewString(), SupporterID: "supporter-1", TeamID: "team-1", AthleteID: "athlete-1",
	}).Error)
	assert.Equal(t, "Jordan", f.svc.followedAthleteLine("supporter-1", "team-1"))

	require.NoError(t, f.db.Create(&models.SupporterFollow{
		ID: uuid.NewString(), SupporterID: "supporter-1", TeamID: "team-1", AthleteID: "athlete-2",
	}).Error)
	line := f.svc.followedAthleteLine("supporter-1", "team-1")
	assert.Contains(t, []string{"Jordan and Casey", "Casey and Jordan"}, line)
}
