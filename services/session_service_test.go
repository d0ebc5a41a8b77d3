package services

import (
	"testing"
	"time"

	"team-engagement-system/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFixture(t *testing.T) (*SessionService, *models.Team, *models.TeamEvent, *clockwork.FakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClock()
	team := seedTeam(t, db, "2024-2025")
	event := seedEvent(t, db, team.ID, clock.Now().Add(30*time.Minute), clock.Now().Add(2*time.Hour))
	return NewSessionService(db, nil, clock), team, event, clock
}

func TestCreateForEvent(t *testing.T) {
	svc, team, event, _ := newSessionFixture(t)

	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.Equal(t, team.ID, session.TeamID)
	assert.True(t, session.ScheduledStart.Equal(event.StartTime))
	assert.True(t, session.ScheduledEnd.Equal(event.EndTime))
}

func TestCreateForEventRejectsSecondOpenSession(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)

	_, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)

	_, err = svc.CreateForEvent(event.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCreateForEventUnknownEvent(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)

	_, err := svc.CreateForEvent("missing-event")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartFromScheduled(t *testing.T) {
	svc, _, event, clock := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)

	started, err := svc.Start(session.ID, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLive, started.Status)
	assert.Equal(t, "coach-1", started.StartedBy)
	require.NotNil(t, started.StartedAt)
	assert.True(t, started.StartedAt.Equal(clock.Now()))
}

func TestStartWhileLiveRejected(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)

	_, err = svc.Start(session.ID, "coach-2")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartAfterEndedMintsFreshSession(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)
	_, err = svc.End(session.ID, "coach-1")
	require.NoError(t, err)

	fresh, err := svc.Start(session.ID, "coach-1")
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, fresh.ID, "restart must mint a new session, never revive the ended one")
	assert.Equal(t, models.SessionStatusLive, fresh.Status)
	assert.Equal(t, session.EventID, fresh.EventID)

	// The original stays ended.
	original, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, original.Status)
}

func TestRestartKeepsSingleOpenSessionPerEvent(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)
	_, err = svc.End(session.ID, "coach-1")
	require.NoError(t, err)

	fresh, err := svc.Start(session.ID, "coach-1")
	require.NoError(t, err)

	// Starting the old ended id again while the restarted session is still
	// live must lose to the open-session guard.
	_, err = svc.Start(session.ID, "coach-2")
	assert.ErrorIs(t, err, ErrInvalidState)

	var open int64
	require.NoError(t, svc.DB.Model(&models.LiveSession{}).
		Where("event_id = ? AND status <> ?", event.ID, models.SessionStatusEnded).
		Count(&open).Error)
	assert.Equal(t, int64(1), open, "at most one non-ended session per event")

	// Once the restarted session ends too, the event can re-open again.
	_, err = svc.End(fresh.ID, "coach-1")
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)
}

func TestEndOnlyFromLive(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)

	_, err = svc.End(session.ID, "coach-1")
	assert.ErrorIs(t, err, ErrInvalidState, "ending a scheduled session must fail")

	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)

	ended, err := svc.End(session.ID, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	assert.NotNil(t, ended.EndedAt)

	_, err = svc.End(session.ID, "coach-1")
	assert.ErrorIs(t, err, ErrInvalidState, "double end must fail")
}

func TestExtendAccumulates(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)

	extended, err := svc.Extend(session.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, extended.ExtendedUntil)
	assert.True(t, extended.ExtendedUntil.Equal(event.EndTime.Add(10*time.Minute)))

	extended, err = svc.Extend(session.ID, 10)
	require.NoError(t, err)
	assert.True(t, extended.ExtendedUntil.Equal(event.EndTime.Add(20*time.Minute)),
		"second extension stacks on the first, not on scheduled end")
	assert.True(t, extended.EffectiveEnd().Equal(event.EndTime.Add(20*time.Minute)))
}

func TestExtendStacksOnConcurrentlyMovedEnd(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)
	_, err = svc.Start(session.ID, "coach-1")
	require.NoError(t, err)

	// Another caller's extension lands between this caller's read and write;
	// the CAS retry must stack on it instead of overwriting it.
	moved := event.EndTime.Add(30 * time.Minute)
	require.NoError(t, svc.DB.Model(&models.LiveSession{}).
		Where("id = ?", session.ID).
		Update("extended_until", moved).Error)

	extended, err := svc.Extend(session.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, extended.ExtendedUntil)
	assert.True(t, extended.ExtendedUntil.Equal(moved.Add(10*time.Minute)),
		"the earlier extension must not be lost")
}

func TestExtendRequiresLive(t *testing.T) {
	svc, _, event, _ := newSessionFixture(t)
	session, err := svc.CreateForEvent(event.ID)
	require.NoError(t, err)

	_, err = svc.Extend(session.ID, 10)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Extend("missing-session", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
