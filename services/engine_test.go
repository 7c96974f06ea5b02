package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huntparty/models"
	"huntparty/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// region Fakes

type publishedCycle struct {
	PartyID uint
	Events  []models.ActivityEvent
	// Totals seen by the publisher, to check it runs after commit
	Totals map[uint]int
}

type recordingPublisher struct {
	mu     sync.Mutex
	st     store.Store
	cycles []publishedCycle
}

func (p *recordingPublisher) PublishCycle(ctx context.Context, partyID uint, events []models.ActivityEvent) {
	cycle := publishedCycle{PartyID: partyID, Events: events, Totals: map[uint]int{}}
	if p.st != nil {
		board, _ := NewLeaderboardCalculator(p.st).Compute(ctx, partyID)
		for _, entry := range board {
			cycle.Totals[entry.UserID] = entry.TotalPoints
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = append(p.cycles, cycle)
}

func (p *recordingPublisher) Cycles() []publishedCycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedCycle(nil), p.cycles...)
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	events []models.ActivityEvent
	ctxErr []error
	err    error
	// block, when set, holds every Announce until it is closed
	block chan struct{}
}

func (a *recordingAnnouncer) Announce(ctx context.Context, event models.ActivityEvent) error {
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	a.ctxErr = append(a.ctxErr, ctx.Err())
	return a.err
}

func (a *recordingAnnouncer) Events() []models.ActivityEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ActivityEvent(nil), a.events...)
}

// endregion

// region Helpers

type engineFixture struct {
	st        *store.MemoryStore
	engine    *Engine
	publisher *recordingPublisher
	announcer *recordingAnnouncer
	party     *models.Party
	users     []*models.User
}

func newEngineFixture(t *testing.T, members int) *engineFixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	f := &engineFixture{
		st:        st,
		publisher: &recordingPublisher{st: st},
		announcer: &recordingAnnouncer{},
	}
	f.engine = NewEngine(st, EngineOptions{Publisher: f.publisher, Announcer: f.announcer, Timeout: time.Second})

	for i := 0; i < members; i++ {
		u := &models.User{Username: string(rune('a' + i))}
		require.NoError(t, st.CreateUser(ctx, u))
		f.users = append(f.users, u)
	}
	if members > 0 {
		f.party = &models.Party{Name: "hunters", InviteCode: "HUNT01", CreatorID: f.users[0].ID, IsActive: true}
		require.NoError(t, st.CreateParty(ctx, f.party))
		for i, u := range f.users {
			require.NoError(t, st.SaveMembership(ctx, &models.Membership{
				PartyID: f.party.ID, UserID: u.ID, IsActive: true,
				JoinedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
			}))
		}
	}
	return f
}

func (f *engineFixture) total(t *testing.T, userID uint) int {
	t.Helper()
	u, err := f.st.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.TotalPoints
}

func eventTypes(events []models.ActivityEvent) []models.EventType {
	types := make([]models.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

// endregion

func TestLogApplication(t *testing.T) {
	f := newEngineFixture(t, 2)
	user := f.users[0]
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	out, err := f.engine.LogApplication(context.Background(), user.ID, " Acme ", "Engineer", at)
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalPoints)
	assert.Equal(t, f.party.ID, out.PartyID)
	require.NotNil(t, out.Application)
	assert.Equal(t, "Acme", out.Application.Company)
	assert.Equal(t, models.StatusApplied, out.Application.Status)

	require.Len(t, out.Events, 1)
	assert.Equal(t, models.EventApplicationLogged, out.Events[0].Type)
	assert.Equal(t, 1, out.Events[0].PointsDelta)
	assert.Equal(t, "a", out.Events[0].DisplayName)

	assert.Equal(t, 1, out.Streak.Current)

	cycles := f.publisher.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, f.party.ID, cycles[0].PartyID)
	assert.Equal(t, 1, cycles[0].Totals[user.ID], "publisher must observe the committed total")
}

func TestLogApplication_Validation(t *testing.T) {
	f := newEngineFixture(t, 1)
	_, err := f.engine.LogApplication(context.Background(), f.users[0].ID, "  ", "", time.Now())
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, f.total(t, f.users[0].ID))
	assert.Empty(t, f.publisher.Cycles())
}

func TestLogApplication_UnknownUser(t *testing.T) {
	f := newEngineFixture(t, 1)
	_, err := f.engine.LogApplication(context.Background(), 404, "Acme", "", time.Now())
	assert.True(t, IsNotFound(err))
}

func TestLogApplication_OutsidePartyStillScores(t *testing.T) {
	f := newEngineFixture(t, 0)
	ctx := context.Background()
	loner := &models.User{Username: "loner"}
	require.NoError(t, f.st.CreateUser(ctx, loner))

	out, err := f.engine.LogApplication(ctx, loner.ID, "Acme", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalPoints)
	assert.Zero(t, out.PartyID)
	assert.Empty(t, out.Events)
	assert.Equal(t, 0, f.st.EventCount())
	assert.Empty(t, f.publisher.Cycles())
}

func TestUpdateApplicationStatus_RejectedAfterInterview(t *testing.T) {
	f := newEngineFixture(t, 2)
	ctx := context.Background()
	user := f.users[0]
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	logged, err := f.engine.LogApplication(ctx, user.ID, "Acme", "SRE", at)
	require.NoError(t, err)
	appID := logged.Application.ID

	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusInterview, nil, at)
	require.NoError(t, err)
	before := f.total(t, user.ID)
	eventsBefore := f.st.EventCount()

	out, err := f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusRejected, nil, at)
	require.NoError(t, err)
	assert.Equal(t, before+5, f.total(t, user.ID))
	assert.Equal(t, eventsBefore+1, f.st.EventCount())
	require.Len(t, out.Events, 1)
	assert.Equal(t, models.EventRejected, out.Events[0].Type)
	assert.Equal(t, 5, out.Events[0].PointsDelta)
	assert.Equal(t, "interview", out.Events[0].Details["from"])
}

func TestUpdateApplicationStatus_Validation(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]
	logged, err := f.engine.LogApplication(ctx, user.ID, "Acme", "", time.Now())
	require.NoError(t, err)
	appID := logged.Application.ID

	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, "ghosted", nil, time.Now())
	assert.True(t, IsValidation(err))

	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusApplied, nil, time.Now())
	assert.True(t, IsValidation(err))

	round := 2
	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusScreening, &round, time.Now())
	assert.True(t, IsValidation(err))

	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusInterview, &round, time.Now())
	require.NoError(t, err)
	_, err = f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusInterview, &round, time.Now())
	assert.True(t, IsValidation(err), "same status and round is a no-op")

	next := 3
	out, err := f.engine.UpdateApplicationStatus(ctx, user.ID, appID, models.StatusInterview, &next, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, out.PointsDelta)
}

func TestUpdateApplicationStatus_OtherUsersApplication(t *testing.T) {
	f := newEngineFixture(t, 2)
	ctx := context.Background()
	logged, err := f.engine.LogApplication(ctx, f.users[0].ID, "Acme", "", time.Now())
	require.NoError(t, err)

	_, err = f.engine.UpdateApplicationStatus(ctx, f.users[1].ID, logged.Application.ID, models.StatusOffer, nil, time.Now())
	assert.True(t, IsNotFound(err))
}

func TestUpdateApplicationStatus_OfferMilestonesOnce(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	first, err := f.engine.LogApplication(ctx, user.ID, "Acme", "", at)
	require.NoError(t, err)
	second, err := f.engine.LogApplication(ctx, user.ID, "Globex", "", at)
	require.NoError(t, err)

	out, err := f.engine.UpdateApplicationStatus(ctx, user.ID, first.Application.ID, models.StatusOffer, nil, at)
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventOfferReceived, models.EventMilestoneHit}, eventTypes(out.Events))
	assert.Equal(t, "first-offer", *out.Events[1].MilestoneLabel)
	assert.Equal(t, 0, out.Events[1].PointsDelta)

	// second offer crosses 100 points but does not repeat first-offer
	out, err = f.engine.UpdateApplicationStatus(ctx, user.ID, second.Application.ID, models.StatusOffer, nil, at)
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventOfferReceived, models.EventMilestoneHit}, eventTypes(out.Events))
	assert.Equal(t, "points-100", *out.Events[1].MilestoneLabel)

	// both offers and both milestones are announced
	f.engine.Wait()
	assert.Len(t, f.announcer.Events(), 4)
}

func TestPointsMilestoneCrossedOnce(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	logged, err := f.engine.LogApplication(ctx, user.ID, "Acme", "", at)
	require.NoError(t, err)
	_, err = f.engine.AdjustPoints(ctx, user.ID, 60, "backfill")
	require.NoError(t, err)

	out, err := f.engine.UpdateApplicationStatus(ctx, user.ID, logged.Application.ID, models.StatusOffer, nil, at)
	require.NoError(t, err)
	labels := []string{}
	for _, e := range out.Events {
		if e.MilestoneLabel != nil {
			labels = append(labels, *e.MilestoneLabel)
		}
	}
	assert.ElementsMatch(t, []string{"points-100", "first-offer"}, labels)
}

func TestStreakMilestone(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]

	var out *Outcome
	var err error
	for d := 1; d <= 3; d++ {
		out, err = f.engine.LogApplication(ctx, user.ID, "Acme", "", time.Date(2026, 6, d, 9, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, out.Streak.Current)
	require.Len(t, out.Events, 2)
	assert.Equal(t, "streak-3", *out.Events[1].MilestoneLabel)
}

func TestApplicationCountMilestone(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	var out *Outcome
	var err error
	for i := 0; i < 10; i++ {
		out, err = f.engine.LogApplication(ctx, user.ID, "Acme", "", at)
		require.NoError(t, err)
	}
	require.Len(t, out.Events, 2)
	assert.Equal(t, "applications-10", *out.Events[1].MilestoneLabel)
}

func TestAdjustPoints(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()
	user := f.users[0]

	out, err := f.engine.AdjustPoints(ctx, user.ID, -3, "duplicate entry")
	require.NoError(t, err)
	assert.Equal(t, -3, out.TotalPoints)
	require.Len(t, out.Events, 1)
	assert.Equal(t, models.EventStatusUpdated, out.Events[0].Type)
	assert.Equal(t, "duplicate entry", out.Events[0].Details["reason"])
	assert.Equal(t, 0, out.Streak.Current, "corrections are not activity")

	_, err = f.engine.AdjustPoints(ctx, user.ID, 0, "nothing")
	assert.True(t, IsValidation(err))
	_, err = f.engine.AdjustPoints(ctx, user.ID, 5, " ")
	assert.True(t, IsValidation(err))
}

func TestEngine_RetriesConflicts(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.st.IncrementConflicts = 2

	out, err := f.engine.LogApplication(context.Background(), f.users[0].ID, "Acme", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalPoints)
	assert.Equal(t, 1, f.st.EventCount(), "rolled back attempts leave no events")
}

func TestEngine_ConflictSurfacesAfterRetries(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.st.IncrementConflicts = 10

	_, err := f.engine.LogApplication(context.Background(), f.users[0].ID, "Acme", "", time.Now())
	assert.True(t, IsConflict(err))
	assert.Equal(t, 0, f.total(t, f.users[0].ID))
	assert.Equal(t, 0, f.st.EventCount())
	assert.Empty(t, f.publisher.Cycles())
}

func TestEngine_EventFailureRollsBackPoints(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.st.AppendEventErr = errors.New("disk full")

	_, err := f.engine.LogApplication(context.Background(), f.users[0].ID, "Acme", "", time.Now())
	require.Error(t, err)
	assert.Equal(t, 0, f.total(t, f.users[0].ID))
	apps, err := f.st.ListApplications(context.Background(), f.users[0].ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.Empty(t, f.publisher.Cycles())
}

func TestEngine_AnnouncerFailureDoesNotAbort(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.announcer.err = errors.New("discord down")
	ctx := context.Background()

	logged, err := f.engine.LogApplication(ctx, f.users[0].ID, "Acme", "", time.Now())
	require.NoError(t, err)
	_, err = f.engine.UpdateApplicationStatus(ctx, f.users[0].ID, logged.Application.ID, models.StatusOffer, nil, time.Now())
	assert.NoError(t, err)
	f.engine.Wait()
	assert.Len(t, f.announcer.Events(), 2)
}

func TestEngine_AnnouncementsDoNotDelayResponse(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.announcer.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	logged, err := f.engine.LogApplication(ctx, f.users[0].ID, "Acme", "", time.Now())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.UpdateApplicationStatus(ctx, f.users[0].ID, logged.Application.ID, models.StatusOffer, nil, time.Now())
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("status update waited on the announcer")
	}
	assert.Empty(t, f.announcer.Events())

	// the request is over; announcements still go out on a live context
	cancel()
	close(f.announcer.block)
	f.engine.Wait()

	events := f.announcer.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventOfferReceived, events[0].Type)
	f.announcer.mu.Lock()
	defer f.announcer.mu.Unlock()
	for _, err := range f.announcer.ctxErr {
		assert.NoError(t, err)
	}
}

func TestEngine_ConcurrentLedgerNoLostUpdates(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, u := range f.users {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				_, err := f.engine.LogApplication(ctx, userID, "Acme", "", time.Now())
				assert.NoError(t, err)
			}(u.ID)
		}
	}
	wg.Wait()

	for _, u := range f.users {
		assert.Equal(t, 5, f.total(t, u.ID))
	}
	assert.Len(t, f.publisher.Cycles(), 15)
}
