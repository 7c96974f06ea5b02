// services/engine.go - Status-transition workflow: ledger, streak, feed, live cycle
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"huntparty/logger"
	"huntparty/models"
	"huntparty/store"
)

// Publisher pushes one live cycle for a party: the new events, then the
// leaderboard and rivalry recomputed after the commit that produced them.
type Publisher interface {
	PublishCycle(ctx context.Context, partyID uint, events []models.ActivityEvent)
}

// Announcer posts notable events outside the app. Failures are logged only.
type Announcer interface {
	Announce(ctx context.Context, event models.ActivityEvent) error
}

type EngineOptions struct {
	Publisher Publisher
	Announcer Announcer
	// Timeout bounds each store transaction. Zero means the caller's context
	// alone decides.
	Timeout time.Duration
}

// Outcome is what a committed workflow changed.
type Outcome struct {
	Application *models.Application    `json:"application,omitempty"`
	Ledger      *LedgerEntry           `json:"-"`
	TotalPoints int                    `json:"total_points"`
	PointsDelta int                    `json:"points_delta"`
	Streak      models.StreakState     `json:"streak"`
	PartyID     uint                   `json:"party_id,omitempty"`
	Events      []models.ActivityEvent `json:"events"`
}

// announceTimeout bounds one batch of outside announcements.
const announceTimeout = 15 * time.Second

type Engine struct {
	store      store.Store
	ledger     *PointsLedger
	publisher  Publisher
	announcer  Announcer
	timeout    time.Duration
	announcing sync.WaitGroup
}

func NewEngine(st store.Store, opts EngineOptions) *Engine {
	return &Engine{
		store:     st,
		ledger:    NewPointsLedger(st),
		publisher: opts.Publisher,
		announcer: opts.Announcer,
		timeout:   opts.Timeout,
	}
}

// workflow is the per-attempt state of one transaction.
type workflow struct {
	tx      store.Store
	ledger  *PointsLedger
	log     *ActivityLog
	user    *models.User
	partyID uint
	inParty bool
	at      time.Time
	out     *Outcome
}

// award commits delta, optionally advances the streak, and records the
// primary event plus any milestones it unlocks.
func (w *workflow) award(ctx context.Context, delta int, primary EventInput, countsAsActivity bool) error {
	entry, err := w.ledger.Apply(ctx, w.user.ID, delta, w.at)
	if err != nil {
		return err
	}
	w.out.Ledger = entry
	w.out.TotalPoints = entry.Total
	w.out.PointsDelta += delta

	var streak StreakResult
	if countsAsActivity {
		streak = AdvanceStreak(w.user.Streak(), w.at)
		if err := w.tx.SaveStreak(ctx, w.user.ID, streak.State, w.at); err != nil {
			return notFound(err, "user", w.user.ID)
		}
		w.out.Streak = streak.State
	} else {
		w.out.Streak = w.user.Streak()
	}

	if !w.inParty {
		return nil
	}

	primary.PointsDelta = delta
	if err := w.record(ctx, primary); err != nil {
		return err
	}

	if label, ok := streakMilestone(streak); ok {
		if err := w.milestone(ctx, label, map[string]interface{}{"streak": streak.State.Current}); err != nil {
			return err
		}
	}
	for _, label := range pointsMilestonesCrossed(entry) {
		if err := w.milestone(ctx, label, map[string]interface{}{"total_points": entry.Total}); err != nil {
			return err
		}
	}
	return nil
}

func (w *workflow) record(ctx context.Context, in EventInput) error {
	in.PartyID = w.partyID
	in.UserID = w.user.ID
	in.DisplayName = w.user.Name()
	in.At = w.at

	event, created, err := w.log.RecordEvent(ctx, in)
	if err != nil {
		return err
	}
	if created {
		w.out.Events = append(w.out.Events, *event)
	}
	return nil
}

func (w *workflow) milestone(ctx context.Context, label string, details map[string]interface{}) error {
	if !w.inParty {
		return nil
	}
	return w.record(ctx, EventInput{
		Type:           models.EventMilestoneHit,
		MilestoneLabel: label,
		Details:        details,
	})
}

// run executes step inside one transaction, retried on conflict, then
// publishes the committed events. Nothing is published for a failed run.
func (e *Engine) run(ctx context.Context, op string, userID uint, at time.Time, step func(ctx context.Context, w *workflow) error) (*Outcome, error) {
	txCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var out *Outcome
	err := retry(txCtx, op, defaultAttempts, func() error {
		out = &Outcome{}
		return e.store.Transaction(txCtx, func(tx store.Store) error {
			user, err := tx.GetUser(txCtx, userID)
			if err != nil {
				return notFound(err, "user", userID)
			}
			partyID, inParty, err := tx.ActivePartyID(txCtx, userID)
			if err != nil {
				return err
			}

			w := &workflow{
				tx:      tx,
				ledger:  e.ledger.within(tx),
				log:     NewActivityLog(tx),
				user:    user,
				partyID: partyID,
				inParty: inParty,
				at:      at.UTC(),
				out:     out,
			}
			if inParty {
				out.PartyID = partyID
			}
			return step(txCtx, w)
		})
	})
	if err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []models.ActivityEvent{}
	}

	e.afterCommit(ctx, out)
	return out, nil
}

func (e *Engine) afterCommit(ctx context.Context, out *Outcome) {
	if out.PartyID == 0 {
		return
	}
	if e.publisher != nil {
		e.publisher.PublishCycle(ctx, out.PartyID, out.Events)
	}
	if e.announcer == nil {
		return
	}

	var notable []models.ActivityEvent
	for _, event := range out.Events {
		if event.Type == models.EventOfferReceived || event.Type == models.EventMilestoneHit {
			notable = append(notable, event)
		}
	}
	if len(notable) == 0 {
		return
	}

	e.announcing.Add(1)
	go func() {
		defer e.announcing.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
		defer cancel()
		for _, event := range notable {
			if err := e.announcer.Announce(actx, event); err != nil {
				logger.Warn("announce %s for user %d: %v", event.Type, event.UserID, err)
			}
		}
	}()
}

// Wait blocks until in-flight announcements finish.
func (e *Engine) Wait() {
	e.announcing.Wait()
}

// LogApplication records a new application in the applied state.
func (e *Engine) LogApplication(ctx context.Context, userID uint, company, role string, at time.Time) (*Outcome, error) {
	company = strings.TrimSpace(company)
	role = strings.TrimSpace(role)
	if company == "" {
		return nil, validationf("company", "is required")
	}
	if len(company) > 200 {
		return nil, validationf("company", "must be at most 200 characters")
	}
	if len(role) > 200 {
		return nil, validationf("role", "must be at most 200 characters")
	}

	return e.run(ctx, "log application", userID, at, func(ctx context.Context, w *workflow) error {
		app := &models.Application{
			UserID:    userID,
			Company:   company,
			Role:      role,
			Status:    models.StatusApplied,
			CreatedAt: w.at,
		}
		if err := w.tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		w.out.Application = app

		primary := EventInput{
			Type:    EventTypeForStatus(models.StatusApplied),
			Company: company,
			Role:    role,
			Details: map[string]interface{}{"application_id": app.ID},
		}
		if err := w.award(ctx, Score(models.StatusApplied, nil), primary, true); err != nil {
			return err
		}

		count, err := w.tx.CountApplications(ctx, userID)
		if err != nil {
			return err
		}
		if label, ok := applicationMilestone(count); ok {
			return w.milestone(ctx, label, map[string]interface{}{"applications": count})
		}
		return nil
	})
}

// UpdateApplicationStatus moves an application forward and scores the new
// status. Moving back to applied and repeating the current status and round
// are rejected.
func (e *Engine) UpdateApplicationStatus(ctx context.Context, userID, appID uint, status models.ApplicationStatus, round *int, at time.Time) (*Outcome, error) {
	if !status.Valid() {
		return nil, validationf("status", "unknown status %q", string(status))
	}
	if status == models.StatusApplied {
		return nil, validationf("status", "an application cannot move back to applied")
	}
	if round != nil {
		if status != models.StatusInterview {
			return nil, validationf("interview_round", "only interviews have rounds")
		}
		if *round < 1 {
			return nil, validationf("interview_round", "must be at least 1")
		}
	}

	return e.run(ctx, "update application status", userID, at, func(ctx context.Context, w *workflow) error {
		app, err := w.tx.GetApplication(ctx, appID)
		if err != nil {
			return notFound(err, "application", appID)
		}
		if app.UserID != userID {
			return &NotFoundError{Resource: "application", ID: appID}
		}
		if app.Status == status && sameRound(app.InterviewRound, round) {
			return validationf("status", "application is already %s", string(status))
		}

		previous := app.Status
		app.Status = status
		app.InterviewRound = round
		if err := w.tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		w.out.Application = app

		details := map[string]interface{}{
			"application_id": app.ID,
			"from":           string(previous),
			"to":             string(status),
		}
		if round != nil {
			details["interview_round"] = *round
		}
		primary := EventInput{
			Type:    EventTypeForStatus(status),
			Company: app.Company,
			Role:    app.Role,
			Details: details,
		}
		if err := w.award(ctx, Score(status, round), primary, true); err != nil {
			return err
		}

		if status == models.StatusOffer {
			return w.milestone(ctx, firstOfferMilestone, map[string]interface{}{"company": app.Company})
		}
		return nil
	})
}

// AdjustPoints applies a corrective edit. It does not count as activity for
// the streak.
func (e *Engine) AdjustPoints(ctx context.Context, userID uint, delta int, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if delta == 0 {
		return nil, validationf("delta", "must not be zero")
	}
	if reason == "" {
		return nil, validationf("reason", "is required")
	}

	return e.run(ctx, "adjust points", userID, time.Now(), func(ctx context.Context, w *workflow) error {
		primary := EventInput{
			Type:    models.EventStatusUpdated,
			Details: map[string]interface{}{"reason": reason},
		}
		return w.award(ctx, delta, primary, false)
	})
}

func sameRound(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
