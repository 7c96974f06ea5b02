// store/memory.go - In-memory Store for tests and local experiments
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"huntparty/models"
)

// MemoryStore keeps every record in maps behind one mutex. Transactions are
// serialized and restored from a snapshot on error; writes made outside a
// transaction while one is running are not isolated from that rollback.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data memoryData

	// Error injection for testing failure paths
	IncrementPointsErr error
	AppendEventErr     error
	StandingsErr       error
	// IncrementConflicts makes the next N IncrementPoints calls fail with
	// ErrConflict before succeeding.
	IncrementConflicts int
}

type memoryData struct {
	users        map[uint]models.User
	parties      map[uint]models.Party
	memberships  map[uint]models.Membership
	applications map[uint]models.Application
	events       []models.ActivityEvent

	nextUserID        uint
	nextPartyID       uint
	nextMembershipID  uint
	nextApplicationID uint
	nextEventID       uint
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memoryData{
			users:        make(map[uint]models.User),
			parties:      make(map[uint]models.Party),
			memberships:  make(map[uint]models.Membership),
			applications: make(map[uint]models.Application),
		},
	}
}

func (d memoryData) clone() memoryData {
	c := d
	c.users = make(map[uint]models.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.parties = make(map[uint]models.Party, len(d.parties))
	for k, v := range d.parties {
		c.parties[k] = v
	}
	c.memberships = make(map[uint]models.Membership, len(d.memberships))
	for k, v := range d.memberships {
		c.memberships[k] = v
	}
	c.applications = make(map[uint]models.Application, len(d.applications))
	for k, v := range d.applications {
		c.applications[k] = v
	}
	c.events = append([]models.ActivityEvent(nil), d.events...)
	return c
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ================== USERS ==================

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return fmt.Errorf("%w: username %q", ErrDuplicate, user.Username)
		}
	}
	s.data.nextUserID++
	user.ID = s.data.nextUserID
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.data.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.data.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) IncrementPoints(ctx context.Context, userID uint, delta int, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IncrementPointsErr != nil {
		return 0, s.IncrementPointsErr
	}
	if s.IncrementConflicts > 0 {
		s.IncrementConflicts--
		return 0, ErrConflict
	}

	user, ok := s.data.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	user.TotalPoints += delta
	user.PointsUpdatedAt = at
	s.data.users[userID] = user
	return user.TotalPoints, nil
}

func (s *MemoryStore) SaveStreak(ctx context.Context, userID uint, state models.StreakState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.CurrentStreak = state.Current
	user.LongestStreak = state.Longest
	user.LastActivityAt = state.LastActivity
	user.StreakUpdatedAt = &at
	s.data.users[userID] = user
	return nil
}

// ================== PARTIES & MEMBERSHIPS ==================

func (s *MemoryStore) CreateParty(ctx context.Context, party *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.parties {
		if existing.InviteCode == party.InviteCode {
			return fmt.Errorf("%w: invite code %q", ErrDuplicate, party.InviteCode)
		}
	}
	s.data.nextPartyID++
	party.ID = s.data.nextPartyID
	if party.CreatedAt.IsZero() {
		party.CreatedAt = time.Now().UTC()
	}
	s.data.parties[party.ID] = *party
	return nil
}

func (s *MemoryStore) GetParty(ctx context.Context, partyID uint) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, ok := s.data.parties[partyID]
	if !ok || !party.IsActive {
		return nil, ErrNotFound
	}
	return &party, nil
}

func (s *MemoryStore) GetPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, party := range s.data.parties {
		if party.InviteCode == code && party.IsActive {
			p := party
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveParty(ctx context.Context, party *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.parties[party.ID]; !ok {
		return ErrNotFound
	}
	s.data.parties[party.ID] = *party
	return nil
}

func (s *MemoryStore) GetMembership(ctx context.Context, partyID, userID uint) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.data.memberships {
		if m.PartyID == partyID && m.UserID == userID {
			membership := m
			return &membership, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ActiveMembership(ctx context.Context, userID uint) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMembershipLocked(userID)
}

func (s *MemoryStore) activeMembershipLocked(userID uint) (*models.Membership, error) {
	var found *models.Membership
	for _, m := range s.data.memberships {
		if m.UserID != userID || !m.IsActive {
			continue
		}
		if found == nil || m.JoinedAt.After(found.JoinedAt) {
			membership := m
			found = &membership
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) SaveMembership(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if membership.IsActive {
		for id, m := range s.data.memberships {
			if id != membership.ID && m.UserID == membership.UserID && m.IsActive {
				return fmt.Errorf("%w: user %d already active in party %d", ErrDuplicate, m.UserID, m.PartyID)
			}
		}
	}
	if membership.ID == 0 {
		for _, m := range s.data.memberships {
			if m.PartyID == membership.PartyID && m.UserID == membership.UserID {
				return fmt.Errorf("%w: membership party=%d user=%d", ErrDuplicate, m.PartyID, m.UserID)
			}
		}
		s.data.nextMembershipID++
		membership.ID = s.data.nextMembershipID
	}
	s.data.memberships[membership.ID] = *membership
	return nil
}

func (s *MemoryStore) ActiveMembers(ctx context.Context, partyID uint) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Membership
	for _, m := range s.data.memberships {
		if m.PartyID == partyID && m.IsActive {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (s *MemoryStore) ActivePartyID(ctx context.Context, userID uint) (uint, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	membership, err := s.activeMembershipLocked(userID)
	if err != nil {
		return 0, false, nil
	}
	return membership.PartyID, true, nil
}

func (s *MemoryStore) ActiveStandings(ctx context.Context, partyID uint) ([]models.Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StandingsErr != nil {
		return nil, s.StandingsErr
	}

	counts := make(map[uint]int)
	for _, app := range s.data.applications {
		counts[app.UserID]++
	}

	var standings []models.Standing
	for _, m := range s.data.memberships {
		if m.PartyID != partyID || !m.IsActive {
			continue
		}
		user, ok := s.data.users[m.UserID]
		if !ok {
			continue
		}
		standings = append(standings, models.Standing{
			UserID:           user.ID,
			DisplayName:      user.Name(),
			TotalPoints:      user.TotalPoints,
			PointsUpdatedAt:  user.PointsUpdatedAt,
			ApplicationCount: counts[user.ID],
		})
	}
	return standings, nil
}

// ================== APPLICATIONS ==================

func (s *MemoryStore) CreateApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.nextApplicationID++
	app.ID = s.data.nextApplicationID
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	s.data.applications[app.ID] = *app
	return nil
}

func (s *MemoryStore) GetApplication(ctx context.Context, appID uint) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.data.applications[appID]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (s *MemoryStore) SaveApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.applications[app.ID]; !ok {
		return ErrNotFound
	}
	app.UpdatedAt = time.Now().UTC()
	s.data.applications[app.ID] = *app
	return nil
}

func (s *MemoryStore) ListApplications(ctx context.Context, userID uint) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var apps []models.Application
	for _, app := range s.data.applications {
		if app.UserID == userID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID > apps[j].ID })
	return apps, nil
}

func (s *MemoryStore) CountApplications(ctx context.Context, userID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, app := range s.data.applications {
		if app.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ================== ACTIVITY EVENTS ==================

func (s *MemoryStore) AppendEvent(ctx context.Context, event *models.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendEventErr != nil {
		return s.AppendEventErr
	}
	s.appendLocked(event)
	return nil
}

func (s *MemoryStore) appendLocked(event *models.ActivityEvent) {
	s.data.nextEventID++
	event.ID = s.data.nextEventID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.data.events = append(s.data.events, *event)
}

func (s *MemoryStore) InsertMilestone(ctx context.Context, event *models.ActivityEvent) (*models.ActivityEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendEventErr != nil {
		return nil, false, s.AppendEventErr
	}
	if event.MilestoneLabel != nil {
		for _, existing := range s.data.events {
			if existing.PartyID == event.PartyID &&
				existing.UserID == event.UserID &&
				existing.MilestoneLabel != nil &&
				*existing.MilestoneLabel == *event.MilestoneLabel {
				found := existing
				return &found, false, nil
			}
		}
	}
	s.appendLocked(event)
	return event, true, nil
}

func (s *MemoryStore) ListPartyEvents(ctx context.Context, partyID, beforeID uint, limit int) ([]models.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.ActivityEvent
	for i := len(s.data.events) - 1; i >= 0 && len(events) < limit; i-- {
		event := s.data.events[i]
		if event.PartyID != partyID {
			continue
		}
		if beforeID > 0 && event.ID >= beforeID {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// EventCount returns the number of stored events. Used by tests.
func (s *MemoryStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.events)
}
