// services/party_service.go - Party lifecycle: create, join, leave, snapshot
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"huntparty/logger"
	"huntparty/models"
	"huntparty/store"
)

const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 5
	maxPartyNameLen    = 100
)

var (
	errCreateWhileInParty = validationf("party", "leave your current party before creating a new one")
	errJoinWhileInParty   = validationf("party", "leave your current party before joining another")
)

// ChannelMembership moves a user's open live connections between party
// channels.
type ChannelMembership interface {
	AttachUser(userID, partyID uint)
	DetachUser(userID, partyID uint)
}

// Snapshot is the full state a client loads before following live updates.
type Snapshot struct {
	Party       *models.Party             `json:"party"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	Rivalry     *models.RivalryView       `json:"rivalry"`
	Activity    *ActivityPage             `json:"activity"`
}

type PartyService struct {
	store       store.Store
	leaderboard *LeaderboardCalculator
	activity    *ActivityLog
	channels    ChannelMembership
	publisher   Publisher
}

func NewPartyService(st store.Store, channels ChannelMembership, publisher Publisher) *PartyService {
	return &PartyService{
		store:       st,
		leaderboard: NewLeaderboardCalculator(st),
		activity:    NewActivityLog(st),
		channels:    channels,
		publisher:   publisher,
	}
}

// ================== PARTY LIFECYCLE ==================

// CreateParty creates a party with the user as its creator.
func (s *PartyService) CreateParty(ctx context.Context, creatorID uint, name string) (*models.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name", "party name is required")
	}
	if len(name) > maxPartyNameLen {
		return nil, validationf("name", "must be at most %d characters", maxPartyNameLen)
	}

	var party *models.Party
	for attempt := 1; attempt <= inviteCodeAttempts; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		party = &models.Party{
			Name:       name,
			InviteCode: code,
			CreatorID:  creatorID,
			IsActive:   true,
			CreatedAt:  now,
		}
		err = s.store.Transaction(ctx, func(tx store.Store) error {
			if _, ok, err := tx.ActivePartyID(ctx, creatorID); err != nil {
				return err
			} else if ok {
				return errCreateWhileInParty
			}
			if err := tx.CreateParty(ctx, party); err != nil {
				return err
			}
			err := tx.SaveMembership(ctx, &models.Membership{
				PartyID:  party.ID,
				UserID:   creatorID,
				Role:     models.MembershipRoleCreator,
				JoinedAt: now,
				IsActive: true,
			})
			if errors.Is(err, store.ErrDuplicate) {
				return errCreateWhileInParty
			}
			return err
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt == inviteCodeAttempts {
			return nil, err
		}
		logger.Debug("invite code %s taken, regenerating", code)
	}

	logger.Info("party %d (%s) created by user %d", party.ID, party.InviteCode, creatorID)
	s.attach(ctx, creatorID, party.ID)
	return party, nil
}

// JoinParty adds the user to the party with the given invite code. Codes
// match case-insensitively. Rejoining reactivates the earlier membership.
func (s *PartyService) JoinParty(ctx context.Context, userID uint, code string) (*models.Party, error) {
	code, err := NormalizeInviteCode(code)
	if err != nil {
		return nil, err
	}

	party, err := s.store.GetPartyByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "party", 0)
	}

	alreadyMember := false
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		current, ok, err := tx.ActivePartyID(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			if current == party.ID {
				alreadyMember = true
				return nil
			}
			return errJoinWhileInParty
		}

		now := time.Now().UTC()
		membership, err := tx.GetMembership(ctx, party.ID, userID)
		switch {
		case err == nil:
			membership.IsActive = true
			membership.LeftAt = nil
			membership.JoinedAt = now
			membership.Role = models.MembershipRoleMember
		case errors.Is(err, store.ErrNotFound):
			membership = &models.Membership{
				PartyID:  party.ID,
				UserID:   userID,
				Role:     models.MembershipRoleMember,
				JoinedAt: now,
				IsActive: true,
			}
		default:
			return err
		}
		// a concurrent join that won the race trips the one-active index
		if err := tx.SaveMembership(ctx, membership); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errJoinWhileInParty
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyMember {
		return party, nil
	}

	logger.Info("user %d joined party %d", userID, party.ID)
	s.attach(ctx, userID, party.ID)
	return party, nil
}

// LeaveParty soft-deactivates the user's membership. A departing creator
// hands the role to the earliest-joined remaining member; the last member
// leaving disbands the party.
func (s *PartyService) LeaveParty(ctx context.Context, userID uint) error {
	var partyID uint
	disbanded := false

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		membership, err := tx.ActiveMembership(ctx, userID)
		if err != nil {
			return notFound(err, "party membership", 0)
		}
		partyID = membership.PartyID

		now := time.Now().UTC()
		wasCreator := membership.Role == models.MembershipRoleCreator
		membership.IsActive = false
		membership.LeftAt = &now
		membership.Role = models.MembershipRoleMember
		if err := tx.SaveMembership(ctx, membership); err != nil {
			return err
		}

		remaining, err := tx.ActiveMembers(ctx, partyID)
		if err != nil {
			return err
		}
		party, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return notFound(err, "party", partyID)
		}

		if len(remaining) == 0 {
			party.IsActive = false
			disbanded = true
			return tx.SaveParty(ctx, party)
		}
		if !wasCreator {
			return nil
		}

		heir := remaining[0]
		heir.Role = models.MembershipRoleCreator
		if err := tx.SaveMembership(ctx, &heir); err != nil {
			return err
		}
		party.CreatorID = heir.UserID
		return tx.SaveParty(ctx, party)
	})
	if err != nil {
		return err
	}

	logger.Info("user %d left party %d", userID, partyID)
	if s.channels != nil {
		s.channels.DetachUser(userID, partyID)
	}
	if !disbanded && s.publisher != nil {
		s.publisher.PublishCycle(ctx, partyID, nil)
	}
	return nil
}

func (s *PartyService) attach(ctx context.Context, userID, partyID uint) {
	if s.channels != nil {
		s.channels.AttachUser(userID, partyID)
	}
	if s.publisher != nil {
		s.publisher.PublishCycle(ctx, partyID, nil)
	}
}

// ================== QUERIES ==================

// CurrentParty returns the user's active party and membership.
func (s *PartyService) CurrentParty(ctx context.Context, userID uint) (*models.Party, *models.Membership, error) {
	membership, err := s.store.ActiveMembership(ctx, userID)
	if err != nil {
		return nil, nil, notFound(err, "party membership", 0)
	}
	party, err := s.store.GetParty(ctx, membership.PartyID)
	if err != nil {
		return nil, nil, notFound(err, "party", membership.PartyID)
	}
	return party, membership, nil
}

func (s *PartyService) Members(ctx context.Context, partyID uint) ([]models.Membership, error) {
	return s.store.ActiveMembers(ctx, partyID)
}

// IsActiveMember reports whether the user currently belongs to partyID.
func (s *PartyService) IsActiveMember(ctx context.Context, userID, partyID uint) (bool, error) {
	current, ok, err := s.store.ActivePartyID(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && current == partyID, nil
}

func (s *PartyService) Leaderboard(ctx context.Context, partyID uint) ([]models.LeaderboardEntry, error) {
	return s.leaderboard.Compute(ctx, partyID)
}

// Rivalry computes the user's view from a fresh leaderboard of the party.
func (s *PartyService) Rivalry(ctx context.Context, partyID, userID uint) (*models.RivalryView, error) {
	board, err := s.leaderboard.Compute(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return ComputeRivalry(board, userID)
}

func (s *PartyService) Activity(ctx context.Context, partyID uint, limit int, beforeID uint) (*ActivityPage, error) {
	return s.activity.GetPartyActivity(ctx, partyID, limit, beforeID)
}

// Snapshot loads everything a reconnecting client needs for its party.
func (s *PartyService) Snapshot(ctx context.Context, userID uint) (*Snapshot, error) {
	party, _, err := s.CurrentParty(ctx, userID)
	if err != nil {
		return nil, err
	}

	board, err := s.leaderboard.Compute(ctx, party.ID)
	if err != nil {
		return nil, err
	}
	rivalry, err := ComputeRivalry(board, userID)
	if err != nil {
		return nil, err
	}
	activity, err := s.activity.GetPartyActivity(ctx, party.ID, DefaultActivityLimit, 0)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Party:       party,
		Leaderboard: board,
		Rivalry:     rivalry,
		Activity:    activity,
	}, nil
}

// ================== INVITE CODES ==================

// GenerateInviteCode returns a random code of models.InviteCodeLength
// characters drawn from [A-Z0-9].
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, models.InviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeInviteCode upper-cases a user supplied code and checks its shape.
func NormalizeInviteCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != models.InviteCodeLength {
		return "", validationf("invite_code", "must be %d characters", models.InviteCodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteCodeAlphabet, r) {
			return "", validationf("invite_code", "must contain only letters and digits")
		}
	}
	return code, nil
}
