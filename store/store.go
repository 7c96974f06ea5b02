// store/store.go - Durable record store consumed by the competition engine
package store

import (
	"context"
	"errors"
	"time"

	"huntparty/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("write conflict")
	ErrDuplicate = errors.New("duplicate record")
)

// Users covers the account fields the engine reads and writes.
type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// IncrementPoints atomically adds delta to the user's total and returns
	// the committed total. Concurrent calls for one user never lose updates.
	IncrementPoints(ctx context.Context, userID uint, delta int, at time.Time) (int, error)
	SaveStreak(ctx context.Context, userID uint, state models.StreakState, at time.Time) error
}

type Parties interface {
	CreateParty(ctx context.Context, party *models.Party) error
	GetParty(ctx context.Context, partyID uint) (*models.Party, error)
	GetPartyByCode(ctx context.Context, code string) (*models.Party, error)
	SaveParty(ctx context.Context, party *models.Party) error

	GetMembership(ctx context.Context, partyID, userID uint) (*models.Membership, error)
	ActiveMembership(ctx context.Context, userID uint) (*models.Membership, error)
	SaveMembership(ctx context.Context, membership *models.Membership) error
	ActiveMembers(ctx context.Context, partyID uint) ([]models.Membership, error)

	// ActivePartyID resolves the user's current party. ok is false when the
	// user has no active membership.
	ActivePartyID(ctx context.Context, userID uint) (partyID uint, ok bool, err error)
	ActiveStandings(ctx context.Context, partyID uint) ([]models.Standing, error)
}

type Applications interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, appID uint) (*models.Application, error)
	SaveApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, userID uint) ([]models.Application, error)
	CountApplications(ctx context.Context, userID uint) (int, error)
}

type Events interface {
	AppendEvent(ctx context.Context, event *models.ActivityEvent) error

	// InsertMilestone stores event unless one with the same
	// (party, user, milestone label) exists. The check and the insert are a
	// single statement. It returns the stored event and whether it was
	// created by this call.
	InsertMilestone(ctx context.Context, event *models.ActivityEvent) (*models.ActivityEvent, bool, error)

	// ListPartyEvents returns up to limit events newest-first. beforeID > 0
	// restricts the page to events older than that id.
	ListPartyEvents(ctx context.Context, partyID, beforeID uint, limit int) ([]models.ActivityEvent, error)
}

// Store is the full durable store. Transaction runs fn against a Store bound
// to one transaction; fn's error rolls everything back.
type Store interface {
	Users
	Parties
	Applications
	Events
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// IsConflict reports whether err is a retryable write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
