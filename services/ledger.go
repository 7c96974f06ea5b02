package services

import (
	"context"
	"time"

	"huntparty/store"
)

// LedgerEntry is a committed point change.
type LedgerEntry struct {
	UserID   uint
	Delta    int
	Previous int
	Total    int
}

// PointsLedger is the only writer of User.TotalPoints.
type PointsLedger struct {
	users    store.Users
	attempts int
}

func NewPointsLedger(users store.Users) *PointsLedger {
	return &PointsLedger{users: users, attempts: defaultAttempts}
}

// within binds the ledger to a transaction. The enclosing workflow owns
// retries there, so the bound ledger tries once.
func (l *PointsLedger) within(tx store.Users) *PointsLedger {
	return &PointsLedger{users: tx, attempts: 1}
}

// Apply adds delta to the user's total and returns the committed entry.
// Nothing is applied when it returns an error.
func (l *PointsLedger) Apply(ctx context.Context, userID uint, delta int, at time.Time) (*LedgerEntry, error) {
	var total int
	err := retry(ctx, "points ledger", l.attempts, func() error {
		var err error
		total, err = l.users.IncrementPoints(ctx, userID, delta, at.UTC())
		return err
	})
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return &LedgerEntry{
		UserID:   userID,
		Delta:    delta,
		Previous: total - delta,
		Total:    total,
	}, nil
}
