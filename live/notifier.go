// live/notifier.go - Publish cycle: activity, leaderboard, rivalry
package live

import (
	"context"
	"sync"
	"time"

	"huntparty/logger"
	"huntparty/models"
	"huntparty/services"
	"huntparty/store"
)

const partyLockStripes = 64

// Notifier implements services.Publisher on top of a Hub.
type Notifier struct {
	hub         *Hub
	leaderboard *services.LeaderboardCalculator
	timeout     time.Duration
	locks       [partyLockStripes]sync.Mutex
}

var _ services.Publisher = (*Notifier)(nil)

func NewNotifier(hub *Hub, parties store.Parties, timeout time.Duration) *Notifier {
	return &Notifier{
		hub:         hub,
		leaderboard: services.NewLeaderboardCalculator(parties),
		timeout:     timeout,
	}
}

func (n *Notifier) lockFor(partyID uint) *sync.Mutex {
	return &n.locks[partyID%partyLockStripes]
}

// PublishCycle must only be called after the events are committed. Events go
// out first, then the leaderboard read after that commit, then one rivalry
// message per ranked member. Cycles of one party never interleave. Send
// failures are logged and dropped; a failed recompute skips the standings
// and the next cycle carries current state.
func (n *Notifier) PublishCycle(ctx context.Context, partyID uint, events []models.ActivityEvent) {
	lock := n.lockFor(partyID)
	lock.Lock()
	defer lock.Unlock()

	for _, event := range events {
		n.hub.Broadcast(partyID, ActivityEventCreated{Event: event})
	}

	// the triggering request may end before fan-out does
	ctx = context.WithoutCancel(ctx)
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	board, err := n.leaderboard.Compute(ctx, partyID)
	if err != nil {
		logger.Warn("live: leaderboard for party %d: %v", partyID, err)
		return
	}

	n.hub.Broadcast(partyID, LeaderboardUpdated{PartyID: partyID, Entries: board})

	rivalries := services.ComputeAllRivalries(board)
	for _, entry := range board {
		view, ok := rivalries[entry.UserID]
		if !ok {
			continue
		}
		n.hub.SendToUser(partyID, entry.UserID, RivalryUpdated{
			PartyID: partyID,
			UserID:  entry.UserID,
			Rivalry: view,
		})
	}
	logger.Debug("live: published cycle for party %d (%d events, %d members)", partyID, len(events), len(board))
}
