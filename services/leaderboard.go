package services

import (
	"context"
	"sort"

	"huntparty/models"
	"huntparty/store"
)

// LeaderboardCalculator ranks a party from current member totals. It holds
// no state between calls.
type LeaderboardCalculator struct {
	parties store.Parties
}

func NewLeaderboardCalculator(parties store.Parties) *LeaderboardCalculator {
	return &LeaderboardCalculator{parties: parties}
}

// Compute returns the ranked standings of the party's active members. A
// party without active members yields an empty list.
func (c *LeaderboardCalculator) Compute(ctx context.Context, partyID uint) ([]models.LeaderboardEntry, error) {
	standings, err := c.parties.ActiveStandings(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return RankStandings(standings), nil
}

// RankStandings orders by points descending, then by who reached their
// total first, then by user id. Ranks are positional and 1-based.
func RankStandings(standings []models.Standing) []models.LeaderboardEntry {
	sorted := make([]models.Standing, len(standings))
	copy(sorted, standings)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.PointsUpdatedAt.Equal(b.PointsUpdatedAt) {
			return a.PointsUpdatedAt.Before(b.PointsUpdatedAt)
		}
		return a.UserID < b.UserID
	})

	entries := make([]models.LeaderboardEntry, 0, len(sorted))
	for i, st := range sorted {
		entries = append(entries, models.LeaderboardEntry{
			Rank:             i + 1,
			UserID:           st.UserID,
			DisplayName:      st.DisplayName,
			TotalPoints:      st.TotalPoints,
			ApplicationCount: st.ApplicationCount,
		})
	}
	return entries
}
