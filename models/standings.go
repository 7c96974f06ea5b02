// models/standings.go - Derived, never-persisted competition views
package models

import "time"

// StreakState is the persisted input of the streak tracker.
type StreakState struct {
	LastActivity *time.Time `json:"last_activity_at"`
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
}

// Standing is one active party member joined to their current totals.
type Standing struct {
	UserID           uint
	DisplayName      string
	TotalPoints      int
	PointsUpdatedAt  time.Time
	ApplicationCount int
}

type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	UserID           uint   `json:"user_id"`
	DisplayName      string `json:"display_name"`
	TotalPoints      int    `json:"total_points"`
	ApplicationCount int    `json:"application_count"`
}

// Rival is a neighbouring leaderboard entry. Gap is the absolute point
// difference; it is zero only when the two members are tied.
type Rival struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	Gap         int    `json:"gap"`
}

type RivalryView struct {
	Rank      int    `json:"rank"`
	PartySize int    `json:"party_size"`
	Ahead     *Rival `json:"user_ahead,omitempty"`
	Behind    *Rival `json:"user_behind,omitempty"`
}
