// models/user.go
package models

import (
	"time"
)

type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"size:100" json:"display_name"`
	IsAdmin     bool   `gorm:"default:false" json:"is_admin"`

	// Points
	TotalPoints     int       `gorm:"default:0;not null" json:"total_points"`
	PointsUpdatedAt time.Time `json:"points_updated_at"`

	// Streak
	CurrentStreak   int        `gorm:"default:0" json:"current_streak"`
	LongestStreak   int        `gorm:"default:0" json:"longest_streak"`
	LastActivityAt  *time.Time `json:"last_activity_at"`
	StreakUpdatedAt *time.Time `json:"streak_updated_at"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Streak returns the user's persisted streak state.
func (u *User) Streak() StreakState {
	return StreakState{
		LastActivity: u.LastActivityAt,
		Current:      u.CurrentStreak,
		Longest:      u.LongestStreak,
	}
}
