// models/application.go - Job application tracked through its lifecycle
package models

import "time"

type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusScreening ApplicationStatus = "screening"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusRejected  ApplicationStatus = "rejected"
	StatusWithdrawn ApplicationStatus = "withdrawn"
)

// ApplicationStatuses lists every status in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	StatusApplied,
	StatusScreening,
	StatusInterview,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

// Valid reports whether s is one of the enumerated statuses.
func (s ApplicationStatus) Valid() bool {
	for _, known := range ApplicationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Application struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	UserID         uint              `json:"user_id" gorm:"not null;index"`
	Company        string            `json:"company" gorm:"not null;size:200"`
	Role           string            `json:"role" gorm:"size:200"`
	Status         ApplicationStatus `json:"status" gorm:"not null;default:'applied';size:20;index"`
	InterviewRound *int              `json:"interview_round,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (Application) TableName() string {
	return "applications"
}
