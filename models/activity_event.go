// models/activity_event.go - Append-only party activity ledger
package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventApplicationLogged EventType = "application_logged"
	EventStatusUpdated     EventType = "status_updated"
	EventOfferReceived     EventType = "offer_received"
	EventMilestoneHit      EventType = "milestone_hit"
	EventScreening         EventType = "screening"
	EventInterview         EventType = "interview"
	EventRejected          EventType = "rejected"
	EventWithdrawn         EventType = "withdrawn"
)

// EventTypes is the closed set of activity event kinds.
var EventTypes = []EventType{
	EventApplicationLogged,
	EventStatusUpdated,
	EventOfferReceived,
	EventMilestoneHit,
	EventScreening,
	EventInterview,
	EventRejected,
	EventWithdrawn,
}

func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Verb renders the event for feeds and announcements. Every kind must have
// a case here; the default branch only catches values outside EventTypes.
func (t EventType) Verb() string {
	switch t {
	case EventApplicationLogged:
		return "logged an application"
	case EventStatusUpdated:
		return "updated their score"
	case EventOfferReceived:
		return "received an offer"
	case EventMilestoneHit:
		return "hit a milestone"
	case EventScreening:
		return "landed a screening"
	case EventInterview:
		return "landed an interview"
	case EventRejected:
		return "got a rejection"
	case EventWithdrawn:
		return "withdrew an application"
	default:
		return fmt.Sprintf("did %q", string(t))
	}
}

// ActivityEvent is created only by the gamification engine and never
// updated. (PartyID, UserID, MilestoneLabel) is unique; MilestoneLabel is
// NULL for every non-milestone event so the index only constrains milestones.
type ActivityEvent struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	PartyID        uint              `json:"party_id" gorm:"not null;index;uniqueIndex:idx_activity_milestone,priority:1"`
	UserID         uint              `json:"user_id" gorm:"not null;index;uniqueIndex:idx_activity_milestone,priority:2"`
	DisplayName    string            `json:"display_name" gorm:"size:100"`
	Type           EventType         `json:"type" gorm:"not null;size:30;index"`
	PointsDelta    int               `json:"points_delta" gorm:"not null;default:0"`
	Company        *string           `json:"company,omitempty" gorm:"size:200"`
	Role           *string           `json:"role,omitempty" gorm:"size:200"`
	MilestoneLabel *string           `json:"milestone_label,omitempty" gorm:"size:64;uniqueIndex:idx_activity_milestone,priority:3"`
	Details        datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}

// IsMilestone reports whether the event is subject to milestone dedup.
func (e *ActivityEvent) IsMilestone() bool {
	return e.Type == EventMilestoneHit
}
