// services/activity_log.go - Party activity feed with idempotent milestones
package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"huntparty/models"
	"huntparty/store"

	"gorm.io/datatypes"
)

const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
	MaxMilestoneLabelLen = 64
)

var milestoneLabelPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// EventInput describes one event to record. MilestoneLabel is required for
// milestone events and rejected for everything else.
type EventInput struct {
	PartyID        uint
	UserID         uint
	DisplayName    string
	Type           models.EventType
	PointsDelta    int
	Company        string
	Role           string
	MilestoneLabel string
	Details        map[string]interface{}
	At             time.Time
}

type ActivityPage struct {
	Events  []models.ActivityEvent `json:"events"`
	HasMore bool                   `json:"has_more"`
}

type ActivityLog struct {
	events store.Events
}

func NewActivityLog(events store.Events) *ActivityLog {
	return &ActivityLog{events: events}
}

// ValidateMilestoneLabel checks the label format used for dedup keys.
func ValidateMilestoneLabel(label string) error {
	if label == "" {
		return validationf("milestone_label", "is required for milestone events")
	}
	if len(label) > MaxMilestoneLabelLen {
		return validationf("milestone_label", "must be at most %d characters", MaxMilestoneLabelLen)
	}
	if !milestoneLabelPattern.MatchString(label) {
		return validationf("milestone_label", "%q must be lowercase words joined by hyphens", label)
	}
	return nil
}

func (in EventInput) validate() error {
	if in.PartyID == 0 {
		return validationf("party_id", "is required")
	}
	if in.UserID == 0 {
		return validationf("user_id", "is required")
	}
	if !in.Type.Valid() {
		return validationf("type", "unknown event type %q", string(in.Type))
	}
	if in.Type == models.EventMilestoneHit {
		return ValidateMilestoneLabel(in.MilestoneLabel)
	}
	if in.MilestoneLabel != "" {
		return validationf("milestone_label", "only milestone events carry a label")
	}
	return nil
}

func (in EventInput) toModel() *models.ActivityEvent {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	event := &models.ActivityEvent{
		PartyID:     in.PartyID,
		UserID:      in.UserID,
		DisplayName: in.DisplayName,
		Type:        in.Type,
		PointsDelta: in.PointsDelta,
		Company:     optionalString(in.Company),
		Role:        optionalString(in.Role),
		CreatedAt:   at.UTC(),
	}
	if in.MilestoneLabel != "" {
		label := in.MilestoneLabel
		event.MilestoneLabel = &label
	}
	if len(in.Details) > 0 {
		event.Details = datatypes.JSONMap(in.Details)
	}
	return event
}

// RecordEvent appends an event. A milestone already recorded for the same
// party, user and label is returned as-is with created=false.
func (l *ActivityLog) RecordEvent(ctx context.Context, in EventInput) (event *models.ActivityEvent, created bool, err error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	event = in.toModel()
	if event.IsMilestone() {
		return l.events.InsertMilestone(ctx, event)
	}
	if err := l.events.AppendEvent(ctx, event); err != nil {
		return nil, false, err
	}
	return event, true, nil
}

// GetPartyActivity returns the newest events of a party. limit outside
// [1, MaxActivityLimit] is clamped; beforeID 0 starts at the newest event.
func (l *ActivityLog) GetPartyActivity(ctx context.Context, partyID uint, limit int, beforeID uint) (*ActivityPage, error) {
	limit = ClampActivityLimit(limit)

	events, err := l.events.ListPartyEvents(ctx, partyID, beforeID, limit+1)
	if err != nil {
		return nil, err
	}

	page := &ActivityPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.HasMore = true
	}
	if page.Events == nil {
		page.Events = []models.ActivityEvent{}
	}
	return page, nil
}

func ClampActivityLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultActivityLimit
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	default:
		return limit
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
