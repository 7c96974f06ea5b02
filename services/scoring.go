package services

import "huntparty/models"

var statusPoints = map[models.ApplicationStatus]int{
	models.StatusApplied:   1,
	models.StatusScreening: 2,
	models.StatusInterview: 5,
	models.StatusOffer:     50,
	models.StatusRejected:  5,
	models.StatusWithdrawn: 0,
}

// Score returns the points awarded for reaching status. The interview round
// is accepted but every round scores the same. Unknown statuses score 0.
func Score(status models.ApplicationStatus, round *int) int {
	return statusPoints[status]
}

// EventTypeForStatus maps a status transition to the activity event kind.
func EventTypeForStatus(status models.ApplicationStatus) models.EventType {
	switch status {
	case models.StatusApplied:
		return models.EventApplicationLogged
	case models.StatusScreening:
		return models.EventScreening
	case models.StatusInterview:
		return models.EventInterview
	case models.StatusOffer:
		return models.EventOfferReceived
	case models.StatusRejected:
		return models.EventRejected
	case models.StatusWithdrawn:
		return models.EventWithdrawn
	default:
		return models.EventStatusUpdated
	}
}
