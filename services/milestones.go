package services

import "fmt"

var (
	streakMilestones      = []int{3, 7, 14, 30}
	applicationMilestones = []int{10, 25, 50, 100}
	pointsMilestones      = []int{100, 250, 500, 1000}
)

const firstOfferMilestone = "first-offer"

// streakMilestone returns the label for reaching a streak length, if any.
func streakMilestone(result StreakResult) (string, bool) {
	if !result.Incremented {
		return "", false
	}
	for _, n := range streakMilestones {
		if result.State.Current == n {
			return fmt.Sprintf("streak-%d", n), true
		}
	}
	return "", false
}

func applicationMilestone(count int) (string, bool) {
	for _, n := range applicationMilestones {
		if count == n {
			return fmt.Sprintf("applications-%d", n), true
		}
	}
	return "", false
}

// pointsMilestonesCrossed lists thresholds passed upward by a ledger entry.
func pointsMilestonesCrossed(entry *LedgerEntry) []string {
	var labels []string
	for _, n := range pointsMilestones {
		if entry.Previous < n && entry.Total >= n {
			labels = append(labels, fmt.Sprintf("points-%d", n))
		}
	}
	return labels
}
