package services

import (
	"time"

	"huntparty/models"
)

// StreakResult is the outcome of feeding one activity into the tracker.
type StreakResult struct {
	State       models.StreakState
	Incremented bool
	Broken      bool
}

// AdvanceStreak applies an activity at `at` to state. Calendar days are
// taken in UTC. Activity dated before the last recorded day leaves the
// state untouched.
func AdvanceStreak(state models.StreakState, at time.Time) StreakResult {
	at = at.UTC()
	next := state
	last := at
	next.LastActivity = &last

	if state.LastActivity == nil || state.Current == 0 {
		next.Current = 1
		if next.Longest < 1 {
			next.Longest = 1
		}
		return StreakResult{State: next, Incremented: true}
	}

	gap := daysBetween(*state.LastActivity, at)
	switch {
	case gap < 0:
		return StreakResult{State: state}
	case gap == 0:
		// keep the most recent timestamp on the same day
		if at.Before(state.LastActivity.UTC()) {
			next.LastActivity = state.LastActivity
		}
		return StreakResult{State: next}
	case gap == 1:
		next.Current = state.Current + 1
		if next.Current > next.Longest {
			next.Longest = next.Current
		}
		return StreakResult{State: next, Incremented: true}
	default:
		next.Current = 1
		return StreakResult{State: next, Broken: true}
	}
}

func daysBetween(from, to time.Time) int {
	f := truncateDay(from)
	t := truncateDay(to)
	return int(t.Sub(f).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
