package services

import (
	"testing"
	"time"

	"huntparty/models"

	"github.com/stretchr/testify/assert"
)

func day(d, hour int) time.Time {
	return time.Date(2026, 4, d, hour, 0, 0, 0, time.UTC)
}

func stateAt(last time.Time, current, longest int) models.StreakState {
	return models.StreakState{LastActivity: &last, Current: current, Longest: longest}
}

func TestAdvanceStreak_FirstActivity(t *testing.T) {
	result := AdvanceStreak(models.StreakState{}, day(1, 9))
	assert.True(t, result.Incremented)
	assert.False(t, result.Broken)
	assert.Equal(t, 1, result.State.Current)
	assert.Equal(t, 1, result.State.Longest)
	assert.Equal(t, day(1, 9), *result.State.LastActivity)
}

func TestAdvanceStreak_SameDayUnchanged(t *testing.T) {
	result := AdvanceStreak(stateAt(day(1, 9), 4, 6), day(1, 22))
	assert.False(t, result.Incremented)
	assert.False(t, result.Broken)
	assert.Equal(t, 4, result.State.Current)
	assert.Equal(t, 6, result.State.Longest)
	assert.Equal(t, day(1, 22), *result.State.LastActivity)
}

func TestAdvanceStreak_NextDayIncrements(t *testing.T) {
	result := AdvanceStreak(stateAt(day(1, 23), 2, 2), day(2, 0))
	assert.True(t, result.Incremented)
	assert.Equal(t, 3, result.State.Current)
	assert.Equal(t, 3, result.State.Longest)
}

func TestAdvanceStreak_IncrementBelowLongest(t *testing.T) {
	result := AdvanceStreak(stateAt(day(1, 12), 2, 10), day(2, 12))
	assert.Equal(t, 3, result.State.Current)
	assert.Equal(t, 10, result.State.Longest)
}

func TestAdvanceStreak_GapBreaks(t *testing.T) {
	result := AdvanceStreak(stateAt(day(1, 12), 5, 5), day(4, 12))
	assert.True(t, result.Broken)
	assert.False(t, result.Incremented)
	assert.Equal(t, 1, result.State.Current)
	assert.Equal(t, 5, result.State.Longest)
}

func TestAdvanceStreak_UsesUTCDays(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-04-02 08:00 JST is still 2026-04-01 in UTC
	result := AdvanceStreak(stateAt(day(1, 10), 1, 1), time.Date(2026, 4, 2, 8, 0, 0, 0, tokyo))
	assert.False(t, result.Incremented)
	assert.Equal(t, 1, result.State.Current)
}

func TestAdvanceStreak_EarlierActivityIgnored(t *testing.T) {
	before := stateAt(day(5, 12), 3, 3)
	result := AdvanceStreak(before, day(3, 12))
	assert.Equal(t, before, result.State)
	assert.False(t, result.Incremented)
	assert.False(t, result.Broken)
}
