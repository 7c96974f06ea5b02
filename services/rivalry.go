package services

import "huntparty/models"

// ComputeRivalry derives a member's neighbours from an already ranked
// leaderboard. It never queries the store, so rivalry always agrees with
// the leaderboard it was computed from.
func ComputeRivalry(board []models.LeaderboardEntry, userID uint) (*models.RivalryView, error) {
	idx := -1
	for i := range board {
		if board[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &NotFoundError{Resource: "leaderboard entry for user", ID: userID}
	}

	me := board[idx]
	view := &models.RivalryView{
		Rank:      idx + 1,
		PartySize: len(board),
	}
	if idx > 0 {
		ahead := board[idx-1]
		view.Ahead = &models.Rival{
			UserID:      ahead.UserID,
			DisplayName: ahead.DisplayName,
			Points:      ahead.TotalPoints,
			Gap:         ahead.TotalPoints - me.TotalPoints,
		}
	}
	if idx < len(board)-1 {
		behind := board[idx+1]
		view.Behind = &models.Rival{
			UserID:      behind.UserID,
			DisplayName: behind.DisplayName,
			Points:      behind.TotalPoints,
			Gap:         me.TotalPoints - behind.TotalPoints,
		}
	}
	return view, nil
}

// ComputeAllRivalries returns one view per leaderboard member, keyed by
// user id.
func ComputeAllRivalries(board []models.LeaderboardEntry) map[uint]*models.RivalryView {
	views := make(map[uint]*models.RivalryView, len(board))
	for _, entry := range board {
		view, err := ComputeRivalry(board, entry.UserID)
		if err != nil {
			continue
		}
		views[entry.UserID] = view
	}
	return views
}
