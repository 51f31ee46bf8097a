// services/merger.go
package services

import (
	"errors"
	"log"
	"sort"
	"time"

	"lawn-points-service/models"
)

// ErrEmptyLeaderboard marks a merge that would publish zero valid records.
// The run fails and the previously persisted board is left untouched, so a
// partial directory outage can never wipe the leaderboard.
var ErrEmptyLeaderboard = errors.New("no valid users in leaderboard after update")

// MergeResult is the outcome of folding a batch of point events into a board.
type MergeResult struct {
	// Users in discovery order: existing records first, then newly seen fids
	// in the order their first event arrived. Discovery order is the
	// tie-break for equal points.
	Users []models.User

	// NewFids lists fids seen for the first time this run; their records are
	// provisional until the user directory resolves display details.
	NewFids []int64

	// Assignments is the per-event change report for applied deltas.
	Assignments []models.PointAssignment

	// HasChanges is true iff at least one event was actually applied.
	HasChanges bool

	// Watermark is the max occurredAt among applied events, or the input
	// watermark when nothing applied.
	Watermark time.Time
}

// MergeEvents applies point events to the existing board. An event counts only
// when its timestamp is strictly after the watermark, which makes re-running
// extraction over overlapping windows idempotent. A single bad event (stale,
// or driving a total non-finite) is skipped without aborting the batch.
func MergeEvents(existing []models.User, events []models.PointEvent, watermark time.Time) MergeResult {
	result := MergeResult{Watermark: watermark}

	index := make(map[int64]int, len(existing))
	for _, user := range existing {
		if !models.ValidPoints(user.Points) {
			log.Printf("⚠️ [MERGE] Dropping corrupt record for fid %d (points=%v)", user.Fid, user.Points)
			continue
		}
		index[user.Fid] = len(result.Users)
		result.Users = append(result.Users, user)
	}

	seen := make(map[int64]bool)
	for _, event := range events {
		pos, ok := index[event.Fid]
		if !ok {
			pos = len(result.Users)
			index[event.Fid] = pos
			result.Users = append(result.Users, models.User{Fid: event.Fid})
			if !seen[event.Fid] {
				seen[event.Fid] = true
				result.NewFids = append(result.NewFids, event.Fid)
			}
		}
		user := &result.Users[pos]

		if !event.OccurredAt.After(watermark) {
			continue // already merged in an earlier run
		}

		newTotal := user.Points + event.Delta
		if !models.ValidPoints(newTotal) {
			log.Printf("⚠️ [MERGE] Invalid total %v for fid %d, skipping event", newTotal, event.Fid)
			continue
		}

		user.Points = newTotal
		result.HasChanges = true
		if event.OccurredAt.After(result.Watermark) {
			result.Watermark = event.OccurredAt
		}
		result.Assignments = append(result.Assignments, models.PointAssignment{
			Fid:       event.Fid,
			Username:  user.Username,
			Points:    event.Delta,
			NewTotal:  newTotal,
			Timestamp: event.OccurredAt,
		})
	}

	return result
}

// PublishLeaderboard filters out provisional or invalid records, sorts by
// points descending (stable, so ties keep discovery order) and assigns
// 1-based ranks. Returns ErrEmptyLeaderboard when nothing survives the filter.
func PublishLeaderboard(users []models.User) ([]models.LeaderboardEntry, error) {
	valid := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.Valid() {
			valid = append(valid, user)
		} else {
			log.Printf("⚠️ [MERGE] Excluding unresolved record for fid %d from published board", user.Fid)
		}
	}

	if len(valid) == 0 {
		return nil, ErrEmptyLeaderboard
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Points > valid[j].Points
	})

	entries := make([]models.LeaderboardEntry, len(valid))
	for i, user := range valid {
		entries[i] = models.LeaderboardEntry{User: user, Rank: i + 1}
	}
	return entries, nil
}
