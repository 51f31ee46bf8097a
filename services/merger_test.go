package services

import (
	"math"
	"testing"
	"time"

	"lawn-points-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
)

func resolvedUser(fid int64, points float64) models.User {
	return models.User{
		Fid:         fid,
		Username:    "user",
		DisplayName: "User",
		Pfp:         "https://pfp.example/u.png",
		Points:      points,
	}
}

func TestMergeEventsFirstEventCreatesRecord(t *testing.T) {
	result := MergeEvents(nil, []models.PointEvent{{Fid: 42, Delta: 5, OccurredAt: t1}}, time.Time{})

	require.Len(t, result.Users, 1)
	assert.Equal(t, int64(42), result.Users[0].Fid)
	assert.Equal(t, 5.0, result.Users[0].Points)
	assert.Equal(t, []int64{42}, result.NewFids)
	assert.True(t, result.HasChanges)
	assert.Equal(t, t1, result.Watermark)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 5.0, result.Assignments[0].Points)
	assert.Equal(t, 5.0, result.Assignments[0].NewTotal)
}

func TestMergeEventsIdempotentAtWatermark(t *testing.T) {
	existing := []models.User{resolvedUser(42, 5)}

	// Same event reprocessed after its timestamp became the watermark.
	result := MergeEvents(existing, []models.PointEvent{{Fid: 42, Delta: 5, OccurredAt: t1}}, t1)

	assert.False(t, result.HasChanges)
	assert.Empty(t, result.Assignments)
	assert.Equal(t, 5.0, result.Users[0].Points)
	assert.Equal(t, t1, result.Watermark)
}

func TestMergeEventsAppliesTwiceThenOnce(t *testing.T) {
	// Applying a batch, committing the watermark, then re-running the same
	// batch plus one new event must count every delta exactly once.
	batch := []models.PointEvent{{Fid: 42, Delta: 5, OccurredAt: t1}}

	first := MergeEvents(nil, batch, time.Time{})
	require.True(t, first.HasChanges)

	second := MergeEvents(first.Users, append(batch, models.PointEvent{Fid: 42, Delta: -3.5, OccurredAt: t2}), first.Watermark)
	assert.True(t, second.HasChanges)
	assert.Equal(t, 1.5, second.Users[0].Points)
	assert.Equal(t, t2, second.Watermark)
	require.Len(t, second.Assignments, 1)
	assert.Equal(t, -3.5, second.Assignments[0].Points)
}

func TestMergeEventsRejectsNonFiniteTotal(t *testing.T) {
	existing := []models.User{resolvedUser(42, math.MaxFloat64)}
	events := []models.PointEvent{
		{Fid: 42, Delta: math.MaxFloat64, OccurredAt: t1}, // would overflow to +Inf
		{Fid: 42, Delta: 1, OccurredAt: t2},
	}

	result := MergeEvents(existing, events, time.Time{})

	// The overflowing event is dropped, the rest of the batch still lands.
	assert.Equal(t, math.MaxFloat64+1, result.Users[0].Points)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 1.0, result.Assignments[0].Points)
	assert.True(t, result.HasChanges)
	assert.Equal(t, t2, result.Watermark)
}

func TestMergeEventsStaleEventStillMarksNewUser(t *testing.T) {
	// A stale event for an unseen fid creates a provisional record but applies
	// no delta, so the run as a whole reports no changes.
	result := MergeEvents(nil, []models.PointEvent{{Fid: 7, Delta: 3, OccurredAt: t1}}, t1)

	assert.False(t, result.HasChanges)
	assert.Equal(t, []int64{7}, result.NewFids)
	require.Len(t, result.Users, 1)
	assert.Equal(t, 0.0, result.Users[0].Points)
}

func TestMergeEventsDropsCorruptExistingRecord(t *testing.T) {
	existing := []models.User{
		resolvedUser(1, 10),
		{Fid: 2, Username: "broken", DisplayName: "Broken", Pfp: "x", Points: math.NaN()},
	}

	result := MergeEvents(existing, nil, time.Time{})

	require.Len(t, result.Users, 1)
	assert.Equal(t, int64(1), result.Users[0].Fid)
}

func TestPublishLeaderboardSortsAndRanks(t *testing.T) {
	users := []models.User{
		resolvedUser(1, 2),
		resolvedUser(2, 10),
		resolvedUser(3, 2), // ties with fid 1, discovered later
		resolvedUser(4, -1),
	}

	entries, err := PublishLeaderboard(users)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, int64(2), entries[0].Fid)
	assert.Equal(t, 1, entries[0].Rank)

	// Ties preserve discovery order (stable sort).
	assert.Equal(t, int64(1), entries[1].Fid)
	assert.Equal(t, int64(3), entries[2].Fid)
	assert.Equal(t, int64(4), entries[3].Fid)
	assert.Equal(t, 4, entries[3].Rank)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].Points, entries[i].Points)
	}
}

func TestPublishLeaderboardExcludesProvisionalRecords(t *testing.T) {
	users := []models.User{
		resolvedUser(1, 5),
		{Fid: 2, Points: 99}, // details never resolved
	}

	entries, err := PublishLeaderboard(users)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Fid)
}

func TestPublishLeaderboardEmptyIsFatal(t *testing.T) {
	_, err := PublishLeaderboard([]models.User{{Fid: 2, Points: 99}})
	assert.ErrorIs(t, err, ErrEmptyLeaderboard)

	_, err = PublishLeaderboard(nil)
	assert.ErrorIs(t, err, ErrEmptyLeaderboard)
}
