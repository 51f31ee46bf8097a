// models/leaderboard.go
package models

import (
	"math"
	"time"
)

// User is one leaderboard row, keyed by Farcaster fid.
// A record with empty Username/DisplayName/Pfp is provisional: it exists because
// a point assignment referenced the fid, but display details have not been
// resolved yet. Provisional records are never published.
type User struct {
	Fid         int64   `json:"fid"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Pfp         string  `json:"pfp"`
	Points      float64 `json:"points"`
}

// Valid reports whether the record may appear on the published leaderboard.
func (u User) Valid() bool {
	return u.Fid > 0 &&
		u.Username != "" &&
		u.DisplayName != "" &&
		u.Pfp != "" &&
		ValidPoints(u.Points)
}

// ValidPoints rejects NaN and ±Inf. Totals must stay finite no matter what
// deltas come in off the feed.
func ValidPoints(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}

// LeaderboardEntry is a published row: a valid User plus its positional rank.
type LeaderboardEntry struct {
	User
	Rank int `json:"rank"`
}

// PointEvent is one parsed point assignment: the cast's addressee gets Delta.
type PointEvent struct {
	Fid        int64     `json:"fid"`
	Delta      float64   `json:"delta"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PointAssignment is one line of the per-run change report.
type PointAssignment struct {
	Fid       int64     `json:"fid"`
	Username  string    `json:"username"`
	Points    float64   `json:"points"`
	NewTotal  float64   `json:"newTotal"`
	Timestamp time.Time `json:"timestamp"`
}

// RefreshStats summarizes one refresh run for the trigger response.
type RefreshStats struct {
	TotalUsers        int               `json:"totalUsers"`
	NewUsersProcessed int               `json:"newUsersProcessed"`
	CastsProcessed    int               `json:"castsProcessed"`
	EventsProcessed   int               `json:"eventsProcessed"`
	PointsAssignments []PointAssignment `json:"pointsAssignments"`
}
