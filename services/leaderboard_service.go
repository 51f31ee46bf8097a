// services/leaderboard_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"lawn-points-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FeedSource is the admin-cast feed the extractor scans.
type FeedSource interface {
	FetchAdminCasts(ctx context.Context, fid int64, limit int) ([]Cast, error)
}

// UserDirectory resolves fids and usernames to display details.
type UserDirectory interface {
	FetchUsersBulk(ctx context.Context, fids []int64) (map[int64]DirectoryUser, error)
	LookupUserByUsername(ctx context.Context, username string) (*DirectoryUser, error)
}

// BlobMirror is the durable copy of the published board.
type BlobMirror interface {
	PutLeaderboard(ctx context.Context, payload []byte) (string, error)
	GetLeaderboard(ctx context.Context) ([]byte, error)
}

// BoardStore is the fast store for the board, watermark and run marker.
// Satisfied by *storage.KVStore.
type BoardStore interface {
	LoadLeaderboard() ([]models.LeaderboardEntry, error)
	Watermark() (time.Time, error)
	LastRefresh() (string, error)
	SaveLeaderboard(entries []models.LeaderboardEntry, watermark, refreshedAt time.Time) error
	UpdateLeaderboard(entries []models.LeaderboardEntry) error
	Reset() error
	Prefix() string
}

// LeaderboardService owns the refresh pipeline (fetch → extract → merge →
// resolve → publish → persist) and the HTTP handlers around it.
type LeaderboardService struct {
	Store     BoardStore
	Blob      BlobMirror
	Feed      FeedSource
	Directory UserDirectory

	AdminFid  int64
	CastLimit int
}

func NewLeaderboardService(store BoardStore, blob BlobMirror, feed FeedSource, directory UserDirectory, adminFid int64) *LeaderboardService {
	return &LeaderboardService{
		Store:     store,
		Blob:      blob,
		Feed:      feed,
		Directory: directory,
		AdminFid:  adminFid,
		CastLimit: 150,
	}
}

// RefreshOutcome summarizes one refresh run.
type RefreshOutcome struct {
	RunID     string                    `json:"runId"`
	Success   bool                      `json:"success"`
	Message   string                    `json:"message"`
	Data      []models.LeaderboardEntry `json:"data"`
	BlobURL   string                    `json:"blobUrl,omitempty"`
	Timestamp string                    `json:"timestamp,omitempty"`
	Stats     models.RefreshStats       `json:"stats"`
}

// loadBoard reads the persisted board from the fast store, falling back to the
// blob mirror when the fast store is empty (e.g. after a cache loss).
func (s *LeaderboardService) loadBoard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.Store.LoadLeaderboard()
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	// A board that was never published has no mirror: the store reports that
	// as an empty payload, which is a valid fresh start. A read *failure* is
	// different — proceeding would rebuild from nothing and overwrite the only
	// durable copy, so it aborts the caller's run instead.
	payload, err := s.Blob.GetLeaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard mirror: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("blob mirror payload corrupt: %w", err)
	}
	log.Printf("♻️ [BOARD] Recovered %d entries from blob mirror", len(entries))
	return entries, nil
}

// Refresh runs one extract-merge-persist cycle. Any external-call failure
// aborts the run and leaves the persisted board untouched; persistence happens
// once, after the whole batch validated.
func (s *LeaderboardService) Refresh(ctx context.Context) (*RefreshOutcome, error) {
	runID := uuid.NewString()
	log.Printf("🔄 [REFRESH %s] Starting leaderboard refresh (admin fid %d)", runID, s.AdminFid)

	entries, err := s.loadBoard(ctx)
	if err != nil {
		return nil, err
	}
	existing := make([]models.User, len(entries))
	for i, e := range entries {
		existing[i] = e.User
	}

	watermark, err := s.Store.Watermark()
	if err != nil {
		return nil, err
	}

	casts, err := s.Feed.FetchAdminCasts(ctx, s.AdminFid, s.CastLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch admin casts: %w", err)
	}

	events := ExtractPointEvents(casts)
	result := MergeEvents(existing, events, watermark)

	stats := models.RefreshStats{
		TotalUsers:        len(entries),
		CastsProcessed:    len(casts),
		EventsProcessed:   len(events),
		PointsAssignments: []models.PointAssignment{},
	}

	if !result.HasChanges {
		log.Printf("✅ [REFRESH %s] No new changes to process (%d casts, %d events, watermark %s)",
			runID, len(casts), len(events), formatWatermark(watermark))
		return &RefreshOutcome{
			RunID:     runID,
			Success:   true,
			Message:   "No new changes to process",
			Data:      entries,
			Timestamp: formatWatermark(watermark),
			Stats:     stats,
		}, nil
	}

	if len(result.NewFids) > 0 {
		log.Printf("👥 [REFRESH %s] Resolving details for %d new user(s)", runID, len(result.NewFids))
		resolved, err := s.Directory.FetchUsersBulk(ctx, result.NewFids)
		if err != nil {
			return nil, fmt.Errorf("resolve user details: %w", err)
		}
		for i := range result.Users {
			user := &result.Users[i]
			details, ok := resolved[user.Fid]
			if !ok || user.Username != "" {
				continue
			}
			if details.Username == "" || details.DisplayName == "" || details.PfpURL == "" {
				log.Printf("⚠️ [REFRESH %s] Incomplete directory details for fid %d, leaving provisional", runID, user.Fid)
				continue
			}
			user.Username = details.Username
			user.DisplayName = details.DisplayName
			user.Pfp = details.PfpURL
		}
		// Backfill usernames into the change report now that they are known.
		byFid := make(map[int64]string, len(result.Users))
		for _, user := range result.Users {
			byFid[user.Fid] = user.Username
		}
		for i := range result.Assignments {
			if result.Assignments[i].Username == "" {
				result.Assignments[i].Username = byFid[result.Assignments[i].Fid]
			}
		}
	}

	published, err := PublishLeaderboard(result.Users)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(published)
	if err != nil {
		return nil, fmt.Errorf("marshal published leaderboard: %w", err)
	}

	blobURL, err := s.Blob.PutLeaderboard(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("mirror leaderboard to blob: %w", err)
	}
	now := time.Now()
	if err := s.Store.SaveLeaderboard(published, result.Watermark, now); err != nil {
		return nil, err
	}

	stats.TotalUsers = len(published)
	stats.NewUsersProcessed = len(result.NewFids)
	stats.PointsAssignments = result.Assignments

	log.Printf("✅ [REFRESH %s] Leaderboard refreshed: %d users, %d assignment(s), watermark %s",
		runID, len(published), len(result.Assignments), formatWatermark(result.Watermark))

	return &RefreshOutcome{
		RunID:     runID,
		Success:   true,
		Message:   "Leaderboard refreshed successfully",
		Data:      published,
		BlobURL:   blobURL,
		Timestamp: formatWatermark(result.Watermark),
		Stats:     stats,
	}, nil
}

func formatWatermark(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// --- HTTP handlers ---

// GetLeaderboard serves the published board. Callers holding the latest
// watermark (?since= or If-None-Match) get 304 with no body.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	watermark, err := s.Store.Watermark()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load leaderboard", "details": err.Error()})
	}
	watermarkStr := formatWatermark(watermark)

	if watermarkStr != "" {
		since := c.Query("since")
		etag := strings.Trim(c.Get("If-None-Match"), `"`)
		if since == watermarkStr || etag == watermarkStr {
			return c.SendStatus(fiber.StatusNotModified)
		}
	}

	entries, err := s.loadBoard(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load leaderboard", "details": err.Error()})
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	lastRefresh, err := s.Store.LastRefresh()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load leaderboard", "details": err.Error()})
	}

	if watermarkStr != "" {
		c.Set("ETag", `"`+watermarkStr+`"`)
	}
	return c.JSON(fiber.Map{
		"data":        entries,
		"lastUpdate":  watermarkStr,
		"lastRefresh": lastRefresh,
	})
}

// RefreshLeaderboard is the secured manual trigger.
func (s *LeaderboardService) RefreshLeaderboard(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	outcome, err := s.Refresh(ctx)
	if err != nil {
		log.Printf("❌ [REFRESH] Run failed: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to refresh leaderboard",
			"details": err.Error(),
		})
	}
	return c.JSON(outcome)
}

// ResetLeaderboard wipes the persisted board and watermark. Destructive and
// explicit: the next refresh starts from an empty mapping.
func (s *LeaderboardService) ResetLeaderboard(c *fiber.Ctx) error {
	if err := s.Store.Reset(); err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to reset leaderboard", "details": err.Error()})
	}
	// Overwrite the mirror too, so recovery cannot resurrect the wiped board.
	if _, err := s.Blob.PutLeaderboard(c.Context(), []byte("[]")); err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to reset leaderboard mirror", "details": err.Error()})
	}
	log.Printf("🧹 [RESET] Leaderboard %q wiped by administrator", s.Store.Prefix())
	return c.JSON(fiber.Map{"success": true, "message": "Leaderboard reset"})
}

// GetCasts returns the admin's recent casts (the extractor's input window).
func (s *LeaderboardService) GetCasts(c *fiber.Ctx) error {
	casts, err := s.Feed.FetchAdminCasts(c.Context(), s.AdminFid, s.CastLimit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch casts", "details": err.Error()})
	}
	return c.JSON(casts)
}

// GetUserPoints resolves a username and returns that user's published points,
// zero when the user is not on the board.
func (s *LeaderboardService) GetUserPoints(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Params("username"))
	if username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}

	user, err := s.Directory.LookupUserByUsername(c.Context(), username)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to look up user", "details": err.Error()})
	}
	if user == nil {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}

	entries, err := s.loadBoard(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load leaderboard", "details": err.Error()})
	}

	points := 0.0
	for _, entry := range entries {
		if entry.Fid == user.Fid {
			points = entry.Points
			break
		}
	}
	return c.JSON(fiber.Map{
		"fid":      user.Fid,
		"username": user.Username,
		"points":   points,
	})
}
