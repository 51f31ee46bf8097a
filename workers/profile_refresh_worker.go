// workers/profile_refresh_worker.go
package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"lawn-points-service/services"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProfileRefreshWorker keeps display details (username, display name, pfp) of
// users already on the board in sync with the user directory. Handles and
// avatars drift over time; points are never touched here, so the watermark
// stays as the merge left it.
type ProfileRefreshWorker struct {
	store     services.BoardStore
	blob      services.BlobMirror
	directory services.UserDirectory
	interval  time.Duration
}

func NewProfileRefreshWorker(store services.BoardStore, blob services.BlobMirror, directory services.UserDirectory, interval time.Duration) *ProfileRefreshWorker {
	return &ProfileRefreshWorker{
		store:     store,
		blob:      blob,
		directory: directory,
		interval:  interval,
	}
}

func (w *ProfileRefreshWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Refresh Worker (directory → leaderboard details)…")
	go w.run(ctx)
}

func (w *ProfileRefreshWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.refreshProfiles(ctx); err != nil {
				log.Printf("❌ [PROFILES] Refresh failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Refresh Worker stopped")
			return
		}
	}
}

var titleCaser = cases.Title(language.English)

// refreshProfiles re-resolves every fid on the board in one batched directory
// call and rewrites the board only when something actually changed.
func (w *ProfileRefreshWorker) refreshProfiles(ctx context.Context) error {
	entries, err := w.store.LoadLeaderboard()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	fids := make([]int64, len(entries))
	for i, entry := range entries {
		fids[i] = entry.Fid
	}

	resolved, err := w.directory.FetchUsersBulk(ctx, fids)
	if err != nil {
		return err
	}

	var updated int
	for i := range entries {
		entry := &entries[i]
		details, ok := resolved[entry.Fid]
		if !ok || details.Username == "" {
			continue
		}

		displayName := details.DisplayName
		if displayName == "" {
			// The record is already published; a flaky directory response must
			// not knock it back to provisional. Derive a readable stand-in.
			displayName = titleCaser.String(details.Username)
		}
		pfp := details.PfpURL
		if pfp == "" {
			pfp = entry.Pfp
		}

		if entry.Username != details.Username || entry.DisplayName != displayName || entry.Pfp != pfp {
			entry.Username = details.Username
			entry.DisplayName = displayName
			entry.Pfp = pfp
			updated++
		}
	}

	if updated == 0 {
		return nil
	}

	if err := w.store.UpdateLeaderboard(entries); err != nil {
		return err
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if _, err := w.blob.PutLeaderboard(ctx, payload); err != nil {
		return err
	}

	log.Printf("✅ [PROFILES] Updated display details for %d user(s)", updated)
	return nil
}
