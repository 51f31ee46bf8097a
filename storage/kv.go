// storage/kv.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lawn-points-service/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Key suffixes under the board namespace.
const (
	keyLeaderboard = "leaderboard"
	keyLastUpdate  = "lastUpdate"  // watermark: max occurredAt merged so far
	keyLastRefresh = "lastRefresh" // wall-clock time of the last completed run
)

// KVStore is the fast store for the serialized leaderboard and its watermark,
// backed by the store_entries table. Keys are namespaced by a slug of the
// configured board name so several boards can share one database.
type KVStore struct {
	db     *gorm.DB
	prefix string
}

func NewKVStore(db *gorm.DB, boardName string) *KVStore {
	return &KVStore{db: db, prefix: slug.Make(boardName)}
}

// Prefix returns the board namespace, e.g. "lawn-points".
func (s *KVStore) Prefix() string {
	return s.prefix
}

func (s *KVStore) key(suffix string) string {
	return s.prefix + ":" + suffix
}

// Get returns the raw value for a namespaced key. The second return is false
// when the key has never been written (or was reset).
func (s *KVStore) Get(suffix string) (string, bool, error) {
	var entry models.StoreEntry
	err := s.db.First(&entry, "key = ?", s.key(suffix)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", s.key(suffix), err)
	}
	return entry.Value, true, nil
}

func (s *KVStore) Set(suffix, value string) error {
	entry := models.StoreEntry{Key: s.key(suffix), Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("kv set %q: %w", s.key(suffix), err)
	}
	return nil
}

// LoadLeaderboard returns the persisted entries. A missing key yields an empty
// slice, not an error: a brand-new board starts from nothing.
func (s *KVStore) LoadLeaderboard() ([]models.LeaderboardEntry, error) {
	raw, ok, err := s.Get(keyLeaderboard)
	if err != nil || !ok {
		return nil, err
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("kv leaderboard payload corrupt: %w", err)
	}
	return entries, nil
}

// Watermark returns the persisted watermark, or the zero time when none is set.
func (s *KVStore) Watermark() (time.Time, error) {
	raw, ok, err := s.Get(keyLastUpdate)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("kv watermark %q unparseable: %w", raw, err)
	}
	return t, nil
}

// LastRefresh returns the RFC3339 wall-clock time of the last completed run,
// empty when no run has completed yet.
func (s *KVStore) LastRefresh() (string, error) {
	raw, _, err := s.Get(keyLastRefresh)
	return raw, err
}

// SaveLeaderboard commits a validated board, its watermark and the run time in
// one pass. Callers must only invoke this after the whole batch validated.
func (s *KVStore) SaveLeaderboard(entries []models.LeaderboardEntry, watermark, refreshedAt time.Time) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	if err := s.Set(keyLeaderboard, string(payload)); err != nil {
		return err
	}
	if err := s.Set(keyLastUpdate, watermark.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return s.Set(keyLastRefresh, refreshedAt.UTC().Format(time.RFC3339))
}

// UpdateLeaderboard rewrites the board payload without touching the watermark.
// Used by the profile refresh worker, which changes display details only.
func (s *KVStore) UpdateLeaderboard(entries []models.LeaderboardEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	return s.Set(keyLeaderboard, string(payload))
}

// Reset deletes the board, watermark and run marker. The next merge starts from
// an empty mapping.
func (s *KVStore) Reset() error {
	keys := []string{s.key(keyLeaderboard), s.key(keyLastUpdate), s.key(keyLastRefresh)}
	if err := s.db.Delete(&models.StoreEntry{}, "key IN ?", keys).Error; err != nil {
		return fmt.Errorf("kv reset: %w", err)
	}
	return nil
}
