// models/store_entry.go
package models

import "time"

// StoreEntry is one key/value row backing the fast leaderboard store.
// Table name: store_entries
type StoreEntry struct {
	Key       string    `gorm:"primaryKey;type:varchar(128);not null" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
