// Package model defines the domain types shared by the watchlist sync
// engine: durable records, queued sync operations, and their validation.
package model

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/shelfsync/internal/vclock"
)

// ItemKey is the composite identity of a watchlist record.
// Uniqueness is per-user, not global.
type ItemKey struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

// WatchlistItem is the durable record for a saved title.
//
// Clock carries the per-device causal history of the record. The entry for
// DeviceID is non-decreasing across every version that device produces; a
// record whose clock strictly dominates another causally supersedes it.
type WatchlistItem struct {
	ItemID      string       `json:"item_id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	PosterURL   string       `json:"poster_url,omitempty"`
	ReleaseYear int          `json:"release_year,omitempty"`
	Rating      *float64     `json:"rating,omitempty"`
	AddedAt     time.Time    `json:"added_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Clock       vclock.Clock `json:"vector_clock"`
	DeviceID    string       `json:"device_id"`
}

// Key returns the record's composite key.
func (i WatchlistItem) Key() ItemKey {
	return ItemKey{UserID: i.UserID, ItemID: i.ItemID}
}

// Clone returns a deep copy of the item (the clock map is copied).
func (i WatchlistItem) Clone() WatchlistItem {
	out := i
	out.Clock = i.Clock.Clone()
	if i.Rating != nil {
		r := *i.Rating
		out.Rating = &r
	}
	return out
}

// NormalizeTitle returns the title in Unicode NFC form.
//
// Titles are typed independently on multiple devices; composed and decomposed
// forms of the same string must compare equal before they reach the store.
func NormalizeTitle(title string) string {
	return norm.NFC.String(title)
}
