package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/vclock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(userID, itemID string) model.WatchlistItem {
	return model.WatchlistItem{
		ItemID:    itemID,
		UserID:    userID,
		Title:     "Dune",
		PosterURL: "https://img.example/dune.jpg",
		AddedAt:   time.UnixMilli(100).UTC(),
		UpdatedAt: time.UnixMilli(100).UTC(),
		Clock:     vclock.Clock{"device-a": 1},
		DeviceID:  "device-a",
	}
}

func TestPutItem_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := testItem("user-1", "42")
	rating := 8.5
	want.Rating = &rating
	want.ReleaseYear = 2021

	if err := s.PutItem(ctx, want); err != nil {
		t.Fatalf("PutItem() failed: %v", err)
	}

	got, ok, err := s.GetItem(ctx, "user-1", "42")
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}
	if !ok {
		t.Fatal("GetItem() did not find the record")
	}

	if got.Title != want.Title || got.PosterURL != want.PosterURL || got.ReleaseYear != want.ReleaseYear {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Rating == nil || *got.Rating != rating {
		t.Errorf("rating = %v, want %v", got.Rating, rating)
	}
	if !got.AddedAt.Equal(want.AddedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.AddedAt, got.UpdatedAt, want.AddedAt, want.UpdatedAt)
	}
	if vclock.Compare(got.Clock, want.Clock) != vclock.Concurrent || got.Clock.Counter("device-a") != 1 {
		t.Errorf("clock = %v, want %v", got.Clock, want.Clock)
	}
}

func TestPutItem_UpsertReplacesFully(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testItem("user-1", "42")
	rating := 9.0
	first.Rating = &rating
	if err := s.PutItem(ctx, first); err != nil {
		t.Fatalf("first PutItem() failed: %v", err)
	}

	// Second version drops the rating; the upsert must not keep the old one.
	second := testItem("user-1", "42")
	second.Title = "Dune: Part Two"
	second.UpdatedAt = time.UnixMilli(200).UTC()
	second.Clock = vclock.Clock{"device-a": 2}
	if err := s.PutItem(ctx, second); err != nil {
		t.Fatalf("second PutItem() failed: %v", err)
	}

	got, ok, err := s.GetItem(ctx, "user-1", "42")
	if err != nil || !ok {
		t.Fatalf("GetItem() failed: ok=%v err=%v", ok, err)
	}
	if got.Title != "Dune: Part Two" {
		t.Errorf("title = %q, expected replacement", got.Title)
	}
	if got.Rating != nil {
		t.Errorf("rating = %v, expected full replacement to clear it", *got.Rating)
	}
	if got.Clock.Counter("device-a") != 2 {
		t.Errorf("clock = %v, expected {device-a:2}", got.Clock)
	}
}

func TestGetItems_ScopedPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testItem("user-1", "42")
	b := testItem("user-1", "77")
	b.AddedAt = time.UnixMilli(200).UTC()
	other := testItem("user-2", "42")

	for _, item := range []model.WatchlistItem{a, b, other} {
		if err := s.PutItem(ctx, item); err != nil {
			t.Fatalf("PutItem() failed: %v", err)
		}
	}

	items, err := s.GetItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	// Ordered by added_at
	if items[0].ItemID != "42" || items[1].ItemID != "77" {
		t.Errorf("order = [%s %s], want [42 77]", items[0].ItemID, items[1].ItemID)
	}
}

func TestDeleteItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutItem(ctx, testItem("user-1", "42")); err != nil {
		t.Fatalf("PutItem() failed: %v", err)
	}
	if err := s.DeleteItem(ctx, "user-1", "42"); err != nil {
		t.Fatalf("DeleteItem() failed: %v", err)
	}

	_, ok, err := s.GetItem(ctx, "user-1", "42")
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}
	if ok {
		t.Error("record still present after delete")
	}

	// Deleting a missing key is a no-op
	if err := s.DeleteItem(ctx, "user-1", "42"); err != nil {
		t.Errorf("second DeleteItem() failed: %v", err)
	}
}

func TestRecords_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.PutItem(ctx, testItem("user-1", "42")); err != nil {
		t.Fatalf("PutItem() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	_, ok, err := s2.GetItem(ctx, "user-1", "42")
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}
	if !ok {
		t.Error("record lost across reopen")
	}
}
