package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/muzik-tools/bandsync/internal/shared"
)

func TestParsePurchaseDate(t *testing.T) {
	t.Run("valid date", func(t *testing.T) {
		got := ParsePurchaseDate("14 Feb 2024 09:30:00 GMT")
		if got.IsZero() {
			t.Fatal("expected parsed time")
		}
		if got.Year() != 2024 || got.Month() != time.February || got.Day() != 14 {
			t.Errorf("unexpected date: %v", got)
		}
	})

	t.Run("invalid date returns zero", func(t *testing.T) {
		if got := ParsePurchaseDate("2024-02-14"); !got.IsZero() {
			t.Errorf("expected zero time, got %v", got)
		}
		if got := ParsePurchaseDate(""); !got.IsZero() {
			t.Errorf("expected zero time for empty string, got %v", got)
		}
	})
}

func TestCollectionItemDisplay(t *testing.T) {
	item := CollectionItem{ID: "a123", Title: "Album", Artist: "Artist"}
	if got := item.Display(); got != "Artist - Album" {
		t.Errorf("unexpected display: %q", got)
	}

	bare := CollectionItem{ID: "a123"}
	if got := bare.Display(); got != "a123" {
		t.Errorf("expected ID fallback, got %q", got)
	}
}

func TestDigitalItem(t *testing.T) {
	t.Run("IsSingle", func(t *testing.T) {
		cases := []struct {
			name string
			item DigitalItem
			want bool
		}{
			{"download type t", DigitalItem{DownloadType: "t"}, true},
			{"download type str track", DigitalItem{DownloadTypeStr: "track"}, true},
			{"item type track", DigitalItem{ItemType: "track"}, true},
			{"album", DigitalItem{DownloadType: "a", ItemType: "album"}, false},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := tc.item.IsSingle(); got != tc.want {
					t.Errorf("IsSingle() = %v, want %v", got, tc.want)
				}
			})
		}
	})

	t.Run("ReleaseYear", func(t *testing.T) {
		item := DigitalItem{ReleaseDate: "01 Jun 2019 00:00:00 GMT"}
		if got := item.ReleaseYear(); got != "2019" {
			t.Errorf("expected 2019, got %q", got)
		}

		unknown := DigitalItem{}
		if got := unknown.ReleaseYear(); got != "0000" {
			t.Errorf("expected 0000, got %q", got)
		}
	})

	t.Run("DestinationDir", func(t *testing.T) {
		item := DigitalItem{
			Title:       "Self/Titled",
			Artist:      "AC/DC",
			ReleaseDate: "01 Jun 2019 00:00:00 GMT",
		}

		got := item.DestinationDir("/music")
		want := filepath.Join("/music", "AC／DC", "Self／Titled (2019)")
		if got != want {
			t.Errorf("DestinationDir = %q, want %q", got, want)
		}
	})
}

func TestAuthSessionCookieHeader(t *testing.T) {
	session := &AuthSession{
		Username: "fan",
		Cookies: []shared.Cookie{
			{Name: "identity", Value: "abc"},
			{Name: "session", Value: "xyz"},
		},
	}

	if got := session.CookieHeader(); got != "identity=abc; session=xyz" {
		t.Errorf("unexpected header: %q", got)
	}
}

func TestEntryStatus(t *testing.T) {
	for _, s := range []EntryStatus{StatusPending, StatusComplete, StatusFailed} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if EntryStatus("bogus").Valid() {
		t.Error("expected bogus status to be invalid")
	}
}

func TestCacheEntryFetchEligible(t *testing.T) {
	cases := map[EntryStatus]bool{
		StatusPending:  true,
		StatusFailed:   true,
		StatusComplete: false,
	}

	for status, want := range cases {
		entry := CacheEntry{Status: status}
		if got := entry.FetchEligible(); got != want {
			t.Errorf("FetchEligible(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestNewSyncSession(t *testing.T) {
	session := NewSyncSession(&AuthSession{Username: "fan"})

	if session.ID == "" {
		t.Error("expected run ID")
	}
	if session.Session.Username != "fan" {
		t.Error("expected auth session to be carried")
	}
	if session.StartedAt.IsZero() {
		t.Error("expected start timestamp")
	}
}

func TestFetchReport(t *testing.T) {
	report := &FetchReport{
		Succeeded: []FetchResult{
			{Item: CollectionItem{ID: "a1"}, Path: "/music/a/b"},
			{Item: CollectionItem{ID: "t2"}, Path: "/music/c/d.flac"},
		},
		Failed: []FetchResult{
			{Item: CollectionItem{ID: "a3"}},
		},
	}

	t.Run("Handoff", func(t *testing.T) {
		handoff := report.Handoff()
		if len(handoff) != 2 {
			t.Fatalf("expected 2 hand-off entries, got %d", len(handoff))
		}
		if handoff[0].ItemID != "a1" || handoff[0].Path != "/music/a/b" {
			t.Errorf("unexpected hand-off entry: %+v", handoff[0])
		}
	})

	t.Run("Ok", func(t *testing.T) {
		if report.Ok() {
			t.Error("expected Ok to be false with failures")
		}
		clean := &FetchReport{}
		if !clean.Ok() {
			t.Error("expected Ok for empty report")
		}
	})
}
