package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	got := SearchURL("https://openlibrary.org", "fiction", 100, 3)
	require.Equal(t, "https://openlibrary.org/search.json?limit=100&page=3&subject=fiction", got)

	got = SearchURL("https://openlibrary.org/", "science fiction", 25, 1)
	require.Equal(t, "https://openlibrary.org/search.json?limit=25&page=1&subject=science+fiction", got)
}

func TestWorkAndRatingsURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://openlibrary.org/works/OL45883W.json", WorkURL("https://openlibrary.org", "OL45883W"))
	require.Equal(t, "https://openlibrary.org/works/OL45883W/ratings.json", RatingsURL("https://openlibrary.org/", "OL45883W"))
}

func TestWorkIDFromKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		wantID string
		wantOK bool
	}{
		{"plain work key", "/works/OL45883W", "OL45883W", true},
		{"nested segments keep last", "/works/v2/OL1W", "OL1W", true},
		{"missing prefix", "/books/OL45883W", "", false},
		{"author key", "/authors/OL23919A", "", false},
		{"bare prefix", "/works/", "", false},
		{"empty key", "", "", false},
		{"no leading slash", "works/OL1W", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, ok := WorkIDFromKey(tt.key)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantID, id)
		})
	}
}

func TestArchiveKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "search/fiction/p2.json", searchKey("fiction", 2))
	require.Equal(t, "search/science-fiction/p1.json", searchKey("science/fiction", 1))
	require.Equal(t, "works/OL1W.json", detailKey("OL1W"))
	require.Equal(t, "works/OL1W/ratings.json", ratingsKey("OL1W"))
}

func FuzzWorkIDFromKey(f *testing.F) {
	for _, seed := range []string{"/works/OL45883W", "/works/", "/authors/OL1A", "", "/works//"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, key string) {
		id, ok := WorkIDFromKey(key)
		if ok {
			if id == "" {
				t.Errorf("WorkIDFromKey(%q) accepted an empty identifier", key)
			}
			if strings.Contains(id, "/") {
				t.Errorf("WorkIDFromKey(%q) = %q contains a path separator", key, id)
			}
			if !strings.HasPrefix(key, WorkKeyPrefix) {
				t.Errorf("WorkIDFromKey(%q) accepted a key without the works prefix", key)
			}
		}
	})
}
