package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
)

func TestDetailEnricher_Enrich_ProducesRecord(t *testing.T) {
	t.Parallel()
	metrics.Init()

	cat := newFakeCatalog()
	cat.details["OL1W"] = catalog.WorkDetail{
		Title:       "The Martian",
		Description: catalog.Description{Text: "Stranded on Mars."},
	}
	cat.ratings["OL1W"] = catalog.Ratings{
		Summary: catalog.RatingsSummary{Average: floatPtr(4.2)},
	}
	e := NewDetailEnricher(cat, zap.NewNop())

	out := e.Enrich(context.Background(), Candidate{
		WorkID:  "OL1W",
		Authors: []string{"Andy Weir", "Someone Else"},
	})

	require.True(t, out.Produced())
	require.Equal(t, "OL1W", out.WorkID)
	require.Equal(t, Record{
		WorkID:      "OL1W",
		Title:       "The Martian",
		Authors:     "Andy Weir, Someone Else",
		Description: "Stranded on Mars.",
		AvgRating:   floatPtr(4.2),
	}, out.Record)
}

func TestDetailEnricher_Enrich_DetailFailureDropsWork(t *testing.T) {
	t.Parallel()
	metrics.Init()

	cat := newFakeCatalog()
	cat.detailFail["OL2W"] = &catalog.Failure{
		URL:    "https://catalog.test/works/OL2W.json",
		Reason: catalog.ReasonStatus,
		Err:    errors.New("status 404"),
	}
	e := NewDetailEnricher(cat, zap.NewNop())

	out := e.Enrich(context.Background(), Candidate{WorkID: "OL2W"})

	require.False(t, out.Produced())
	require.Equal(t, "OL2W", out.WorkID)
	require.Equal(t, catalog.ReasonStatus, out.Failure.Reason)
	require.Zero(t, out.Record)
}

func TestDetailEnricher_Enrich_RatingsFailureKeepsRecord(t *testing.T) {
	t.Parallel()
	metrics.Init()

	cat := newFakeCatalog()
	cat.details["OL3W"] = catalog.WorkDetail{Title: "Dune"}
	cat.ratingFail["OL3W"] = &catalog.Failure{
		URL:    "https://catalog.test/works/OL3W/ratings.json",
		Reason: catalog.ReasonTransport,
		Err:    errors.New("connection refused"),
	}
	e := NewDetailEnricher(cat, zap.NewNop())

	out := e.Enrich(context.Background(), Candidate{WorkID: "OL3W", Authors: []string{"Frank Herbert"}})

	require.True(t, out.Produced())
	require.Equal(t, "Dune", out.Record.Title)
	require.Equal(t, "Frank Herbert", out.Record.Authors)
	require.Nil(t, out.Record.AvgRating)
}

func TestDetailEnricher_Enrich_MissingRatingAverageStaysUnset(t *testing.T) {
	t.Parallel()
	metrics.Init()

	cat := newFakeCatalog()
	cat.details["OL4W"] = catalog.WorkDetail{Title: "Unrated"}
	cat.ratings["OL4W"] = catalog.Ratings{} // catalog returned no average

	e := NewDetailEnricher(cat, zap.NewNop())
	out := e.Enrich(context.Background(), Candidate{WorkID: "OL4W"})

	require.True(t, out.Produced())
	require.Nil(t, out.Record.AvgRating)
	require.Empty(t, out.Record.Authors)
	require.Empty(t, out.Record.Description)
}

// --- fakes ---

type fakeCatalog struct {
	mu          sync.Mutex
	search      map[int]catalog.SearchResponse
	searchFail  *catalog.Failure
	details     map[string]catalog.WorkDetail
	detailFail  map[string]*catalog.Failure
	ratings     map[string]catalog.Ratings
	ratingFail  map[string]*catalog.Failure
	searchCalls  []int
	searchLimits []int
	detailCalls  []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		search:     map[int]catalog.SearchResponse{},
		details:    map[string]catalog.WorkDetail{},
		detailFail: map[string]*catalog.Failure{},
		ratings:    map[string]catalog.Ratings{},
		ratingFail: map[string]*catalog.Failure{},
	}
}

func (f *fakeCatalog) SearchPage(_ context.Context, page, limit int) (catalog.SearchResponse, *catalog.Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, page)
	f.searchLimits = append(f.searchLimits, limit)
	if f.searchFail != nil {
		return catalog.SearchResponse{}, f.searchFail
	}
	return f.search[page], nil
}

func (f *fakeCatalog) WorkDetail(_ context.Context, workID string) (catalog.WorkDetail, *catalog.Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, workID)
	if fail, ok := f.detailFail[workID]; ok {
		return catalog.WorkDetail{}, fail
	}
	return f.details[workID], nil
}

func (f *fakeCatalog) WorkRatings(_ context.Context, workID string) (catalog.Ratings, *catalog.Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fail, ok := f.ratingFail[workID]; ok {
		return catalog.Ratings{}, fail
	}
	return f.ratings[workID], nil
}

func floatPtr(f float64) *float64 {
	return &f
}
