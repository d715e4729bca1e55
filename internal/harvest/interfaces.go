package harvest

import (
	"context"
	"time"

	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
)

// Catalog is the read side of the remote catalog. Every call makes exactly
// one fetch attempt and reports failures as soft, non-fatal values.
type Catalog interface {
	SearchPage(ctx context.Context, page, limit int) (catalog.SearchResponse, *catalog.Failure)
	WorkDetail(ctx context.Context, workID string) (catalog.WorkDetail, *catalog.Failure)
	WorkRatings(ctx context.Context, workID string) (catalog.Ratings, *catalog.Failure)
}

// Store is the append-only incremental record store.
type Store interface {
	// Exists reports whether the store has been created by a prior run.
	Exists(ctx context.Context) (bool, error)
	// Keys returns every persisted work id.
	Keys(ctx context.Context) ([]string, error)
	// Append durably adds records; it never rewrites prior rows.
	Append(ctx context.Context, records []Record) error
}

// Publisher pushes append notifications after durable writes.
type Publisher interface {
	PublishAppended(ctx context.Context, evt AppendEvent) error
}

// Enricher resolves one candidate into a Record or the failure that
// dropped it.
type Enricher interface {
	Enrich(ctx context.Context, cand Candidate) Outcome
}

// PageRunner turns one search page into enriched records. The only error it
// returns is context cancellation; catalog trouble degrades to an empty or
// partial PageResult instead.
type PageRunner interface {
	Process(ctx context.Context, page int) (PageResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
