// Package harvest defines core types shared across subsystems.
package harvest

import (
	"time"

	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
)

// Candidate is one work reference lifted off a search page. Authors travels
// with the candidate because the catalog only reports author names on the
// search document, not on the work detail.
type Candidate struct {
	WorkID  string
	Authors []string
}

// Record is one fully enriched work, ready for the incremental store.
type Record struct {
	WorkID      string   `json:"work_id"`
	Title       string   `json:"title"`
	Authors     string   `json:"authors"`
	Description string   `json:"description"`
	AvgRating   *float64 `json:"avg_rating,omitempty"`
}

// Outcome is the result of enriching one candidate: a Record, or the soft
// failure that dropped it.
type Outcome struct {
	WorkID  string
	Record  Record
	Failure *catalog.Failure
}

// Produced reports whether the outcome carries a usable record.
func (o Outcome) Produced() bool {
	return o.Failure == nil
}

// PageResult reports what one search page produced. Records follow
// enrichment completion order, not search order.
type PageResult struct {
	Records []Record
	// Skipped lists work ids dropped by enrichment soft failures.
	Skipped []string
	// SearchErr is set when the search fetch itself soft-failed; the page
	// then contributes nothing and the run moves on.
	SearchErr *catalog.Failure
}

// Summary totals one completed harvest run.
type Summary struct {
	RunID      string `json:"run_id"`
	Pages      int    `json:"pages"`
	Appended   int    `json:"appended"`
	Duplicates int    `json:"duplicates"`
	// Skipped counts works dropped by enrichment soft failures.
	Skipped  int       `json:"skipped"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`
}

// AppendEvent is published after a page's records are durably appended.
type AppendEvent struct {
	RunID   string    `json:"run_id"`
	Page    int       `json:"page"`
	WorkIDs []string  `json:"work_ids"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}
