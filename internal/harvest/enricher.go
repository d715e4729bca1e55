package harvest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
)

// DetailEnricher resolves candidates against the catalog. The detail record
// is required; the rating summary is best-effort and leaves AvgRating unset
// when it cannot be fetched.
type DetailEnricher struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewDetailEnricher constructs a DetailEnricher.
func NewDetailEnricher(cat Catalog, logger *zap.Logger) *DetailEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailEnricher{catalog: cat, logger: logger}
}

// Enrich fetches the work detail and rating summary for one candidate. A
// detail failure drops the candidate; a ratings failure only costs the
// rating.
func (e *DetailEnricher) Enrich(ctx context.Context, cand Candidate) Outcome {
	metrics.IncEnrichInFlight()
	defer metrics.DecEnrichInFlight()

	detail, fail := e.catalog.WorkDetail(ctx, cand.WorkID)
	if fail != nil {
		metrics.ObserveEnrichment(metrics.OutcomeSkipped)
		e.logger.Debug("work dropped after detail failure",
			zap.String("work_id", cand.WorkID),
			zap.String("reason", fail.Reason),
		)
		return Outcome{WorkID: cand.WorkID, Failure: fail}
	}

	rec := Record{
		WorkID:      cand.WorkID,
		Title:       detail.Title,
		Authors:     strings.Join(cand.Authors, ", "),
		Description: detail.Description.Text,
	}
	if ratings, fail := e.catalog.WorkRatings(ctx, cand.WorkID); fail == nil {
		rec.AvgRating = ratings.Summary.Average
	}

	metrics.ObserveEnrichment(metrics.OutcomeProduced)
	return Outcome{WorkID: cand.WorkID, Record: rec}
}
