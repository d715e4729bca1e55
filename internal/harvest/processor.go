package harvest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
)

// PageProcessor fans candidate enrichment out under the admission gate and
// gathers the results behind a full barrier: Process returns only after
// every spawned enrichment has finished.
type PageProcessor struct {
	catalog  Catalog
	enricher Enricher
	gate     *Gate
	limit    int
	logger   *zap.Logger
}

// NewPageProcessor constructs a PageProcessor. limit is the per-page result
// count requested from the search endpoint.
func NewPageProcessor(cat Catalog, enricher Enricher, gate *Gate, limit int, logger *zap.Logger) *PageProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageProcessor{
		catalog:  cat,
		enricher: enricher,
		gate:     gate,
		limit:    limit,
		logger:   logger,
	}
}

// Process fetches one search page, validates its candidates, and enriches
// them concurrently. A slot is acquired before each goroutine spawns, so at
// most Capacity enrichments are ever live and admission follows candidate
// order.
func (p *PageProcessor) Process(ctx context.Context, page int) (PageResult, error) {
	resp, fail := p.catalog.SearchPage(ctx, page, p.limit)
	if fail != nil {
		return PageResult{SearchErr: fail}, nil
	}

	candidates := collectCandidates(resp.Docs)
	p.logger.Debug("search page fetched",
		zap.Int("page", page),
		zap.Int("docs", len(resp.Docs)),
		zap.Int("candidates", len(candidates)),
	)
	if len(candidates) == 0 {
		return PageResult{}, nil
	}

	outcomes := make(chan Outcome, len(candidates))
	var wg sync.WaitGroup
	var admitErr error
	for _, cand := range candidates {
		if err := p.gate.Acquire(ctx); err != nil {
			admitErr = err
			break
		}
		wg.Add(1)
		go func(cand Candidate) {
			defer wg.Done()
			defer p.gate.Release()
			outcomes <- p.enricher.Enrich(ctx, cand)
		}(cand)
	}
	wg.Wait()
	close(outcomes)

	if admitErr != nil {
		// The page is incomplete; discard it rather than append a partial
		// barrier's worth of records.
		for range outcomes {
		}
		return PageResult{}, fmt.Errorf("admit enrichment for page %d: %w", page, admitErr)
	}

	var res PageResult
	for out := range outcomes {
		if out.Produced() {
			res.Records = append(res.Records, out.Record)
		} else {
			res.Skipped = append(res.Skipped, out.WorkID)
		}
	}
	return res, nil
}

// collectCandidates validates search docs into candidates. Keys outside the
// works namespace are dropped without notice.
func collectCandidates(docs []catalog.SearchDoc) []Candidate {
	out := make([]Candidate, 0, len(docs))
	for _, doc := range docs {
		workID, ok := catalog.WorkIDFromKey(doc.Key)
		if !ok {
			continue
		}
		out = append(out, Candidate{WorkID: workID, Authors: doc.AuthorNames})
	}
	return out
}
