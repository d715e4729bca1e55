package harvest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

// Orchestrator drives a harvest run page by page. Pages run strictly in
// order and each page's records are durably appended before the next page
// starts. Only store faults abort a run; catalog trouble degrades to
// skipped work.
type Orchestrator struct {
	pages     int
	runner    PageRunner
	ledger    *Ledger
	store     Store
	publisher Publisher
	clock     Clock
	ids       IDGenerator
	emitter   progress.Emitter
	logger    *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. publisher may be nil when
// append notifications are disabled; emitter may be nil when progress
// reporting is off.
func NewOrchestrator(
	pages int,
	runner PageRunner,
	ledger *Ledger,
	store Store,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		pages:     pages,
		runner:    runner,
		ledger:    ledger,
		store:     store,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		logger:    logger,
	}
}

// Run executes one full harvest and reports its totals. The returned
// Summary is valid even when Run fails partway; it covers everything that
// was durably appended.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	runID, err := o.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("new run id: %w", err)
	}
	sum := Summary{RunID: runID, Started: o.clock.Now()}

	if err := o.seedLedger(ctx); err != nil {
		sum.Finished = o.clock.Now()
		return sum, err
	}

	o.logger.Info("harvest run starting",
		zap.String("run_id", runID),
		zap.Int("pages", o.pages),
		zap.Int("known_works", o.ledger.Len()),
	)
	o.emit(progress.Event{RunID: runID, Kind: progress.KindRunStart})

	for page := 1; page <= o.pages; page++ {
		if err := ctx.Err(); err != nil {
			return o.fail(&sum, fmt.Errorf("harvest canceled before page %d: %w", page, err))
		}
		if err := o.processPage(ctx, runID, page, &sum); err != nil {
			return o.fail(&sum, err)
		}
		sum.Pages++
	}

	sum.Finished = o.clock.Now()
	o.logger.Info("harvest run finished",
		zap.String("run_id", runID),
		zap.Int("pages", sum.Pages),
		zap.Int("appended", sum.Appended),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("dur", sum.Finished.Sub(sum.Started)),
	)
	o.emit(progress.Event{
		RunID: runID,
		Kind:  progress.KindRunDone,
		Count: int64(sum.Appended),
		Dur:   sum.Finished.Sub(sum.Started),
	})
	return sum, nil
}

// seedLedger rebuilds the dedup set from the store so reruns only append
// unseen works.
func (o *Orchestrator) seedLedger(ctx context.Context) error {
	exists, err := o.store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("probe store: %w", err)
	}
	if !exists {
		return nil
	}
	keys, err := o.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("read persisted keys: %w", err)
	}
	o.ledger.Seed(keys)
	return nil
}

func (o *Orchestrator) processPage(ctx context.Context, runID string, page int, sum *Summary) error {
	o.emit(progress.Event{RunID: runID, Kind: progress.KindPageStart, Page: page})
	start := o.clock.Now()

	res, err := o.runner.Process(ctx, page)
	if err != nil {
		metrics.ObservePage(metrics.OutcomeError)
		return fmt.Errorf("process page %d: %w", page, err)
	}

	sum.Skipped += len(res.Skipped)
	for _, workID := range res.Skipped {
		o.emit(progress.Event{RunID: runID, Kind: progress.KindEnrichSkip, Page: page, WorkID: workID})
	}
	if res.SearchErr != nil {
		metrics.ObservePage(metrics.OutcomeSkipped)
		o.logger.Warn("page skipped after search failure",
			zap.String("run_id", runID),
			zap.Int("page", page),
			zap.String("reason", res.SearchErr.Reason),
		)
		o.emit(progress.Event{
			RunID: runID,
			Kind:  progress.KindPageSkip,
			Page:  page,
			Note:  res.SearchErr.Reason,
		})
		return nil
	}

	fresh, dups := o.partition(res.Records)
	sum.Duplicates += len(dups)
	metrics.AddDuplicatesSkipped(len(dups))
	for _, workID := range dups {
		o.emit(progress.Event{RunID: runID, Kind: progress.KindDuplicateSkip, Page: page, WorkID: workID})
	}

	if len(fresh) == 0 {
		metrics.ObservePage(metrics.OutcomeNoNew)
		o.logger.Info("no new works on page",
			zap.String("run_id", runID),
			zap.Int("page", page),
			zap.Int("duplicates", len(dups)),
			zap.Int("skipped", len(res.Skipped)),
		)
		o.emit(progress.Event{
			RunID: runID,
			Kind:  progress.KindPageDone,
			Page:  page,
			Dur:   o.clock.Now().Sub(start),
		})
		return nil
	}

	if err := o.store.Append(ctx, fresh); err != nil {
		metrics.ObservePage(metrics.OutcomeError)
		return fmt.Errorf("append page %d: %w", page, err)
	}
	ids := workIDs(fresh)
	o.ledger.Add(ids...)
	sum.Appended += len(fresh)
	metrics.AddRecordsAppended(len(fresh))
	metrics.ObservePage(metrics.OutcomeAppended)

	for _, workID := range ids {
		o.emit(progress.Event{RunID: runID, Kind: progress.KindRecordAppend, Page: page, WorkID: workID})
	}
	o.notifyAppended(ctx, runID, page, ids)

	o.logger.Info("page appended",
		zap.String("run_id", runID),
		zap.Int("page", page),
		zap.Int("appended", len(fresh)),
		zap.Int("duplicates", len(dups)),
		zap.Int("skipped", len(res.Skipped)),
	)
	o.emit(progress.Event{
		RunID: runID,
		Kind:  progress.KindPageDone,
		Page:  page,
		Count: int64(len(fresh)),
		Dur:   o.clock.Now().Sub(start),
	})
	return nil
}

// partition splits enriched records into unseen work and duplicates. A
// batch-local set also collapses repeats within the page itself, so one
// append never writes the same work twice.
func (o *Orchestrator) partition(records []Record) ([]Record, []string) {
	var fresh []Record
	var dups []string
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if o.ledger.Has(rec.WorkID) {
			dups = append(dups, rec.WorkID)
			continue
		}
		if _, ok := seen[rec.WorkID]; ok {
			dups = append(dups, rec.WorkID)
			continue
		}
		seen[rec.WorkID] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh, dups
}

// notifyAppended is best-effort: a publish failure costs the notification,
// never the run.
func (o *Orchestrator) notifyAppended(ctx context.Context, runID string, page int, ids []string) {
	if o.publisher == nil {
		return
	}
	evt := AppendEvent{
		RunID:   runID,
		Page:    page,
		WorkIDs: ids,
		Count:   len(ids),
		At:      o.clock.Now(),
	}
	if err := o.publisher.PublishAppended(ctx, evt); err != nil {
		metrics.ObserveNotification(metrics.OutcomeError)
		o.logger.Warn("append notification failed",
			zap.String("run_id", runID),
			zap.Int("page", page),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveNotification(metrics.OutcomeOK)
}

func (o *Orchestrator) fail(sum *Summary, err error) (Summary, error) {
	sum.Finished = o.clock.Now()
	o.logger.Error("harvest run failed",
		zap.String("run_id", sum.RunID),
		zap.Int("pages", sum.Pages),
		zap.Int("appended", sum.Appended),
		zap.Error(err),
	)
	o.emit(progress.Event{
		RunID: sum.RunID,
		Kind:  progress.KindRunError,
		Dur:   sum.Finished.Sub(sum.Started),
		Note:  err.Error(),
	})
	return *sum, err
}

func (o *Orchestrator) emit(evt progress.Event) {
	evt.At = o.clock.Now()
	o.emitter.Emit(evt)
}

func workIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.WorkID
	}
	return ids
}
