package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

func TestOrchestrator_Run_AppendsThenAdmitsLedger(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W"), testRec("OL2W")}}
	runner.results[2] = PageResult{Records: []Record{testRec("OL2W"), testRec("OL3W")}, Skipped: []string{"OL9W"}}
	store := &fakeStore{}
	pub := &fakeAppendPublisher{}
	emitter := &captureEmitter{}
	ledger := NewLedger()

	o := NewOrchestrator(2, runner, ledger, store, pub, testClock(), fakeIDs{id: "run-1"}, emitter, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, "run-1", sum.RunID)
	require.Equal(t, 2, sum.Pages)
	require.Equal(t, 3, sum.Appended)
	require.Equal(t, 1, sum.Duplicates)
	require.Equal(t, 1, sum.Skipped)

	require.Equal(t, [][]Record{
		{testRec("OL1W"), testRec("OL2W")},
		{testRec("OL3W")},
	}, store.snapshotAppends())

	for _, id := range []string{"OL1W", "OL2W", "OL3W"} {
		require.True(t, ledger.Has(id), "ledger missing %s", id)
	}

	events := pub.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, []string{"OL1W", "OL2W"}, events[0].WorkIDs)
	require.Equal(t, 1, events[0].Page)
	require.Equal(t, []string{"OL3W"}, events[1].WorkIDs)
	require.Equal(t, 1, events[1].Count)

	counts := emitter.kindCounts()
	require.Equal(t, 1, counts[progress.KindRunStart])
	require.Equal(t, 2, counts[progress.KindPageStart])
	require.Equal(t, 3, counts[progress.KindRecordAppend])
	require.Equal(t, 1, counts[progress.KindDuplicateSkip])
	require.Equal(t, 1, counts[progress.KindEnrichSkip])
	require.Equal(t, 2, counts[progress.KindPageDone])
	require.Equal(t, 1, counts[progress.KindRunDone])

	for _, evt := range emitter.snapshot() {
		require.NoError(t, evt.Validate())
		require.Equal(t, "run-1", evt.RunID)
	}
}

func TestOrchestrator_Run_SeedsLedgerFromExistingStore(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W"), testRec("OL2W")}}
	store := &fakeStore{exists: true, keys: []string{"OL1W"}}

	o := NewOrchestrator(1, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-2"}, nil, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, sum.Appended)
	require.Equal(t, 1, sum.Duplicates)
	require.Equal(t, [][]Record{{testRec("OL2W")}}, store.snapshotAppends())
}

func TestOrchestrator_Run_SearchFailurePageSkips(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{SearchErr: &catalog.Failure{
		URL:    "https://catalog.test/search.json?page=1",
		Reason: catalog.ReasonStatus,
	}}
	runner.results[2] = PageResult{Records: []Record{testRec("OL1W")}}
	store := &fakeStore{}
	emitter := &captureEmitter{}

	o := NewOrchestrator(2, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-3"}, emitter, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, sum.Pages)
	require.Equal(t, 1, sum.Appended)
	require.Len(t, store.snapshotAppends(), 1)

	skips := emitter.byKind(progress.KindPageSkip)
	require.Len(t, skips, 1)
	require.Equal(t, 1, skips[0].Page)
	require.Equal(t, catalog.ReasonStatus, skips[0].Note)
}

func TestOrchestrator_Run_NoNewRecordsContinues(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W")}}
	runner.results[2] = PageResult{Records: []Record{testRec("OL1W")}}
	store := &fakeStore{}
	emitter := &captureEmitter{}

	o := NewOrchestrator(2, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-4"}, emitter, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, sum.Pages)
	require.Equal(t, 1, sum.Appended)
	require.Equal(t, 1, sum.Duplicates)
	require.Len(t, store.snapshotAppends(), 1)

	dones := emitter.byKind(progress.KindPageDone)
	require.Len(t, dones, 2)
	require.Equal(t, int64(1), dones[0].Count)
	require.Zero(t, dones[1].Count)
}

func TestOrchestrator_Run_AppendFailureAborts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W")}}
	runner.results[2] = PageResult{Records: []Record{testRec("OL2W")}}
	runner.results[3] = PageResult{Records: []Record{testRec("OL3W")}}
	store := &fakeStore{failOn: 2, appendErr: errors.New("disk full")}
	pub := &fakeAppendPublisher{}
	emitter := &captureEmitter{}
	ledger := NewLedger()

	o := NewOrchestrator(3, runner, ledger, store, pub, testClock(), fakeIDs{id: "run-5"}, emitter, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "append page 2")
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, 1, sum.Pages)
	require.Equal(t, 1, sum.Appended)
	require.Equal(t, []int{1, 2}, runner.snapshotCalls())

	// Nothing from the failed page leaks into the ledger or notifications.
	require.False(t, ledger.Has("OL2W"))
	require.Len(t, pub.snapshot(), 1)
	require.Len(t, emitter.byKind(progress.KindRunError), 1)
	require.Empty(t, emitter.byKind(progress.KindRunDone))
}

func TestOrchestrator_Run_StoreProbeFailureAborts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	store := &fakeStore{existsErr: errors.New("stat failed")}
	emitter := &captureEmitter{}

	o := NewOrchestrator(1, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-6"}, emitter, zap.NewNop())
	_, err := o.Run(context.Background())

	require.ErrorContains(t, err, "probe store")
	require.Empty(t, runner.snapshotCalls())
	require.Empty(t, emitter.snapshot())
}

func TestOrchestrator_Run_KeyReadFailureAborts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	store := &fakeStore{exists: true, keysErr: errors.New("corrupt header")}

	o := NewOrchestrator(1, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-7"}, nil, zap.NewNop())
	_, err := o.Run(context.Background())

	require.ErrorContains(t, err, "read persisted keys")
	require.Empty(t, runner.snapshotCalls())
}

func TestOrchestrator_Run_PublishFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W")}}
	store := &fakeStore{}
	pub := &fakeAppendPublisher{err: errors.New("pubsub down")}

	o := NewOrchestrator(1, runner, NewLedger(), store, pub, testClock(), fakeIDs{id: "run-8"}, nil, zap.NewNop())
	sum, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, sum.Appended)
	require.Len(t, store.snapshotAppends(), 1)
}

func TestOrchestrator_Run_CancelStopsBetweenPages(t *testing.T) {
	t.Parallel()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newFakeRunner()
	runner.results[1] = PageResult{Records: []Record{testRec("OL1W")}}
	runner.results[2] = PageResult{Records: []Record{testRec("OL2W")}}
	runner.onPage = func(int) { cancel() }
	store := &fakeStore{}
	emitter := &captureEmitter{}

	o := NewOrchestrator(2, runner, NewLedger(), store, nil, testClock(), fakeIDs{id: "run-9"}, emitter, zap.NewNop())
	sum, err := o.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, sum.Pages)
	require.Equal(t, 1, sum.Appended)
	require.Equal(t, []int{1}, runner.snapshotCalls())
	require.Len(t, emitter.byKind(progress.KindRunError), 1)
}

func TestOrchestrator_Run_IDGenerationFailureAborts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	runner := newFakeRunner()
	store := &fakeStore{}

	o := NewOrchestrator(1, runner, NewLedger(), store, nil, testClock(), fakeIDs{err: errors.New("entropy exhausted")}, nil, zap.NewNop())
	_, err := o.Run(context.Background())

	require.ErrorContains(t, err, "new run id")
	require.Empty(t, store.snapshotAppends())
}

// --- fakes ---

func testRec(id string) Record {
	return Record{WorkID: id, Title: "Title " + id}
}

func testClock() Clock {
	return fixedClock{now: time.Unix(1700000000, 0).UTC()}
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[int]PageResult
	errs    map[int]error
	calls   []int
	onPage  func(page int)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[int]PageResult{},
		errs:    map[int]error{},
	}
}

func (r *fakeRunner) Process(_ context.Context, page int) (PageResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, page)
	res := r.results[page]
	err := r.errs[page]
	hook := r.onPage
	r.mu.Unlock()
	if hook != nil {
		hook(page)
	}
	return res, err
}

func (r *fakeRunner) snapshotCalls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

type fakeStore struct {
	mu         sync.Mutex
	exists     bool
	keys       []string
	appends    [][]Record
	existsErr  error
	keysErr    error
	appendErr  error
	failOn     int
	appendCall int
}

func (s *fakeStore) Exists(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.exists, nil
}

func (s *fakeStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	return append([]string(nil), s.keys...), nil
}

func (s *fakeStore) Append(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCall++
	if s.failOn != 0 && s.appendCall == s.failOn {
		return s.appendErr
	}
	s.appends = append(s.appends, append([]Record(nil), records...))
	return nil
}

func (s *fakeStore) snapshotAppends() [][]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Record, len(s.appends))
	for i, batch := range s.appends {
		out[i] = append([]Record(nil), batch...)
	}
	return out
}

type fakeAppendPublisher struct {
	mu     sync.Mutex
	events []AppendEvent
	err    error
}

func (p *fakeAppendPublisher) PublishAppended(_ context.Context, evt AppendEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakeAppendPublisher) snapshot() []AppendEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AppendEvent(nil), p.events...)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeIDs struct {
	id  string
	err error
}

func (g fakeIDs) NewID() (string, error) {
	return g.id, g.err
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) snapshot() []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]progress.Event(nil), c.events...)
}

func (c *captureEmitter) kindCounts() map[progress.Kind]int {
	out := map[progress.Kind]int{}
	for _, evt := range c.snapshot() {
		out[evt.Kind]++
	}
	return out
}

func (c *captureEmitter) byKind(kind progress.Kind) []progress.Event {
	var out []progress.Event
	for _, evt := range c.snapshot() {
		if evt.Kind == kind {
			out = append(out, evt)
		}
	}
	return out
}
