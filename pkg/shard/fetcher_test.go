package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource blocks fetches for gated keys until released and records the
// order in which fetches start.
type fakeSource struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	errs      map[string]error
	calls     map[string]int
	started   []string
	active    int
	maxActive int
	startedCh chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		gates:     make(map[string]chan struct{}),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		startedCh: make(chan string, 256),
	}
}

func (s *fakeSource) gate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.gates[k] = make(chan struct{})
	}
}

func (s *fakeSource) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gates[key]; ok {
		close(g)
		delete(s.gates, key)
	}
}

func (s *fakeSource) FetchShard(ctx context.Context, key string) (*model.Shard, error) {
	s.mu.Lock()
	s.calls[key]++
	s.started = append(s.started, key)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	g := s.gates[key]
	err := s.errs[key]
	s.mu.Unlock()

	s.startedCh <- key
	if g != nil {
		<-g
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &model.Shard{Records: map[string]*model.Record{"X": {TypeDesignator: key}}}, nil
}

func (s *fakeSource) callCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *fakeSource) startOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func (s *fakeSource) peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

func waitStarted(t *testing.T, s *fakeSource, want string) {
	t.Helper()
	select {
	case got := <-s.startedCh:
		require.Equal(t, want, got, "unexpected fetch started")
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch of %s to start", want)
	}
}

// waitStartedSet waits for len(want) fetches to start, in any order. Fetches
// that start immediately run in their own goroutines, so only the set of
// keys is fixed.
func waitStartedSet(t *testing.T, s *fakeSource, want ...string) {
	t.Helper()
	got := make([]string, 0, len(want))
	for len(got) < len(want) {
		select {
		case key := <-s.startedCh:
			got = append(got, key)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for fetches %v to start, got %v", want, got)
		}
	}
	require.ElementsMatch(t, want, got, "unexpected set of immediately started fetches")
}

func assertNoStart(t *testing.T, s *fakeSource) {
	t.Helper()
	select {
	case got := <-s.startedCh:
		t.Fatalf("fetch of %s started while no slot was free", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func newTestFetcher(source Source, max int) *Fetcher {
	return NewFetcher(source, Config{MaxConcurrent: max}, zerolog.Nop())
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(newFakeSource(), Config{}, zerolog.Nop())
	assert.Equal(t, DefaultMaxConcurrent, f.config.MaxConcurrent)
	assert.Equal(t, 2, DefaultConfig().MaxConcurrent)

	assert.Panics(t, func() { NewFetcher(nil, DefaultConfig(), zerolog.Nop()) })
}

func TestFetch_DedupConcurrentRequests(t *testing.T) {
	src := newFakeSource()
	src.gate("A")
	f := newTestFetcher(src, 2)

	var wg sync.WaitGroup
	results := make([]*model.Shard, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := f.Get(context.Background(), "A")
			if err == nil {
				results[i] = doc
			}
		}(i)
	}

	waitStarted(t, src, "A")
	src.release("A")
	wg.Wait()

	assert.Equal(t, 1, src.callCount("A"), "concurrent requests for one key must share a fetch")
	for i, doc := range results {
		require.NotNil(t, doc, "waiter %d got no document", i)
		assert.Same(t, results[0], doc)
	}
}

func TestFetch_CaseInsensitiveKeys(t *testing.T) {
	src := newFakeSource()
	f := newTestFetcher(src, 2)

	a := f.Fetch("ab")
	b := f.Fetch("AB")
	assert.Same(t, a, b)

	_, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount("AB"))
	assert.Equal(t, 0, src.callCount("ab"))
}

func TestFetch_CompletedOutcomeMemoized(t *testing.T) {
	src := newFakeSource()
	f := newTestFetcher(src, 2)

	first, err := f.Get(context.Background(), "A")
	require.NoError(t, err)
	second, err := f.Get(context.Background(), "A")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.callCount("A"))
	assert.Equal(t, Stats{Active: 0, Queued: 0, Known: 1}, f.Stats())
}

func TestFetch_ConcurrencyBound(t *testing.T) {
	src := newFakeSource()
	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("%X", i)
	}
	src.gate(keys...)
	f := newTestFetcher(src, 2)

	futures := make([]interface {
		Wait(context.Context) (*model.Shard, error)
	}, len(keys))
	for i, k := range keys {
		futures[i] = f.Fetch(k)
	}

	waitStartedSet(t, src, "0", "1")
	assertNoStart(t, src)
	assert.Equal(t, Stats{Active: 2, Queued: 8, Known: 10}, f.Stats())

	for _, k := range keys {
		src.release(k)
	}
	for i, fut := range futures {
		_, err := fut.Wait(context.Background())
		require.NoError(t, err, "key %s", keys[i])
	}

	assert.LessOrEqual(t, src.peak(), 2, "active fetches exceeded the limit")
	assert.Eventually(t, func() bool {
		return f.Stats().Active == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.Stats().Queued)
}

func TestFetch_FIFOPromotion(t *testing.T) {
	src := newFakeSource()
	keys := []string{"A", "B", "C", "D", "E", "F"}
	src.gate(keys...)
	f := newTestFetcher(src, 2)

	for _, k := range keys {
		f.Fetch(k)
	}

	waitStartedSet(t, src, "A", "B")

	// Free slots one at a time, alternating between the two slot holders;
	// every promotion must take the oldest queued key.
	src.release("B")
	waitStarted(t, src, "C")
	src.release("A")
	waitStarted(t, src, "D")
	src.release("D")
	waitStarted(t, src, "E")
	src.release("C")
	waitStarted(t, src, "F")
	src.release("E")
	src.release("F")

	order := src.startOrder()
	require.Len(t, order, len(keys))
	assert.ElementsMatch(t, []string{"A", "B"}, order[:2])
	assert.Equal(t, []string{"C", "D", "E", "F"}, order[2:], "queued fetches must start in arrival order")
}

func TestFetch_FailurePropagatesAndFreesSlot(t *testing.T) {
	src := newFakeSource()
	boom := errors.New("connection reset")
	src.errs["A"] = boom
	src.gate("A")
	f := newTestFetcher(src, 1)

	failing := f.Fetch("A")
	queued := f.Fetch("B")

	waitStarted(t, src, "A")
	src.release("A")

	_, err := failing.Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	// B was promoted into the slot A vacated.
	waitStarted(t, src, "B")
	_, err = queued.Wait(context.Background())
	require.NoError(t, err)

	// The rejection is memoized; no second network call for A.
	_, err = f.Get(context.Background(), "A")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.callCount("A"))

	assert.Eventually(t, func() bool {
		return f.Stats().Active == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFetch_WaiterCancelDoesNotReleaseSlot(t *testing.T) {
	src := newFakeSource()
	src.gate("A")
	f := newTestFetcher(src, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx, "A")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	waitStarted(t, src, "A")
	assert.Equal(t, 1, f.Stats().Active, "abandoned wait must not free the slot")

	// The next key queues behind the still running fetch.
	next := f.Fetch("B")
	assertNoStart(t, src)
	assert.Equal(t, 1, f.Stats().Queued)

	src.release("A")
	waitStarted(t, src, "B")
	_, err = next.Wait(context.Background())
	require.NoError(t, err)

	doc, err := f.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestFetch_TimeoutApplied(t *testing.T) {
	src := &ctxSource{}
	f := NewFetcher(src, Config{MaxConcurrent: 1, FetchTimeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := f.Get(context.Background(), "A")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool {
		return f.Stats().Active == 0
	}, time.Second, 5*time.Millisecond)
}

// ctxSource blocks until the fetch context ends.
type ctxSource struct{}

func (ctxSource) FetchShard(ctx context.Context, key string) (*model.Shard, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
