package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stake-plus/dao-proposals/src/cache"
	"github.com/stake-plus/dao-proposals/src/metrics"
	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeUpstream struct {
	calls      atomic.Int32
	mu         sync.Mutex
	proposals  []gov.Proposal
	err        error
	more       bool
	gate       chan struct{}
	identifier string
	query      gov.PageQuery
}

// FetchPage ignores the cursor and limit and returns every proposal it holds.
func (f *fakeUpstream) FetchPage(ctx context.Context, identifier string, q gov.PageQuery) (gov.Batch, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return gov.Batch{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identifier = identifier
	f.query = q
	if f.err != nil {
		return gov.Batch{}, f.err
	}
	out := make([]gov.Proposal, len(f.proposals))
	copy(out, f.proposals)
	return gov.Batch{Proposals: out, More: f.more}, nil
}

// pagingUpstream serves proposals past the cursor in the requested order, at
// most q.Limit at a time, like the real sources do.
type pagingUpstream struct {
	mu        sync.Mutex
	proposals []gov.Proposal
	limits    []int
}

func (p *pagingUpstream) FetchPage(_ context.Context, _ string, q gov.PageQuery) (gov.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limits = append(p.limits, q.Limit)

	matched := make([]gov.Proposal, 0, len(p.proposals))
	for _, prop := range p.proposals {
		if q.Accepts(prop.Created) {
			matched = append(matched, prop)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if q.Order == gov.OrderDesc {
			return matched[i].Created > matched[j].Created
		}
		return matched[i].Created < matched[j].Created
	})
	if len(matched) > q.Limit {
		return gov.Batch{Proposals: matched[:q.Limit], More: true}, nil
	}
	return gov.Batch{Proposals: matched}, nil
}

func (f *fakeUpstream) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fetchLog struct {
	mu      sync.Mutex
	records []FetchRecord
}

func (l *fetchLog) RecordFetch(_ context.Context, rec FetchRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

type harness struct {
	svc      *Service
	offchain *fakeUpstream
	onchain  *fakeUpstream
	store    *cache.Memory
	clock    *clock
	log      *fetchLog
	metrics  *metrics.Collector
}

func proposalsFrom(start int64, n int) []gov.Proposal {
	out := make([]gov.Proposal, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, gov.Proposal{
			ID:      fmt.Sprintf("0x%02d", i),
			Title:   fmt.Sprintf("Proposal %d", i),
			Created: start + int64(i)*100,
			Choices: []string{"For", "Against"},
			Scores:  []float64{1, 0},
		})
	}
	return out
}

func newHarness(t *testing.T, store cache.Store) *harness {
	t.Helper()
	h := &harness{
		offchain: &fakeUpstream{proposals: proposalsFrom(1609459100, 5)},
		onchain:  &fakeUpstream{proposals: proposalsFrom(1700000000, 3)},
		store:    cache.NewMemory(64),
		clock:    &clock{now: time.Unix(1710000000, 0)},
		log:      &fetchLog{},
		metrics:  metrics.NewCollector("test"),
	}
	if store == nil {
		store = h.store
	}
	svc, err := New(Config{
		Store:     store,
		Offchain:  h.offchain,
		Onchain:   h.onchain,
		Recorder:  h.log,
		Metrics:   h.metrics,
		Freshness: time.Hour,
		StaleFor:  2 * time.Hour,
		PageSize:  20,
		Now:       h.clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Store: cache.NewMemory(1), Offchain: &fakeUpstream{}})
	assert.Error(t, err)
}

func TestFetchServesFreshCacheWithoutUpstreamCall(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := Request{Space: "ens.eth"}

	first, err := h.svc.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, first.Status)
	assert.Len(t, first.Page.Proposals, 5)

	h.clock.Advance(30 * time.Minute)
	second, err := h.svc.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, second.Status)

	assert.EqualValues(t, 1, h.offchain.calls.Load())
	assert.Equal(t, mustJSON(t, first.Page), mustJSON(t, second.Page))
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
}

func TestFetchRefetchesAfterFreshnessWindow(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)

	h.clock.Advance(time.Hour + time.Second)
	res, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, res.Status)
	assert.EqualValues(t, 2, h.offchain.calls.Load())
}

func TestRefreshAlwaysCallsUpstream(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	refreshed, err := h.svc.Fetch(ctx, Request{Space: "ens.eth", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, StatusRefresh, refreshed.Status)
	assert.EqualValues(t, 2, h.offchain.calls.Load())
	assert.True(t, refreshed.FetchedAt.After(first.FetchedAt))

	// the refreshed page is now what the cache serves
	again, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)
	assert.Equal(t, StatusHit, again.Status)
	assert.Equal(t, refreshed.FetchedAt, again.FetchedAt)
}

func TestOnchainRequestsNeverTouchOffchain(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Fetch(context.Background(), Request{Space: "uniswap.eth", OrgSlug: "slug123"})
	require.NoError(t, err)
	assert.Equal(t, gov.ModeOnchain, res.Mode)
	assert.EqualValues(t, 0, h.offchain.calls.Load())
	assert.EqualValues(t, 1, h.onchain.calls.Load())
	assert.Equal(t, "slug123", h.onchain.identifier)
	for _, p := range res.Page.Proposals {
		assert.Equal(t, gov.ModeOnchain, p.Source)
		assert.Equal(t, "uniswap.eth", p.Space)
	}

	// off-chain and on-chain pages for one space are cached separately
	_, err = h.svc.Fetch(context.Background(), Request{Space: "uniswap.eth"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.offchain.calls.Load())
}

func TestConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	h := newHarness(t, nil)
	h.offchain.gate = make(chan struct{})

	const n = 10
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Fetch(context.Background(), Request{Space: "ens.eth"})
		}(i)
	}

	require.Eventually(t, func() bool { return h.offchain.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(h.offchain.gate)
	wg.Wait()

	assert.EqualValues(t, 1, h.offchain.calls.Load())
	shared := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, mustJSON(t, results[0].Page), mustJSON(t, results[i].Page))
		if results[i].Shared {
			shared++
		}
	}
	assert.Greater(t, shared, 1)
	assert.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.Coalesced), float64(1))
}

func TestDistinctKeysFetchIndependently(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	cursor := int64(1609459200)

	_, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)
	_, err = h.svc.Fetch(ctx, Request{Space: "ens.eth", Cursor: &cursor})
	require.NoError(t, err)
	_, err = h.svc.Fetch(ctx, Request{Space: "aave.eth"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, h.offchain.calls.Load())
}

func TestCallerCancellationDoesNotFailJoinedRequests(t *testing.T) {
	h := newHarness(t, nil)
	h.offchain.gate = make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.svc.Fetch(leaderCtx, Request{Space: "ens.eth"})
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return h.offchain.calls.Load() == 1 }, time.Second, time.Millisecond)

	joined := make(chan *Result, 1)
	go func() {
		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth"})
		assert.NoError(t, err)
		joined <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	err := <-leaderErr
	var ue *gov.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, context.Canceled)

	close(h.offchain.gate)
	res := <-joined
	require.NotNil(t, res)
	assert.Len(t, res.Page.Proposals, 5)
	assert.EqualValues(t, 1, h.offchain.calls.Load())
}

func TestUpstreamFailureWithoutCache(t *testing.T) {
	h := newHarness(t, nil)
	h.offchain.setErr(errors.New("connection refused"))

	_, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth"})
	var ue *gov.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, gov.ModeOffchain, ue.Source)
	assert.Equal(t, 0, h.store.Len(), "failed fetches are not cached")

	require.Len(t, h.log.records, 1)
	assert.Error(t, h.log.records[0].Err)
}

func TestStaleFallback(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)

	h.offchain.setErr(&gov.UpstreamError{Source: gov.ModeOffchain, StatusCode: 503, Err: errors.New("unavailable")})
	h.clock.Advance(90 * time.Minute)

	stale, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
	require.NoError(t, err)
	assert.Equal(t, StatusStale, stale.Status)
	assert.Error(t, stale.Err)
	assert.Equal(t, first.FetchedAt, stale.FetchedAt)

	t.Run("refresh bypasses the fallback", func(t *testing.T) {
		_, err := h.svc.Fetch(ctx, Request{Space: "ens.eth", Refresh: true})
		var ue *gov.UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, 503, ue.StatusCode)
	})

	t.Run("expired beyond the stale window", func(t *testing.T) {
		h.clock.Advance(2 * time.Hour)
		_, err := h.svc.Fetch(ctx, Request{Space: "ens.eth"})
		var ue *gov.UpstreamError
		require.ErrorAs(t, err, &ue)
	})

	// the stale entry was never overwritten
	got, err := h.store.Get(ctx, cache.Key{Mode: gov.ModeOffchain, Space: "ens.eth", Order: gov.OrderAsc, Limit: 20})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.FetchedAt, got.FetchedAt)
}

type brokenStore struct{ puts atomic.Int32 }

func (b *brokenStore) Get(_ context.Context, key cache.Key) (*cache.Entry, error) {
	return nil, &cache.Error{Op: "get", Key: key.String(), Err: errors.New("redis: connection refused")}
}

func (b *brokenStore) Put(_ context.Context, key cache.Key, _ *cache.Entry) error {
	b.puts.Add(1)
	return &cache.Error{Op: "put", Key: key.String(), Err: errors.New("redis: connection refused")}
}

func TestCacheErrorsAreTreatedAsMisses(t *testing.T) {
	store := &brokenStore{}
	h := newHarness(t, store)

	for i := 0; i < 2; i++ {
		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth"})
		require.NoError(t, err)
		assert.Equal(t, StatusMiss, res.Status)
	}
	assert.EqualValues(t, 2, h.offchain.calls.Load())
	assert.EqualValues(t, 2, store.puts.Load())
}

func TestValidation(t *testing.T) {
	h := newHarness(t, nil)
	negative := int64(-1)
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing space", Request{Space: "   "}, "space"},
		{"bad space characters", Request{Space: "ens eth/../x"}, "space"},
		{"long space", Request{Space: string(make([]byte, 200))}, "space"},
		{"bad slug", Request{Space: "ens.eth", OrgSlug: "a b"}, "onchain"},
		{"negative cursor", Request{Space: "ens.eth", Cursor: &negative}, "cursor"},
		{"bad order", Request{Space: "ens.eth", Order: "sideways"}, "order"},
		{"limit too large", Request{Space: "ens.eth", Limit: MaxPageSize + 1}, "limit"},
		{"negative limit", Request{Space: "ens.eth", Limit: -5}, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Fetch(context.Background(), tt.req)
			var ve *gov.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.EqualValues(t, 0, h.offchain.calls.Load())
	assert.EqualValues(t, 0, h.onchain.calls.Load())
}

func TestCursorReturnsOnlyLaterProposals(t *testing.T) {
	h := newHarness(t, nil)
	// the fake ignores the cursor, so the service must enforce it
	cursor := int64(1609459200)

	res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Cursor: &cursor})
	require.NoError(t, err)
	require.NotEmpty(t, res.Page.Proposals)
	for _, p := range res.Page.Proposals {
		assert.Greater(t, p.Created, cursor)
	}
	assert.Equal(t, &cursor, h.offchain.query.Cursor)
}

func TestNormalizePage(t *testing.T) {
	h := newHarness(t, nil)
	h.offchain.proposals = []gov.Proposal{
		{ID: "c", Created: 300, Title: "Third &amp; last", Body: "<p>Hi</p><script>alert(1)</script> a > b"},
		{ID: "a", Created: 100, Title: "<b>First</b>"},
		{ID: "b", Created: 200},
		{ID: "a", Created: 100},
		{ID: "", Created: 400},
		{ID: "d", Created: 400},
	}

	res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Limit: 3})
	require.NoError(t, err)

	ids := []string{}
	for _, p := range res.Page.Proposals {
		ids = append(ids, p.ID)
		assert.Equal(t, gov.ModeOffchain, p.Source)
		assert.Equal(t, "ens.eth", p.Space)
		assert.NotNil(t, p.Choices)
		assert.NotNil(t, p.Scores)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "First", res.Page.Proposals[0].Title)
	assert.Equal(t, "Third &amp; last", res.Page.Proposals[2].Title)
	assert.Equal(t, "<p>Hi</p> a &gt; b", res.Page.Proposals[2].Body)
	require.NotNil(t, res.Page.NextCursor)
	assert.Equal(t, int64(300), *res.Page.NextCursor)

	t.Run("descending", func(t *testing.T) {
		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Limit: 3, Order: gov.OrderDesc})
		require.NoError(t, err)
		require.Len(t, res.Page.Proposals, 3)
		assert.Equal(t, "d", res.Page.Proposals[0].ID)
		assert.Equal(t, "b", res.Page.Proposals[2].ID)
		require.NotNil(t, res.Page.NextCursor)
		assert.Equal(t, int64(200), *res.Page.NextCursor)
	})

	t.Run("short page has no next cursor", func(t *testing.T) {
		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Limit: 50})
		require.NoError(t, err)
		assert.Len(t, res.Page.Proposals, 4)
		assert.Nil(t, res.Page.NextCursor)
	})

	t.Run("escaped markup is sanitized", func(t *testing.T) {
		h := newHarness(t, nil)
		h.offchain.proposals = []gov.Proposal{
			{ID: "x", Created: 100, Title: "&lt;img src=x onerror=alert(1)&gt;", Body: "&lt;script&gt;alert(1)&lt;/script&gt;ok"},
			{ID: "y", Created: 200, Title: "&amp;lt;script&amp;gt;", Body: "&lt;p onclick=alert(1)&gt;text&lt;/p&gt;"},
		}
		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth"})
		require.NoError(t, err)
		require.Len(t, res.Page.Proposals, 2)

		for _, p := range res.Page.Proposals {
			for _, text := range []string{p.Title, p.Body} {
				assert.NotContains(t, text, "<img")
				assert.NotContains(t, text, "<script")
				assert.NotContains(t, text, "onerror")
				assert.NotContains(t, text, "onclick")
			}
		}
		assert.Equal(t, "", res.Page.Proposals[0].Title)
		assert.Equal(t, "ok", res.Page.Proposals[0].Body)
		assert.Equal(t, "&lt;script&gt;", res.Page.Proposals[1].Title)
		assert.Equal(t, "<p>text</p>", res.Page.Proposals[1].Body)
	})
}

func TestDescendingFirstPageIsMostRecent(t *testing.T) {
	h := newHarness(t, nil)
	h.offchain.proposals = proposalsFrom(1000, 2)

	res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Order: gov.OrderDesc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Page.Proposals, 2)
	assert.Equal(t, int64(1100), res.Page.Proposals[0].Created)
	assert.Nil(t, res.Page.NextCursor, "the upstream has nothing past the page")
	assert.Nil(t, h.offchain.query.Cursor)
	assert.Equal(t, gov.OrderDesc, h.offchain.query.Order)
	assert.Equal(t, 3, h.offchain.query.Limit, "one extra proposal is requested")

	t.Run("upstream with more", func(t *testing.T) {
		h := newHarness(t, nil)
		h.offchain.proposals = proposalsFrom(1000, 2)
		h.offchain.more = true

		res, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", Order: gov.OrderDesc, Limit: 2})
		require.NoError(t, err)
		require.Len(t, res.Page.Proposals, 2)
		require.NotNil(t, res.Page.NextCursor)
		assert.Equal(t, int64(1000), *res.Page.NextCursor)
	})
}

func newPagingService(t *testing.T, up *pagingUpstream) *Service {
	t.Helper()
	svc, err := New(Config{
		Store:    cache.NewMemory(256),
		Offchain: up,
		Onchain:  up,
	})
	require.NoError(t, err)
	return svc
}

// walkPages follows next cursors from the first page until the last one and
// returns the ids of every page served.
func walkPages(t *testing.T, svc *Service, req Request) [][]string {
	t.Helper()
	var pages [][]string
	for {
		require.Less(t, len(pages), 200, "walk did not terminate")
		res, err := svc.Fetch(context.Background(), req)
		require.NoError(t, err)

		ids := make([]string, 0, len(res.Page.Proposals))
		for _, p := range res.Page.Proposals {
			ids = append(ids, p.ID)
		}
		pages = append(pages, ids)
		if res.Page.NextCursor == nil {
			return pages
		}
		require.NotEmpty(t, ids, "an empty page must be the last one")
		next := *res.Page.NextCursor
		req.Cursor = &next
	}
}

func TestWalkKeepsTimestampTiesTogether(t *testing.T) {
	up := &pagingUpstream{proposals: []gov.Proposal{
		{ID: "a", Created: 100},
		{ID: "b", Created: 200},
		{ID: "c", Created: 200},
		{ID: "d", Created: 300},
	}}
	svc := newPagingService(t, up)

	asc := walkPages(t, svc, Request{Space: "ens.eth", Limit: 2})
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, asc)

	desc := walkPages(t, svc, Request{Space: "ens.eth", Limit: 2, Order: gov.OrderDesc})
	assert.Equal(t, [][]string{{"d"}, {"b", "c"}, {"a"}}, desc)
}

func TestWalkWidensPastLargeTieGroup(t *testing.T) {
	up := &pagingUpstream{}
	for i := 1; i <= 5; i++ {
		up.proposals = append(up.proposals, gov.Proposal{ID: fmt.Sprintf("x%d", i), Created: 500})
	}
	up.proposals = append(up.proposals, gov.Proposal{ID: "y", Created: 600})
	svc := newPagingService(t, up)

	pages := walkPages(t, svc, Request{Space: "ens.eth", Limit: 2})
	assert.Equal(t, [][]string{{"x1", "x2", "x3", "x4", "x5"}, {"y"}}, pages)
	assert.Equal(t, []int{3, 6, 3}, up.limits)
}

func TestWalkServesEveryProposalOnce(t *testing.T) {
	up := &pagingUpstream{}
	for i := 0; i < 61; i++ {
		// groups of three proposals share a creation time
		up.proposals = append(up.proposals, gov.Proposal{
			ID:      fmt.Sprintf("p%02d", i),
			Created: 1000 + int64(i/3)*10,
		})
	}

	for _, limit := range []int{1, 4, 7, 20, 61, 100} {
		for _, order := range []gov.Order{gov.OrderAsc, gov.OrderDesc} {
			t.Run(fmt.Sprintf("%s limit %d", order, limit), func(t *testing.T) {
				svc := newPagingService(t, up)
				pages := walkPages(t, svc, Request{Space: "ens.eth", Limit: limit, Order: order})

				seen := map[string]int{}
				var all []string
				for _, page := range pages {
					for _, id := range page {
						seen[id]++
						all = append(all, id)
					}
				}
				assert.Len(t, seen, 61)
				for id, n := range seen {
					assert.Equal(t, 1, n, "proposal %s served %d times", id, n)
				}
				assert.Equal(t, order == gov.OrderAsc, sort.StringsAreSorted(all),
					"pages follow the requested order: %s", strings.Join(all, ","))
			})
		}
	}
}

func TestFetchRecordsOutcome(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Fetch(context.Background(), Request{Space: "ens.eth", OrgSlug: "ens"})
	require.NoError(t, err)

	require.Len(t, h.log.records, 1)
	rec := h.log.records[0]
	assert.Equal(t, "ens.eth", rec.Space)
	assert.Equal(t, "ens", rec.OrgSlug)
	assert.Equal(t, gov.ModeOnchain, rec.Mode)
	assert.Equal(t, 3, rec.Count)
	assert.NoError(t, rec.Err)
}
