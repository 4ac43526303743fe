package proposals

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stake-plus/dao-proposals/src/cache"
	"github.com/stake-plus/dao-proposals/src/metrics"
	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

const (
	DefaultFreshness    = 10 * time.Hour
	DefaultStaleFor     = 24 * time.Hour
	DefaultPageSize     = 20
	MaxPageSize         = 1000
	DefaultFetchTimeout = 60 * time.Second
	maxIdentifierLen    = 128
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Upstream fetches one page of proposals for an identifier (a space or an
// organization slug) from a governance source.
type Upstream interface {
	FetchPage(ctx context.Context, identifier string, q gov.PageQuery) (gov.Batch, error)
}

// Recorder is told about every upstream fetch the service makes.
type Recorder interface {
	RecordFetch(ctx context.Context, rec FetchRecord)
}

// FetchRecord describes one completed upstream fetch.
type FetchRecord struct {
	Space     string
	Mode      gov.Mode
	OrgSlug   string
	Count     int
	Err       error
	FetchedAt time.Time
	Took      time.Duration
}

// CacheStatus says how a result was produced.
type CacheStatus string

const (
	StatusHit     CacheStatus = "HIT"
	StatusMiss    CacheStatus = "MISS"
	StatusRefresh CacheStatus = "REFRESH"
	StatusStale   CacheStatus = "STALE"
)

// Request is one proposals lookup.
type Request struct {
	Space   string
	OrgSlug string
	Cursor  *int64
	Refresh bool
	Order   gov.Order
	Limit   int
}

// Mode returns the source the request is routed to.
func (r Request) Mode() gov.Mode {
	if r.OrgSlug != "" {
		return gov.ModeOnchain
	}
	return gov.ModeOffchain
}

// Result is a served proposal page.
type Result struct {
	Space     string
	Mode      gov.Mode
	Page      gov.Page
	FetchedAt time.Time
	Status    CacheStatus
	// Shared is set when the page came from an upstream fetch started by another request.
	Shared bool
	// Err holds the upstream failure when a stale page was served instead.
	Err error
}

// Config wires a Service.
type Config struct {
	Store    cache.Store
	Offchain Upstream
	Onchain  Upstream
	Recorder Recorder
	Metrics  *metrics.Collector
	Logger   *zap.Logger

	Freshness    time.Duration
	StaleFor     time.Duration
	PageSize     int
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Service serves proposal pages from the cache, falling back to the upstream
// sources. Concurrent requests for the same page share one upstream fetch.
type Service struct {
	store     cache.Store
	upstreams map[gov.Mode]Upstream
	recorder  Recorder
	metrics   *metrics.Collector
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	strict    *bluemonday.Policy
	group     singleflight.Group

	freshness    time.Duration
	staleFor     time.Duration
	pageSize     int
	fetchTimeout time.Duration
	now          func() time.Time
}

// New creates a Service. Store and both upstreams are required.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("proposals: store is required")
	}
	if cfg.Offchain == nil || cfg.Onchain == nil {
		return nil, errors.New("proposals: offchain and onchain upstreams are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.StaleFor < 0 {
		cfg.StaleFor = 0
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store: cfg.Store,
		upstreams: map[gov.Mode]Upstream{
			gov.ModeOffchain: cfg.Offchain,
			gov.ModeOnchain:  cfg.Onchain,
		},
		recorder:     cfg.Recorder,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		sanitizer:    newSanitizer(),
		strict:       bluemonday.StrictPolicy(),
		freshness:    cfg.Freshness,
		staleFor:     cfg.StaleFor,
		pageSize:     cfg.PageSize,
		fetchTimeout: cfg.FetchTimeout,
		now:          cfg.Now,
	}, nil
}

// Fetch serves one page of proposals.
func (s *Service) Fetch(ctx context.Context, req Request) (*Result, error) {
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	key := cache.Key{
		Mode:    req.Mode(),
		Space:   req.Space,
		OrgSlug: req.OrgSlug,
		Order:   req.Order,
		Limit:   req.Limit,
		Cursor:  req.Cursor,
	}
	log := s.logger.With(zap.String("key", key.String()))

	cached, err := s.store.Get(ctx, key)
	if err != nil {
		// an unavailable store is a miss
		log.Warn("cache read failed", zap.Error(err))
		s.metrics.ObserveCache(metrics.CacheError)
		cached = nil
	}

	now := s.now()
	if !req.Refresh && cached != nil && cached.Age(now) < s.freshness {
		s.metrics.ObserveCache(metrics.CacheHit)
		return s.result(req, cached, StatusHit), nil
	}

	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		return s.fetch(ctx, key, req)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, gov.Upstream(key.Mode, ctx.Err())
	case res = <-ch:
	}
	if res.Shared {
		s.metrics.IncCoalesced()
	}

	if res.Err != nil {
		if !req.Refresh && cached != nil && cached.Age(now) < s.freshness+s.staleFor {
			log.Warn("serving stale page after upstream failure",
				zap.Duration("age", cached.Age(now)), zap.Error(res.Err))
			s.metrics.ObserveCache(metrics.CacheStale)
			out := s.result(req, cached, StatusStale)
			out.Err = res.Err
			return out, nil
		}
		return nil, res.Err
	}

	status := StatusMiss
	if req.Refresh {
		status = StatusRefresh
		s.metrics.ObserveCache(metrics.CacheRefresh)
	} else {
		s.metrics.ObserveCache(metrics.CacheMiss)
	}
	out := s.result(req, res.Val.(*cache.Entry), status)
	out.Shared = res.Shared
	return out, nil
}

// fetch performs the single upstream call for key. It runs detached from the
// cancellation of whichever request started it, so joined requests are not
// failed by the first caller going away.
func (s *Service) fetch(parent context.Context, key cache.Key, req Request) (*cache.Entry, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.fetchTimeout)
	defer cancel()

	identifier := req.Space
	if key.Mode == gov.ModeOnchain {
		identifier = req.OrgSlug
	}
	// one extra proposal tells whether the page ends inside a timestamp group
	q := gov.PageQuery{Cursor: req.Cursor, Limit: min(req.Limit+1, MaxPageSize), Order: req.Order}

	start := s.now()
	var (
		page gov.Page
		err  error
	)
	for {
		var batch gov.Batch
		batch, err = s.upstreams[key.Mode].FetchPage(ctx, identifier, q)
		if err != nil {
			break
		}
		var widen bool
		page, widen = s.normalize(req, key.Mode, batch)
		// a short batch will not grow with a larger window
		if !widen || q.Limit >= MaxPageSize || len(batch.Proposals) < q.Limit {
			break
		}
		q.Limit = min(q.Limit*2, MaxPageSize)
	}
	took := s.now().Sub(start)

	rec := FetchRecord{Space: req.Space, Mode: key.Mode, OrgSlug: req.OrgSlug, FetchedAt: start, Took: took}
	if err != nil {
		err = gov.Upstream(key.Mode, err)
		s.metrics.ObserveUpstream(string(key.Mode), "error", took)
		s.logger.Warn("upstream fetch failed",
			zap.String("key", key.String()), zap.Duration("took", took), zap.Error(err))
		rec.Err = err
		s.record(ctx, rec)
		return nil, err
	}
	s.metrics.ObserveUpstream(string(key.Mode), "ok", took)

	entry := &cache.Entry{
		Page:      page,
		FetchedAt: s.now(),
	}
	if err := s.store.Put(ctx, key, entry); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		s.metrics.ObserveCache(metrics.CacheError)
	}

	rec.Count = len(entry.Page.Proposals)
	s.record(ctx, rec)
	s.logger.Debug("fetched proposals",
		zap.String("key", key.String()),
		zap.Int("count", rec.Count),
		zap.Duration("took", took))
	return entry, nil
}

func (s *Service) record(ctx context.Context, rec FetchRecord) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordFetch(ctx, rec)
}

func (s *Service) result(req Request, entry *cache.Entry, status CacheStatus) *Result {
	return &Result{
		Space:     req.Space,
		Mode:      req.Mode(),
		Page:      entry.Page,
		FetchedAt: entry.FetchedAt,
		Status:    status,
	}
}

func (s *Service) validate(req Request) (Request, error) {
	req.Space = strings.TrimSpace(req.Space)
	req.OrgSlug = strings.TrimSpace(req.OrgSlug)

	if req.Space == "" {
		return req, gov.Invalid("space", "is required")
	}
	if err := checkIdentifier("space", req.Space); err != nil {
		return req, err
	}
	if req.OrgSlug != "" {
		if err := checkIdentifier("onchain", req.OrgSlug); err != nil {
			return req, err
		}
	}
	if req.Cursor != nil && *req.Cursor < 0 {
		return req, gov.Invalid("cursor", "must be a non-negative integer")
	}
	if req.Order == "" {
		req.Order = gov.OrderAsc
	}
	if req.Order != gov.OrderAsc && req.Order != gov.OrderDesc {
		return req, gov.Invalid("order", "must be asc or desc")
	}
	if req.Limit == 0 {
		req.Limit = s.pageSize
	}
	if req.Limit < 1 || req.Limit > MaxPageSize {
		return req, gov.Invalid("limit", "must be between 1 and %d", MaxPageSize)
	}
	return req, nil
}

func checkIdentifier(field, v string) error {
	if len(v) > maxIdentifierLen {
		return gov.Invalid(field, "must be at most %d characters", maxIdentifierLen)
	}
	if !identifierPattern.MatchString(v) {
		return gov.Invalid(field, "%q contains unsupported characters", v)
	}
	return nil
}
