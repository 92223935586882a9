package metasearch

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metrics"
	"librarium/metasearchservice/internal/sources/common"
)

// Service is the single entry point for book lookups. It owns the catalog
// pool, the result cache and the active strategy, and is safe for concurrent
// use. Catalog failures never surface as errors: the result list degrades
// and the failure is visible through logs, metrics and diagnostics.
type Service struct {
	pool    *sourcePool
	timeout time.Duration

	cache         *Cache
	cacheTTL      time.Duration
	cacheDisabled bool
	redis         *RedisCacheBackend

	strategyMu  sync.RWMutex
	strategy    Strategy
	strategies  map[StrategyKind]Strategy
	defaultKind StrategyKind
}

type ServiceOption func(*Service)

func WithGlobalTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithSourceTimeout(name domain.SourceName, timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.pool.setTimeout(name, timeout)
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redis = backend
	}
}

func WithDefaultStrategy(kind StrategyKind) ServiceOption {
	return func(s *Service) {
		s.defaultKind = kind
	}
}

func NewService(clients []SourceClient, opts ...ServiceOption) *Service {
	svc := &Service{
		pool:        newSourcePool(clients),
		timeout:     defaultGlobalTimeout,
		cacheTTL:    defaultCacheTTL,
		defaultKind: StrategyBestResult,
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.cache = NewCache(svc.cacheTTL)
	if svc.redis != nil {
		svc.cache.withRedis(svc.redis)
	}

	parallel := NewParallel(svc.pool, svc.timeout)
	svc.strategies = map[StrategyKind]Strategy{
		StrategySequential: NewSequential(svc.pool),
		StrategyParallel:   parallel,
		StrategyBestResult: NewBestResult(parallel),
	}
	svc.strategy = svc.strategies[svc.defaultKind]
	if svc.strategy == nil {
		svc.strategy = svc.strategies[StrategyBestResult]
	}
	return svc
}

type searchOptions struct {
	useCache bool
	strategy Strategy
}

type SearchOption func(*searchOptions)

// WithoutCache makes one call bypass the result cache entirely: no lookup,
// no store.
func WithoutCache() SearchOption {
	return func(o *searchOptions) {
		o.useCache = false
	}
}

// SearchByISBN looks a book up by identifier across the configured catalogs
// and returns candidate records sorted by quality score. A blank identifier
// returns an empty list without touching the cache or the catalogs.
func (s *Service) SearchByISBN(ctx context.Context, isbn string, opts ...SearchOption) []domain.UnifiedResult {
	trimmed := strings.TrimSpace(isbn)
	if trimmed == "" {
		return nil
	}
	if normalized := common.NormalizeISBN(trimmed); normalized != "" {
		trimmed = normalized
	}
	// A bad check digit is worth flagging but the catalogs may still match it.
	if !common.ValidateISBN(trimmed) {
		slog.Debug("isbn check digit failed", slog.String("isbn", trimmed))
	}
	return s.search(ctx, searchQuery{kind: domain.QueryByISBN, isbn: trimmed}, opts)
}

// SearchByTitleAuthor looks a book up by free-text title, optionally refined
// by an author name. A blank title returns an empty list without touching
// the cache or the catalogs.
func (s *Service) SearchByTitleAuthor(ctx context.Context, title, author string, opts ...SearchOption) []domain.UnifiedResult {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return nil
	}
	q := searchQuery{
		kind:   domain.QueryByTitleAuthor,
		title:  trimmedTitle,
		author: strings.TrimSpace(author),
	}
	return s.search(ctx, q, opts)
}

func (s *Service) search(ctx context.Context, q searchQuery, opts []SearchOption) []domain.UnifiedResult {
	options := searchOptions{useCache: !s.cacheDisabled}
	for _, opt := range opts {
		opt(&options)
	}

	strategy := options.strategy
	if strategy == nil {
		strategy = s.currentStrategy()
	}

	startedAt := time.Now()
	metrics.SearchesTotal.WithLabelValues(string(q.kind), string(strategy.Kind())).Inc()

	cacheKey := ""
	if options.useCache {
		cacheKey = string(q.kind) + ":" + q.cacheText() + "|strategy=" + string(strategy.Kind())
		if cached, ok := s.cache.Get(cacheKey); ok {
			slog.Debug("search served from cache",
				slog.String("kind", string(q.kind)),
				slog.String("query", q.text()),
				slog.Int("results", len(cached)),
			)
			return cached
		}
	}

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, sourceMetrics := strategy.Search(runCtx, q)
	sortByScore(results)

	failed := 0
	for _, metric := range sourceMetrics {
		if metric.Status == domain.SourceStatusSuccess {
			continue
		}
		failed++
		slog.Warn("catalog lookup failed",
			slog.String("source", string(metric.Source)),
			slog.String("status", string(metric.Status)),
			slog.String("query", q.text()),
			slog.Int64("elapsedMs", metric.Duration().Milliseconds()),
			slog.String("error", metric.Error),
		)
	}
	slog.Info("search completed",
		slog.String("kind", string(q.kind)),
		slog.String("query", q.text()),
		slog.String("strategy", string(strategy.Kind())),
		slog.Int("results", len(results)),
		slog.Int("sources", len(sourceMetrics)),
		slog.Int("failed", failed),
		slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
	)

	if options.useCache && len(results) > 0 {
		s.cache.Set(cacheKey, results)
	}
	return results
}

// sortByScore orders results by quality score descending. Ties fall back to
// trust weight, then folded title, then source name, so the ordering is
// stable across calls regardless of catalog answer order.
func sortByScore(results []domain.UnifiedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		left, right := results[i], results[j]
		if left.QualityScore != right.QualityScore {
			return left.QualityScore > right.QualityScore
		}
		if left.Source.TrustWeight != right.Source.TrustWeight {
			return left.Source.TrustWeight > right.Source.TrustWeight
		}
		if lt, rt := foldText(left.Title), foldText(right.Title); lt != rt {
			return lt < rt
		}
		return left.Source.Name < right.Source.Name
	})
}

func (s *Service) currentStrategy() Strategy {
	s.strategyMu.RLock()
	defer s.strategyMu.RUnlock()
	return s.strategy
}

// CurrentStrategy returns the kind of the active strategy.
func (s *Service) CurrentStrategy() StrategyKind {
	return s.currentStrategy().Kind()
}

// SetStrategy switches the active strategy for subsequent searches.
func (s *Service) SetStrategy(kind StrategyKind) error {
	s.strategyMu.Lock()
	defer s.strategyMu.Unlock()
	strategy, ok := s.strategies[kind]
	if !ok {
		return ErrUnknownStrategy
	}
	s.strategy = strategy
	return nil
}

// UsingStrategy makes one call run with the given strategy without changing
// the service-wide setting.
func (s *Service) UsingStrategy(kind StrategyKind) SearchOption {
	strategy := s.strategies[kind]
	return func(o *searchOptions) {
		if strategy != nil {
			o.strategy = strategy
		}
	}
}

func (s *Service) ClearCache() {
	s.cache.Clear()
	slog.Info("result cache cleared")
}

func (s *Service) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

func (s *Service) SourceDiagnostics() []domain.SourceDiagnostics {
	return s.pool.diagnostics()
}
