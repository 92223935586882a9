package metasearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"librarium/metasearchservice/internal/domain"
)

var ErrUnknownStrategy = errors.New("unknown search strategy")

// SourceClient is implemented by the catalog adapters. A nil record slice
// with a nil error means the catalog had no match; errors are reserved for
// transport and HTTP failures.
type SourceClient interface {
	Name() domain.SourceName
	SearchByISBN(ctx context.Context, isbn string) ([]domain.RawRecord, error)
	SearchByTitleAuthor(ctx context.Context, title, author string) ([]domain.RawRecord, error)
}

// StrategyKind names one of the closed set of search strategies.
type StrategyKind string

const (
	StrategySequential StrategyKind = "sequential"
	StrategyParallel   StrategyKind = "parallel"
	StrategyBestResult StrategyKind = "best"
)

func ParseStrategyKind(value string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sequential":
		return StrategySequential, nil
	case "parallel":
		return StrategyParallel, nil
	case "best", "bestresult", "best_result":
		return StrategyBestResult, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, value)
	}
}

// searchQuery is one lookup as the strategies see it, after the facade has
// validated and normalized the caller's input.
type searchQuery struct {
	kind   domain.QueryKind
	isbn   string
	title  string
	author string
}

func (q searchQuery) text() string {
	if q.kind == domain.QueryByISBN {
		return q.isbn
	}
	if q.author == "" {
		return q.title
	}
	return q.title + " / " + q.author
}

// cacheText lowercases the query text so free-text lookups differing only in
// letter case share one cache entry.
func (q searchQuery) cacheText() string {
	return strings.ToLower(q.text())
}

// Strategy decides how the configured catalogs are consulted for one query.
// Strategies never return an error: a catalog failure degrades the result
// list and is reported through the metrics slice.
type Strategy interface {
	Kind() StrategyKind
	Search(ctx context.Context, query searchQuery) ([]domain.UnifiedResult, []domain.SourceMetric)
}

// Per-source defaults from operating against the real catalogs: BnF and
// Google Books answer within a couple of seconds, OpenLibrary needs headroom
// for its secondary author fetches.
const (
	defaultBnFTimeout         = 3 * time.Second
	defaultGoogleBooksTimeout = 3 * time.Second
	defaultOpenLibraryTimeout = 4 * time.Second
	defaultSourceTimeout      = 3 * time.Second

	// Polite request budget per catalog.
	sourceRateLimit = rate.Limit(3)
	sourceRateBurst = 3
)

func defaultTimeoutFor(name domain.SourceName) time.Duration {
	switch name {
	case domain.SourceBnF:
		return defaultBnFTimeout
	case domain.SourceGoogleBooks:
		return defaultGoogleBooksTimeout
	case domain.SourceOpenLibrary:
		return defaultOpenLibraryTimeout
	default:
		return defaultSourceTimeout
	}
}

// sourceTask binds one catalog client to its per-request budget.
type sourceTask struct {
	client  SourceClient
	timeout time.Duration
	limiter *rate.Limiter
}

// sourcePool owns the catalog clients shared by all strategies: their
// timeouts, polite rate limiters and health state.
type sourcePool struct {
	tasks  []*sourceTask
	byName map[domain.SourceName]*sourceTask
	health *healthTracker
}

func newSourcePool(clients []SourceClient) *sourcePool {
	pool := &sourcePool{
		byName: make(map[domain.SourceName]*sourceTask, len(clients)),
		health: newHealthTracker(),
	}
	for _, client := range clients {
		if client == nil {
			continue
		}
		name := client.Name()
		if name == "" {
			continue
		}
		if _, exists := pool.byName[name]; exists {
			continue
		}
		task := &sourceTask{
			client:  client,
			timeout: defaultTimeoutFor(name),
			limiter: rate.NewLimiter(sourceRateLimit, sourceRateBurst),
		}
		pool.tasks = append(pool.tasks, task)
		pool.byName[name] = task
	}
	return pool
}

func (p *sourcePool) setTimeout(name domain.SourceName, timeout time.Duration) {
	if task, ok := p.byName[name]; ok && timeout > 0 {
		task.timeout = timeout
	}
}

// orderedFor returns the tasks in priority order for a query kind. Identifier
// lookups favor the commercial catalog over the community one; free-text
// title matching is the other way round, OpenLibrary's title index being more
// forgiving than Google's.
func (p *sourcePool) orderedFor(kind domain.QueryKind) []*sourceTask {
	var order []domain.SourceName
	if kind == domain.QueryByISBN {
		order = []domain.SourceName{domain.SourceBnF, domain.SourceGoogleBooks, domain.SourceOpenLibrary}
	} else {
		order = []domain.SourceName{domain.SourceBnF, domain.SourceOpenLibrary, domain.SourceGoogleBooks}
	}

	tasks := make([]*sourceTask, 0, len(p.tasks))
	seen := make(map[domain.SourceName]struct{}, len(p.tasks))
	for _, name := range order {
		if task, ok := p.byName[name]; ok {
			tasks = append(tasks, task)
			seen[name] = struct{}{}
		}
	}
	// Unknown catalogs go last, registration order preserved.
	for _, task := range p.tasks {
		if _, ok := seen[task.client.Name()]; !ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// query runs one catalog lookup end to end: circuit breaker check, rate
// limiter wait, per-source deadline, transient retry, health accounting and
// normalization. confidence is the strategy's confidence in this source for
// this query kind and becomes part of every produced result's descriptor.
func (p *sourcePool) query(ctx context.Context, task *sourceTask, q searchQuery, confidence float64) ([]domain.UnifiedResult, domain.SourceMetric) {
	name := task.client.Name()
	metric := domain.SourceMetric{
		Source:    name,
		StartedAt: time.Now(),
	}

	if blocked, until, lastErr := p.health.isBlocked(name, metric.StartedAt); blocked {
		metric.EndedAt = time.Now()
		metric.Status = domain.SourceStatusError
		metric.Error = fmt.Sprintf("source temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr)
		return nil, metric
	}

	if err := task.limiter.Wait(ctx); err != nil {
		metric.EndedAt = time.Now()
		metric.Status = domain.SourceStatusError
		metric.Error = "rate limit wait cancelled"
		return nil, metric
	}

	taskCtx, cancel := context.WithTimeout(ctx, task.timeout)
	defer cancel()

	var records []domain.RawRecord
	searchErr := RetryWithBackoff(taskCtx, DefaultRetryConfig(), func() error {
		var err error
		if q.kind == domain.QueryByISBN {
			records, err = task.client.SearchByISBN(taskCtx, q.isbn)
		} else {
			records, err = task.client.SearchByTitleAuthor(taskCtx, q.title, q.author)
		}
		return err
	})

	metric.EndedAt = time.Now()
	p.health.record(name, q.text(), searchErr, metric.Duration(), metric.EndedAt)

	if searchErr != nil {
		metric.Status = domain.SourceStatusError
		if isTimeoutLikeError(searchErr) {
			metric.Status = domain.SourceStatusTimeout
		}
		metric.Error = searchErr.Error()
		return nil, metric
	}

	descriptor := domain.SourceDescriptor{
		Name:         name,
		TrustWeight:  name.TrustWeight(),
		Confidence:   confidence,
		ResponseTime: metric.Duration(),
		Succeeded:    true,
	}

	results := make([]domain.UnifiedResult, 0, len(records))
	for _, record := range records {
		if result := normalizeRecord(record, descriptor); result != nil {
			results = append(results, *result)
		}
	}

	metric.Status = domain.SourceStatusSuccess
	metric.ResultCount = len(results)
	return results, metric
}

// Sequential consults the catalogs one at a time in priority order and stops
// at the first one that yields results. Failures and empty answers fall
// through to the next catalog.
type Sequential struct {
	pool *sourcePool
}

func NewSequential(pool *sourcePool) *Sequential {
	return &Sequential{pool: pool}
}

func (s *Sequential) Kind() StrategyKind {
	return StrategySequential
}

func (s *Sequential) Search(ctx context.Context, q searchQuery) ([]domain.UnifiedResult, []domain.SourceMetric) {
	tasks := s.pool.orderedFor(q.kind)
	metrics := make([]domain.SourceMetric, 0, len(tasks))

	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		confidence := sourceConfidence(task.client.Name(), q.kind)
		if i == 0 {
			confidence += chainLeadBonus
		}
		results, metric := s.pool.query(ctx, task, q, confidence)
		metrics = append(metrics, metric)
		if len(results) > 0 {
			return results, metrics
		}
	}
	return nil, metrics
}
