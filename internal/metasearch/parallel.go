package metasearch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"librarium/metasearchservice/internal/domain"
)

// maxConcurrentSources bounds simultaneous catalog queries. Three catalogs
// are configured today, so the bound only matters when more are registered.
const maxConcurrentSources = 3

const defaultGlobalTimeout = 5 * time.Second

// Parallel fans the query out to every catalog at once under a global
// deadline. A slow catalog cannot hold the call past the deadline: its task
// keeps its own per-source timeout, and whatever has not answered when the
// global deadline fires is reported as timed out while the answers already
// collected are returned.
type Parallel struct {
	pool    *sourcePool
	timeout time.Duration
}

func NewParallel(pool *sourcePool, timeout time.Duration) *Parallel {
	if timeout <= 0 {
		timeout = defaultGlobalTimeout
	}
	return &Parallel{pool: pool, timeout: timeout}
}

func (p *Parallel) Kind() StrategyKind {
	return StrategyParallel
}

func (p *Parallel) Search(ctx context.Context, q searchQuery) ([]domain.UnifiedResult, []domain.SourceMetric) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	tasks := p.pool.orderedFor(q.kind)

	type taskOutcome struct {
		index   int
		results []domain.UnifiedResult
		metric  domain.SourceMetric
	}
	// Buffered to task count so stragglers finishing after the deadline can
	// send and exit instead of leaking.
	outcomes := make(chan taskOutcome, len(tasks))

	sem := semaphore.NewWeighted(maxConcurrentSources)
	for i, task := range tasks {
		go func(index int, task *sourceTask) {
			if err := sem.Acquire(runCtx, 1); err != nil {
				status := domain.SourceStatusTimeout
				if errors.Is(err, context.Canceled) {
					status = domain.SourceStatusError
				}
				outcomes <- taskOutcome{
					index: index,
					metric: domain.SourceMetric{
						Source:    task.client.Name(),
						StartedAt: startedAt,
						EndedAt:   time.Now(),
						Status:    status,
						Error:     "cancelled before start",
					},
				}
				return
			}
			defer sem.Release(1)

			confidence := sourceConfidence(task.client.Name(), q.kind)
			results, metric := p.pool.query(runCtx, task, q, confidence)
			outcomes <- taskOutcome{index: index, results: results, metric: metric}
		}(i, task)
	}

	metrics := make([]domain.SourceMetric, len(tasks))
	collected := make([]bool, len(tasks))
	var results []domain.UnifiedResult

	pending := len(tasks)
	for pending > 0 {
		select {
		case outcome := <-outcomes:
			metrics[outcome.index] = outcome.metric
			collected[outcome.index] = true
			results = append(results, outcome.results...)
			pending--
		case <-runCtx.Done():
			pending = 0
		}
	}

	// Tasks that never answered count as timeouts when the global deadline
	// fired, as errors when the caller aborted the search.
	endedAt := time.Now()
	if deadline, ok := runCtx.Deadline(); ok && endedAt.After(deadline) {
		endedAt = deadline
	}
	status := domain.SourceStatusTimeout
	cause := "global deadline exceeded"
	if errors.Is(runCtx.Err(), context.Canceled) {
		status = domain.SourceStatusError
		cause = "search cancelled"
	}
	for i, done := range collected {
		if done {
			continue
		}
		name := tasks[i].client.Name()
		metrics[i] = domain.SourceMetric{
			Source:    name,
			StartedAt: startedAt,
			EndedAt:   endedAt,
			Status:    status,
			Error:     cause,
		}
		slog.Warn("source did not answer",
			slog.String("source", string(name)),
			slog.String("query", q.text()),
			slog.String("cause", cause),
		)
	}

	return results, metrics
}
