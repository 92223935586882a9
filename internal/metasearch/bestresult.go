package metasearch

import (
	"context"

	"librarium/metasearchservice/internal/domain"
)

// BestResult queries every catalog in parallel, then collapses duplicate
// editions so each book appears once with the richest record the catalogs
// could collectively produce. This is the default strategy.
type BestResult struct {
	parallel *Parallel
}

func NewBestResult(parallel *Parallel) *BestResult {
	return &BestResult{parallel: parallel}
}

func (b *BestResult) Kind() StrategyKind {
	return StrategyBestResult
}

func (b *BestResult) Search(ctx context.Context, q searchQuery) ([]domain.UnifiedResult, []domain.SourceMetric) {
	results, metrics := b.parallel.Search(ctx, q)
	return MergeDuplicates(results), metrics
}
