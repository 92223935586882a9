package metasearch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metrics"
)

const (
	sourceFailureThreshold = 3
	sourceBlockBase        = 2 * time.Minute
	sourceBlockMax         = 15 * time.Minute
)

type sourceHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// healthTracker keeps per-catalog failure state and blocks a catalog after
// repeated consecutive failures, with exponentially growing block windows.
type healthTracker struct {
	mu    sync.Mutex
	state map[domain.SourceName]*sourceHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{state: make(map[domain.SourceName]*sourceHealth)}
}

func (t *healthTracker) isBlocked(name domain.SourceName, now time.Time) (bool, time.Time, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state[name]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (t *healthTracker) record(name domain.SourceName, query string, err error, latency time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state[name]
	if state == nil {
		state = &sourceHealth{}
		t.state[name] = state
	}
	state.totalRequests++
	state.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		state.lastLatency = latency
		metrics.SourceRequestDuration.WithLabelValues(string(name)).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.SourceRequestsTotal.WithLabelValues(string(name), "ok").Inc()
		metrics.SourceAvailable.WithLabelValues(string(name)).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.SourceRequestsTotal.WithLabelValues(string(name), status).Inc()

	if state.consecutiveFailures >= sourceFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.SourceAvailable.WithLabelValues(string(name)).Set(0)
	}
}

// exponentialBlockDuration calculates how long to block a catalog based on
// consecutive failures: baseDuration × 2^(failures - threshold), capped at 15min.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - sourceFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := sourceBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > sourceBlockMax {
			return sourceBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (p *sourcePool) diagnostics() []domain.SourceDiagnostics {
	p.health.mu.Lock()
	defer p.health.mu.Unlock()

	items := make([]domain.SourceDiagnostics, 0, len(p.tasks))
	for _, task := range p.tasks {
		name := task.client.Name()
		item := domain.SourceDiagnostics{
			Name:        name,
			Label:       name.Label(),
			TrustWeight: name.TrustWeight(),
		}
		if state := p.health.state[name]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			if !state.blockedUntil.IsZero() {
				blockedUntil := state.blockedUntil
				item.BlockedUntil = &blockedUntil
			}
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
