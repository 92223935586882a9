package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metasearch"
)

type fakeSearchService struct {
	results []domain.UnifiedResult

	lastISBN     string
	lastTitle    string
	lastAuthor   string
	lastOptCount int

	strategy        metasearch.StrategyKind
	setStrategyErr  error
	usedStrategy    metasearch.StrategyKind
	cacheCleared    bool
	stats           domain.CacheStats
	diagnostics     []domain.SourceDiagnostics
	searchCallCount int
}

func newFakeSearchService() *fakeSearchService {
	return &fakeSearchService{
		strategy: metasearch.StrategyBestResult,
		results: []domain.UnifiedResult{
			{
				Title:   "Dune",
				Authors: []string{"Frank Herbert"},
				Source: domain.SourceDescriptor{
					Name:        domain.SourceBnF,
					TrustWeight: 1.0,
					Succeeded:   true,
				},
				QualityScore: 72,
			},
		},
	}
}

func (f *fakeSearchService) SearchByISBN(_ context.Context, isbn string, opts ...metasearch.SearchOption) []domain.UnifiedResult {
	f.searchCallCount++
	f.lastISBN = isbn
	f.lastOptCount = len(opts)
	return f.results
}

func (f *fakeSearchService) SearchByTitleAuthor(_ context.Context, title, author string, opts ...metasearch.SearchOption) []domain.UnifiedResult {
	f.searchCallCount++
	f.lastTitle = title
	f.lastAuthor = author
	f.lastOptCount = len(opts)
	return f.results
}

func (f *fakeSearchService) UsingStrategy(kind metasearch.StrategyKind) metasearch.SearchOption {
	f.usedStrategy = kind
	return metasearch.WithoutCache()
}

func (f *fakeSearchService) CurrentStrategy() metasearch.StrategyKind {
	return f.strategy
}

func (f *fakeSearchService) SetStrategy(kind metasearch.StrategyKind) error {
	if f.setStrategyErr != nil {
		return f.setStrategyErr
	}
	f.strategy = kind
	return nil
}

func (f *fakeSearchService) SourceDiagnostics() []domain.SourceDiagnostics {
	return f.diagnostics
}

func (f *fakeSearchService) ClearCache() {
	f.cacheCleared = true
}

func (f *fakeSearchService) CacheStats() domain.CacheStats {
	return f.stats
}

func newTestServer(fake *fakeSearchService) http.Handler {
	return NewServer(fake).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSearchISBNEndpoint(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/isbn?isbn=9780441013593", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if fake.lastISBN != "9780441013593" {
		t.Fatalf("unexpected isbn passed to the service: %q", fake.lastISBN)
	}

	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if response.Kind != domain.QueryByISBN || response.TotalItems != 1 {
		t.Fatalf("unexpected response envelope: %+v", response)
	}
	if response.Strategy != string(metasearch.StrategyBestResult) {
		t.Fatalf("unexpected strategy in response: %q", response.Strategy)
	}
	if response.Items[0].Title != "Dune" {
		t.Fatalf("unexpected items: %+v", response.Items)
	}
}

func TestSearchISBNRequiresParameter(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	rec := doRequest(t, handler, http.MethodGet, "/search/isbn", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchISBNRejectsNonGet(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	rec := doRequest(t, handler, http.MethodPost, "/search/isbn?isbn=9780441013593", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSearchTitleEndpoint(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/title?title=Dune&author=Herbert", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if fake.lastTitle != "Dune" || fake.lastAuthor != "Herbert" {
		t.Fatalf("unexpected title/author: %q %q", fake.lastTitle, fake.lastAuthor)
	}

	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if response.Query != "Dune / Herbert" || response.Kind != domain.QueryByTitleAuthor {
		t.Fatalf("unexpected response envelope: %+v", response)
	}
}

func TestSearchTitleRequiresTitle(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	rec := doRequest(t, handler, http.MethodGet, "/search/title?author=Herbert", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchRejectsOversizedQueries(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	long := strings.Repeat("a", maxQueryLength+1)
	rec := doRequest(t, handler, http.MethodGet, "/search/title?title="+long, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized title, got %d", rec.Code)
	}
}

func TestStrategyQueryParameter(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/isbn?isbn=9780441013593&strategy=sequential", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if fake.usedStrategy != metasearch.StrategySequential {
		t.Fatalf("expected a sequential per-call override, got %q", fake.usedStrategy)
	}

	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if response.Strategy != string(metasearch.StrategySequential) {
		t.Fatalf("response should echo the override, got %q", response.Strategy)
	}
}

func TestUnknownStrategyQueryParameterRejected(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/isbn?isbn=9780441013593&strategy=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if fake.searchCallCount != 0 {
		t.Fatal("search must not run with an invalid strategy value")
	}
}

func TestNoCacheParameterAddsOption(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	doRequest(t, handler, http.MethodGet, "/search/isbn?isbn=9780441013593&nocache=true", "")
	if fake.lastOptCount != 1 {
		t.Fatalf("expected one search option for nocache=true, got %d", fake.lastOptCount)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	fake := newFakeSearchService()
	fake.diagnostics = []domain.SourceDiagnostics{
		{Name: domain.SourceBnF, Label: "BnF", TrustWeight: 1.0},
	}
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/sources", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Sources []domain.SourceDiagnostics `json:"sources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if len(payload.Sources) != 1 || payload.Sources[0].Label != "BnF" {
		t.Fatalf("unexpected sources payload: %+v", payload)
	}
}

func TestStrategyEndpointGet(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	rec := doRequest(t, handler, http.MethodGet, "/search/strategy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if payload["strategy"] != string(metasearch.StrategyBestResult) {
		t.Fatalf("unexpected strategy: %q", payload["strategy"])
	}
}

func TestStrategyEndpointPut(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodPut, "/search/strategy", `{"strategy":"parallel"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if fake.strategy != metasearch.StrategyParallel {
		t.Fatalf("expected the service strategy changed, got %q", fake.strategy)
	}
}

func TestStrategyEndpointRejectsBadValues(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	if rec := doRequest(t, handler, http.MethodPut, "/search/strategy", `{"strategy":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown strategy, got %d", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodPut, "/search/strategy", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a broken body, got %d", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodDelete, "/search/strategy", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE, got %d", rec.Code)
	}
}

func TestCacheClearEndpoint(t *testing.T) {
	fake := newFakeSearchService()
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodPost, "/cache/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !fake.cacheCleared {
		t.Fatal("expected the cache to be cleared")
	}

	if rec := doRequest(t, handler, http.MethodGet, "/cache/clear", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	fake := newFakeSearchService()
	fake.stats = domain.CacheStats{Entries: 2, Hits: 5, Misses: 3}
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var stats domain.CacheStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if stats != fake.stats {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(newFakeSearchService())

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}

func TestEmptyResultsSerializeAsEmptyArray(t *testing.T) {
	fake := newFakeSearchService()
	fake.results = nil
	handler := newTestServer(fake)

	rec := doRequest(t, handler, http.MethodGet, "/search/isbn?isbn=9780000000000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected items to serialize as [], got %s", rec.Body.String())
	}
}
