package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metasearch"
)

// SearchService is the facade surface the HTTP layer needs.
type SearchService interface {
	SearchByISBN(ctx context.Context, isbn string, opts ...metasearch.SearchOption) []domain.UnifiedResult
	SearchByTitleAuthor(ctx context.Context, title, author string, opts ...metasearch.SearchOption) []domain.UnifiedResult
	UsingStrategy(kind metasearch.StrategyKind) metasearch.SearchOption
	CurrentStrategy() metasearch.StrategyKind
	SetStrategy(kind metasearch.StrategyKind) error
	SourceDiagnostics() []domain.SourceDiagnostics
	ClearCache()
	CacheStats() domain.CacheStats
}

type Server struct {
	search SearchService
	logger *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/isbn", s.handleSearchISBN)
	mux.HandleFunc("/search/title", s.handleSearchTitle)
	mux.HandleFunc("/search/sources", s.handleSources)
	mux.HandleFunc("/search/strategy", s.handleStrategy)
	mux.HandleFunc("/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/cache/stats", s.handleCacheStats)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "library-metasearch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearchISBN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	isbn := strings.TrimSpace(r.URL.Query().Get("isbn"))
	if isbn == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "isbn is required")
		return
	}
	if len(isbn) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "isbn too long")
		return
	}

	opts, strategy, ok := s.searchOptions(w, r)
	if !ok {
		return
	}

	startedAt := time.Now()
	results := s.search.SearchByISBN(r.Context(), isbn, opts...)
	if results == nil {
		results = []domain.UnifiedResult{}
	}
	writeJSON(w, http.StatusOK, domain.SearchResponse{
		Query:      isbn,
		Kind:       domain.QueryByISBN,
		Items:      results,
		TotalItems: len(results),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		Strategy:   strategy,
	})
}

func (s *Server) handleSearchTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	}
	if len(title) > maxQueryLength || len(author) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	opts, strategy, ok := s.searchOptions(w, r)
	if !ok {
		return
	}

	startedAt := time.Now()
	results := s.search.SearchByTitleAuthor(r.Context(), title, author, opts...)
	if results == nil {
		results = []domain.UnifiedResult{}
	}
	query := title
	if author != "" {
		query = title + " / " + author
	}
	writeJSON(w, http.StatusOK, domain.SearchResponse{
		Query:      query,
		Kind:       domain.QueryByTitleAuthor,
		Items:      results,
		TotalItems: len(results),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		Strategy:   strategy,
	})
}

// searchOptions translates the shared query parameters (strategy=, nocache=)
// into facade options. On a bad strategy value it writes the error response
// itself and reports ok=false.
func (s *Server) searchOptions(w http.ResponseWriter, r *http.Request) ([]metasearch.SearchOption, string, bool) {
	var opts []metasearch.SearchOption

	strategy := s.search.CurrentStrategy()
	if raw := strings.TrimSpace(r.URL.Query().Get("strategy")); raw != "" {
		kind, err := metasearch.ParseStrategyKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return nil, "", false
		}
		strategy = kind
		opts = append(opts, s.search.UsingStrategy(kind))
	}

	if parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache")) {
		opts = append(opts, metasearch.WithoutCache())
	}
	return opts, string(strategy), true
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": s.search.SourceDiagnostics(),
	})
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"strategy": string(s.search.CurrentStrategy()),
		})
	case http.MethodPut, http.MethodPost:
		var payload struct {
			Strategy string `json:"strategy"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		kind, err := metasearch.ParseStrategyKind(payload.Strategy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := s.search.SetStrategy(kind); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Info("search strategy changed", slog.String("strategy", string(kind)))
		writeJSON(w, http.StatusOK, map[string]string{
			"strategy": string(kind),
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.search.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.search.CacheStats())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
