package domain

import (
	"strings"
	"time"
)

// SourceName identifies one of the external bibliographic catalogs.
type SourceName string

const (
	SourceBnF         SourceName = "bnf"
	SourceGoogleBooks SourceName = "googlebooks"
	SourceOpenLibrary SourceName = "openlibrary"
)

// TrustWeight returns the fixed reliability weight of a catalog, in [0,1].
// BnF is the national library of record, Google Books is commercial but
// well curated, OpenLibrary is community maintained.
func (n SourceName) TrustWeight() float64 {
	switch n {
	case SourceBnF:
		return 1.0
	case SourceGoogleBooks:
		return 0.8
	case SourceOpenLibrary:
		return 0.6
	default:
		return 0.5
	}
}

func (n SourceName) Label() string {
	switch n {
	case SourceBnF:
		return "BnF"
	case SourceGoogleBooks:
		return "Google Books"
	case SourceOpenLibrary:
		return "OpenLibrary"
	default:
		return string(n)
	}
}

// QueryKind distinguishes exact-identifier lookups from free-text searches.
type QueryKind string

const (
	QueryByISBN        QueryKind = "isbn"
	QueryByTitleAuthor QueryKind = "title"
)

// SourceDescriptor captures how one adapter invocation went. It is created
// once per call and attached, immutable, to every result that call produced.
type SourceDescriptor struct {
	Name         SourceName    `json:"name"`
	TrustWeight  float64       `json:"trustWeight"`
	Confidence   float64       `json:"confidence"`
	ResponseTime time.Duration `json:"responseTime"`
	Succeeded    bool          `json:"succeeded"`
}

// Identifier is a raw catalog identifier, e.g. {Kind: "ISBN_13", Value: "978..."}.
type Identifier struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// RawRecord is the loosely-shaped record a source adapter extracts from its
// wire format. Field conventions differ per source (BnF authors still carry
// role suffixes, Google Books identifiers come as a typed list); the
// normalizer applies the per-source shaping rules.
type RawRecord struct {
	Source        SourceName
	Title         string
	Subtitle      string
	Authors       []string
	Identifiers   []Identifier
	PublishedDate string
	Publisher     string
	Collection    string
	Description   string
	Summary       string
	ThumbnailURL  string
}

// UnifiedResult is the canonical, source-agnostic representation of one
// candidate book record. Title is never empty; Authors contains no duplicate
// and no empty entry. QualityScore is computed once at construction; the only
// permitted mutation afterwards is field backfill during merge.
type UnifiedResult struct {
	Title        string           `json:"title"`
	Subtitle     string           `json:"subtitle,omitempty"`
	Authors      []string         `json:"authors,omitempty"`
	ISBN         string           `json:"isbn,omitempty"`
	Year         string           `json:"year,omitempty"`
	Publisher    string           `json:"publisher,omitempty"`
	Collection   string           `json:"collection,omitempty"`
	Description  string           `json:"description,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	ThumbnailURL string           `json:"thumbnailUrl,omitempty"`
	Source       SourceDescriptor `json:"source"`
	QualityScore float64          `json:"qualityScore"`
}

// MainAuthor returns the first author in citation order, or "".
func (r UnifiedResult) MainAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// DisplayTitle joins title and subtitle for presentation.
func (r UnifiedResult) DisplayTitle() string {
	if strings.TrimSpace(r.Subtitle) == "" {
		return r.Title
	}
	return r.Title + ": " + r.Subtitle
}

type SourceStatus string

const (
	SourceStatusSuccess SourceStatus = "success"
	SourceStatusTimeout SourceStatus = "timeout"
	SourceStatusError   SourceStatus = "error"
)

// SourceMetric records one adapter task inside one search call. It is used
// for the per-call summary log and health accounting, never returned to the
// search caller.
type SourceMetric struct {
	Source      SourceName
	StartedAt   time.Time
	EndedAt     time.Time
	Status      SourceStatus
	ResultCount int
	Error       string
}

func (m SourceMetric) Duration() time.Duration {
	if m.EndedAt.IsZero() {
		return 0
	}
	d := m.EndedAt.Sub(m.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// CacheStats is the operational snapshot returned by the facade.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// SourceDiagnostics exposes per-source health for the operational endpoint.
type SourceDiagnostics struct {
	Name                SourceName `json:"name"`
	Label               string     `json:"label"`
	TrustWeight         float64    `json:"trustWeight"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// SearchResponse is the HTTP-facing envelope around a ranked result list.
type SearchResponse struct {
	Query      string          `json:"query"`
	Kind       QueryKind       `json:"kind"`
	Items      []UnifiedResult `json:"items"`
	TotalItems int             `json:"totalItems"`
	ElapsedMS  int64           `json:"elapsedMs"`
	Strategy   string          `json:"strategy"`
}
