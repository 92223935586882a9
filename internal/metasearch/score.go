package metasearch

import (
	"time"

	"librarium/metasearchservice/internal/domain"
)

// Scoring weights. These are design parameters, not runtime configuration:
// identifier hits from the most authoritative source should almost always
// outrank free-text matches from weaker sources, while an unusually complete
// record from a weak source can still overtake a bare title from a strong one.
const (
	trustWeightFactor = 30.0

	authorsBonus     = 8.0
	mainAuthorBonus  = 5.0
	isbnBonus        = 8.0
	yearBonus        = 5.0
	publisherBonus   = 4.0
	descriptionBonus = 6.0
	summaryBonus     = 4.0
	thumbnailBonus   = 3.0

	slowResponseThreshold = 5 * time.Second
	slowResponsePenalty   = 5.0

	confidenceFactor = 10.0

	// Confidence bump applied when a source was queried first in a
	// sequential priority chain.
	chainLeadBonus = 0.05
)

// sourceConfidence is the per-query-kind confidence constant for a source.
// Identifier lookups are more trustworthy than free-text matches.
func sourceConfidence(name domain.SourceName, kind domain.QueryKind) float64 {
	switch kind {
	case domain.QueryByISBN:
		switch name {
		case domain.SourceBnF:
			return 0.95
		case domain.SourceGoogleBooks:
			return 0.80
		case domain.SourceOpenLibrary:
			return 0.75
		}
	case domain.QueryByTitleAuthor:
		switch name {
		case domain.SourceBnF:
			return 0.90
		case domain.SourceGoogleBooks:
			return 0.80
		case domain.SourceOpenLibrary:
			return 0.65
		}
	}
	return 0.5
}

// qualityScore rates a normalized result in [0,100]. Deterministic for a
// given result and descriptor, so results are comparable across sources and
// across repeated calls.
func qualityScore(result domain.UnifiedResult) float64 {
	score := result.Source.TrustWeight * trustWeightFactor

	// Title presence is guaranteed by the normalizer and carries no bonus.
	if len(result.Authors) > 0 {
		score += authorsBonus
	}
	if result.MainAuthor() != "" {
		score += mainAuthorBonus
	}
	if result.ISBN != "" {
		score += isbnBonus
	}
	if result.Year != "" {
		score += yearBonus
	}
	if result.Publisher != "" {
		score += publisherBonus
	}
	if result.Description != "" {
		score += descriptionBonus
	}
	if result.Summary != "" {
		score += summaryBonus
	}
	if result.ThumbnailURL != "" {
		score += thumbnailBonus
	}

	if result.Source.ResponseTime > slowResponseThreshold {
		score -= slowResponsePenalty
	}

	score += result.Source.Confidence * confidenceFactor

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
