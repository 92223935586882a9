package metasearch

import (
	"strings"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/sources/common"
)

// normalizeRecord shapes one raw catalog record into a UnifiedResult and
// computes its quality score. Returns nil when the record carries no usable
// title; any other missing or malformed field simply stays empty.
func normalizeRecord(raw domain.RawRecord, source domain.SourceDescriptor) *domain.UnifiedResult {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}

	result := domain.UnifiedResult{
		Title:        title,
		Subtitle:     strings.TrimSpace(raw.Subtitle),
		Authors:      normalizeAuthors(raw),
		ISBN:         pickIdentifier(raw.Identifiers),
		Year:         common.YearOf(raw.PublishedDate),
		Publisher:    strings.TrimSpace(raw.Publisher),
		Collection:   strings.TrimSpace(raw.Collection),
		Description:  strings.TrimSpace(raw.Description),
		Summary:      strings.TrimSpace(raw.Summary),
		ThumbnailURL: strings.TrimSpace(raw.ThumbnailURL),
		Source:       source,
	}
	result.QualityScore = qualityScore(result)
	return &result
}

// normalizeAuthors applies per-source author shaping. BnF creators still
// carry role suffixes and parenthetical life dates; the other catalogs send
// plain names that only need trimming and deduplication.
func normalizeAuthors(raw domain.RawRecord) []string {
	if len(raw.Authors) == 0 {
		return nil
	}
	names := make([]string, 0, len(raw.Authors))
	for _, author := range raw.Authors {
		if raw.Source == domain.SourceBnF {
			author = common.CleanPersonName(author)
		}
		names = append(names, author)
	}
	return common.DedupeAuthors(names)
}

// pickIdentifier chooses the best identifier: a 13-digit ISBN over a
// 10-digit one, then anything that normalizes to a plausible ISBN.
func pickIdentifier(identifiers []domain.Identifier) string {
	var fallback string
	for _, ident := range identifiers {
		isbn := common.NormalizeISBN(ident.Value)
		if isbn == "" {
			continue
		}
		if strings.EqualFold(ident.Kind, "ISBN_13") || len(isbn) == 13 {
			return isbn
		}
		if fallback == "" {
			fallback = isbn
		}
	}
	return fallback
}
