package metasearch

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"librarium/metasearchservice/internal/domain"
)

// foldTransformer strips combining marks so "Molière" and "Moliere" collide.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lowercases, removes diacritics and punctuation, and collapses
// whitespace. French catalogs disagree on accents and apostrophes for the
// same edition, so the dedupe key has to see through both.
func foldText(value string) string {
	folded, _, err := transform.String(foldTransformer, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// surnameFirst folds a personal name into "surname given-names" form, taking
// the last token as the surname the way citation order usually has it.
func surnameFirst(name string) string {
	fields := strings.Fields(foldText(name))
	if len(fields) < 2 {
		return strings.Join(fields, " ")
	}
	last := fields[len(fields)-1]
	rest := fields[:len(fields)-1]
	return last + " " + strings.Join(rest, " ")
}

// mergeKey identifies one logical edition across catalogs: folded title plus
// surname-first main author. Results without a main author group only with
// other authorless results of the same title.
func mergeKey(result domain.UnifiedResult) string {
	return foldText(result.Title) + "|" + surnameFirst(result.MainAuthor())
}

// MergeDuplicates collapses results describing the same edition. The
// representative of each group is the highest-scored result; on equal scores
// the higher trust weight wins, then the earlier one in input order. The
// representative keeps its title, year and score untouched and absorbs from
// the losers: empty descriptive fields and a missing isbn are backfilled,
// author lists are unioned, a non-empty isbn is never replaced. Output is
// sorted by score descending with a deterministic tie-break, so repeated
// identical calls produce identical orderings.
func MergeDuplicates(results []domain.UnifiedResult) []domain.UnifiedResult {
	if len(results) <= 1 {
		return results
	}

	type group struct {
		representative domain.UnifiedResult
		order          int
	}

	groups := make(map[string]*group, len(results))
	orderedKeys := make([]string, 0, len(results))

	for i, result := range results {
		key := mergeKey(result)
		existing, ok := groups[key]
		if !ok {
			groups[key] = &group{representative: result, order: i}
			orderedKeys = append(orderedKeys, key)
			continue
		}
		if replacesRepresentative(existing.representative, result) {
			existing.representative = mergeInto(result, existing.representative)
		} else {
			existing.representative = mergeInto(existing.representative, result)
		}
	}

	ordered := make([]*group, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		ordered = append(ordered, groups[key])
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		left, right := ordered[i].representative, ordered[j].representative
		if left.QualityScore != right.QualityScore {
			return left.QualityScore > right.QualityScore
		}
		if left.Source.TrustWeight != right.Source.TrustWeight {
			return left.Source.TrustWeight > right.Source.TrustWeight
		}
		return ordered[i].order < ordered[j].order
	})

	merged := make([]domain.UnifiedResult, 0, len(ordered))
	for _, g := range ordered {
		merged = append(merged, g.representative)
	}
	return merged
}

// replacesRepresentative reports whether candidate should displace current as
// the group representative: strictly higher score, or equal score from a more
// trusted catalog. Input order breaks remaining ties in favor of current.
func replacesRepresentative(current, candidate domain.UnifiedResult) bool {
	if candidate.QualityScore != current.QualityScore {
		return candidate.QualityScore > current.QualityScore
	}
	return candidate.Source.TrustWeight > current.Source.TrustWeight
}

// mergeInto enriches the winner with fields only the loser has. Title, year
// and the quality score stay exactly as the winner produced them; the isbn is
// filled when the winner lacks one but never replaced.
func mergeInto(winner, loser domain.UnifiedResult) domain.UnifiedResult {
	if winner.ISBN == "" {
		winner.ISBN = loser.ISBN
	}
	if winner.Subtitle == "" {
		winner.Subtitle = loser.Subtitle
	}
	if winner.Publisher == "" {
		winner.Publisher = loser.Publisher
	}
	if winner.Collection == "" {
		winner.Collection = loser.Collection
	}
	if winner.Description == "" {
		winner.Description = loser.Description
	}
	if winner.Summary == "" {
		winner.Summary = loser.Summary
	}
	if winner.ThumbnailURL == "" {
		winner.ThumbnailURL = loser.ThumbnailURL
	}
	winner.Authors = unionAuthors(winner.Authors, loser.Authors)
	return winner
}

// unionAuthors appends authors from extra that base does not already carry,
// comparing case-insensitively and keeping base's order and casing.
func unionAuthors(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	for _, author := range base {
		seen[strings.ToLower(strings.TrimSpace(author))] = struct{}{}
	}
	for _, author := range extra {
		key := strings.ToLower(strings.TrimSpace(author))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, author)
	}
	return base
}
