package common

import (
	"regexp"
	"strings"
)

var (
	// BnF personal names arrive with a trailing role mention,
	// e.g. "Hugo, Victor. Auteur du texte" or "Doré, Gustave. Illustrateur".
	rolePattern = regexp.MustCompile(`(?i)\s*\.\s*(auteur(\s+du\s+texte)?|` +
		`[ée]diteur(\s+scientifique)?|directeur(\s+de\s+publication)?|` +
		`traducteur|illustrateur|pr[ée]facier|postfacier|annotateur)s?\s*$`)

	// Trailing qualifiers in parentheses: "(1802-1885)", "(pseudonyme)".
	parenPattern = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

	spacesPattern = regexp.MustCompile(`\s{2,}`)
)

// CleanPersonName strips catalog role suffixes and trailing parenthetical
// birth/death years from a personal name, then tidies whitespace.
func CleanPersonName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	name = rolePattern.ReplaceAllString(name, "")
	name = parenPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(spacesPattern.ReplaceAllString(name, " "))
}

// DedupeAuthors drops empty entries and case-insensitive duplicates while
// preserving insertion order and first-seen casing.
func DedupeAuthors(authors []string) []string {
	if len(authors) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(authors))
	out := make([]string, 0, len(authors))
	for _, author := range authors {
		name := strings.TrimSpace(author)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// YearOf extracts the first four-digit year from a free-form date string,
// e.g. "impr. 2010" -> "2010", "2001-05-03" -> "2001".
func YearOf(raw string) string {
	return yearPattern.FindString(raw)
}

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)
