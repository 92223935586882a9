package common

import "strings"

// NormalizeISBN strips separators and keeps digits plus a trailing X
// (ISBN-10 check digit). Returns "" when the remainder is not 10 or 13
// characters long.
func NormalizeISBN(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r >= '0' && r <= '9' || r == 'X' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if len(normalized) == 10 || len(normalized) == 13 {
		return normalized
	}
	return ""
}

// ValidateISBN checks the ISBN-10 or ISBN-13 check digit.
func ValidateISBN(raw string) bool {
	normalized := NormalizeISBN(raw)
	switch len(normalized) {
	case 10:
		return validISBN10(normalized)
	case 13:
		return validISBN13(normalized)
	default:
		return false
	}
}

func validISBN10(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		var value int
		switch {
		case r >= '0' && r <= '9':
			value = int(r - '0')
		case r == 'X' && i == 9:
			value = 10
		default:
			return false
		}
		sum += value * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
		value := int(r - '0')
		if i%2 == 1 {
			value *= 3
		}
		sum += value
	}
	return sum%10 == 0
}
