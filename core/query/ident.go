package query

import "strings"

// ValidIdentifier reports whether s is a safe SQL identifier:
// a letter or underscore followed by letters, digits or underscores.
func ValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

// ValidColumn accepts an identifier optionally qualified by one alias,
// e.g. "name" or "author.name".
func ValidColumn(s string) bool {
	alias, col, ok := strings.Cut(s, ".")
	if !ok {
		return ValidIdentifier(s)
	}
	return ValidIdentifier(alias) && ValidIdentifier(col)
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
