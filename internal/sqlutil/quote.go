// Package sqlutil provides SQL text helpers for gobulk.
package sqlutil

import (
	"regexp"
	"strings"
)

// InvalidIdentifierError is returned when an identifier contains characters
// outside the allowed set.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}

// MySQL allows more ($, unicode), but everything gobulk provisions or touches
// is restricted to this set as an injection guard.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier reports whether name is safe to interpolate as a MySQL
// identifier.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling any
// embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteIdentifierSafe validates the identifier before quoting it. Use for
// identifiers that originate in configuration or other untrusted input.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// Placeholders returns a comma-joined list of n "?" markers for IN clauses
// and multi-value inserts. Returns an empty string when n <= 0.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	if n == 1 {
		return "?"
	}
	var b strings.Builder
	b.Grow(2*n - 1)
	b.WriteByte('?')
	for i := 1; i < n; i++ {
		b.WriteString(",?")
	}
	return b.String()
}

// TagComment renders a correlation tag as a leading SQL comment so mutation
// statements can be attributed in the processlist and slow log. The tag is
// stripped of comment terminators and newlines; an empty tag yields an empty
// string.
func TagComment(tag string) string {
	if tag == "" {
		return ""
	}
	clean := strings.NewReplacer("/*", "", "*/", "", "\n", " ", "\r", " ").Replace(tag)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return ""
	}
	return "/* tag:" + clean + " */ "
}
