package nl2sql

import (
	"regexp"
	"strings"
)

var repeatedSemicolons = regexp.MustCompile(`;(\s*;)+`)

// CleanSQL normalizes model output into a single line that ends with exactly
// one semicolon. Blank input stays blank.
func CleanSQL(raw string) string {
	value := stripMarkdownSQL(raw)
	value = unwrapQuotes(value)
	value = strings.Join(strings.Fields(value), " ")
	value = repeatedSemicolons.ReplaceAllString(value, ";")
	value = strings.TrimRight(value, "; ")
	if value == "" {
		return ""
	}
	return value + ";"
}

// unwrapQuotes drops one pair of quotes only when it encloses the whole
// answer and no other quote of that kind appears inside.
func unwrapQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if first != last || (first != '"' && first != '\'') {
		return value
	}
	inner := value[1 : len(value)-1]
	if strings.IndexByte(inner, first) >= 0 {
		return value
	}
	return strings.TrimSpace(inner)
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
