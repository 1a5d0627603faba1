// Package sqltext splits and normalizes Snowflake SQL scripts.
package sqltext

import (
	"strings"
)

// Split breaks a script into statements on semicolons outside string
// literals, quoted identifiers, comments and $$ blocks. Statements are
// trimmed and comment-only fragments are dropped.
func Split(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" && strings.TrimSpace(StripComments(stmt)) != "" {
			statements = append(statements, stmt)
		}
	}

	rs := []rune(script)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		next := rune(0)
		if i+1 < len(rs) {
			next = rs[i+1]
		}

		switch {
		case c == '-' && next == '-':
			end := indexFrom(rs, i, "\n")
			if end < 0 {
				end = len(rs)
			}
			current.WriteString(string(rs[i:end]))
			i = end - 1
		case c == '/' && next == '*':
			end := indexFrom(rs, i+2, "*/")
			if end < 0 {
				end = len(rs)
			} else {
				end += 2
			}
			current.WriteString(string(rs[i:end]))
			i = end - 1
		case c == '$' && next == '$':
			end := indexFrom(rs, i+2, "$$")
			if end < 0 {
				end = len(rs)
			} else {
				end += 2
			}
			current.WriteString(string(rs[i:end]))
			i = end - 1
		case c == '\'' || c == '"':
			end := closingQuote(rs, i)
			current.WriteString(string(rs[i:end]))
			i = end - 1
		case c == ';':
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return statements
}

// closingQuote returns the index just past the literal opened at start.
// Doubled quotes and backslash escapes stay inside the literal.
func closingQuote(rs []rune, start int) int {
	q := rs[start]
	for j := start + 1; j < len(rs); j++ {
		switch rs[j] {
		case '\\':
			if q == '\'' {
				j++
			}
		case q:
			if j+1 < len(rs) && rs[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(rs)
}

func indexFrom(rs []rune, from int, sub string) int {
	if from >= len(rs) {
		return -1
	}
	idx := strings.Index(string(rs[from:]), sub)
	if idx < 0 {
		return -1
	}
	return from + len([]rune(string(rs[from:])[:idx]))
}

// StripComments removes -- and /* */ comments outside literals.
func StripComments(stmt string) string {
	var b strings.Builder
	rs := []rune(stmt)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		next := rune(0)
		if i+1 < len(rs) {
			next = rs[i+1]
		}
		switch {
		case c == '-' && next == '-':
			end := indexFrom(rs, i, "\n")
			if end < 0 {
				return b.String()
			}
			b.WriteRune('\n')
			i = end
		case c == '/' && next == '*':
			end := indexFrom(rs, i+2, "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteRune(' ')
			i = end + 1
		case c == '\'' || c == '"':
			end := closingQuote(rs, i)
			b.WriteString(string(rs[i:end]))
			i = end - 1
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Normalize strips comments, collapses whitespace and upper-cases text outside
// string literals. It is used for pattern checks, never for execution.
func Normalize(stmt string) string {
	stripped := StripComments(stmt)
	var b strings.Builder
	rs := []rune(stripped)
	space := false
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if c == '\'' {
			end := closingQuote(rs, i)
			if space && b.Len() > 0 {
				b.WriteRune(' ')
			}
			space = false
			b.WriteString(string(rs[i:end]))
			i = end - 1
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteRune(' ')
		}
		space = false
		b.WriteString(strings.ToUpper(string(c)))
	}
	return b.String()
}
