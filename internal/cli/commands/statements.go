package commands

import (
	"strings"
)

// splitStatements splits a SQL script on semicolons that are outside
// quotes and comments. Empty statements are dropped.
func splitStatements(script string) []string {
	var (
		out   []string
		start int
	)
	emit := func(end int) {
		if s := strings.TrimSpace(script[start:end]); s != "" && !onlyComments(s) {
			out = append(out, s)
		}
	}

	for i := 0; i < len(script); i++ {
		switch c := script[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(script, i, c)
		case c == '$':
			if end, ok := skipDollarQuoted(script, i); ok {
				i = end
			}
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			if nl := strings.IndexByte(script[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(script)
			}
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			if end := strings.Index(script[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(script)
			}
		case c == ';':
			emit(i)
			start = i + 1
		}
	}
	if start < len(script) {
		emit(len(script))
	}
	return out
}

// skipQuoted returns the index of the quote closing the one at i.
// A doubled quote is an escaped quote.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s)
}

// skipDollarQuoted returns the index of the last byte of the $tag$ closing
// the dollar-quoted string opened at i. ok is false when no string opens at
// i, as for a $1 parameter or a $ inside an identifier.
func skipDollarQuoted(s string, i int) (int, bool) {
	if i > 0 && isWordByte(s[i-1]) {
		return i, false
	}
	j := i + 1
	for j < len(s) && s[j] != '$' {
		if !isWordByte(s[j]) || (j == i+1 && s[j] >= '0' && s[j] <= '9') {
			return i, false
		}
		j++
	}
	if j >= len(s) {
		return i, false
	}
	tag := s[i : j+1]
	if end := strings.Index(s[j+1:], tag); end >= 0 {
		return j + end + len(tag), true
	}
	return len(s), true
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func onlyComments(s string) bool {
	for s != "" {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return true
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return true
			}
			s = s[end+2:]
		default:
			return s == ""
		}
	}
	return true
}
