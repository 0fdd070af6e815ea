package duckdb

import (
	"regexp"
	"strings"
)

var (
	insertPrefix = regexp.MustCompile(`(?is)^\s*insert\s+(?:or\s+\w+\s+)?(?:into|overwrite(?:\s+table)?)\s+`)
	createPrefix = regexp.MustCompile(`(?is)^\s*create\s+(?:or\s+replace\s+)?(?:temp(?:orary)?\s+)?(?:table|view)\s+(?:if\s+not\s+exists\s+)?`)
	asKeyword    = regexp.MustCompile(`(?is)^\s*as\b`)
	queryStart   = regexp.MustCompile(`(?is)^\s*(?:select|with|from|values)\b`)
)

// writeTarget is the table a statement writes to, split off the query that
// feeds it.
type writeTarget struct {
	Parts   []string // unquoted identifier parts: table, database.table or catalog.database.table
	Columns []string // explicit INSERT column list, if any
	Query   string
}

// splitWrite recognizes INSERT INTO ... and CREATE TABLE|VIEW ... AS and
// returns the target and the remaining query. ok is false for anything else,
// in which case the whole text is treated as the query.
func splitWrite(sqlText string) (writeTarget, bool) {
	if loc := insertPrefix.FindStringIndex(sqlText); loc != nil {
		parts, rest, ok := readQualifiedName(sqlText[loc[1]:])
		if !ok {
			return writeTarget{}, false
		}
		cols, rest := readColumnList(rest)
		return writeTarget{Parts: parts, Columns: cols, Query: strings.TrimSpace(rest)}, true
	}

	if loc := createPrefix.FindStringIndex(sqlText); loc != nil {
		parts, rest, ok := readQualifiedName(sqlText[loc[1]:])
		if !ok {
			return writeTarget{}, false
		}
		cols, rest := readColumnList(rest)
		m := asKeyword.FindStringIndex(rest)
		if m == nil {
			return writeTarget{}, false
		}
		return writeTarget{Parts: parts, Columns: cols, Query: strings.TrimSpace(rest[m[1]:])}, true
	}

	return writeTarget{}, false
}

// readQualifiedName reads a possibly quoted, dot separated identifier.
func readQualifiedName(s string) ([]string, string, bool) {
	var parts []string
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return nil, "", false
		}

		var part string
		if s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, "", false
			}
			part = s[i+1 : i+1+end]
			i += end + 2
		} else {
			start := i
			for i < len(s) && isIdentChar(s[i]) {
				i++
			}
			if start == i {
				return nil, "", false
			}
			part = s[start:i]
		}
		parts = append(parts, part)

		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j < len(s) && s[j] == '.' {
			i = j + 1
			continue
		}
		if len(parts) > 3 {
			return nil, "", false
		}
		return parts, s[i:], true
	}
}

// readColumnList reads "(a, b, c)" when it is a column list rather than a
// parenthesized query.
func readColumnList(s string) ([]string, string) {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(trimmed, "(") {
		return nil, s
	}
	inner := trimmed[1:]
	if queryStart.MatchString(inner) {
		return nil, s
	}
	end := strings.IndexByte(inner, ')')
	if end < 0 {
		return nil, s
	}

	var cols []string
	for _, c := range strings.Split(inner[:end], ",") {
		c = strings.TrimSpace(c)
		c = strings.Trim(c, `"`)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols, inner[end+1:]
}

// splitQualified splits a dotted name such as catalog.db."my table".
func splitQualified(name string) []string {
	parts, rest, ok := readQualifiedName(name)
	if !ok || strings.TrimSpace(rest) != "" {
		return nil
	}
	return parts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
