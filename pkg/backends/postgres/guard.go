package postgres

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUnsafeQuery = errors.New("unsafe query")

var (
	forbiddenKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|copy|vacuum|call|do|execute|set|reset|lock|listen|notify|pg_sleep|pg_read_file)\b`)
	tableReference    = regexp.MustCompile(`(?i)\b(?:from|join)\s+((?:"[^"]+"|[a-z_][\w$]*)(?:\.(?:"[^"]+"|[a-z_][\w$]*))?)`)
	cteName           = regexp.MustCompile(`(?i)(?:\bwith|,)\s*(?:recursive\s+)?("?[a-z_][\w$]*"?)\s+as\s*\(`)
	quotedLiteral     = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// Guard accepts a single read-only statement whose FROM and JOIN targets are all listed in
// allowed (or are CTEs it defines itself).
func Guard(query string, allowed []string) error {
	stripped := strings.TrimSpace(query)
	stripped = strings.TrimSuffix(stripped, ";")

	if stripped == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeQuery)
	}

	// literals may legitimately contain keywords
	scan := quotedLiteral.ReplaceAllString(stripped, "''")

	if strings.Contains(scan, ";") {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
	}

	if strings.Contains(scan, "--") || strings.Contains(scan, "/*") {
		return fmt.Errorf("%w: comments are not allowed", ErrUnsafeQuery)
	}

	lower := strings.ToLower(scan)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsafeQuery)
	}

	if keyword := forbiddenKeywords.FindString(scan); keyword != "" {
		return fmt.Errorf("%w: keyword %q is not allowed", ErrUnsafeQuery, keyword)
	}

	permitted := make(map[string]bool, len(allowed))
	for _, table := range allowed {
		permitted[normalizeIdentifier(table)] = true
	}

	for _, match := range cteName.FindAllStringSubmatch(scan, -1) {
		permitted[normalizeIdentifier(match[1])] = true
	}

	for _, loc := range tableReference.FindAllStringSubmatchIndex(scan, -1) {
		if insideFromFunction(scan, loc[0]) {
			continue
		}

		table := normalizeIdentifier(scan[loc[2]:loc[3]])
		if permitted[table] {
			continue
		}

		// allow schema-qualified references to permitted bare names
		if dot := strings.LastIndexByte(table, '.'); dot >= 0 && permitted[table[dot+1:]] {
			continue
		}

		return fmt.Errorf("%w: table %q is outside the datasource", ErrUnsafeQuery, table)
	}

	return nil
}

// FROM is also a keyword argument of a few functions, e.g. EXTRACT(YEAR FROM created_at).
var fromFunctions = map[string]bool{"extract": true, "substring": true, "trim": true, "overlay": true, "position": true}

func insideFromFunction(scan string, at int) bool {
	depth := 0

	for i := at - 1; i >= 0; i-- {
		switch scan[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--

				continue
			}

			name := strings.TrimRight(scan[:i], " \t\n")

			start := len(name)
			for start > 0 && isIdentifierByte(name[start-1]) {
				start--
			}

			return fromFunctions[strings.ToLower(name[start:])]
		}
	}

	return false
}

func isIdentifierByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(identifier), `"`, ""))
}
