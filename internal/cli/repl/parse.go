package repl

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	errUnterminatedQuote = errors.New("unterminated quote")
	errInvalidUTF8       = errors.New("input is not valid UTF-8")
)

// splitArgs splits a line on whitespace. Double quotes group words into one
// argument and a backslash inside quotes escapes the next character. Lines
// that are not valid UTF-8 are rejected.
func splitArgs(line string) ([]string, error) {
	if !utf8.ValidString(line) {
		return nil, errInvalidUTF8
	}

	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}

	if inQuote || escaped {
		return nil, errUnterminatedQuote
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
