// Package util provides argument helpers for host command lines.
package util

import (
	"strings"
	"unicode"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg trims whitespace and surrounding quotes and unescapes doubled quotes.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseLine splits a command line such as
//
//	:MARKER:UPDATE: 2 "28.6251,79.8146"
//
// into its command and arguments. Arguments are separated by whitespace.
// A double-quoted argument may contain spaces and uses "" for a literal quote.
// Returned arguments are cleaned with CleanArg.
func ParseLine(line string) (command string, args []string) {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		started bool
	)

	runes := []rune(strings.TrimSpace(line))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && quoted && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteString(`""`)
			i++
		case r == '"':
			quoted = !quoted
			started = true
			current.WriteRune(r)
		case unicode.IsSpace(r) && !quoted:
			if started {
				fields = append(fields, current.String())
				current.Reset()
				started = false
			}
		default:
			started = true
			current.WriteRune(r)
		}
	}
	if started {
		fields = append(fields, current.String())
	}

	if len(fields) == 0 {
		return "", nil
	}
	for _, f := range fields[1:] {
		args = append(args, CleanArg(f))
	}
	return strings.ToUpper(fields[0]), args
}
