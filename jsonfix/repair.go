package jsonfix

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrRepairFailed means closing the open brackets did not yield valid JSON.
	// The input is returned unmodified alongside it.
	ErrRepairFailed = errors.New("jsonfix: repair did not produce valid JSON")

	// ErrUnterminatedString means the input was cut off inside a string literal.
	ErrUnterminatedString = errors.New("jsonfix: input ends inside a string literal")
)

// Counts holds the structural bracket counts of a document, ignoring
// characters inside string literals.
type Counts struct {
	OpenBraces    int
	CloseBraces   int
	OpenBrackets  int
	CloseBrackets int
}

// Balanced reports whether every brace and bracket has a partner.
func (c Counts) Balanced() bool {
	return c.OpenBraces == c.CloseBraces && c.OpenBrackets == c.CloseBrackets
}

// Count scans s and returns its structural bracket counts.
func Count(s string) Counts {
	return scan(s).counts
}

type scanResult struct {
	counts   Counts
	open     []byte
	inString bool
}

func scan(s string) scanResult {
	var r scanResult
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if r.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				r.inString = false
			}
			continue
		}

		switch c {
		case '"':
			r.inString = true
		case '{':
			r.counts.OpenBraces++
			r.open = append(r.open, c)
		case '[':
			r.counts.OpenBrackets++
			r.open = append(r.open, c)
		case '}':
			r.counts.CloseBraces++
			r.pop()
		case ']':
			r.counts.CloseBrackets++
			r.pop()
		}
	}
	return r
}

func (r *scanResult) pop() {
	if len(r.open) > 0 {
		r.open = r.open[:len(r.open)-1]
	}
}

// Repair closes brackets and braces left open by truncated output.
//
// Valid input is returned unchanged. Otherwise the closers for every
// unmatched '[' and '{' are appended, innermost first, and the result is
// re-validated. Repair only ever appends: when the appended document is
// still invalid the original is returned with ErrRepairFailed. Input cut off
// inside a string literal is not repaired and yields ErrUnterminatedString.
func Repair(s string) (string, error) {
	if gjson.Valid(s) {
		return s, nil
	}

	r := scan(s)
	if r.inString {
		return s, ErrUnterminatedString
	}
	if len(r.open) == 0 {
		return s, ErrRepairFailed
	}

	var b strings.Builder
	b.Grow(len(s) + len(r.open))
	b.WriteString(s)
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}

	repaired := b.String()
	if !gjson.Valid(repaired) {
		return s, ErrRepairFailed
	}
	return repaired, nil
}
