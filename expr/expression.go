// Package expr implements the cron-style trigger expression used to decide
// whether a scheduled event is due at a given instant.
//
// An expression is five or six whitespace-separated fields. The six-field
// form carries a leading legacy slot that is validated but never matched
// against the clock:
//
//	position: 1      2      3    4            5     6
//	          legacy minute hour day-of-month month day-of-week
//
// The five-field form is the standard minute..day-of-week layout. Each field
// is a comma-separated list of patterns: "*", a literal integer, an inclusive
// range "a-b", or a step "*/n". A field matches when at least one of its
// patterns matches; the instant is due when every field matches.
//
// Expressions are values. Construction never validates; a malformed
// expression surfaces a *ParseError from IsDue, so an expression mutated
// after construction reports its own problems at evaluation time.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldCount is the number of fields in the canonical six-field form.
const FieldCount = 6

// Default is the all-wildcard six-field expression, due at every instant.
const Default = "* * * * * *"

// ParseError reports a malformed trigger expression. It is returned from
// IsDue, never from construction.
type ParseError struct {
	// Expression is the full raw expression that failed to parse.
	Expression string
	// Reason describes what was wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: invalid cron expression %q: %s", e.Expression, e.Reason)
}

// Expression is an immutable cron-style trigger expression.
// The zero value is not useful; use New or Wildcard.
type Expression struct {
	raw string
}

// New wraps a raw expression string. No validation happens here.
func New(raw string) Expression {
	return Expression{raw: raw}
}

// Wildcard returns the default all-wildcard expression.
func Wildcard() Expression {
	return New(Default)
}

// String returns the raw expression.
func (e Expression) String() string { return e.raw }

// Replace returns an expression with an entirely new raw string. Like New,
// it does not validate.
func (e Expression) Replace(raw string) Expression { return New(raw) }

// Splice returns a copy of the expression with the field at the given
// 1-indexed position replaced by value. Positions outside the field range
// leave the expression unchanged; a later IsDue call reports field-count
// problems for genuinely malformed expressions.
func (e Expression) Splice(position int, value string) Expression {
	fields := strings.Fields(e.raw)
	if position < 1 || position > len(fields) {
		return e
	}
	fields[position-1] = value
	return New(strings.Join(fields, " "))
}

// IsDue reports whether the expression matches the given instant.
// The caller is responsible for any timezone conversion; IsDue reads the
// calendar components of t as-is.
func (e Expression) IsDue(t time.Time) (bool, error) {
	fields := strings.Fields(e.raw)

	// The six-field form carries a legacy leading slot. It must parse, but
	// it is not bound to any calendar component.
	switch len(fields) {
	case FieldCount:
		if err := e.checkField(fields[0], 0, 59); err != nil {
			return false, err
		}
		fields = fields[1:]
	case FieldCount - 1:
		// standard five-field form
	default:
		return false, &ParseError{
			Expression: e.raw,
			Reason:     fmt.Sprintf("expected %d or %d fields, got %d", FieldCount-1, FieldCount, len(fields)),
		}
	}

	checks := []struct {
		field string
		value int
		min   int
		max   int
	}{
		{fields[0], t.Minute(), 0, 59},
		{fields[1], t.Hour(), 0, 23},
		{fields[2], t.Day(), 1, 31},
		{fields[3], int(t.Month()), 1, 12},
		{fields[4], int(t.Weekday()), 0, 7},
	}
	for _, c := range checks {
		ok, err := e.fieldMatches(c.field, c.value, c.min, c.max)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// fieldMatches reports whether any comma-separated pattern in the field
// matches the calendar value.
func (e Expression) fieldMatches(field string, value, min, max int) (bool, error) {
	for _, pattern := range strings.Split(field, ",") {
		ok, err := e.patternMatches(pattern, value, min, max)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// checkField validates a field's grammar without matching it.
func (e Expression) checkField(field string, min, max int) error {
	for _, pattern := range strings.Split(field, ",") {
		if _, err := e.patternMatches(pattern, min, min, max); err != nil {
			return err
		}
	}
	return nil
}

func (e Expression) patternMatches(pattern string, value, min, max int) (bool, error) {
	switch {
	case pattern == "*":
		return true, nil

	case strings.HasPrefix(pattern, "*/"):
		step, err := e.parseBound(pattern[2:], 1, max)
		if err != nil {
			return false, err
		}
		return value%step == 0, nil

	case strings.Contains(pattern, "-"):
		bounds := strings.SplitN(pattern, "-", 2)
		lo, err := e.parseBound(bounds[0], min, max)
		if err != nil {
			return false, err
		}
		hi, err := e.parseBound(bounds[1], min, max)
		if err != nil {
			return false, err
		}
		if lo > hi {
			return false, &ParseError{
				Expression: e.raw,
				Reason:     fmt.Sprintf("inverted range %q", pattern),
			}
		}
		return e.inRange(value, lo, hi, max), nil

	default:
		n, err := e.parseBound(pattern, min, max)
		if err != nil {
			return false, err
		}
		return e.normalize(n, max) == e.normalize(value, max), nil
	}
}

// parseBound parses a literal and range-checks it.
func (e Expression) parseBound(s string, min, max int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Expression: e.raw, Reason: fmt.Sprintf("bad pattern value %q", s)}
	}
	if n < min || n > max {
		return 0, &ParseError{
			Expression: e.raw,
			Reason:     fmt.Sprintf("value %d out of range %d-%d", n, min, max),
		}
	}
	return n, nil
}

// inRange reports whether value lies in [lo, hi]. Bounds are kept exactly
// as written: on the day-of-week field a range reaching 7 also matches
// Sunday, so "5-7" covers Friday through Sunday and "0-7" covers the whole
// week.
func (e Expression) inRange(value, lo, hi, max int) bool {
	if value >= lo && value <= hi {
		return true
	}
	return max == 7 && value == 0 && hi == 7
}

// normalize maps day-of-week 7 onto Sunday. Other fields pass through.
func (e Expression) normalize(n, max int) int {
	if max == 7 && n == 7 {
		return 0
	}
	return n
}
