// Package datemath evaluates Elasticsearch-style date math expressions:
// an anchor ('now' or an ISO date optionally followed by '||'), a chain of
// +N/-N unit operations, and optional /unit rounding, e.g. now-7d,
// 2024-01-01||+1M/d.
package datemath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options configure an evaluation.
type Options struct {
	// Now is the reference instant for 'now'-anchored expressions. The
	// zero value means the current system time.
	Now time.Time

	// Location is the timezone applied to zone-less anchors and to 'now'.
	// Nil means UTC.
	Location *time.Location

	// RoundUp selects ceiling semantics for /unit rounding: the last
	// instant of the unit instead of the first. Used for the upper bound
	// of ranges so that [… TO 2024-01-01/M] covers all of January.
	RoundUp bool
}

// ErrNotDateMath is returned when the expression's anchor is neither 'now'
// nor a recognized date literal. Callers treat such values as ordinary
// terms and leave them untouched.
var ErrNotDateMath = errors.New("not a date math expression")

// Anchor date layouts, most specific first.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// Eval evaluates a date math expression and returns the resulting instant.
func Eval(expr string, opts Options) (time.Time, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var (
		t    time.Time
		rest string
	)

	switch {
	case strings.HasPrefix(expr, "now"):
		t = opts.Now
		if t.IsZero() {
			t = time.Now()
		}

		t = t.In(loc)
		rest = expr[len("now"):]
	default:
		if idx := strings.Index(expr, "||"); idx >= 0 {
			parsed, err := parseAnchor(expr[:idx], loc)
			if err != nil {
				return time.Time{}, err
			}

			t = parsed
			rest = expr[idx+2:]

			break
		}

		parsed, err := parseAnchor(expr, loc)
		if err == nil {
			t = parsed

			break
		}

		// The '||' separator is optional before '+' and '/' operations,
		// e.g. 2024-01-01/M. A '-' operation still needs '||' so that date
		// separators stay unambiguous.
		idx := strings.IndexAny(expr, "+/")
		if idx <= 0 {
			return time.Time{}, err
		}

		parsed, err = parseAnchor(expr[:idx], loc)
		if err != nil {
			return time.Time{}, err
		}

		t = parsed
		rest = expr[idx:]
	}

	for rest != "" {
		switch rest[0] {
		case '+', '-':
			n, unit, tail, err := parseOperation(rest)
			if err != nil {
				return time.Time{}, err
			}

			t = addUnits(t, n, unit)
			rest = tail
		case '/':
			if len(rest) < 2 {
				return time.Time{}, fmt.Errorf("missing rounding unit in %q", expr)
			}

			unit := rest[1]
			if !isUnit(unit) {
				return time.Time{}, fmt.Errorf("unknown rounding unit %q", string(unit))
			}

			t = round(t, unit, opts.RoundUp)
			rest = rest[2:]
		default:
			return time.Time{}, fmt.Errorf("unexpected %q in date math expression", string(rest[0]))
		}
	}

	return t, nil
}

// Format renders an instant as ISO-8601 with the applicable offset,
// omitting fractional seconds when zero.
func Format(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.999Z07:00")
}

func parseAnchor(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrNotDateMath
}

// parseOperation parses a +Nunit/-Nunit segment and returns the signed
// count, the unit, and the remaining input.
func parseOperation(s string) (int, byte, string, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}

	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}

	if i == 1 {
		return 0, 0, "", fmt.Errorf("missing count after %q", string(s[0]))
	}

	n, err := strconv.Atoi(s[1:i])
	if err != nil {
		return 0, 0, "", err
	}

	if i >= len(s) || !isUnit(s[i]) {
		return 0, 0, "", errors.New("missing unit in date math operation")
	}

	return sign * n, s[i], s[i+1:], nil
}

func isUnit(u byte) bool {
	switch u {
	case 'y', 'M', 'w', 'd', 'h', 'm', 's':
		return true
	default:
		return false
	}
}

// addUnits applies a single operation with calendar semantics. Month and
// year arithmetic clamps to the last valid day of the target month rather
// than normalizing into the next one.
func addUnits(t time.Time, n int, unit byte) time.Time {
	switch unit {
	case 'y':
		return addMonthsClamped(t, n*12)
	case 'M':
		return addMonthsClamped(t, n)
	case 'w':
		return t.AddDate(0, 0, n*7)
	case 'd':
		return t.AddDate(0, 0, n)
	case 'h':
		return t.Add(time.Duration(n) * time.Hour)
	case 'm':
		return t.Add(time.Duration(n) * time.Minute)
	case 's':
		return t.Add(time.Duration(n) * time.Second)
	default:
		return t
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	total := int(month) - 1 + months
	year += total / 12
	m := total % 12

	if m < 0 {
		m += 12
		year--
	}

	targetMonth := time.Month(m + 1)

	if last := daysIn(year, targetMonth); day > last {
		day = last
	}

	hour, minute, sec := t.Clock()

	return time.Date(year, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// round truncates t to the start of the unit, or with roundUp to the last
// millisecond of the unit.
func round(t time.Time, unit byte, roundUp bool) time.Time {
	start := truncate(t, unit)
	if !roundUp {
		return start
	}

	var next time.Time

	switch unit {
	case 'y':
		next = start.AddDate(1, 0, 0)
	case 'M':
		next = start.AddDate(0, 1, 0)
	case 'w':
		next = start.AddDate(0, 0, 7)
	case 'd':
		next = start.AddDate(0, 0, 1)
	case 'h':
		next = start.Add(time.Hour)
	case 'm':
		next = start.Add(time.Minute)
	case 's':
		next = start.Add(time.Second)
	default:
		return start
	}

	return next.Add(-time.Millisecond)
}

func truncate(t time.Time, unit byte) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	loc := t.Location()

	switch unit {
	case 'y':
		return time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	case 'M':
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case 'w':
		// ISO weeks start on Monday.
		back := (int(t.Weekday()) + 6) % 7

		return time.Date(year, month, day, 0, 0, 0, 0, loc).AddDate(0, 0, -back)
	case 'd':
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case 'h':
		return time.Date(year, month, day, hour, 0, 0, 0, loc)
	case 'm':
		return time.Date(year, month, day, hour, minute, 0, 0, loc)
	case 's':
		return time.Date(year, month, day, hour, minute, sec, 0, loc)
	default:
		return t
	}
}
