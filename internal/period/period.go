// Package period selects records that fall inside a reporting window.
//
// The reference time's location is the "local" zone for every calendar
// comparison, so callers control the zone by choosing ref.
package period

import (
	"time"

	"repairdesk/backend/internal/domain"
)

const DateLayout = "2006-01-02"

type Stamped interface {
	OccurredAt() time.Time
}

// SelectByWindow returns the records inside the window ending at ref, in
// input order. Daily matches the exact calendar day of ref; weekly and
// monthly keep everything at or after ref minus seven days or one calendar
// month, with no upper bound.
func SelectByWindow[T Stamped](records []T, ref time.Time, g domain.Granularity) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if InWindow(rec.OccurredAt(), ref, g) {
			out = append(out, rec)
		}
	}
	return out
}

func InWindow(ts time.Time, ref time.Time, g domain.Granularity) bool {
	switch g {
	case domain.Daily:
		return SameDay(ts, ref)
	case domain.Weekly:
		return !ts.Before(ref.AddDate(0, 0, -7))
	case domain.Monthly:
		return !ts.Before(ref.AddDate(0, -1, 0))
	}
	return false
}

// SameDay compares calendar days in ref's location.
func SameDay(ts time.Time, ref time.Time) bool {
	return DayKey(ts, ref.Location()) == DayKey(ref, ref.Location())
}

func DayKey(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(DateLayout)
}

func StartOfDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// ParseDay parses a YYYY-MM-DD date in loc. An empty value means today.
func ParseDay(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return StartOfDay(now.In(loc)), nil
	}
	return time.ParseInLocation(DateLayout, raw, loc)
}

// Selection is an arbitrary set of calendar days.
type Selection struct {
	loc  *time.Location
	days map[string]struct{}
	keys []string
}

func Days(loc *time.Location, dates ...time.Time) Selection {
	sel := Selection{loc: loc, days: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		key := DayKey(d, loc)
		if _, ok := sel.days[key]; ok {
			continue
		}
		sel.days[key] = struct{}{}
		sel.keys = append(sel.keys, key)
	}
	return sel
}

func (s Selection) Contains(ts time.Time) bool {
	if s.loc == nil {
		return false
	}
	_, ok := s.days[DayKey(ts, s.loc)]
	return ok
}

func (s Selection) Keys() []string {
	return append([]string(nil), s.keys...)
}

func (s Selection) Location() *time.Location { return s.loc }

func Filter[T Stamped](records []T, sel Selection) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if sel.Contains(rec.OccurredAt()) {
			out = append(out, rec)
		}
	}
	return out
}
