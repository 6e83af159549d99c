// Package report holds the zona9 data model: the reporting Period, the four
// record collections, the immutable Snapshot assembled for a Period, the
// ExportRequest wire contract and the error taxonomy shared by every layer.
package report

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in URLs, storage and filenames.
const DateLayout = "2006-01-02"

// Period is a single calendar day (Start == End) or a closed interval
// [Start, End]. Both bounds are UTC midnights.
type Period struct {
	Start time.Time
	End   time.Time
}

// Day returns the single-day Period containing t.
func Day(t time.Time) Period {
	d := truncate(t)
	return Period{Start: d, End: d}
}

// Range returns the closed interval [start, end].
func Range(start, end time.Time) (Period, error) {
	s, e := truncate(start), truncate(end)
	if s.IsZero() || e.IsZero() {
		return Period{}, fmt.Errorf("%w: empty bound", ErrInvalidPeriod)
	}
	if s.After(e) {
		return Period{}, fmt.Errorf("%w: start %s after end %s",
			ErrInvalidPeriod, s.Format(DateLayout), e.Format(DateLayout))
	}
	return Period{Start: s, End: e}, nil
}

// ParseDay parses a YYYY-MM-DD date into a single-day Period.
func ParseDay(s string) (Period, error) {
	t, err := ParseDate(s)
	if err != nil {
		return Period{}, err
	}
	return Day(t), nil
}

// ParseRange parses two YYYY-MM-DD dates into an interval.
func ParseRange(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return Range(s, e)
}

// ParseDate parses a YYYY-MM-DD date as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidPeriod, s)
	}
	return t, nil
}

// WeekOf returns the Monday-to-Sunday interval containing t.
func WeekOf(t time.Time) Period {
	d := truncate(t)
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 6)}
}

// IsDay reports whether p covers exactly one calendar day.
func (p Period) IsDay() bool { return p.Start.Equal(p.End) }

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Days lists every calendar day in p, in order, bounds included.
func (p Period) Days() []time.Time {
	if p.IsZero() || p.Start.After(p.End) {
		return nil
	}
	var out []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Contains reports whether the calendar day of t falls inside p.
func (p Period) Contains(t time.Time) bool {
	d := truncate(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Previous returns the day immediately before p.Start. It is the baseline
// used for single-day trend deltas.
func (p Period) Previous() Period {
	return Day(p.Start.AddDate(0, 0, -1))
}

// String renders a day as "2026-01-07" and an interval as
// "2026-01-05_2026-01-11". The form is safe in filenames.
func (p Period) String() string {
	if p.IsDay() {
		return p.Start.Format(DateLayout)
	}
	return p.Start.Format(DateLayout) + "_" + p.End.Format(DateLayout)
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
