// Package store is the SQLite record store behind the dashboard: sites,
// fuel, rig moves and activity notes, each addressable by site and date.
//
// Every collection is written in its own transaction. There is no
// transaction spanning collections.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/idgen"
	"github.com/hazyhaar/zona9/report"
)

// Store is the report database handle.
type Store struct {
	DB *sql.DB

	// NewID generates rig move IDs when the caller leaves them empty.
	NewID idgen.Generator
}

// Open opens (or creates) the report database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return New(db), nil
}

// New wraps an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{DB: db, NewID: idgen.Prefixed("rig_", idgen.Default)}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Order selects the sort of a select.
type Order int

const (
	OrderByDate Order = iota // date, then site
	OrderBySite              // site, then date
)

// Filter restricts a select. Zero fields do not filter. Date is an
// equality filter; From and To bound a closed range.
type Filter struct {
	Site  string
	Date  *time.Time
	From  *time.Time
	To    *time.Time
	Order Order
}

// ForPeriod returns the filter matching every record of p.
func ForPeriod(p report.Period) Filter {
	if p.IsDay() {
		d := p.Start
		return Filter{Date: &d}
	}
	from, to := p.Start, p.End
	return Filter{From: &from, To: &to}
}

// OnDate returns an equality filter on d.
func OnDate(d time.Time) Filter {
	return Filter{Date: &d}
}

func (f Filter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Site != "" {
		conds = append(conds, "site = ?")
		args = append(args, f.Site)
	}
	if f.Date != nil {
		conds = append(conds, "date = ?")
		args = append(args, fmtDate(*f.Date))
	}
	if f.From != nil {
		conds = append(conds, "date >= ?")
		args = append(args, fmtDate(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "date <= ?")
		args = append(args, fmtDate(*f.To))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if f.Order == OrderBySite {
		b.WriteString(" ORDER BY site, date")
	} else {
		b.WriteString(" ORDER BY date, site")
	}
	return b.String(), args
}

// LatestDate returns the most recent calendar date holding site records.
// ok is false on an empty store.
func (s *Store) LatestDate(ctx context.Context) (d time.Time, ok bool, err error) {
	var v sql.NullString
	err = s.DB.QueryRowContext(ctx,
		`SELECT MAX(date) FROM sites WHERE date > ?`, fmtDate(report.StandingWeeklyDate)).Scan(&v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: latest date: %w", err)
	}
	if !v.Valid {
		return time.Time{}, false, nil
	}
	d, err = parseDate(v.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

func fmtDate(t time.Time) string { return t.Format(report.DateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(report.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad date %q: %w", s, err)
	}
	return t, nil
}
