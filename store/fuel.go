package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
)

// SelectFuel returns the fuel records matching f.
func (s *Store) SelectFuel(ctx context.Context, f Filter) ([]report.FuelRecord, error) {
	where, args := f.clause()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT site, date, biosolar, pertalite, pertadex FROM fuel`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select fuel: %w", err)
	}
	defer rows.Close()

	var out []report.FuelRecord
	for rows.Next() {
		var r report.FuelRecord
		var date string
		if err := rows.Scan(&r.Site, &date, &r.Biosolar, &r.Pertalite, &r.Pertadex); err != nil {
			return nil, fmt.Errorf("store: scan fuel: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertFuel inserts or replaces fuel records keyed by (site, date), in one
// transaction.
func (s *Store) UpsertFuel(ctx context.Context, recs []report.FuelRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fuel (site, date, biosolar, pertalite, pertadex, updated_at)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(site, date) DO UPDATE SET
				biosolar = excluded.biosolar,
				pertalite = excluded.pertalite,
				pertadex = excluded.pertadex,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("store: upsert fuel: %w", err)
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				r.Site, fmtDate(r.Date), r.Biosolar, r.Pertalite, r.Pertadex, now); err != nil {
				return fmt.Errorf("store: upsert fuel %s: %w", r.Site, err)
			}
		}
		return nil
	})
}

// DeleteFuel removes the fuel record of site on date.
func (s *Store) DeleteFuel(ctx context.Context, site string, date time.Time) error {
	if _, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM fuel WHERE site = ? AND date = ?`, site, fmtDate(date)); err != nil {
		return fmt.Errorf("store: delete fuel: %w", err)
	}
	return nil
}
