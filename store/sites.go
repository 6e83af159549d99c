package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
)

// SelectSites returns the site records matching f.
func (s *Store) SelectSites(ctx context.Context, f Filter) ([]report.SiteRecord, error) {
	where, args := f.clause()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT site, date, issued, received, stock, pob, color FROM sites`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select sites: %w", err)
	}
	defer rows.Close()

	var out []report.SiteRecord
	for rows.Next() {
		var r report.SiteRecord
		var date string
		if err := rows.Scan(&r.Site, &date, &r.Issued, &r.Received, &r.Stock, &r.POB, &r.Color); err != nil {
			return nil, fmt.Errorf("store: scan site: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertSites inserts or replaces site records keyed by (site, date), in
// one transaction.
func (s *Store) UpsertSites(ctx context.Context, recs []report.SiteRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sites (site, date, issued, received, stock, pob, color, updated_at)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(site, date) DO UPDATE SET
				issued = excluded.issued,
				received = excluded.received,
				stock = excluded.stock,
				pob = excluded.pob,
				color = excluded.color,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("store: upsert sites: %w", err)
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				r.Site, fmtDate(r.Date), r.Issued, r.Received, r.Stock, r.POB, r.Color, now); err != nil {
				return fmt.Errorf("store: upsert site %s: %w", r.Site, err)
			}
		}
		return nil
	})
}

// DeleteSite removes the record of site on date.
func (s *Store) DeleteSite(ctx context.Context, site string, date time.Time) error {
	if _, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM sites WHERE site = ? AND date = ?`, site, fmtDate(date)); err != nil {
		return fmt.Errorf("store: delete site: %w", err)
	}
	return nil
}
