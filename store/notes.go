package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
)

// SelectNotes returns the activity notes matching f. Standing notes are
// selected with an equality filter on their reserved date.
func (s *Store) SelectNotes(ctx context.Context, f Filter) ([]report.ActivityNote, error) {
	where, args := f.clause()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT site, date, body FROM activity_notes`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select notes: %w", err)
	}
	defer rows.Close()

	var out []report.ActivityNote
	for rows.Next() {
		var n report.ActivityNote
		var date string
		if err := rows.Scan(&n.Site, &date, &n.Body); err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		if n.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpsertNotes inserts or replaces notes keyed by (site, date), in one
// transaction.
func (s *Store) UpsertNotes(ctx context.Context, notes []report.ActivityNote) error {
	if len(notes) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO activity_notes (site, date, body, updated_at)
			VALUES (?,?,?,?)
			ON CONFLICT(site, date) DO UPDATE SET
				body = excluded.body,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("store: upsert notes: %w", err)
		}
		defer stmt.Close()
		for _, n := range notes {
			if _, err := stmt.ExecContext(ctx, n.Site, fmtDate(n.Date), n.Body, now); err != nil {
				return fmt.Errorf("store: upsert note %s: %w", n.Site, err)
			}
		}
		return nil
	})
}

// DeleteNote removes the note of site on date.
func (s *Store) DeleteNote(ctx context.Context, site string, date time.Time) error {
	if _, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM activity_notes WHERE site = ? AND date = ?`, site, fmtDate(date)); err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	return nil
}
