package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
)

// SelectRigMoves returns the rig moves matching f, oldest first within a
// date.
func (s *Store) SelectRigMoves(ctx context.Context, f Filter) ([]report.RigMove, error) {
	where, args := f.clause()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, site, rig, origin, destination, date FROM rig_moves`+where+`, created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select rig moves: %w", err)
	}
	defer rows.Close()

	var out []report.RigMove
	for rows.Next() {
		var r report.RigMove
		var date string
		if err := rows.Scan(&r.ID, &r.Site, &r.Rig, &r.Origin, &r.Destination, &date); err != nil {
			return nil, fmt.Errorf("store: scan rig move: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRigMoves appends rig moves in one transaction. Empty IDs are
// generated and written back into moves.
func (s *Store) InsertRigMoves(ctx context.Context, moves []report.RigMove) error {
	if len(moves) == 0 {
		return nil
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		return s.insertRigMoves(ctx, tx, moves)
	})
}

// ReplaceRigMoves replaces every rig move of date with moves, atomically.
func (s *Store) ReplaceRigMoves(ctx context.Context, date time.Time, moves []report.RigMove) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rig_moves WHERE date = ?`, fmtDate(date)); err != nil {
			return fmt.Errorf("store: replace rig moves: %w", err)
		}
		return s.insertRigMoves(ctx, tx, moves)
	})
}

func (s *Store) insertRigMoves(ctx context.Context, tx *sql.Tx, moves []report.RigMove) error {
	if len(moves) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rig_moves (id, site, rig, origin, destination, date, created_at)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store: insert rig moves: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for i := range moves {
		m := &moves[i]
		if m.ID == "" {
			m.ID = s.NewID()
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Site, m.Rig, m.Origin, m.Destination, fmtDate(m.Date), now+int64(i)); err != nil {
			return fmt.Errorf("store: insert rig move %s: %w", m.Rig, err)
		}
	}
	return nil
}

// DeleteRigMove removes a rig move by ID.
func (s *Store) DeleteRigMove(ctx context.Context, id string) error {
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM rig_moves WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete rig move: %w", err)
	}
	return nil
}
