package assemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/report"
)

// RecordWriter is the write surface of a bulk save. *store.Store
// implements it.
type RecordWriter interface {
	UpsertSites(ctx context.Context, recs []report.SiteRecord) error
	UpsertFuel(ctx context.Context, recs []report.FuelRecord) error
	ReplaceRigMoves(ctx context.Context, date time.Time, moves []report.RigMove) error
	UpsertNotes(ctx context.Context, notes []report.ActivityNote) error
}

// Entry is the content of the data-entry form for one date. RigMoves
// replace every move stored for Date.
type Entry struct {
	Date     time.Time
	Sites    []report.SiteRecord
	Fuel     []report.FuelRecord
	RigMoves []report.RigMove
	Notes    []report.ActivityNote
}

// BulkSave writes sites, then fuel, then rig moves, then notes. Each
// collection is written on its own; the first failure stops the save and
// is returned as a *report.SaveError naming the collection. Collections
// already written are not rolled back.
//
// TODO: wrap the four writes in one transaction if partial saves start
// producing inconsistent reports.
func BulkSave(ctx context.Context, w RecordWriter, e Entry) error {
	steps := []struct {
		collection string
		run        func() error
	}{
		{report.CollectionSites, func() error {
			if err := validate(e.Sites); err != nil {
				return err
			}
			return w.UpsertSites(ctx, e.Sites)
		}},
		{report.CollectionFuel, func() error {
			if err := validate(e.Fuel); err != nil {
				return err
			}
			return w.UpsertFuel(ctx, e.Fuel)
		}},
		{report.CollectionRigMoves, func() error {
			if e.Date.IsZero() {
				return errors.New("entry has no date")
			}
			if err := validate(e.RigMoves); err != nil {
				return err
			}
			return w.ReplaceRigMoves(ctx, e.Date, e.RigMoves)
		}},
		{report.CollectionNotes, func() error {
			if err := validate(e.Notes); err != nil {
				return err
			}
			return w.UpsertNotes(ctx, e.Notes)
		}},
	}
	for _, st := range steps {
		if err := st.run(); err != nil {
			return &report.SaveError{Collection: st.collection, Err: err}
		}
	}
	return nil
}

func validate[T validator](recs []T) error {
	for i, r := range recs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
