package assemble

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/store"
)

type recordingWriter struct {
	order   []string
	failOn  string
	failErr error
}

func (w *recordingWriter) step(name string) error {
	w.order = append(w.order, name)
	if name == w.failOn {
		return w.failErr
	}
	return nil
}

func (w *recordingWriter) UpsertSites(context.Context, []report.SiteRecord) error {
	return w.step(report.CollectionSites)
}
func (w *recordingWriter) UpsertFuel(context.Context, []report.FuelRecord) error {
	return w.step(report.CollectionFuel)
}
func (w *recordingWriter) ReplaceRigMoves(context.Context, time.Time, []report.RigMove) error {
	return w.step(report.CollectionRigMoves)
}
func (w *recordingWriter) UpsertNotes(context.Context, []report.ActivityNote) error {
	return w.step(report.CollectionNotes)
}

func TestBulkSave_Order(t *testing.T) {
	w := &recordingWriter{}
	if err := BulkSave(context.Background(), w, Entry{Date: day("2026-01-07")}); err != nil {
		t.Fatal(err)
	}
	want := "sites,fuel,rig_moves,activity_notes"
	if got := strings.Join(w.order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestBulkSave_StopsAtFirstFailure(t *testing.T) {
	cause := errors.New("rig table locked")
	w := &recordingWriter{failOn: report.CollectionRigMoves, failErr: cause}
	err := BulkSave(context.Background(), w, Entry{Date: day("2026-01-07")})

	var se *report.SaveError
	if !errors.As(err, &se) || se.Collection != report.CollectionRigMoves {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, report.ErrSaveFailed) || !errors.Is(err, cause) {
		t.Errorf("err does not unwrap: %v", err)
	}
	if got := strings.Join(w.order, ","); got != "sites,fuel,rig_moves" {
		t.Errorf("notes written after failure: %s", got)
	}
}

func TestBulkSave_InvalidRecordNamesCollection(t *testing.T) {
	w := &recordingWriter{}
	err := BulkSave(context.Background(), w, Entry{
		Date: day("2026-01-07"),
		Fuel: []report.FuelRecord{{Site: ""}},
	})
	var se *report.SaveError
	if !errors.As(err, &se) || se.Collection != report.CollectionFuel {
		t.Fatalf("err = %v", err)
	}
	if len(w.order) != 1 {
		t.Errorf("writes = %v", w.order)
	}
}

func TestBulkSave_MissingDate(t *testing.T) {
	err := BulkSave(context.Background(), &recordingWriter{}, Entry{})
	var se *report.SaveError
	if !errors.As(err, &se) || se.Collection != report.CollectionRigMoves {
		t.Fatalf("err = %v", err)
	}
}

// The site upsert succeeds, the fuel upsert fails: the sites stay written
// and the error names fuel.
func TestBulkSave_FuelFailureKeepsSites(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	if _, err := db.Exec(`
		CREATE TRIGGER fuel_offline BEFORE INSERT ON fuel
		BEGIN SELECT RAISE(ABORT, 'fuel table offline'); END;`); err != nil {
		t.Fatal(err)
	}
	s := store.New(db)
	ctx := context.Background()
	d := day("2026-01-07")

	err := BulkSave(ctx, s, Entry{
		Date:  d,
		Sites: []report.SiteRecord{{Site: "PHSS", Date: d, Issued: 100, Received: 50, Stock: 1000}},
		Fuel:  []report.FuelRecord{{Site: "PHSS", Date: d, Biosolar: 12000}},
		Notes: []report.ActivityNote{{Site: "PHSS", Date: d, Body: "never written"}},
	})

	if !errors.Is(err, report.ErrSaveFailed) {
		t.Fatalf("err = %v, want SaveFailed", err)
	}
	var se *report.SaveError
	if !errors.As(err, &se) || se.Collection != report.CollectionFuel {
		t.Fatalf("err = %v, want fuel collection", err)
	}
	if !strings.Contains(err.Error(), "fuel table offline") {
		t.Errorf("underlying message lost: %v", err)
	}

	sites, err := s.SelectSites(ctx, store.OnDate(d))
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 1 || sites[0].Issued != 100 {
		t.Errorf("sites not persisted: %+v", sites)
	}
	if fuel, _ := s.SelectFuel(ctx, store.OnDate(d)); len(fuel) != 0 {
		t.Errorf("fuel = %+v", fuel)
	}
	if notes, _ := s.SelectNotes(ctx, store.OnDate(d)); len(notes) != 0 {
		t.Errorf("notes written after failure: %+v", notes)
	}
}
