// Package assemble builds report Snapshots from the record store and owns
// the page-level snapshot slot.
//
// The reads of one snapshot run concurrently and are joined before the
// snapshot exists: a failed required read fails the whole assembly with
// report.ErrDataUnavailable, never a partial snapshot.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/store"
)

// RecordStore is the read surface the Assembler needs. *store.Store
// implements it.
type RecordStore interface {
	SelectSites(ctx context.Context, f store.Filter) ([]report.SiteRecord, error)
	SelectFuel(ctx context.Context, f store.Filter) ([]report.FuelRecord, error)
	SelectRigMoves(ctx context.Context, f store.Filter) ([]report.RigMove, error)
	SelectNotes(ctx context.Context, f store.Filter) ([]report.ActivityNote, error)
}

// Assembler gathers the records of a Period into a Snapshot.
type Assembler struct {
	store   RecordStore
	logger  *slog.Logger
	metrics *observability.MetricsManager
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithMetrics records the assembly duration of every snapshot.
func WithMetrics(mm *observability.MetricsManager) Option {
	return func(a *Assembler) { a.metrics = mm }
}

// New creates an Assembler reading from rs.
func New(rs RecordStore, opts ...Option) *Assembler {
	a := &Assembler{store: rs, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble reads every collection of period concurrently. In the daily
// view it also reads the site records of the previous day; that read is
// best effort and only disables trends when it fails or finds nothing.
// Standing notes are read from the reserved slot of view.
//
// No records for period is not an error: the snapshot is Empty.
func (a *Assembler) Assemble(ctx context.Context, period report.Period, view report.ViewMode) (*report.Snapshot, error) {
	if period.IsZero() || period.Start.After(period.End) {
		return nil, fmt.Errorf("assemble: %w", report.ErrInvalidPeriod)
	}
	start := time.Now()

	var (
		sites    []report.SiteRecord
		fuel     []report.FuelRecord
		moves    []report.RigMove
		notes    []report.ActivityNote
		standing []report.ActivityNote
		prior    []report.SiteRecord
	)
	f := store.ForPeriod(period)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sites, err = a.store.SelectSites(gctx, f)
		return unavailable(report.CollectionSites, err)
	})
	g.Go(func() (err error) {
		fuel, err = a.store.SelectFuel(gctx, f)
		return unavailable(report.CollectionFuel, err)
	})
	g.Go(func() (err error) {
		moves, err = a.store.SelectRigMoves(gctx, f)
		return unavailable(report.CollectionRigMoves, err)
	})
	g.Go(func() (err error) {
		notes, err = a.store.SelectNotes(gctx, f)
		return unavailable(report.CollectionNotes, err)
	})
	g.Go(func() (err error) {
		standing, err = a.store.SelectNotes(gctx, store.OnDate(report.StandingDate(view)))
		return unavailable(report.CollectionNotes, err)
	})
	if view != report.ViewWeek && period.IsDay() {
		g.Go(func() error {
			recs, err := a.store.SelectSites(gctx, store.OnDate(period.Previous().Start))
			if err != nil {
				// The baseline only feeds trends.
				a.logger.Warn("assemble: prior-day read failed", "period", period.String(), "error", err)
				return nil
			}
			prior = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("assemble: snapshot unavailable", "period", period.String(), "error", err)
		return nil, err
	}

	snap := &report.Snapshot{
		Period:        period,
		Sites:         validSites(a.logger, sites),
		Fuel:          validFuel(a.logger, fuel),
		RigMoves:      validMoves(a.logger, moves),
		Notes:         validNotes(a.logger, notes),
		PriorSites:    validSites(a.logger, prior),
		StandingNotes: validNotes(a.logger, standing),
	}
	if a.metrics != nil {
		a.metrics.RecordDuration(observability.MetricAssembleMs, start, map[string]string{"view": string(view)})
	}
	a.logger.Debug("assemble: snapshot ready",
		"period", period.String(),
		"sites", len(snap.Sites),
		"fuel", len(snap.Fuel),
		"rig_moves", len(snap.RigMoves),
		"notes", len(snap.Notes),
		"baseline", snap.HasBaseline(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func unavailable(collection string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", report.ErrDataUnavailable, collection, err)
}

type validator interface{ Validate() error }

func keepValid[T validator](logger *slog.Logger, kind string, recs []T) []T {
	if len(recs) == 0 {
		return nil
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			logger.Warn("assemble: dropping invalid record", "collection", kind, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func validSites(l *slog.Logger, r []report.SiteRecord) []report.SiteRecord {
	return keepValid(l, report.CollectionSites, r)
}

func validFuel(l *slog.Logger, r []report.FuelRecord) []report.FuelRecord {
	return keepValid(l, report.CollectionFuel, r)
}

func validMoves(l *slog.Logger, r []report.RigMove) []report.RigMove {
	return keepValid(l, report.CollectionRigMoves, r)
}

func validNotes(l *slog.Logger, r []report.ActivityNote) []report.ActivityNote {
	return keepValid(l, report.CollectionNotes, r)
}
