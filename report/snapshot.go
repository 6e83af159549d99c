package report

// Snapshot is the materialized record set for one Period. It is built once
// by the assembler and never mutated afterwards; consumers must not modify
// its slices.
type Snapshot struct {
	Period   Period
	Sites    []SiteRecord
	Fuel     []FuelRecord
	RigMoves []RigMove
	Notes    []ActivityNote

	// PriorSites holds the SiteRecords of Period.Previous() in day mode.
	// Nil means no baseline: trends are not computed.
	PriorSites []SiteRecord

	// StandingNotes are the notes stored under the reserved standing date
	// of the view.
	StandingNotes []ActivityNote
}

// Empty reports whether the Period has no records at all. Prior-day and
// standing notes do not count.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Sites) == 0 && len(s.Fuel) == 0 && len(s.RigMoves) == 0 && len(s.Notes) == 0
}

// HasBaseline reports whether prior-day records are available for trends.
func (s *Snapshot) HasBaseline() bool {
	return s != nil && len(s.PriorSites) > 0
}

// SiteColor returns the display color of site in the current records.
func (s *Snapshot) SiteColor(site string) (string, bool) {
	if s == nil {
		return "", false
	}
	for i := len(s.Sites) - 1; i >= 0; i-- {
		if s.Sites[i].Site == site && s.Sites[i].Color != "" {
			return s.Sites[i].Color, true
		}
	}
	return "", false
}

// Outcome is the result of loading a Snapshot, mapped by the presentation
// layer to a page state.
type Outcome int

const (
	OutcomeReady       Outcome = iota // records to display
	OutcomeNoData                     // queries succeeded, nothing stored
	OutcomeUnavailable                // a required read failed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeNoData:
		return "no_data"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Classify maps an assembly result to its Outcome.
func Classify(snap *Snapshot, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeUnavailable
	case snap.Empty():
		return OutcomeNoData
	}
	return OutcomeReady
}
