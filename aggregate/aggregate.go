// Package aggregate derives every display figure of a report from a
// Snapshot: totals, per-site rows, trend deltas, chart shares and rig move
// counts. Functions here are pure: no I/O, no clock, no mutation of the
// snapshot.
package aggregate

import (
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/report"
)

// DefaultLabelThreshold is the share under which a chart slice gets no
// on-chart label.
const DefaultLabelThreshold = 0.01

// NeutralColor is used for sites absent from the current site records.
const NeutralColor = "#94a3b8"

// Totals are the headline sums of a report.
type Totals struct {
	Issued    float64 `json:"issued"`
	Received  float64 `json:"received"`
	Stock     float64 `json:"stock"`
	POB       int     `json:"pob"`
	Biosolar  float64 `json:"biosolar"`
	Pertalite float64 `json:"pertalite"`
	Pertadex  float64 `json:"pertadex"`
	Fuel      float64 `json:"fuel"`
	RigMoves  int     `json:"rig_moves"`
}

// FuelCategory returns the total of one of report.FuelCategories.
func (t Totals) FuelCategory(name string) float64 {
	switch name {
	case report.FuelBiosolar:
		return t.Biosolar
	case report.FuelPertalite:
		return t.Pertalite
	case report.FuelPertadex:
		return t.Pertadex
	}
	return 0
}

// Trends are the formatted deltas of the site totals against the baseline.
type Trends struct {
	Issued   string `json:"issued"`
	Received string `json:"received"`
	Stock    string `json:"stock"`
	POB      string `json:"pob"`
}

// SiteRow is one line of the per-site tables.
type SiteRow struct {
	Site      string  `json:"site"`
	Color     string  `json:"color"`
	Issued    float64 `json:"issued"`
	Received  float64 `json:"received"`
	Stock     float64 `json:"stock"`
	POB       int     `json:"pob"`
	Biosolar  float64 `json:"biosolar"`
	Pertalite float64 `json:"pertalite"`
	Pertadex  float64 `json:"pertadex"`
	Fuel      float64 `json:"fuel"`
}

// SiteNotes groups the note entries of one site on one date.
type SiteNotes struct {
	Site  string            `json:"site"`
	Date  time.Time         `json:"date"`
	Color string            `json:"color"`
	Items []report.NoteItem `json:"items"`
}

// Summary is everything the report page displays for a Snapshot.
type Summary struct {
	Period report.Period `json:"-"`
	Weekly bool          `json:"weekly"`

	Totals Totals `json:"totals"`

	// Trends are computed against the prior-day totals; with no baseline
	// every delta is "+0.00%" and Baseline is false.
	Trends   Trends `json:"trends"`
	Baseline bool   `json:"baseline"`

	// LevelDate is the day stock and POB were read from.
	LevelDate time.Time `json:"level_date"`

	Sites        []SiteRow `json:"sites"`
	IssueReceive []SiteRow `json:"issue_receive"`

	StockShares []Share            `json:"stock_shares"`
	POBShares   []Share            `json:"pob_shares"`
	FuelShares  map[string][]Share `json:"fuel_shares"`

	RigMoves []SiteMoves `json:"rig_moves"`

	Activities []SiteNotes `json:"activities"`
	Standing   []SiteNotes `json:"standing"`
}

// Trend formats the delta of cur against prev with an explicit sign and
// two decimals. A zero prev yields exactly "+0.00%".
func Trend(cur, prev float64) string {
	if prev == 0 {
		return "+0.00%"
	}
	s := fmt.Sprintf("%+.2f%%", (cur-prev)/prev*100)
	if s == "-0.00%" {
		return "+0.00%"
	}
	return s
}

// Aggregator carries the tunables of the derived figures.
type Aggregator struct {
	LabelThreshold float64
}

// Default is the Aggregator with DefaultLabelThreshold.
var Default = Aggregator{LabelThreshold: DefaultLabelThreshold}

// Daily summarizes a single-day snapshot. Nil for an empty snapshot.
func Daily(snap *report.Snapshot) *Summary { return Default.Daily(snap) }

// Weekly summarizes an interval snapshot. Nil for an empty snapshot.
func Weekly(snap *report.Snapshot) *Summary { return Default.Weekly(snap) }

// Summarize dispatches on the view mode.
func (a Aggregator) Summarize(snap *report.Snapshot, view report.ViewMode) *Summary {
	if view == report.ViewWeek {
		return a.Weekly(snap)
	}
	return a.Daily(snap)
}

// Daily sums every record of the snapshot and computes trends against the
// prior-day site records.
func (a Aggregator) Daily(snap *report.Snapshot) *Summary {
	if snap.Empty() {
		return nil
	}
	sum := a.build(snap, false)

	var prev Totals
	for _, r := range snap.PriorSites {
		prev.Issued += r.Issued
		prev.Received += r.Received
		prev.Stock += r.Stock
		prev.POB += r.POB
	}
	sum.Baseline = snap.HasBaseline()
	sum.Trends = Trends{
		Issued:   Trend(sum.Totals.Issued, prev.Issued),
		Received: Trend(sum.Totals.Received, prev.Received),
		Stock:    Trend(sum.Totals.Stock, prev.Stock),
		POB:      Trend(float64(sum.Totals.POB), float64(prev.POB)),
	}
	return sum
}

// Weekly sums the flow quantities (issued, received, fuel) over every day
// of the interval and reads the level quantities (stock, POB) from the last
// day holding site records only.
func (a Aggregator) Weekly(snap *report.Snapshot) *Summary {
	if snap.Empty() {
		return nil
	}
	sum := a.build(snap, true)
	sum.Trends = Trends{Issued: Trend(0, 0), Received: Trend(0, 0), Stock: Trend(0, 0), POB: Trend(0, 0)}
	return sum
}

func (a Aggregator) build(snap *report.Snapshot, weekly bool) *Summary {
	sum := &Summary{
		Period:   snap.Period,
		Weekly:   weekly,
		RigMoves: RigMovesBySite(snap.RigMoves, snap.Sites),
	}
	sum.LevelDate = lastSiteDate(snap.Sites)
	sum.Sites = PerSite(snap, sum.LevelDate)

	for _, row := range sum.Sites {
		sum.Totals.Issued += row.Issued
		sum.Totals.Received += row.Received
		sum.Totals.Stock += row.Stock
		sum.Totals.POB += row.POB
		sum.Totals.Biosolar += row.Biosolar
		sum.Totals.Pertalite += row.Pertalite
		sum.Totals.Pertadex += row.Pertadex
		if row.Site != report.Headquarters {
			sum.IssueReceive = append(sum.IssueReceive, row)
		}
	}
	sum.Totals.Fuel = sum.Totals.Biosolar + sum.Totals.Pertalite + sum.Totals.Pertadex
	sum.Totals.RigMoves = len(snap.RigMoves)

	var stock, pob []Slice
	for _, row := range sum.Sites {
		if row.Stock > 0 {
			stock = append(stock, Slice{Name: row.Site, Value: row.Stock, Color: row.Color})
		}
		pob = append(pob, Slice{Name: row.Site, Value: float64(row.POB), Color: row.Color})
	}
	sum.StockShares = Shares(stock, a.LabelThreshold)
	sum.POBShares = Shares(pob, a.LabelThreshold)

	sum.FuelShares = make(map[string][]Share, len(report.FuelCategories))
	for _, cat := range report.FuelCategories {
		var series []Slice
		for _, row := range sum.Sites {
			v := fuelOf(row, cat)
			if v == 0 && row.Fuel == 0 {
				continue
			}
			series = append(series, Slice{Name: row.Site, Value: v, Color: row.Color})
		}
		sum.FuelShares[cat] = Shares(series, a.LabelThreshold)
	}

	sum.Activities = groupNotes(snap.Notes, snap)
	sum.Standing = groupNotes(snap.StandingNotes, snap)
	return sum
}

// PerSite folds the snapshot into one row per site, in order of first
// appearance (site records first, then fuel-only sites). Flows are summed
// over all dates; stock and POB come from the records dated levelDate.
func PerSite(snap *report.Snapshot, levelDate time.Time) []SiteRow {
	idx := make(map[string]int)
	var rows []SiteRow
	row := func(site string) *SiteRow {
		i, ok := idx[site]
		if !ok {
			i = len(rows)
			idx[site] = i
			rows = append(rows, SiteRow{Site: site, Color: NeutralColor})
		}
		return &rows[i]
	}

	for _, r := range snap.Sites {
		sr := row(r.Site)
		sr.Issued += r.Issued
		sr.Received += r.Received
		if r.Date.Equal(levelDate) {
			sr.Stock += r.Stock
			sr.POB += r.POB
		}
		if r.Color != "" {
			sr.Color = r.Color
		}
	}
	for _, r := range snap.Fuel {
		sr := row(r.Site)
		sr.Biosolar += r.Biosolar
		sr.Pertalite += r.Pertalite
		sr.Pertadex += r.Pertadex
		sr.Fuel += r.Total()
	}
	return rows
}

// SiteMoves counts the rig moves of one site.
type SiteMoves struct {
	Site  string `json:"site"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// RigMovesBySite groups moves by site in order of first appearance. The
// color is looked up in sites, falling back to NeutralColor.
func RigMovesBySite(moves []report.RigMove, sites []report.SiteRecord) []SiteMoves {
	snap := &report.Snapshot{Sites: sites}
	idx := make(map[string]int)
	var out []SiteMoves
	for _, m := range moves {
		i, ok := idx[m.Site]
		if !ok {
			color, found := snap.SiteColor(m.Site)
			if !found {
				color = NeutralColor
			}
			i = len(out)
			idx[m.Site] = i
			out = append(out, SiteMoves{Site: m.Site, Color: color})
		}
		out[i].Count++
	}
	return out
}

func groupNotes(notes []report.ActivityNote, snap *report.Snapshot) []SiteNotes {
	var out []SiteNotes
	for _, n := range notes {
		items := n.Items()
		if len(items) == 0 {
			continue
		}
		color, ok := snap.SiteColor(n.Site)
		if !ok {
			color = NeutralColor
		}
		out = append(out, SiteNotes{Site: n.Site, Date: n.Date, Color: color, Items: items})
	}
	return out
}

func lastSiteDate(sites []report.SiteRecord) time.Time {
	var last time.Time
	for _, r := range sites {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last
}

func fuelOf(row SiteRow, cat string) float64 {
	switch cat {
	case report.FuelBiosolar:
		return row.Biosolar
	case report.FuelPertalite:
		return row.Pertalite
	case report.FuelPertadex:
		return row.Pertadex
	}
	return 0
}
