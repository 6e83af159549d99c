package dashboard

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/zona9/assemble"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/store"
)

// Sites are the operational sites, in display order.
var Sites = []string{"PHSS", "SANGASANGA", "SANGATTA", "TANJUNG", report.Headquarters}

// Entry form field names. Per-site fields carry the site index as suffix,
// e.g. "issued_0"; rig move fields repeat once per row.
const (
	fieldDate           = "date"
	fieldIssued         = "issued"
	fieldReceived       = "received"
	fieldStock          = "stock"
	fieldPOB            = "pob"
	fieldNote           = "note"
	fieldRigSite        = "rm_site"
	fieldRigName        = "rm_rig"
	fieldRigOrigin      = "rm_origin"
	fieldRigDestination = "rm_dest"
	fieldStandingDaily  = "standing_daily"
	fieldStandingWeekly = "standing_weekly"
)

func siteField(name string, i int) string { return name + "_" + strconv.Itoa(i) }

// parseEntry decodes the entry form. Sites with every figure blank are
// skipped; a rig move row without a rig name is skipped.
func parseEntry(form url.Values) (assemble.Entry, error) {
	date, err := report.ParseDate(form.Get(fieldDate))
	if err != nil {
		return assemble.Entry{}, err
	}
	e := assemble.Entry{Date: date}

	for i, site := range Sites {
		sv := [4]string{
			form.Get(siteField(fieldIssued, i)),
			form.Get(siteField(fieldReceived, i)),
			form.Get(siteField(fieldStock, i)),
			form.Get(siteField(fieldPOB, i)),
		}
		if !allBlank(sv[:]) {
			rec := report.SiteRecord{Site: site, Date: date, Color: store.SiteColors[site]}
			if rec.Issued, err = parseAmount(site, fieldIssued, sv[0]); err != nil {
				return e, err
			}
			if rec.Received, err = parseAmount(site, fieldReceived, sv[1]); err != nil {
				return e, err
			}
			if rec.Stock, err = parseAmount(site, fieldStock, sv[2]); err != nil {
				return e, err
			}
			pob, err := parseAmount(site, fieldPOB, sv[3])
			if err != nil {
				return e, err
			}
			rec.POB = int(pob)
			e.Sites = append(e.Sites, rec)
		}

		fv := make([]string, len(report.FuelCategories))
		for j, cat := range report.FuelCategories {
			fv[j] = form.Get(siteField(cat, i))
		}
		if !allBlank(fv) {
			rec := report.FuelRecord{Site: site, Date: date}
			for j, cat := range report.FuelCategories {
				v, err := parseAmount(site, cat, fv[j])
				if err != nil {
					return e, err
				}
				switch cat {
				case report.FuelBiosolar:
					rec.Biosolar = v
				case report.FuelPertalite:
					rec.Pertalite = v
				case report.FuelPertadex:
					rec.Pertadex = v
				}
			}
			e.Fuel = append(e.Fuel, rec)
		}

		if body, ok := form[siteField(fieldNote, i)]; ok {
			e.Notes = append(e.Notes, report.ActivityNote{Site: site, Date: date, Body: strings.TrimSpace(body[0])})
		}
	}

	sites, rigs := form[fieldRigSite], form[fieldRigName]
	origins, dests := form[fieldRigOrigin], form[fieldRigDestination]
	for i := range rigs {
		rig := strings.TrimSpace(rigs[i])
		if rig == "" {
			continue
		}
		e.RigMoves = append(e.RigMoves, report.RigMove{
			Site:        at(sites, i),
			Rig:         rig,
			Origin:      strings.TrimSpace(at(origins, i)),
			Destination: strings.TrimSpace(at(dests, i)),
			Date:        date,
		})
	}

	if body, ok := form[fieldStandingDaily]; ok {
		e.Notes = append(e.Notes, report.ActivityNote{
			Site: report.Headquarters, Date: report.StandingDailyDate, Body: strings.TrimSpace(body[0]),
		})
	}
	if body, ok := form[fieldStandingWeekly]; ok {
		e.Notes = append(e.Notes, report.ActivityNote{
			Site: report.Headquarters, Date: report.StandingWeeklyDate, Body: strings.TrimSpace(body[0]),
		})
	}
	return e, nil
}

// parseAmount accepts "1,234.5", "1 234.5" and blank (zero).
func parseAmount(site, field, s string) (float64, error) {
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s %s: not a non-negative number: %q", site, field, s)
	}
	return v, nil
}

func allBlank(vs []string) bool {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func at(vs []string, i int) string {
	if i < len(vs) {
		return vs[i]
	}
	return ""
}

// entryForm is the template projection of the stored records of a date.
type entryForm struct {
	Date     string
	Sites    []entrySite
	RigMoves []report.RigMove
	Standing struct{ Daily, Weekly string }
}

type entrySite struct {
	Index int
	Name  string
	Color string
	Site  report.SiteRecord
	Fuel  report.FuelRecord
	Note  string
}

// newEntryForm prefills the form from snap and the two standing slots.
func newEntryForm(date time.Time, snap *report.Snapshot, daily, weekly []report.ActivityNote) entryForm {
	f := entryForm{Date: date.Format(report.DateLayout)}
	for i, name := range Sites {
		es := entrySite{Index: i, Name: name, Color: store.SiteColors[name]}
		if snap != nil {
			for _, r := range snap.Sites {
				if r.Site == name && r.Date.Equal(date) {
					es.Site = r
				}
			}
			for _, r := range snap.Fuel {
				if r.Site == name && r.Date.Equal(date) {
					es.Fuel = r
				}
			}
			for _, n := range snap.Notes {
				if n.Site == name && n.Date.Equal(date) {
					es.Note = n.Body
				}
			}
		}
		f.Sites = append(f.Sites, es)
	}
	if snap != nil {
		f.RigMoves = snap.RigMoves
	}
	f.Standing.Daily = joinBodies(daily)
	f.Standing.Weekly = joinBodies(weekly)
	return f
}

func joinBodies(notes []report.ActivityNote) string {
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		if n.Body != "" {
			parts = append(parts, n.Body)
		}
	}
	return strings.Join(parts, "\n")
}
