package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ViewMode selects the page layout a Period is rendered with.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewEntry ViewMode = "entry"
)

// ParseViewMode maps a query value to a ViewMode. The empty string is the
// daily view.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewDay:
		return ViewDay, nil
	case ViewWeek, ViewEntry:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidExportRequest, s)
}

// Headquarters is the site row excluded from the issue/receive table.
const Headquarters = "ZONA 9"

// SiteRecord is one site's figures for one day. Unique per (Site, Date).
type SiteRecord struct {
	Site     string    `json:"site"`
	Date     time.Time `json:"date"`
	Issued   float64   `json:"issued"`
	Received float64   `json:"received"`
	Stock    float64   `json:"stock"`
	POB      int       `json:"pob"`
	Color    string    `json:"color"`
}

// Validate checks the record shape.
func (r SiteRecord) Validate() error {
	return validateKey("site record", r.Site, r.Date)
}

// Fuel categories, in display order.
const (
	FuelBiosolar  = "biosolar"
	FuelPertalite = "pertalite"
	FuelPertadex  = "pertadex"
)

// FuelCategories lists the three fixed fuel categories.
var FuelCategories = []string{FuelBiosolar, FuelPertalite, FuelPertadex}

// FuelRecord is one site's fuel draw for one day, in liters.
// Unique per (Site, Date).
type FuelRecord struct {
	Site      string    `json:"site"`
	Date      time.Time `json:"date"`
	Biosolar  float64   `json:"biosolar"`
	Pertalite float64   `json:"pertalite"`
	Pertadex  float64   `json:"pertadex"`
}

// Total is the sum of the three categories.
func (r FuelRecord) Total() float64 { return r.Biosolar + r.Pertalite + r.Pertadex }

// Category returns the liters drawn for one of FuelCategories.
func (r FuelRecord) Category(name string) float64 {
	switch name {
	case FuelBiosolar:
		return r.Biosolar
	case FuelPertalite:
		return r.Pertalite
	case FuelPertadex:
		return r.Pertadex
	}
	return 0
}

// Validate checks the record shape.
func (r FuelRecord) Validate() error {
	return validateKey("fuel record", r.Site, r.Date)
}

// RigMove is a single rig relocation. Several may share a site and date.
type RigMove struct {
	ID          string    `json:"id"`
	Site        string    `json:"site"`
	Rig         string    `json:"rig"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        time.Time `json:"date"`
}

// Validate checks the record shape.
func (r RigMove) Validate() error {
	if err := validateKey("rig move", r.Site, r.Date); err != nil {
		return err
	}
	if strings.TrimSpace(r.Rig) == "" {
		return errors.New("rig move: empty rig")
	}
	return nil
}

// Reserved dates holding standing notes outside the calendar.
var (
	StandingDailyDate  = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	StandingWeeklyDate = time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC)
)

// StandingDate returns the reserved date for the standing notes of a view.
func StandingDate(v ViewMode) time.Time {
	if v == ViewWeek {
		return StandingWeeklyDate
	}
	return StandingDailyDate
}

// ActivityNote is the free-text log of one site for one date. Each line of
// Body is an entry, optionally prefixed with its category ("Crane: ...").
type ActivityNote struct {
	Site string    `json:"site"`
	Date time.Time `json:"date"`
	Body string    `json:"body"`
}

// NoteItem is one line of an ActivityNote.
type NoteItem struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// IsStanding reports whether n lives in a reserved standing-notes slot.
func (n ActivityNote) IsStanding() bool {
	return n.Date.Equal(StandingDailyDate) || n.Date.Equal(StandingWeeklyDate)
}

const maxCategoryLen = 24

// Items splits Body into its non-blank lines.
func (n ActivityNote) Items() []NoteItem {
	var out []NoteItem
	for _, line := range strings.Split(n.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cat, desc, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(cat) == "" || len(cat) > maxCategoryLen {
			out = append(out, NoteItem{Description: line})
			continue
		}
		out = append(out, NoteItem{Category: strings.TrimSpace(cat), Description: strings.TrimSpace(desc)})
	}
	return out
}

// Validate checks the record shape.
func (n ActivityNote) Validate() error {
	return validateKey("activity note", n.Site, n.Date)
}

func validateKey(kind, site string, date time.Time) error {
	if strings.TrimSpace(site) == "" {
		return fmt.Errorf("%s: empty site", kind)
	}
	if date.IsZero() {
		return fmt.Errorf("%s %s: missing date", kind, site)
	}
	return nil
}
