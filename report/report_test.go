package report

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPeriod_Day(t *testing.T) {
	p := Day(time.Date(2026, 1, 7, 15, 30, 0, 0, time.FixedZone("WITA", 8*3600)))
	if !p.IsDay() {
		t.Fatal("Day should produce a single-day period")
	}
	if got := p.String(); got != "2026-01-07" {
		t.Errorf("String = %q", got)
	}
	if got := p.Previous().String(); got != "2026-01-06" {
		t.Errorf("Previous = %q", got)
	}
}

func TestPeriod_Range(t *testing.T) {
	p, err := Range(date("2026-01-05"), date("2026-01-11"))
	if err != nil {
		t.Fatal(err)
	}
	if p.IsDay() {
		t.Error("interval reported as day")
	}
	if got := p.String(); got != "2026-01-05_2026-01-11" {
		t.Errorf("String = %q", got)
	}
	if n := len(p.Days()); n != 7 {
		t.Errorf("Days = %d, want 7", n)
	}
	if !p.Contains(date("2026-01-11")) || p.Contains(date("2026-01-12")) {
		t.Error("Contains bounds wrong")
	}

	if _, err := Range(date("2026-01-11"), date("2026-01-05")); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("reversed range: err = %v", err)
	}
	if _, err := Range(time.Time{}, date("2026-01-05")); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("zero bound: err = %v", err)
	}
}

func TestParseDay_Invalid(t *testing.T) {
	for _, s := range []string{"", "07-01-2026", "2026-13-01", "yesterday"} {
		if _, err := ParseDay(s); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("ParseDay(%q) err = %v", s, err)
		}
	}
}

func TestWeekOf(t *testing.T) {
	// 2026-01-07 is a Wednesday.
	p := WeekOf(date("2026-01-07"))
	if got := p.String(); got != "2026-01-05_2026-01-11" {
		t.Errorf("WeekOf = %q", got)
	}
	if got := WeekOf(date("2026-01-11")).String(); got != "2026-01-05_2026-01-11" {
		t.Errorf("WeekOf(sunday) = %q", got)
	}
}

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in   string
		want ViewMode
		ok   bool
	}{
		{"", ViewDay, true},
		{"day", ViewDay, true},
		{"week", ViewWeek, true},
		{"entry", ViewEntry, true},
		{"month", "", false},
	}
	for _, tt := range tests {
		got, err := ParseViewMode(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseViewMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestValidate(t *testing.T) {
	d := date("2026-01-07")
	if err := (SiteRecord{Site: "PHSS", Date: d}).Validate(); err != nil {
		t.Errorf("valid site: %v", err)
	}
	if err := (SiteRecord{Site: " ", Date: d}).Validate(); err == nil {
		t.Error("blank site accepted")
	}
	if err := (FuelRecord{Site: "PHSS"}).Validate(); err == nil {
		t.Error("missing date accepted")
	}
	if err := (RigMove{Site: "TANJUNG", Date: d}).Validate(); err == nil {
		t.Error("rig move without rig accepted")
	}
	// Negative numbers are not rejected.
	if err := (SiteRecord{Site: "PHSS", Date: d, Stock: -5}).Validate(); err != nil {
		t.Errorf("negative stock rejected: %v", err)
	}
}

func TestActivityNote(t *testing.T) {
	n := ActivityNote{
		Site: "TANJUNG",
		Date: date("2026-01-07"),
		Body: "Crane: Support penebangan pohon\n\nFoco Crane: Mobilisasi material\nOperasional rutin",
	}
	want := []NoteItem{
		{Category: "Crane", Description: "Support penebangan pohon"},
		{Category: "Foco Crane", Description: "Mobilisasi material"},
		{Description: "Operasional rutin"},
	}
	if diff := cmp.Diff(want, n.Items()); diff != "" {
		t.Errorf("Items (-want +got):\n%s", diff)
	}
	if n.IsStanding() {
		t.Error("calendar note reported as standing")
	}
	if !(ActivityNote{Date: StandingDate(ViewWeek)}).IsStanding() {
		t.Error("weekly slot not standing")
	}
	if !StandingDate(ViewDay).Equal(StandingDailyDate) {
		t.Error("daily slot")
	}
}

func TestFuelRecord(t *testing.T) {
	r := FuelRecord{Biosolar: 12000, Pertalite: 15, Pertadex: 450}
	if r.Total() != 12465 {
		t.Errorf("Total = %v", r.Total())
	}
	var sum float64
	for _, c := range FuelCategories {
		sum += r.Category(c)
	}
	if sum != r.Total() {
		t.Errorf("categories sum %v != total %v", sum, r.Total())
	}
}

func TestSnapshot_EmptyAndClassify(t *testing.T) {
	var nilSnap *Snapshot
	if !nilSnap.Empty() {
		t.Error("nil snapshot should be empty")
	}

	s := &Snapshot{Period: Day(date("2026-01-07")), PriorSites: []SiteRecord{{Site: "PHSS"}}}
	if !s.Empty() {
		t.Error("prior-day records alone must not make the snapshot non-empty")
	}
	if got := Classify(s, nil); got != OutcomeNoData {
		t.Errorf("Classify empty = %v", got)
	}

	s.RigMoves = []RigMove{{Site: "TANJUNG", Rig: "R-1"}}
	if got := Classify(s, nil); got != OutcomeReady {
		t.Errorf("Classify = %v", got)
	}
	if got := Classify(nil, ErrDataUnavailable); got != OutcomeUnavailable {
		t.Errorf("Classify err = %v", got)
	}
}

func TestSnapshot_SiteColor(t *testing.T) {
	s := &Snapshot{Sites: []SiteRecord{{Site: "PHSS", Color: "#6366f1"}, {Site: "TANJUNG"}}}
	if c, ok := s.SiteColor("PHSS"); !ok || c != "#6366f1" {
		t.Errorf("PHSS color = %q, %v", c, ok)
	}
	if _, ok := s.SiteColor("TANJUNG"); ok {
		t.Error("empty color should not resolve")
	}
	if _, ok := s.SiteColor("UNKNOWN"); ok {
		t.Error("unknown site resolved")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	var err error = &SaveError{Collection: CollectionFuel, Err: cause}
	if !errors.Is(err, ErrSaveFailed) || !errors.Is(err, cause) {
		t.Error("SaveError must unwrap to both sentinel and cause")
	}
	var se *SaveError
	if !errors.As(err, &se) || se.Collection != "fuel" {
		t.Errorf("As: %+v", se)
	}
	if got := err.Error(); got != "save failed: fuel: disk I/O error" {
		t.Errorf("Error = %q", got)
	}

	err = &RenderError{Stage: StageReady, Err: cause}
	if !errors.Is(err, ErrRenderFailed) || errors.Is(err, ErrSaveFailed) {
		t.Error("RenderError unwrap")
	}
}

func TestExportRequest_RoundTrip(t *testing.T) {
	week, _ := Range(date("2026-01-05"), date("2026-01-11"))
	reqs := []ExportRequest{
		{Period: Day(date("2026-01-07")), View: ViewDay, Host: "http://127.0.0.1:8080", Format: FormatPNG},
		{Period: week, View: ViewWeek, Host: "https://zona9.example.com", Format: FormatPDF},
		{Period: Day(date("2026-01-07")), View: ViewWeek, Format: FormatPDF},
		{Period: Day(date("2026-01-07")), View: ViewEntry, Format: FormatPNG},
	}
	for _, want := range reqs {
		v := want.Values()
		if v.Get(ParamExport) != "true" {
			t.Errorf("%v: export flag missing", want)
		}
		// Through the wire form.
		parsed, err := url.ParseQuery(v.Encode())
		if err != nil {
			t.Fatal(err)
		}
		got, err := ParseExportRequest(parsed)
		if err != nil {
			t.Fatalf("ParseExportRequest(%s): %v", v.Encode(), err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip (-want +got):\n%s", diff)
		}
	}
}

func TestExportRequest_ValuesShape(t *testing.T) {
	day := ExportRequest{Period: Day(date("2026-01-07")), View: ViewDay}
	v := day.Values()
	if v.Get(ParamDate) != "2026-01-07" || v.Has(ParamStartDate) || v.Has(ParamHost) {
		t.Errorf("day values = %v", v)
	}
	if v.Get(ParamFormat) != "png" {
		t.Errorf("default format = %q", v.Get(ParamFormat))
	}
}

func TestParseExportRequest_Errors(t *testing.T) {
	tests := []string{
		"export=true&view=day",                                          // no date
		"export=true&view=year&date=2026-01-07",                         // bad view
		"export=true&date=2026-01-07&format=gif",                        // bad format
		"export=true&view=week&startDate=2026-01-11&endDate=2026-01-05", // reversed
		"export=true&date=07/01/2026",                                   // bad date
	}
	for _, q := range tests {
		v, _ := url.ParseQuery(q)
		if _, err := ParseExportRequest(v); !errors.Is(err, ErrInvalidExportRequest) {
			t.Errorf("%s: err = %v", q, err)
		}
	}
}

func TestExportRequest_URL(t *testing.T) {
	r := ExportRequest{Period: Day(date("2026-01-07")), View: ViewDay, Host: "http://127.0.0.1:8080/ignored?x=1", Format: FormatPDF}
	got, err := r.URL("")
	if err != nil {
		t.Fatal(err)
	}
	if want := "http://127.0.0.1:8080/?date=2026-01-07&export=true&view=day"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}

	got, err = r.URL("http://localhost:9000")
	if err != nil || got != "http://localhost:9000/?date=2026-01-07&export=true&view=day" {
		t.Errorf("URL(base) = %q, %v", got, err)
	}

	if _, err := (ExportRequest{Period: r.Period}).URL(""); !errors.Is(err, ErrInvalidExportRequest) {
		t.Errorf("no host: %v", err)
	}
	if _, err := r.URL("not a url"); !errors.Is(err, ErrInvalidExportRequest) {
		t.Errorf("bad host: %v", err)
	}
}

func TestExportRequest_Filename(t *testing.T) {
	week, _ := Range(date("2026-01-05"), date("2026-01-11"))
	if got := (ExportRequest{Period: week, Format: FormatPDF}).Filename(); got != "Zona9_Report_2026-01-05_2026-01-11.pdf" {
		t.Errorf("Filename = %q", got)
	}
	if got := (ExportRequest{Period: Day(date("2026-01-07"))}).Filename(); got != "Zona9_Report_2026-01-07.png" {
		t.Errorf("Filename = %q", got)
	}
}
