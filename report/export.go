package report

import (
	"fmt"
	"net/url"
	"strings"
)

// Format is the artifact type produced by the capture driver.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// MIME returns the content type of the format.
func (f Format) MIME() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// ParseFormat maps a query value to a Format. The empty string is PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidExportRequest, s)
}

// Query parameter names of the export contract.
const (
	ParamExport    = "export"
	ParamView      = "view"
	ParamDate      = "date"
	ParamStartDate = "startDate"
	ParamEndDate   = "endDate"
	ParamHost      = "host"
	ParamFormat    = "format"
)

// ExportRequest fully determines the page state to capture. It travels as
// a flat set of query parameters.
type ExportRequest struct {
	Period Period
	View   ViewMode
	Host   string // origin of the dashboard, e.g. "http://127.0.0.1:8080"
	Format Format
}

// Values encodes r as query parameters, export flag included. Single-day
// periods outside the weekly view use "date"; everything else uses
// "startDate" and "endDate". Empty Host is omitted.
func (r ExportRequest) Values() url.Values {
	v := r.PageValues()
	if r.Host != "" {
		v.Set(ParamHost, r.Host)
	}
	f := r.Format
	if f == "" {
		f = FormatPNG
	}
	v.Set(ParamFormat, string(f))
	return v
}

// PageValues is the subset of Values the dashboard page reads.
func (r ExportRequest) PageValues() url.Values {
	v := url.Values{}
	v.Set(ParamExport, "true")
	view := r.View
	if view == "" {
		view = ViewDay
	}
	v.Set(ParamView, string(view))
	if r.Period.IsDay() && view != ViewWeek {
		v.Set(ParamDate, r.Period.Start.Format(DateLayout))
	} else {
		v.Set(ParamStartDate, r.Period.Start.Format(DateLayout))
		v.Set(ParamEndDate, r.Period.End.Format(DateLayout))
	}
	return v
}

// ParseExportRequest decodes query parameters produced by Values. A
// startDate/endDate pair takes precedence over date.
func ParseExportRequest(v url.Values) (ExportRequest, error) {
	view, err := ParseViewMode(v.Get(ParamView))
	if err != nil {
		return ExportRequest{}, err
	}
	format, err := ParseFormat(v.Get(ParamFormat))
	if err != nil {
		return ExportRequest{}, err
	}

	var p Period
	start, end, date := v.Get(ParamStartDate), v.Get(ParamEndDate), v.Get(ParamDate)
	switch {
	case start != "" && end != "":
		p, err = ParseRange(start, end)
	case date != "":
		p, err = ParseDay(date)
	default:
		err = fmt.Errorf("%w: missing date", ErrInvalidPeriod)
	}
	if err != nil {
		return ExportRequest{}, fmt.Errorf("%w: %w", ErrInvalidExportRequest, err)
	}

	return ExportRequest{
		Period: p,
		View:   view,
		Host:   v.Get(ParamHost),
		Format: format,
	}, nil
}

// URL reconstructs the export-mode page URL. base overrides r.Host when
// non-empty.
func (r ExportRequest) URL(base string) (string, error) {
	if base == "" {
		base = r.Host
	}
	if base == "" {
		return "", fmt.Errorf("%w: no host", ErrInvalidExportRequest)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: bad host %q", ErrInvalidExportRequest, base)
	}
	u.Path = "/"
	u.RawQuery = r.PageValues().Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Filename names the artifact after the Period, e.g.
// "Zona9_Report_2026-01-07.png".
func (r ExportRequest) Filename() string {
	f := r.Format
	if f == "" {
		f = FormatPNG
	}
	return "Zona9_Report_" + r.Period.String() + "." + string(f)
}
