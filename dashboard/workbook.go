package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/shield"
)

const (
	sheetSummary  = "Summary"
	sheetSites    = "Sites"
	sheetFuel     = "Fuel"
	sheetRigMoves = "RigMoves"
	sheetNotes    = "Notes"
)

// WriteWorkbook writes the records and totals of snap as an xlsx workbook.
// sum may be nil for an empty snapshot; the Summary sheet then only holds
// the period.
func WriteWorkbook(w io.Writer, snap *report.Snapshot, sum *aggregate.Summary) error {
	wb := excelize.NewFile()
	defer wb.Close()

	for _, name := range []string{sheetSummary, sheetSites, sheetFuel, sheetRigMoves, sheetNotes} {
		if _, err := wb.NewSheet(name); err != nil {
			return fmt.Errorf("dashboard: workbook: sheet %s: %w", name, err)
		}
	}
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("dashboard: workbook: %w", err)
	}

	rows := map[string][][]any{
		sheetSummary:  summaryRows(snap.Period, sum),
		sheetSites:    {{"Site", "Date", "Issued", "Received", "Stock", "POB"}},
		sheetFuel:     {{"Site", "Date", "Biosolar", "Pertalite", "Pertadex", "Total"}},
		sheetRigMoves: {{"Site", "Date", "Rig", "Origin", "Destination"}},
		sheetNotes:    {{"Site", "Date", "Category", "Description"}},
	}
	for _, r := range snap.Sites {
		rows[sheetSites] = append(rows[sheetSites],
			[]any{r.Site, r.Date.Format(report.DateLayout), r.Issued, r.Received, r.Stock, r.POB})
	}
	for _, r := range snap.Fuel {
		rows[sheetFuel] = append(rows[sheetFuel],
			[]any{r.Site, r.Date.Format(report.DateLayout), r.Biosolar, r.Pertalite, r.Pertadex, r.Total()})
	}
	for _, m := range snap.RigMoves {
		rows[sheetRigMoves] = append(rows[sheetRigMoves],
			[]any{m.Site, m.Date.Format(report.DateLayout), m.Rig, m.Origin, m.Destination})
	}
	for _, n := range snap.Notes {
		for _, it := range n.Items() {
			rows[sheetNotes] = append(rows[sheetNotes],
				[]any{n.Site, n.Date.Format(report.DateLayout), it.Category, it.Description})
		}
	}

	for sheet, rs := range rows {
		for i, row := range rs {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("dashboard: workbook: %s row %d: %w", sheet, i+1, err)
			}
		}
	}

	idx, err := wb.GetSheetIndex(sheetSummary)
	if err != nil {
		return fmt.Errorf("dashboard: workbook: %w", err)
	}
	wb.SetActiveSheet(idx)
	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("dashboard: workbook: write: %w", err)
	}
	return nil
}

func summaryRows(p report.Period, sum *aggregate.Summary) [][]any {
	rows := [][]any{{"Period", p.String()}}
	if sum == nil {
		return append(rows, []any{"Status", "no report for this period"})
	}
	t := sum.Totals
	return append(rows,
		[]any{"Total issued", t.Issued},
		[]any{"Total received", t.Received},
		[]any{"Total stock", t.Stock},
		[]any{"Person on board", t.POB},
		[]any{"Biosolar", t.Biosolar},
		[]any{"Pertalite", t.Pertalite},
		[]any{"Pertadex", t.Pertadex},
		[]any{"Fuel total", t.Fuel},
		[]any{"Rig moves", t.RigMoves},
		[]any{"Trend issued", sum.Trends.Issued},
		[]any{"Trend received", sum.Trends.Received},
		[]any{"Trend stock", sum.Trends.Stock},
	)
}

// handleWorkbook serves GET /api/export/xlsx for the page parameters.
func (s *Service) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	pq, err := s.parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep := s.Load(r.Context(), pq.Period, pq.View)
	if rep.Outcome == report.OutcomeUnavailable {
		writeError(w, http.StatusServiceUnavailable, report.ErrDataUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, rep.Snapshot, rep.Summary); err != nil {
		shield.GetLogger(r.Context()).Error("dashboard: workbook", "period", pq.Period.String(), "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("workbook export failed"))
		return
	}

	name := "Zona9_Report_" + pq.Period.String() + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
