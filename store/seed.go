package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/zona9/report"
)

// SiteColors is the display palette of the five operational sites.
var SiteColors = map[string]string{
	"PHSS":       "#6366f1",
	"SANGASANGA": "#10b981",
	"SANGATTA":   "#f59e0b",
	"TANJUNG":    "#0ea5e9",
	"ZONA 9":     "#64748b",
}

// Seed writes a demo report for date and a baseline for the day before,
// so the daily view shows trends. Existing rows for those dates are
// overwritten.
func (s *Store) Seed(ctx context.Context, date time.Time) error {
	day := report.Day(date).Start
	prev := day.AddDate(0, 0, -1)

	sites := []report.SiteRecord{
		{Site: "PHSS", Issued: 11722400, Received: 0, Stock: 1007404784800, POB: 26},
		{Site: "SANGASANGA", Issued: 2860000, Received: 354373924, Stock: 114837688477, POB: 74},
		{Site: "SANGATTA", Issued: 0, Received: 0, Stock: 60854846738, POB: 21},
		{Site: "TANJUNG", Issued: 0, Received: 0, Stock: 36922193833, POB: 40},
		{Site: report.Headquarters, POB: 4},
	}
	baseline := []report.SiteRecord{
		{Site: "PHSS", Issued: 11937200, Received: 0, Stock: 983795688000, POB: 26},
		{Site: "SANGASANGA", Issued: 2912000, Received: 352610000, Stock: 112148133000, POB: 72},
		{Site: "SANGATTA", Stock: 59428560000, POB: 21},
		{Site: "TANJUNG", Stock: 36057318000, POB: 40},
		{Site: report.Headquarters, POB: 4},
	}
	for i := range sites {
		sites[i].Date, sites[i].Color = day, SiteColors[sites[i].Site]
	}
	for i := range baseline {
		baseline[i].Date, baseline[i].Color = prev, SiteColors[baseline[i].Site]
	}

	fuel := []report.FuelRecord{
		{Site: "PHSS", Biosolar: 12000, Pertalite: 15, Pertadex: 450},
		{Site: "SANGASANGA", Biosolar: 8000, Pertalite: 10, Pertadex: 320},
		{Site: "SANGATTA", Biosolar: 3000, Pertalite: 5, Pertadex: 150},
		{Site: "TANJUNG", Biosolar: 2221, Pertalite: 5, Pertadex: 85},
	}
	for i := range fuel {
		fuel[i].Date = day
	}

	notes := []report.ActivityNote{
		{Site: "PHSS", Body: "Warehouse: Monitoring penerimaan material rutin dan pengecekan stok kritikal."},
		{Site: "SANGASANGA", Body: "Warehouse: Pengeluaran handak untuk kebutuhan Perforasi ANG-1179\n" +
			"Angber: Support Pindahkan posisi xmastree di wows\n" +
			"Fuel: Pengisian Air Tandon sebanyak 1200 liter di PPP"},
		{Site: "SANGATTA", Body: "ANGBER: Lanjut support pekerjaan di SBT-01 - Crane Petrolog\n" +
			"Truck: Crane Petrolog - Perjalanan ke Tanjung Batu\n" +
			"Warehouse: Operasional Rutin"},
		{Site: "TANJUNG", Body: "Crane: Support penebangan pohon di RDP Samping SMP\n" +
			"Picker: Mobilisasi exca ke km.89 (standby disana)\n" +
			"Foco Crane: Mobilisasi Material Pipe Yard ke GWS, Kemudian Reposisi Material di Pipe Yard\n" +
			"Warehouse: Lanjut penataan/pengecekan/dokumentasi kembali material FUPP Peti 11"},
	}
	for i := range notes {
		notes[i].Date = day
	}

	if err := s.UpsertSites(ctx, append(baseline, sites...)); err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	if err := s.UpsertFuel(ctx, fuel); err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	if err := s.ReplaceRigMoves(ctx, day, nil); err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	if err := s.UpsertNotes(ctx, notes); err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	return nil
}
