package dashboard

import (
	"math"
	"strconv"

	"github.com/hazyhaar/zona9/aggregate"
)

// Donut geometry, in SVG user units. The ring is drawn as one stroked
// circle per slice with a dash covering the slice's arc.
const (
	donutSize   = 220.0
	donutRadius = 80.0
	donutStroke = 36.0
	labelRadius = donutRadius + donutStroke/2 + 14
)

// donut is the template projection of a share series.
type donut struct {
	Title    string
	Total    float64
	Unit     string
	Empty    bool
	Segments []segment
	Legend   []aggregate.Share
}

// segment is one stroked arc. Dash and Offset are stroke-dasharray and
// stroke-dashoffset values.
type segment struct {
	Name   string
	Color  string
	Dash   string
	Offset string
	Label  string
	LabelX string
	LabelY string
}

// newDonut lays out shares clockwise from twelve o'clock. Slices under the
// label threshold are drawn but carry no label.
func newDonut(title, unit string, shares []aggregate.Share) donut {
	d := donut{Title: title, Unit: unit, Total: aggregate.Total(shares), Legend: shares}
	if d.Total <= 0 {
		d.Empty = true
		return d
	}
	circ := 2 * math.Pi * donutRadius
	var cum float64
	for _, sh := range shares {
		if sh.Fraction <= 0 {
			continue
		}
		arc := sh.Fraction * circ
		seg := segment{
			Name:   sh.Name,
			Color:  sh.Color,
			Dash:   num(arc) + " " + num(circ-arc),
			Offset: num(-cum * circ),
		}
		if sh.Labeled {
			// The ring starts at twelve o'clock via a -90deg rotation.
			mid := (cum+sh.Fraction/2)*2*math.Pi - math.Pi/2
			seg.Label = sh.Label
			seg.LabelX = num(donutSize/2 + labelRadius*math.Cos(mid))
			seg.LabelY = num(donutSize/2 + labelRadius*math.Sin(mid))
		}
		d.Segments = append(d.Segments, seg)
		cum += sh.Fraction
	}
	return d
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
