package aggregate

import "fmt"

// Slice is one entry of a proportion chart series.
type Slice struct {
	Name  string
	Value float64
	Color string
}

// Share is a Slice with its fraction of the series total. Entries under
// the label threshold keep their value but carry no label.
type Share struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
	Fraction float64 `json:"fraction"`
	Label    string  `json:"label,omitempty"`
	Labeled  bool    `json:"labeled"`
}

// Shares computes the fraction of every entry. Every entry is returned, so
// the values still add up to the series total; only the labels of entries
// below threshold are suppressed.
func Shares(series []Slice, threshold float64) []Share {
	var total float64
	for _, s := range series {
		total += s.Value
	}
	out := make([]Share, len(series))
	for i, s := range series {
		sh := Share{Name: s.Name, Value: s.Value, Color: s.Color}
		if total > 0 {
			sh.Fraction = s.Value / total
		}
		if total > 0 && sh.Fraction >= threshold && sh.Fraction > 0 {
			sh.Labeled = true
			sh.Label = fmt.Sprintf("%.1f%%", sh.Fraction*100)
		}
		out[i] = sh
	}
	return out
}

// Total is the sum of the share values.
func Total(shares []Share) float64 {
	var t float64
	for _, s := range shares {
		t += s.Value
	}
	return t
}
