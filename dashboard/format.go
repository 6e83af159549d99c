package dashboard

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/hazyhaar/zona9/report"
)

// Figures are printed the Indonesian way: "1.007.404.784.800".
var printer = message.NewPrinter(language.Indonesian)

func formatNumber(v any) string {
	switch n := v.(type) {
	case int:
		return printer.Sprint(number.Decimal(n))
	case float64:
		return printer.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
	}
	return ""
}

func formatCurrency(v float64) string {
	return "Rp " + printer.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Mon, 02 Jan 2006")
}

func formatPeriod(p report.Period) string {
	if p.IsDay() {
		return formatDate(p.Start)
	}
	return p.Start.Format("02 Jan") + " to " + p.End.Format("02 Jan 2006")
}

// trendClass colors a trend string: up, down or flat.
func trendClass(t string) string {
	switch {
	case t == "" || t == "+0.00%":
		return "trend-flat"
	case strings.HasPrefix(t, "-"):
		return "trend-down"
	}
	return "trend-up"
}

var funcs = template.FuncMap{
	"num":        formatNumber,
	"currency":   formatCurrency,
	"date":       formatDate,
	"period":     formatPeriod,
	"trendClass": trendClass,
	"isoDate":    func(t time.Time) string { return t.Format(report.DateLayout) },
	"dict": func(kv ...any) map[string]any {
		m := make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				m[k] = kv[i+1]
			}
		}
		return m
	},
	"seq": func(n int) []int { return make([]int, n) },
	"rawValue": func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}
