package generator

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	isoMicroLayout  = "2006-01-02T15:04:05.000000Z"
	isoLayout       = "2006-01-02T15:04:05"
)

func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// addBusinessDays moves forward n weekdays, skipping weekends.
func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if isBusinessDay(t) {
			n--
		}
	}
	return t
}

// rollForward returns t or the next weekday.
func rollForward(t time.Time) time.Time {
	for !isBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// days returns every calendar day in [start, end].
func days(start, end time.Time) []time.Time {
	var out []time.Time
	for d := truncateDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// round rounds half away from zero at the given number of places.
func round(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

func fixed(x float64, places int32) string {
	return decimal.NewFromFloat(x).StringFixed(places)
}

func money(x float64) string {
	return fixed(x, 2)
}
