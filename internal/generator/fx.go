package generator

import (
	"math"
	"slices"
	"sort"
	"time"
)

// fxBaseRates are units of currency per USD at the start of the period.
var fxBaseRates = map[string]float64{
	"EUR": 0.85,
	"GBP": 0.75,
	"JPY": 150.0,
	"CAD": 1.35,
	"CHF": 0.88,
}

// fxVolatility is the daily standard deviation of the relative move.
var fxVolatility = map[string]float64{
	"EUR": 0.008,
	"GBP": 0.012,
	"JPY": 0.010,
	"CAD": 0.006,
	"CHF": 0.007,
}

const (
	fxMeanReversion = 0.001
	fxMaxDailyMove  = 0.05
	fxFloor         = 0.0001
)

// FXRate is one row of fx_rates/fx_rates_YYYY-MM-DD.csv.
type FXRate struct {
	Date time.Time
	From string
	To   string
	Mid  float64
	Bid  float64
	Ask  float64
}

var fxHeader = []string{"date", "from_currency", "to_currency", "mid_rate", "bid_rate", "ask_rate"}

func (r FXRate) record() []string {
	return []string{
		r.Date.Format(dateLayout), r.From, r.To,
		fixed(r.Mid, 6), fixed(r.Bid, 6), fixed(r.Ask, 6),
	}
}

// quote builds a rate with bid and ask spread symmetrically around mid.
func quote(day time.Time, from, to string, mid, spreadPct float64) FXRate {
	spread := mid * spreadPct
	return FXRate{
		Date: day,
		From: from,
		To:   to,
		Mid:  round(mid, 6),
		Bid:  round(mid-spread/2, 6),
		Ask:  round(mid+spread/2, 6),
	}
}

// fxTable holds the USD mid rate per currency for every quoted weekday.
type fxTable struct {
	dates []time.Time
	mids  map[string][]float64
}

// perUSD returns units of ccy per USD on the latest quote at or before day.
// Days before the first quote use the first quote.
func (t *fxTable) perUSD(ccy string, day time.Time) float64 {
	if ccy == BaseCurrency {
		return 1
	}
	series, ok := t.mids[ccy]
	if !ok || len(series) == 0 {
		if base, ok := fxBaseRates[ccy]; ok {
			return base
		}
		return 1
	}
	day = truncateDay(day)
	i := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(day) })
	if i == 0 {
		return series[0]
	}
	return series[i-1]
}

// rate converts one unit of from into to on day.
func (t *fxTable) rate(from, to string, day time.Time) float64 {
	if from == to {
		return 1
	}
	return t.perUSD(to, day) / t.perUSD(from, day)
}

// latest returns the last quoted day.
func (t *fxTable) latest() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[len(t.dates)-1]
}

// fxCurrencies are the quoted currencies: the configured ones plus CHF for
// the trading books, USD excluded.
func (g *Generator) fxCurrencies() []string {
	var out []string
	for _, ccy := range append(slices.Clone(g.cfg.Currencies), TradingBaseCurrency) {
		if ccy == BaseCurrency || slices.Contains(out, ccy) {
			continue
		}
		out = append(out, ccy)
	}
	return out
}

// buildFX walks every currency day by day with mean reversion toward its
// base rate and a 5% circuit breaker.
func (g *Generator) buildFX() ([]FXRate, *fxTable) {
	currencies := g.fxCurrencies()
	current := make(map[string]float64, len(currencies))
	for _, ccy := range currencies {
		current[ccy] = fxBaseRates[ccy]
	}

	table := &fxTable{mids: make(map[string][]float64, len(currencies))}
	var quotes []FXRate
	for _, day := range days(g.start, g.end) {
		if !isBusinessDay(day) {
			continue
		}
		table.dates = append(table.dates, day)
		for _, ccy := range currencies {
			mid := current[ccy]
			spreadPct := g.rnd.uniform(0.001, 0.005)
			quotes = append(quotes,
				quote(day, BaseCurrency, ccy, mid, spreadPct),
				quote(day, ccy, BaseCurrency, 1/mid, spreadPct),
			)
			table.mids[ccy] = append(table.mids[ccy], round(mid, 6))
		}
		for _, ccy := range currencies {
			current[ccy] = g.evolve(ccy, current[ccy])
		}
	}
	return quotes, table
}

func (g *Generator) evolve(ccy string, rate float64) float64 {
	drift := (fxBaseRates[ccy] - rate) * fxMeanReversion
	next := rate * (1 + drift + g.rnd.gauss(0, fxVolatility[ccy]))
	next = math.Min(next, rate*(1+fxMaxDailyMove))
	next = math.Max(next, rate*(1-fxMaxDailyMove))
	return math.Max(fxFloor, next)
}

func (g *Generator) writeFXRates() error {
	quotes, table := g.buildFX()
	g.fx = table

	files := byDay{}
	for _, q := range quotes {
		files.add(q.Date.Format(dateLayout), q.record())
	}
	for _, day := range files.keys() {
		if err := g.writeCSV(FXDir+"/fx_rates_"+day+".csv", fxHeader, files[day]); err != nil {
			return err
		}
	}
	g.summary.FXRates = len(quotes)
	return nil
}
