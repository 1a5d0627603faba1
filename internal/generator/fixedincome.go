package generator

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Instrument and issuer types.
const (
	InstrumentBond = "BOND"
	InstrumentIRS  = "IRS"

	IssuerSovereign     = "SOVEREIGN"
	IssuerCorporate     = "CORPORATE"
	IssuerSupranational = "SUPRANATIONAL"
	IssuerDerivative    = "DERIVATIVE"
)

const (
	riskFreeRate  = 2.5
	bondSwapRatio = 0.7
)

var fiCurrencies = []string{"CHF", "EUR", "USD", "GBP"}

var sovereignIssuers = map[string][]string{
	"CHF": {"Swiss Confederation", "Canton Zurich", "Canton Geneva"},
	"EUR": {"Germany", "France", "Netherlands", "Austria", "Belgium"},
	"USD": {"US Treasury", "US Agency"},
	"GBP": {"UK Gilt", "UK DMO"},
}

var corporateIssuers = []string{
	"Nestle SA", "Novartis AG", "Roche Holding AG", "UBS Group AG",
	"Credit Suisse Group AG", "ABB Ltd", "Zurich Insurance Group AG",
	"Swiss Re AG", "LafargeHolcim Ltd", "Sika AG",
	"Siemens AG", "Volkswagen AG", "BMW AG", "Allianz SE",
	"Deutsche Bank AG", "BNP Paribas SA", "Total SA", "Shell plc",
	"HSBC Holdings plc", "Barclays plc", "Apple Inc", "Microsoft Corp",
	"JPMorgan Chase & Co", "Bank of America Corp",
}

var supranationalIssuers = []string{"European Investment Bank", "World Bank", "International Finance Corporation"}

// creditSpreads is the spread range over the risk-free rate in basis points.
var creditSpreads = map[string][2]float64{
	"AAA": {5, 15},
	"AA":  {15, 30},
	"A":   {30, 60},
	"BBB": {60, 120},
	"BB":  {120, 250},
	"B":   {250, 500},
	"CCC": {500, 1000},
}

var floatingIndices = map[string]string{"CHF": "SARON", "EUR": "EURIBOR", "USD": "SOFR", "GBP": "SONIA"}

var bondMarkets = map[string][]string{
	"CHF": {"SIX Swiss Exchange", "OTC"},
	"EUR": {"Eurex", "OTC", "Xetra"},
	"USD": {"NYSE", "OTC"},
	"GBP": {"LSE", "OTC"},
}

var isinCountry = map[string]string{"CHF": "CH", "EUR": "DE", "USD": "US", "GBP": "GB"}

// FixedIncomeTrade is one row of fixed_income_trades/fixed_income_trades_YYYY-MM-DD.csv.
type FixedIncomeTrade struct {
	TradeTime       time.Time
	SettlementDate  time.Time
	TradeID         string
	CustomerID      string
	AccountID       string
	OrderID         string
	InstrumentType  string
	InstrumentID    string
	Issuer          string
	IssuerType      string
	Currency        string
	Side            string
	Notional        float64
	Price           float64
	AccruedInterest float64
	GrossAmount     float64
	FixedRate       *float64
	FloatingIndex   string
	TenorYears      int
	Commission      float64
	NetAmount       float64
	BaseGrossAmount float64
	BaseNetAmount   float64
	FXRate          float64
	CouponRate      float64
	MaturityDate    time.Time
	Duration        float64
	DV01            float64
	CreditRating    string
	CreditSpreadBps float64
	Market          string
	BrokerID        string
	Venue           string
	LiquidityScore  float64
	CreatedAt       time.Time
}

var fixedIncomeHeader = []string{
	"trade_date", "settlement_date", "trade_id", "customer_id", "account_id", "order_id",
	"instrument_type", "instrument_id", "issuer", "issuer_type", "currency", "side",
	"notional", "price", "accrued_interest", "gross_amount", "fixed_rate",
	"floating_rate_index", "tenor_years", "commission", "net_amount", "base_currency",
	"base_gross_amount", "base_net_amount", "fx_rate", "coupon_rate", "maturity_date",
	"duration", "dv01", "credit_rating", "credit_spread_bps", "market", "broker_id",
	"venue", "liquidity_score", "created_at",
}

func (t FixedIncomeTrade) record() []string {
	fixedRate := ""
	if t.FixedRate != nil {
		fixedRate = fixed(*t.FixedRate, 3)
	}
	return []string{
		t.TradeTime.Format(isoMicroLayout), t.SettlementDate.Format(dateLayout),
		t.TradeID, t.CustomerID, t.AccountID, t.OrderID, t.InstrumentType, t.InstrumentID,
		t.Issuer, t.IssuerType, t.Currency, t.Side, money(t.Notional), money(t.Price),
		money(t.AccruedInterest), money(t.GrossAmount), fixedRate, t.FloatingIndex,
		strconv.Itoa(t.TenorYears), money(t.Commission), money(t.NetAmount), TradingBaseCurrency,
		money(t.BaseGrossAmount), money(t.BaseNetAmount), fixed(t.FXRate, 6),
		fixed(t.CouponRate, 3), t.MaturityDate.Format(dateLayout), fixed(t.Duration, 4),
		money(t.DV01), t.CreditRating, fixed(t.CreditSpreadBps, 1), t.Market, t.BrokerID,
		t.Venue, fixed(t.LiquidityScore, 1), t.CreatedAt.Format(isoMicroLayout),
	}
}

func (g *Generator) writeFixedIncomeTrades() error {
	n := g.cfg.FixedIncomeTrades
	if n <= 0 {
		return nil
	}
	bonds := int(float64(n) * bondSwapRatio)
	files := byDay{}
	count := 0
	for i := 0; i < n; i++ {
		c, account, ok := g.tradeAccount()
		if !ok {
			break
		}
		at := g.tradeTime()
		var t FixedIncomeTrade
		if i < bonds {
			t = g.bondTrade(c, account, at)
		} else {
			t = g.swapTrade(c, account, at)
		}
		files.add(at.Format(dateLayout), t.record())
		count++
	}
	for _, day := range files.keys() {
		if err := g.writeCSV(FixedIncomeDir+"/fixed_income_trades_"+day+".csv", fixedIncomeHeader, files[day]); err != nil {
			return err
		}
	}
	g.summary.FixedIncomeTrades = count
	return nil
}

// tradeAccount picks a random customer and one of their accounts, preferring
// investment accounts.
func (g *Generator) tradeAccount() (*Customer, Account, bool) {
	if len(g.accounts) == 0 {
		return nil, Account{}, false
	}
	c := pick(g.rnd, g.customers)
	held := g.accountsOf(c.ID, AccountInvestment)
	if len(held) == 0 {
		held = g.accountsOf(c.ID, "")
	}
	if len(held) == 0 {
		return g.customer(g.accounts[0].CustomerID), g.accounts[0], true
	}
	return c, pick(g.rnd, held), true
}

// tradeTime is a random business-day timestamp during trading hours.
func (g *Generator) tradeTime() time.Time {
	span := int(g.end.Sub(g.start).Hours() / 24)
	day := rollForward(g.start.AddDate(0, 0, g.rnd.between(0, span)))
	return day.Add(time.Duration(g.rnd.between(9*3600, 17*3600-1)) * time.Second)
}

func (g *Generator) bondTrade(c *Customer, account Account, at time.Time) FixedIncomeTrade {
	r := g.rnd
	ccy := pick(r, fiCurrencies)
	rate := round(g.fx.rate(ccy, TradingBaseCurrency, at), 6)

	issuerType := pickWeighted(r, []string{IssuerSovereign, IssuerCorporate, IssuerSupranational}, []float64{0.4, 0.5, 0.1})
	var issuer, rating string
	var liquidity float64
	switch issuerType {
	case IssuerSovereign:
		issuer = pick(r, sovereignIssuers[ccy])
		rating = pickWeighted(r, []string{"AAA", "AA", "A"}, []float64{0.6, 0.3, 0.1})
		liquidity = r.uniform(7, 10)
	case IssuerSupranational:
		issuer = pick(r, supranationalIssuers)
		rating = "AAA"
		liquidity = r.uniform(6, 9)
	default:
		issuer = pick(r, corporateIssuers)
		rating = pickWeighted(r, []string{"AAA", "AA", "A", "BBB", "BB", "B"}, []float64{0.05, 0.15, 0.30, 0.30, 0.15, 0.05})
		liquidity = r.uniform(3, 8)
	}

	tenor := pick(r, []int{1, 2, 3, 5, 7, 10, 15, 20, 30})
	coupon := round(r.uniform(0.5, 5.0), 3)
	spread := creditSpreads[rating]
	spreadBps := round(r.uniform(spread[0], spread[1]), 1)
	yield := riskFreeRate + spreadBps/100
	price := round(100+r.uniform(-5, 5), 2)
	notional := pick(r, []float64{10000, 25000, 50000, 100000, 250000, 500000, 1000000})
	accrued := notional * coupon / 100 / 365 * float64(r.between(0, 180))

	side := pick(r, []string{SideBuy, SideSell})
	gross := signed(side, price/100*notional+accrued)
	commission := notional * r.uniform(0.0010, 0.0030)
	net := gross + commission
	duration := modifiedDuration(float64(tenor), coupon, yield)
	market := pick(r, bondMarkets[ccy])

	return FixedIncomeTrade{
		TradeTime:       at,
		SettlementDate:  addBusinessDays(truncateDay(at), 1),
		TradeID:         "FI_" + r.hexID(12),
		CustomerID:      c.ID,
		AccountID:       account.ID,
		OrderID:         "ORD_" + r.hexID(8),
		InstrumentType:  InstrumentBond,
		InstrumentID:    g.isin(isinCountry[ccy]),
		Issuer:          issuer,
		IssuerType:      issuerType,
		Currency:        ccy,
		Side:            side,
		Notional:        notional,
		Price:           price,
		AccruedInterest: round(accrued, 2),
		GrossAmount:     round(gross, 2),
		TenorYears:      tenor,
		Commission:      round(commission, 2),
		NetAmount:       round(net, 2),
		BaseGrossAmount: round(gross*rate, 2),
		BaseNetAmount:   round(net*rate, 2),
		FXRate:          rate,
		CouponRate:      coupon,
		MaturityDate:    truncateDay(at).AddDate(0, 0, tenor*365),
		Duration:        round(duration, 4),
		DV01:            round(dv01(notional, duration, price)*rate, 2),
		CreditRating:    rating,
		CreditSpreadBps: spreadBps,
		Market:          market,
		BrokerID:        "BRK_" + strconv.Itoa(r.between(100, 999)),
		Venue:           market,
		LiquidityScore:  round(liquidity, 1),
		CreatedAt:       g.now,
	}
}

func (g *Generator) swapTrade(c *Customer, account Account, at time.Time) FixedIncomeTrade {
	r := g.rnd
	ccy := pick(r, fiCurrencies)
	rate := round(g.fx.rate(ccy, TradingBaseCurrency, at), 6)

	tenor := pick(r, []int{1, 2, 3, 5, 7, 10})
	fixedRate := round(r.uniform(1.0, 4.5), 3)
	notional := pick(r, []float64{500000, 1000000, 2500000, 5000000, 10000000})
	side := pick(r, []string{SideBuy, SideSell})
	gross := signed(side, notional*r.uniform(-0.002, 0.002))
	commission := notional * r.uniform(0.0001, 0.0005)
	net := gross + commission
	duration := float64(tenor) / 2

	return FixedIncomeTrade{
		TradeTime:       at,
		SettlementDate:  addBusinessDays(truncateDay(at), 2),
		TradeID:         "FI_" + r.hexID(12),
		CustomerID:      c.ID,
		AccountID:       account.ID,
		OrderID:         "ORD_" + r.hexID(8),
		InstrumentType:  InstrumentIRS,
		InstrumentID:    "IRS_" + ccy + "_" + r.hexID(8),
		Issuer:          "N/A",
		IssuerType:      IssuerDerivative,
		Currency:        ccy,
		Side:            side,
		Notional:        notional,
		Price:           100,
		GrossAmount:     round(gross, 2),
		FixedRate:       &fixedRate,
		FloatingIndex:   floatingIndices[ccy],
		TenorYears:      tenor,
		Commission:      round(commission, 2),
		NetAmount:       round(net, 2),
		BaseGrossAmount: round(gross*rate, 2),
		BaseNetAmount:   round(net*rate, 2),
		FXRate:          rate,
		MaturityDate:    truncateDay(at).AddDate(0, 0, tenor*365),
		Duration:        round(duration, 4),
		DV01:            round(dv01(notional, duration, 100)*rate, 2),
		CreditRating:    "N/A",
		Market:          "OTC",
		BrokerID:        "BRK_" + strconv.Itoa(r.between(100, 999)),
		Venue:           "OTC",
		LiquidityScore:  round(r.uniform(5, 8), 1),
		CreatedAt:       g.now,
	}
}

// modifiedDuration uses the closed-form Macaulay duration of an annual-pay
// bond priced at yield; rates are in percent.
func modifiedDuration(years, coupon, yield float64) float64 {
	if coupon == 0 {
		return years
	}
	c, y := coupon/100, yield/100
	macaulay := (1+y)/y - (1+y+years*(c-y))/(c*(math.Pow(1+y, years)-1)+y)
	return math.Max(0.1, macaulay/(1+y))
}

// dv01 is the value change for a one basis point move in yield.
func dv01(notional, duration, price float64) float64 {
	return duration * (price / 100) * notional * 0.0001
}

// isin builds a twelve character ISIN with a valid Luhn check digit.
func (g *Generator) isin(country string) string {
	body := country + g.rnd.digits(9)
	return body + strconv.Itoa(isinCheckDigit(body))
}

func isinCheckDigit(body string) int {
	var digits strings.Builder
	for _, ch := range strings.ToUpper(body) {
		switch {
		case ch >= '0' && ch <= '9':
			digits.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			digits.WriteString(strconv.Itoa(int(ch-'A') + 10))
		}
	}
	s := digits.String()
	sum := 0
	double := true
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}
