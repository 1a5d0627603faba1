package generator

import (
	"math"
	"time"
)

// FIX side codes.
const (
	SideBuy  = "1"
	SideSell = "2"
)

type equityMarket struct {
	name       string
	currency   string
	isinPrefix string
	symbols    []string
	priceLo    float64
	priceHi    float64
	decimals   int32
	commission float64
}

var equityMarkets = []equityMarket{
	{"NYSE", "USD", "US", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "JNJ", "V"}, 50, 300, 2, 0.005},
	{"NASDAQ", "USD", "US", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "INTC", "CSCO", "ADBE"}, 50, 300, 2, 0.005},
	{"LSE", "GBP", "GB", []string{"LLOY", "BP", "SHEL", "AZN", "HSBA", "VOD", "GSK", "BT", "BARC", "RIO"}, 100, 2000, 2, 0.006},
	{"XETRA", "EUR", "DE", []string{"SAP", "SIE", "DTE", "ALV", "BAS", "BMW", "DAI", "VOW", "MUV2", "IFX"}, 20, 150, 2, 0.004},
	{"SIX", "CHF", "CH", []string{"NESN", "ROG", "NOVN", "UHR", "UBSG", "CS", "ABB", "ZURN", "GIVN", "CFR"}, 50, 1000, 2, 0.008},
	{"TSE", "JPY", "JP", []string{"7203", "6758", "9984", "9433", "8306", "6861", "4063", "8316", "7267", "4502"}, 1000, 5000, 0, 0.006},
}

var (
	orderTypes  = []string{"MARKET", "LIMIT", "STOP", "STOP_LIMIT"}
	execTypes   = []string{"NEW", "PARTIAL_FILL", "FILL", "CANCELED", "REPLACED"}
	timeInForce = []string{"DAY", "GTC", "IOC", "FOK"}
	brokers     = []string{"UBS", "CS", "JPM", "GS", "MS", "DB", "BAML", "CITI", "WF", "TD"}
	venues      = []string{"BATS", "CHI-X", "DARK", "BLOCK", "SIP", "CROSS"}

	regularTradeCounts  = []float64{15, 25, 30, 20, 8, 2}
	activeTraderWeights = []float64{20, 15, 15, 15, 12, 10, 8, 3, 2}
)

// EquityTrade is one row of equity_trades/trades_YYYY-MM-DD.csv. Amounts are
// signed: buys positive, sells negative.
type EquityTrade struct {
	TradeTime       time.Time
	SettlementDate  time.Time
	TradeID         string
	CustomerID      string
	AccountID       string
	OrderID         string
	ExecID          string
	Symbol          string
	ISIN            string
	Side            string
	Quantity        float64
	Price           float64
	Currency        string
	GrossAmount     float64
	Commission      float64
	NetAmount       float64
	BaseGrossAmount float64
	BaseNetAmount   float64
	FXRate          float64
	Market          string
	OrderType       string
	ExecType        string
	TimeInForce     string
	BrokerID        string
	Venue           string
}

var equityHeader = []string{
	"trade_date", "settlement_date", "trade_id", "customer_id", "account_id", "order_id",
	"exec_id", "symbol", "isin", "side", "quantity", "price", "currency", "gross_amount",
	"commission", "net_amount", "base_currency", "base_gross_amount", "base_net_amount",
	"fx_rate", "market", "order_type", "exec_type", "time_in_force", "broker_id", "venue",
}

func (t EquityTrade) record() []string {
	return []string{
		t.TradeTime.Format(isoMicroLayout), t.SettlementDate.Format(dateLayout),
		t.TradeID, t.CustomerID, t.AccountID, t.OrderID, t.ExecID, t.Symbol, t.ISIN, t.Side,
		fixed(t.Quantity, 4), fixed(t.Price, 2), t.Currency, money(t.GrossAmount),
		money(t.Commission), money(t.NetAmount), TradingBaseCurrency,
		money(t.BaseGrossAmount), money(t.BaseNetAmount), fixed(t.FXRate, 6),
		t.Market, t.OrderType, t.ExecType, t.TimeInForce, t.BrokerID, t.Venue,
	}
}

// signed returns amount for buys and -amount for sells.
func signed(side string, amount float64) float64 {
	if side == SideSell {
		return -amount
	}
	return amount
}

// tradingCustomers are the customers holding an investment account.
func (g *Generator) tradingCustomers() []*Customer {
	var out []*Customer
	for _, c := range g.customers {
		if len(g.accountsOf(c.ID, AccountInvestment)) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (g *Generator) writeEquityTrades() error {
	traders := g.tradingCustomers()
	if len(traders) == 0 {
		return nil
	}
	active := map[string]bool{}
	for _, c := range sample(g.rnd, traders, max(1, len(traders)/10)) {
		active[c.ID] = true
	}
	g.summary.TradingCustomers = len(traders)
	g.summary.HighVolumeTraders = len(active)

	for _, day := range days(g.start, g.end) {
		if !isBusinessDay(day) {
			continue
		}
		var rows [][]string
		for _, c := range traders {
			n := g.rnd.weighted(regularTradeCounts)
			if active[c.ID] {
				n = g.rnd.weighted(activeTraderWeights)
			}
			for i := 0; i < n; i++ {
				at := day.Add(time.Duration(g.rnd.between(9*3600, 17*3600-1))*time.Second +
					time.Duration(g.rnd.between(0, 999999))*time.Microsecond)
				rows = append(rows, g.equityTrade(c, at).record())
			}
		}
		if len(rows) == 0 {
			continue
		}
		if err := g.writeCSV(EquityDir+"/trades_"+day.Format(dateLayout)+".csv", equityHeader, rows); err != nil {
			return err
		}
		g.summary.EquityTrades += len(rows)
	}
	return nil
}

func (g *Generator) equityTrade(c *Customer, at time.Time) EquityTrade {
	r := g.rnd
	account := pick(r, g.accountsOf(c.ID, AccountInvestment))
	m := pick(r, equityMarkets)
	side := pick(r, []string{SideBuy, SideSell})

	quantity := round(r.uniform(10, 1000), 4)
	price := round(r.uniform(m.priceLo, m.priceHi), m.decimals)
	gross := signed(side, quantity*price)
	commission := math.Abs(gross) * m.commission
	net := gross + commission
	rate := round(g.fx.rate(m.currency, TradingBaseCurrency, at), 6)

	return EquityTrade{
		TradeTime:       at,
		SettlementDate:  addBusinessDays(truncateDay(at), 2),
		TradeID:         "TRD_" + r.hexID(12),
		CustomerID:      c.ID,
		AccountID:       account.ID,
		OrderID:         "ORD_" + r.hexID(12),
		ExecID:          "EXE_" + r.hexID(12),
		Symbol:          pick(r, m.symbols),
		ISIN:            m.isinPrefix + r.digits(2) + r.digits(8),
		Side:            side,
		Quantity:        quantity,
		Price:           price,
		Currency:        m.currency,
		GrossAmount:     round(gross, 2),
		Commission:      round(commission, 2),
		NetAmount:       round(net, 2),
		BaseGrossAmount: round(gross*rate, 2),
		BaseNetAmount:   round(net*rate, 2),
		FXRate:          rate,
		Market:          m.name,
		OrderType:       pick(r, orderTypes),
		ExecType:        pick(r, execTypes),
		TimeInForce:     pick(r, timeInForce),
		BrokerID:        pick(r, brokers),
		Venue:           pick(r, venues),
	}
}
