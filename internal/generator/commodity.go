package generator

import (
	"math"
	"strconv"
	"time"
)

// Commodity classes and contract types.
const (
	CommodityEnergy        = "ENERGY"
	CommodityPreciousMetal = "PRECIOUS_METAL"
	CommodityBaseMetal     = "BASE_METAL"
	CommodityAgricultural  = "AGRICULTURAL"

	ContractSpot    = "SPOT"
	ContractFuture  = "FUTURE"
	ContractForward = "FORWARD"
	ContractSwap    = "SWAP"
)

type commodity struct {
	class     string
	name      string
	code      string
	unit      string
	size      float64
	priceLo   float64
	priceHi   float64
	exchange  string
	volLo     float64
	volHi     float64
	liquidity [2]float64
}

var commodities = []commodity{
	{CommodityEnergy, "Crude Oil WTI", "CL", "Barrel", 1000, 60, 90, "NYMEX", 20, 40, [2]float64{7, 10}},
	{CommodityEnergy, "Crude Oil Brent", "BRN", "Barrel", 1000, 62, 92, "ICE", 20, 40, [2]float64{7, 10}},
	{CommodityEnergy, "Natural Gas", "NG", "MMBtu", 10000, 2.5, 6, "NYMEX", 30, 60, [2]float64{7, 10}},
	{CommodityEnergy, "Heating Oil", "HO", "Gallon", 42000, 2, 3.5, "NYMEX", 25, 45, [2]float64{7, 10}},
	{CommodityPreciousMetal, "Gold", "XAU", "Troy Ounce", 100, 1800, 2100, "COMEX", 10, 20, [2]float64{7, 10}},
	{CommodityPreciousMetal, "Silver", "XAG", "Troy Ounce", 5000, 22, 28, "COMEX", 15, 30, [2]float64{7, 10}},
	{CommodityPreciousMetal, "Platinum", "XPT", "Troy Ounce", 50, 900, 1100, "NYMEX", 15, 25, [2]float64{7, 10}},
	{CommodityPreciousMetal, "Palladium", "XPD", "Troy Ounce", 100, 1500, 2000, "NYMEX", 20, 35, [2]float64{7, 10}},
	{CommodityBaseMetal, "Copper", "HG", "Pound", 25000, 3.5, 4.5, "COMEX", 15, 30, [2]float64{6, 9}},
	{CommodityBaseMetal, "Aluminum", "ALI", "Metric Ton", 25, 2200, 2800, "LME", 15, 25, [2]float64{6, 9}},
	{CommodityBaseMetal, "Zinc", "ZNC", "Metric Ton", 25, 2500, 3200, "LME", 20, 35, [2]float64{6, 9}},
	{CommodityBaseMetal, "Nickel", "NKL", "Metric Ton", 6, 16000, 22000, "LME", 25, 45, [2]float64{6, 9}},
	{CommodityAgricultural, "Corn", "ZC", "Bushel", 5000, 4.5, 6.5, "CBOT", 15, 30, [2]float64{4, 8}},
	{CommodityAgricultural, "Wheat", "ZW", "Bushel", 5000, 5.5, 8, "CBOT", 20, 35, [2]float64{4, 8}},
	{CommodityAgricultural, "Soybeans", "ZS", "Bushel", 5000, 12, 15, "CBOT", 15, 30, [2]float64{4, 8}},
	{CommodityAgricultural, "Coffee", "KC", "Pound", 37500, 1.5, 2.5, "ICE", 25, 40, [2]float64{4, 8}},
	{CommodityAgricultural, "Sugar", "SB", "Pound", 112000, 0.15, 0.25, "ICE", 20, 35, [2]float64{4, 8}},
}

var deliveryLocations = map[string][]string{
	CommodityEnergy:        {"Cushing, OK", "Rotterdam", "Singapore", "Houston, TX"},
	CommodityPreciousMetal: {"London", "New York", "Zurich"},
	CommodityBaseMetal:     {"London", "Rotterdam", "Singapore"},
	CommodityAgricultural:  {"Chicago", "Kansas City", "Minneapolis"},
}

var (
	contractTypes   = []string{ContractSpot, ContractFuture, ContractForward, ContractSwap}
	contractWeights = []float64{0.2, 0.5, 0.2, 0.1}
	contractCounts  = []int{1, 2, 5, 10, 25, 50, 100}
)

// commodityCurrency is the quote currency of every listed contract.
const commodityCurrency = "USD"

// CommodityTrade is one row of commodity_trades/commodity_trades_YYYY-MM-DD.csv.
type CommodityTrade struct {
	TradeTime        time.Time
	SettlementDate   time.Time
	TradeID          string
	CustomerID       string
	AccountID        string
	OrderID          string
	CommodityType    string
	CommodityName    string
	CommodityCode    string
	ContractType     string
	Side             string
	Quantity         float64
	Unit             string
	Price            float64
	Currency         string
	GrossAmount      float64
	Commission       float64
	NetAmount        float64
	BaseGrossAmount  float64
	BaseNetAmount    float64
	FXRate           float64
	ContractSize     float64
	NumContracts     int
	DeliveryMonth    string
	DeliveryLocation string
	Delta            float64
	SpotPrice        float64
	ForwardPrice     float64
	Volatility       float64
	Exchange         string
	BrokerID         string
	Venue            string
	LiquidityScore   float64
	CreatedAt        time.Time
}

var commodityHeader = []string{
	"trade_date", "settlement_date", "trade_id", "customer_id", "account_id", "order_id",
	"commodity_type", "commodity_name", "commodity_code", "contract_type", "side",
	"quantity", "unit", "price", "currency", "gross_amount", "commission", "net_amount",
	"base_currency", "base_gross_amount", "base_net_amount", "fx_rate", "contract_size",
	"num_contracts", "delivery_month", "delivery_location", "delta", "vega", "spot_price",
	"forward_price", "volatility", "exchange", "broker_id", "venue", "liquidity_score",
	"created_at",
}

func (t CommodityTrade) record() []string {
	forward := ""
	if t.ForwardPrice != 0 {
		forward = fixed(t.ForwardPrice, 4)
	}
	return []string{
		t.TradeTime.Format(timestampLayout), t.SettlementDate.Format(dateLayout),
		t.TradeID, t.CustomerID, t.AccountID, t.OrderID, t.CommodityType, t.CommodityName,
		t.CommodityCode, t.ContractType, t.Side, fixed(t.Quantity, 4), t.Unit,
		fixed(t.Price, 4), t.Currency, money(t.GrossAmount), money(t.Commission),
		money(t.NetAmount), TradingBaseCurrency, money(t.BaseGrossAmount),
		money(t.BaseNetAmount), fixed(t.FXRate, 6), fixed(t.ContractSize, 4),
		strconv.Itoa(t.NumContracts), t.DeliveryMonth, t.DeliveryLocation,
		fixed(t.Delta, 4), "", fixed(t.SpotPrice, 4), forward, fixed(t.Volatility, 4),
		t.Exchange, t.BrokerID, t.Venue, fixed(t.LiquidityScore, 1),
		t.CreatedAt.Format(timestampLayout),
	}
}

func (g *Generator) writeCommodityTrades() error {
	files := byDay{}
	count := 0
	for i := 0; i < g.cfg.CommodityTrades; i++ {
		c, account, ok := g.tradeAccount()
		if !ok {
			break
		}
		at := g.tradeTime()
		files.add(at.Format(dateLayout), g.commodityTrade(c, account, at).record())
		count++
	}
	for _, day := range files.keys() {
		if err := g.writeCSV(CommodityDir+"/commodity_trades_"+day+".csv", commodityHeader, files[day]); err != nil {
			return err
		}
	}
	g.summary.CommodityTrades = count
	return nil
}

func (g *Generator) commodityTrade(c *Customer, account Account, at time.Time) CommodityTrade {
	r := g.rnd
	k := pick(r, commodities)
	kind := pickWeighted(r, contractTypes, contractWeights)
	side := pick(r, []string{SideBuy, SideSell})
	rate := round(g.fx.rate(commodityCurrency, TradingBaseCurrency, at), 6)

	spot := round(r.uniform(k.priceLo, k.priceHi), 4)
	price := spot
	var forward float64
	if kind == ContractFuture || kind == ContractForward {
		forward = round(spot*r.uniform(1.0, 1.05), 4)
		price = forward
	}

	contracts := pick(r, contractCounts)
	quantity := float64(contracts) * k.size
	gross := signed(side, quantity*price)
	commission := math.Abs(gross) * r.uniform(0.0005, 0.002)
	net := gross + commission

	settlement := addBusinessDays(truncateDay(at), 2)
	if kind == ContractSpot {
		settlement = truncateDay(at)
	}
	var month, location string
	if kind == ContractFuture {
		month = at.AddDate(0, r.between(1, 12), 0).Format("2006-01")
	}
	if kind != ContractSwap {
		location = pick(r, deliveryLocations[k.class])
	}

	return CommodityTrade{
		TradeTime:        at,
		SettlementDate:   settlement,
		TradeID:          "CMD_" + r.hexID(12),
		CustomerID:       c.ID,
		AccountID:        account.ID,
		OrderID:          "ORD_" + r.hexID(8),
		CommodityType:    k.class,
		CommodityName:    k.name,
		CommodityCode:    k.code,
		ContractType:     kind,
		Side:             side,
		Quantity:         quantity,
		Unit:             k.unit,
		Price:            price,
		Currency:         commodityCurrency,
		GrossAmount:      round(gross, 2),
		Commission:       round(commission, 2),
		NetAmount:        round(net, 2),
		BaseGrossAmount:  round(gross*rate, 2),
		BaseNetAmount:    round(net*rate, 2),
		FXRate:           rate,
		ContractSize:     k.size,
		NumContracts:     contracts,
		DeliveryMonth:    month,
		DeliveryLocation: location,
		Delta:            signed(side, quantity*rate),
		SpotPrice:        spot,
		ForwardPrice:     forward,
		Volatility:       round(r.uniform(k.volLo, k.volHi), 4),
		Exchange:         k.exchange,
		BrokerID:         "BRK_" + strconv.Itoa(r.between(100, 999)),
		Venue:            k.exchange,
		LiquidityScore:   round(r.uniform(k.liquidity[0], k.liquidity[1]), 1),
		CreatedAt:        g.now,
	}
}
