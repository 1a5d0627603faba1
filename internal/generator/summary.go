package generator

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"snowbank/internal/ui"
)

// Summary describes what a run produced.
type Summary struct {
	OutputDir string
	Seed      uint64
	Start     time.Time
	End       time.Time

	Customers          int
	AnomalousCustomers []string
	Addresses          int
	AddressUpdates     int
	CustomerUpdates    int
	Accounts           int
	AccountTypes       map[string]int
	AccountCurrencies  map[string]int
	FXRates            int

	Payments          int
	PaymentCurrencies map[string]int
	PaymentVolume     float64
	AnomalousPayments int

	TradingCustomers  int
	HighVolumeTraders int
	EquityTrades      int
	FixedIncomeTrades int
	CommodityTrades   int

	SwiftCustomers int
	SwiftMessages  int

	PEPRecords         int
	PEPCustomerMatches int

	Files []string
}

// Rows is the summary as label/value pairs for tabular display.
func (s *Summary) Rows() [][]string {
	rows := [][]string{
		{"Period", s.Start.Format(dateLayout) + " to " + s.End.Format(dateLayout)},
		{"Seed", strconv.FormatUint(s.Seed, 10)},
		{"Customers", strconv.Itoa(s.Customers)},
		{"Anomalous customers", strconv.Itoa(len(s.AnomalousCustomers))},
		{"Addresses", strconv.Itoa(s.Addresses)},
		{"Address updates", strconv.Itoa(s.AddressUpdates)},
		{"Customer updates", strconv.Itoa(s.CustomerUpdates)},
		{"Accounts", strconv.Itoa(s.Accounts)},
		{"FX rates", strconv.Itoa(s.FXRates)},
		{"Payments", strconv.Itoa(s.Payments)},
		{"Anomalous payments", strconv.Itoa(s.AnomalousPayments)},
		{"Payment volume (" + BaseCurrency + ")", money(s.PaymentVolume)},
		{"Trading customers", strconv.Itoa(s.TradingCustomers)},
		{"High-volume traders", strconv.Itoa(s.HighVolumeTraders)},
		{"Equity trades", strconv.Itoa(s.EquityTrades)},
		{"Fixed income trades", strconv.Itoa(s.FixedIncomeTrades)},
		{"Commodity trades", strconv.Itoa(s.CommodityTrades)},
		{"SWIFT customers", strconv.Itoa(s.SwiftCustomers)},
		{"SWIFT messages", strconv.Itoa(s.SwiftMessages)},
		{"PEP records", strconv.Itoa(s.PEPRecords)},
		{"PEP customer matches", strconv.Itoa(s.PEPCustomerMatches)},
		{"Files", strconv.Itoa(len(s.Files))},
	}
	return rows
}

func countRows(counts map[string]int) [][]string {
	var rows [][]string
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}

// writeSummary renders reports/generation_summary.txt.
func (g *Generator) writeSummary() error {
	s := g.summary

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Synthetic data generation summary\n")
	fmt.Fprintf(&buf, "Generated at %s into %s\n\n", g.now.Format(timestampLayout), s.OutputDir)
	ui.RenderTable(&buf, []string{"Item", "Value"}, s.Rows())

	buf.WriteString("\nAccount types\n")
	ui.RenderTable(&buf, []string{"Type", "Accounts"}, countRows(s.AccountTypes))
	buf.WriteString("\nAccount currencies\n")
	ui.RenderTable(&buf, []string{"Currency", "Accounts"}, countRows(s.AccountCurrencies))
	buf.WriteString("\nPayment currencies\n")
	ui.RenderTable(&buf, []string{"Currency", "Payments"}, countRows(s.PaymentCurrencies))

	if len(s.AnomalousCustomers) > 0 {
		buf.WriteString("\nAnomalous customers\n")
		for _, id := range s.AnomalousCustomers {
			fmt.Fprintf(&buf, "  %s\n", id)
		}
	}

	return g.writeFile(ReportsDir+"/generation_summary.txt", buf.Bytes())
}
