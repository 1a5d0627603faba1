package generator

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) models.Generator {
	t.Helper()
	cfg := models.Defaults().Generator
	cfg.Customers = 20
	cfg.AnomalyPercentage = 10
	cfg.PeriodMonths = 2
	cfg.StartDate = "2024-01-01"
	cfg.OutputDir = t.TempDir()
	cfg.Seed = 7
	cfg.PEPRecords = 20
	cfg.FixedIncomeTrades = 40
	cfg.CommodityTrades = 30
	cfg.SwiftPercentage = 50
	cfg.AddressUpdateFiles = 2
	cfg.CustomerUpdateFiles = 2
	return cfg
}

func runGenerator(t *testing.T, cfg models.Generator) *Summary {
	t.Helper()
	g, err := New(cfg, WithNow(testNow))
	require.NoError(t, err)
	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func readCSV(t *testing.T, path string) ([]string, [][]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records, path)
	return records[0], records[1:]
}

// readAll concatenates the rows of every CSV in dir, checking each header.
func readAll(t *testing.T, dir string, header []string) [][]string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, files, dir)
	var rows [][]string
	for _, f := range files {
		h, r := readCSV(t, f)
		require.Equal(t, header, h, f)
		rows = append(rows, r...)
	}
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err, s)
	return f
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Generator)
	}{
		{"no customers", func(c *models.Generator) { c.Customers = 0 }},
		{"no period", func(c *models.Generator) { c.PeriodMonths = 0 }},
		{"anomaly over 100", func(c *models.Generator) { c.AnomalyPercentage = 120 }},
		{"negative rate", func(c *models.Generator) { c.TransactionsPerMonth = -1 }},
		{"inverted amounts", func(c *models.Generator) { c.MinAmount, c.MaxAmount = 100, 10 }},
		{"swift over 100", func(c *models.Generator) { c.SwiftPercentage = 101 }},
		{"no currencies", func(c *models.Generator) { c.Currencies = nil }},
		{"unknown currency", func(c *models.Generator) { c.Currencies = []string{"USD", "XYZ"} }},
		{"bad start date", func(c *models.Generator) { c.StartDate = "01/02/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
		})
	}
}

func TestNewDefaultStartDate(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartDate = ""
	g, err := New(cfg, WithNow(testNow))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), g.start)
	assert.Equal(t, g.start.AddDate(0, 0, 60), g.end)
}

func TestRunWritesEveryDomain(t *testing.T) {
	cfg := testConfig(t)
	summary := runGenerator(t, cfg)
	out := cfg.OutputDir

	assert.Equal(t, 21, summary.Customers)
	assert.Len(t, summary.AnomalousCustomers, 2)
	assert.Equal(t, 40, summary.FixedIncomeTrades)
	assert.Equal(t, 30, summary.CommodityTrades)
	assert.Equal(t, 20, summary.PEPRecords)
	assert.Positive(t, summary.Payments)
	assert.Positive(t, summary.EquityTrades)
	assert.Positive(t, summary.SwiftMessages)
	assert.Contains(t, summary.Files, ReportsDir+"/generation_summary.txt")
	for _, f := range summary.Files {
		assert.FileExists(t, filepath.Join(out, f))
	}

	header, customers := readCSV(t, filepath.Join(out, MasterDataDir, "customers.csv"))
	assert.Equal(t, customerHeader, header)
	require.Len(t, customers, 21)
	assert.Equal(t, "CUST_00021_FUZZY_TEST", customers[20][0])

	header, _ = readCSV(t, filepath.Join(out, MasterDataDir, "customer_addresses.csv"))
	assert.Equal(t, addressHeader, header)

	header, peps := readCSV(t, filepath.Join(out, MasterDataDir, "pep_data.csv"))
	assert.Equal(t, pepHeader, header)
	assert.Equal(t, "YURY TOPCHEV", peps[len(peps)-1][1])

	header, accounts := readCSV(t, filepath.Join(out, MasterDataDir, "accounts.csv"))
	assert.Equal(t, accountHeader, header)
	accountIDs := map[string]bool{}
	for _, a := range accounts {
		accountIDs[a[0]] = true
	}
	assert.Equal(t, summary.Accounts, len(accounts))

	readAll(t, filepath.Join(out, AddressUpdatesDir), addressHeader)
	readAll(t, filepath.Join(out, CustomerUpdateDir), customerHeader)

	t.Run("payments", func(t *testing.T) {
		rows := readAll(t, filepath.Join(out, PaymentsDir), paymentHeader)
		assert.Len(t, rows, summary.Payments)
		for _, r := range rows {
			booking, err := time.Parse(isoMicroLayout, r[0])
			require.NoError(t, err)
			value, err := time.Parse(dateLayout, r[1])
			require.NoError(t, err)
			assert.False(t, value.Before(truncateDay(booking)), r[2])
			assert.True(t, accountIDs[r[3]], r[3])
			assert.Equal(t, BaseCurrency, r[7])
		}
	})

	t.Run("fx rates", func(t *testing.T) {
		rows := readAll(t, filepath.Join(out, FXDir), fxHeader)
		assert.Len(t, rows, summary.FXRates)
		for _, r := range rows {
			mid, bid, ask := parseFloat(t, r[3]), parseFloat(t, r[4]), parseFloat(t, r[5])
			assert.LessOrEqual(t, bid, mid, r)
			assert.LessOrEqual(t, mid, ask, r)
		}
	})

	t.Run("equity trades", func(t *testing.T) {
		rows := readAll(t, filepath.Join(out, EquityDir), equityHeader)
		assert.Len(t, rows, summary.EquityTrades)
		for _, r := range rows {
			gross, commission, net := parseFloat(t, r[13]), parseFloat(t, r[14]), parseFloat(t, r[15])
			assert.InDelta(t, gross+commission, net, 0.011)
			if r[9] == SideSell {
				assert.Negative(t, gross)
			} else {
				assert.Positive(t, gross)
			}
			assert.Equal(t, TradingBaseCurrency, r[16])
			assert.True(t, accountIDs[r[4]], r[4])
		}
	})

	t.Run("fixed income trades", func(t *testing.T) {
		rows := readAll(t, filepath.Join(out, FixedIncomeDir), fixedIncomeHeader)
		require.Len(t, rows, 40)
		typeCol := column(fixedIncomeHeader, "instrument_type")
		for _, r := range rows {
			traded, err := time.Parse(isoMicroLayout, r[0])
			require.NoError(t, err)
			settled, err := time.Parse(dateLayout, r[1])
			require.NoError(t, err)
			assert.True(t, settled.After(truncateDay(traded)), r[2])
			assert.True(t, isBusinessDay(traded))

			gross := parseFloat(t, r[column(fixedIncomeHeader, "gross_amount")])
			net := parseFloat(t, r[column(fixedIncomeHeader, "net_amount")])
			commission := parseFloat(t, r[column(fixedIncomeHeader, "commission")])
			assert.InDelta(t, gross+commission, net, 0.011)

			switch r[typeCol] {
			case InstrumentBond:
				isin := r[column(fixedIncomeHeader, "instrument_id")]
				require.Len(t, isin, 12)
				assert.Equal(t, strconv.Itoa(isinCheckDigit(isin[:11])), isin[11:])
				assert.Empty(t, r[column(fixedIncomeHeader, "fixed_rate")])
				if r[column(fixedIncomeHeader, "side")] == SideSell {
					assert.Negative(t, gross)
				}
			case InstrumentIRS:
				assert.True(t, strings.HasPrefix(r[column(fixedIncomeHeader, "instrument_id")], "IRS_"))
				assert.NotEmpty(t, r[column(fixedIncomeHeader, "floating_rate_index")])
				assert.Equal(t, "OTC", r[column(fixedIncomeHeader, "venue")])
			default:
				t.Errorf("unexpected instrument type %q", r[typeCol])
			}
		}
	})

	t.Run("commodity trades", func(t *testing.T) {
		rows := readAll(t, filepath.Join(out, CommodityDir), commodityHeader)
		require.Len(t, rows, 30)
		for _, r := range rows {
			traded, err := time.Parse(timestampLayout, r[0])
			require.NoError(t, err)
			kind := r[column(commodityHeader, "contract_type")]
			month := r[column(commodityHeader, "delivery_month")]
			location := r[column(commodityHeader, "delivery_location")]
			switch kind {
			case ContractSpot:
				assert.Equal(t, traded.Format(dateLayout), r[1])
			case ContractFuture:
				assert.Len(t, month, 7)
			case ContractSwap:
				assert.Empty(t, location)
			}
			if kind != ContractFuture {
				assert.Empty(t, month)
			}
			assert.Empty(t, r[column(commodityHeader, "vega")])
		}
	})

	t.Run("swift messages", func(t *testing.T) {
		instructions, err := filepath.Glob(filepath.Join(out, SwiftDir, "swift_*_pacs008.xml"))
		require.NoError(t, err)
		require.NotEmpty(t, instructions)
		assert.Equal(t, summary.SwiftMessages, 2*len(instructions))

		for _, path := range instructions {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), `xmlns="`+Pacs008Namespace+`"`)

			var doc creditTransferDocument
			require.NoError(t, xml.Unmarshal(data, &doc))
			tx := doc.Transfer.Tx
			customer := strings.TrimPrefix(filepath.Base(path), "swift_")
			customer = customer[:strings.LastIndex(customer[:len(customer)-len("_pacs008.xml")], "_")]
			assert.Contains(t, tx.Remittance.Unstructured, "Customer: "+customer)
			assert.Equal(t, swiftCurrency, tx.Amount.Currency)
			for _, iban := range []string{tx.DebtorAccount.IBAN, tx.CreditorAccount.IBAN} {
				assert.Equal(t, iban[2:4], ibanCheckDigits(iban[:2], iban[4:]), iban)
			}

			status, err := os.ReadFile(strings.Replace(path, "_pacs008.xml", "_pacs002.xml", 1))
			require.NoError(t, err)
			assert.Contains(t, string(status), `xmlns="`+Pacs002Namespace+`"`)
			var report statusReportDocument
			require.NoError(t, xml.Unmarshal(status, &report))
			assert.Equal(t, tx.PaymentID.EndToEndID, report.Report.Tx.OrigEndToEndID)
			assert.Equal(t, doc.Transfer.Header.MsgID, report.Report.Original.MsgID)
			assert.Equal(t, swiftStatusAccp, report.Report.Tx.Status)
		}
	})
}

func TestRunIsDeterministic(t *testing.T) {
	first := testConfig(t)
	second := first
	second.OutputDir = t.TempDir()

	a := runGenerator(t, first)
	b := runGenerator(t, second)
	require.Equal(t, a.Files, b.Files)

	for _, f := range a.Files {
		if f == ReportsDir+"/generation_summary.txt" {
			continue
		}
		x, err := os.ReadFile(filepath.Join(first.OutputDir, f))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(second.OutputDir, f))
		require.NoError(t, err)
		assert.Equal(t, string(x), string(y), f)
	}
}

func TestRunSeedChangesOutput(t *testing.T) {
	first := testConfig(t)
	second := first
	second.OutputDir = t.TempDir()
	second.Seed = 8

	runGenerator(t, first)
	runGenerator(t, second)

	x, err := os.ReadFile(filepath.Join(first.OutputDir, MasterDataDir, "customers.csv"))
	require.NoError(t, err)
	y, err := os.ReadFile(filepath.Join(second.OutputDir, MasterDataDir, "customers.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, string(x), string(y))
}

func TestRunSkipFlags(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipTrades = true
	cfg.SkipSwift = true
	summary := runGenerator(t, cfg)

	assert.Zero(t, summary.EquityTrades)
	assert.Zero(t, summary.FixedIncomeTrades)
	assert.Zero(t, summary.CommodityTrades)
	assert.Zero(t, summary.SwiftMessages)
	for _, dir := range []string{EquityDir, FixedIncomeDir, CommodityDir, SwiftDir} {
		assert.NoDirExists(t, filepath.Join(cfg.OutputDir, dir))
	}
	assert.DirExists(t, filepath.Join(cfg.OutputDir, PaymentsDir))
}

func TestRunProgressAndCancel(t *testing.T) {
	cfg := testConfig(t)
	var stages []string
	g, err := New(cfg, WithNow(testNow), WithProgress(func(stage string) { stages = append(stages, stage) }))
	require.NoError(t, err)
	_, err = g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"customers", "accounts", "fx_rates", "payments", "address_updates",
		"customer_updates", "pep", "equity_trades", "fixed_income_trades",
		"commodity_trades", "swift_messages",
	}, stages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg.OutputDir = t.TempDir()
	g, err = New(cfg, WithNow(testNow))
	require.NoError(t, err)
	_, err = g.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTimeout, errors.GetErrorCode(err))
}
