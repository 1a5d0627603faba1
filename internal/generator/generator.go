// Package generator produces the synthetic landing files for every source
// domain: CRM master data, accounts, FX rates, payments with injected
// anomalies, equity, fixed income and commodity trades, SWIFT messages and a
// PEP list. A run is fully determined by its configuration and seed.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"snowbank/internal/common"
	"snowbank/internal/logging"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// Output tree, relative to the output directory.
const (
	MasterDataDir     = "master_data"
	AddressUpdatesDir = "master_data/address_updates"
	CustomerUpdateDir = "master_data/customer_updates"
	FXDir             = "fx_rates"
	PaymentsDir       = "payment_transactions"
	EquityDir         = "equity_trades"
	FixedIncomeDir    = "fixed_income_trades"
	CommodityDir      = "commodity_trades"
	SwiftDir          = "swift_messages"
	ReportsDir        = "reports"
)

// BaseCurrency is the settlement currency of payments and FX quotes.
const BaseCurrency = "USD"

// TradingBaseCurrency is the reporting currency of the trading books.
const TradingBaseCurrency = "CHF"

// Option customises a Generator.
type Option func(*Generator)

// WithNow pins the wall clock used for default dates and timestamps.
func WithNow(now time.Time) Option {
	return func(g *Generator) { g.now = now.UTC() }
}

// WithProgress registers a callback invoked after each stage.
func WithProgress(fn func(stage string)) Option {
	return func(g *Generator) { g.progress = fn }
}

// Generator writes one synthetic data set.
type Generator struct {
	cfg      models.Generator
	rnd      *random
	now      time.Time
	start    time.Time
	end      time.Time
	out      string
	log      zerolog.Logger
	progress func(stage string)

	customers []*Customer
	addresses []Address
	accounts  []Account
	held      map[string][]Account
	fx        *fxTable
	profiles  map[string]*anomalyProfile
	summary   *Summary
}

// New validates cfg and prepares a generator. Nothing is written until Run.
func New(cfg models.Generator, opts ...Option) (*Generator, error) {
	g := &Generator{
		cfg: cfg,
		now: time.Now().UTC(),
		log: logging.With("generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	g.rnd = newRandom(cfg.Seed)
	g.out = cfg.OutputDir
	if g.out == "" {
		g.out = "generated_data"
	}

	period := time.Duration(cfg.PeriodMonths*30) * 24 * time.Hour
	if cfg.StartDate != "" {
		start, err := time.Parse(dateLayout, cfg.StartDate)
		if err != nil {
			return nil, errors.ValidationError("generator.start_date", cfg.StartDate, "expected YYYY-MM-DD")
		}
		g.start = start
	} else {
		g.start = truncateDay(g.now.Add(-period))
	}
	g.end = g.start.Add(period)

	g.summary = &Summary{
		OutputDir:         g.out,
		Seed:              cfg.Seed,
		Start:             g.start,
		End:               g.end,
		AccountTypes:      map[string]int{},
		AccountCurrencies: map[string]int{},
		PaymentCurrencies: map[string]int{},
	}
	return g, nil
}

func validate(cfg models.Generator) error {
	switch {
	case cfg.Customers <= 0:
		return errors.ValidationError("generator.customers", cfg.Customers, "must be positive")
	case cfg.PeriodMonths <= 0:
		return errors.ValidationError("generator.period_months", cfg.PeriodMonths, "must be positive")
	case cfg.AnomalyPercentage < 0 || cfg.AnomalyPercentage > 100:
		return errors.ValidationError("generator.anomaly_percentage", cfg.AnomalyPercentage, "must be between 0 and 100")
	case cfg.TransactionsPerMonth < 0:
		return errors.ValidationError("generator.transactions_per_month", cfg.TransactionsPerMonth, "must not be negative")
	case cfg.MinAmount <= 0 || cfg.MaxAmount <= cfg.MinAmount:
		return errors.ValidationError("generator.max_amount", cfg.MaxAmount, "amount range must satisfy 0 < min < max")
	case cfg.SwiftPercentage < 0 || cfg.SwiftPercentage > 100:
		return errors.ValidationError("generator.swift_percentage", cfg.SwiftPercentage, "must be between 0 and 100")
	case len(cfg.Currencies) == 0:
		return errors.ValidationError("generator.currencies", cfg.Currencies, "at least one currency is required")
	}
	for _, ccy := range cfg.Currencies {
		if ccy == BaseCurrency {
			continue
		}
		if _, ok := fxBaseRates[ccy]; !ok {
			return errors.ValidationError("generator.currencies", ccy, "no FX model for this currency").
				WithSuggestions(fmt.Sprintf("Supported currencies: USD, %s", joinKeys(fxBaseRates)))
		}
	}
	return nil
}

// Run generates every data set and the summary report.
func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	if err := os.MkdirAll(g.out, common.DirPermissionNormal); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to create output directory").
			WithContext("dir", g.out)
	}

	g.log.Info().
		Int("customers", g.cfg.Customers).
		Str("start", g.start.Format(dateLayout)).
		Str("end", g.end.Format(dateLayout)).
		Uint64("seed", g.cfg.Seed).
		Msg("Generating synthetic data")

	stages := []struct {
		name string
		skip bool
		run  func() error
	}{
		{"customers", false, g.writeCustomers},
		{"accounts", false, g.writeAccounts},
		{"fx_rates", false, g.writeFXRates},
		{"payments", false, g.writePayments},
		{"address_updates", false, g.writeAddressUpdates},
		{"customer_updates", false, g.writeCustomerUpdates},
		{"pep", false, g.writePEP},
		{"equity_trades", g.cfg.SkipTrades, g.writeEquityTrades},
		{"fixed_income_trades", g.cfg.SkipTrades, g.writeFixedIncomeTrades},
		{"commodity_trades", g.cfg.SkipTrades, g.writeCommodityTrades},
		{"swift_messages", g.cfg.SkipSwift, g.writeSwiftMessages},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "generation cancelled").
				WithContext("stage", stage.name)
		}
		if stage.skip {
			g.log.Debug().Str("stage", stage.name).Msg("Skipped")
			continue
		}
		started := time.Now()
		if err := stage.run(); err != nil {
			if errors.GetErrorCode(err) != errors.ErrCodeInternal {
				return nil, err
			}
			return nil, errors.Wrap(err, errors.ErrCodeGeneratorFailed, "generation failed").
				WithContext("stage", stage.name)
		}
		g.log.Debug().Str("stage", stage.name).Dur("duration", time.Since(started)).Msg("Stage complete")
		if g.progress != nil {
			g.progress(stage.name)
		}
	}

	if err := g.writeSummary(); err != nil {
		return nil, err
	}
	slices.Sort(g.summary.Files)
	return g.summary, nil
}

// path joins rel onto the output directory and records it as written.
func (g *Generator) path(rel string) string {
	g.summary.Files = append(g.summary.Files, filepath.ToSlash(rel))
	return filepath.Join(g.out, rel)
}

// customer returns the customer with id, or nil.
func (g *Generator) customer(id string) *Customer {
	for _, c := range g.customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}
