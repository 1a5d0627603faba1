package generator

import (
	"math"
	"strings"
	"time"
)

// Payment is one row of payment_transactions/pay_transactions_YYYY-MM-DD.csv.
// Amount is signed: incoming positive, outgoing negative.
type Payment struct {
	Booking      time.Time
	Value        time.Time
	ID           string
	AccountID    string
	Amount       float64
	Currency     string
	BaseAmount   float64
	BaseCurrency string
	FXRate       float64
	Counterparty string
	Description  string

	CustomerID string
	Anomalous  bool
}

var paymentHeader = []string{
	"booking_date", "value_date", "transaction_id", "account_id", "amount", "currency",
	"base_amount", "base_currency", "fx_rate", "counterparty_account", "description",
}

func (p Payment) record() []string {
	return []string{
		p.Booking.Format(isoMicroLayout), p.Value.Format(dateLayout), p.ID, p.AccountID,
		money(p.Amount), p.Currency, money(p.BaseAmount), p.BaseCurrency,
		fixed(p.FXRate, 6), p.Counterparty, p.Description,
	}
}

func (p *Payment) mark(marker string) {
	if !strings.Contains(p.Description, marker) {
		p.Description += " " + marker
	}
}

var (
	incomingPrefixes = []string{"PAYROLL_", "VENDOR_", "CLIENT_", "INVEST_", "BANK_"}
	outgoingPrefixes = []string{"SUPPLIER_", "UTILITY_", "LOAN_", "INVEST_", "TRANSFER_"}

	incomingDescriptions = []string{
		"Salary payment", "Client payment for services", "Investment dividend",
		"Insurance claim payment", "Refund payment", "Freelance payment",
		"Rental income", "Interest payment",
	}
	outgoingDescriptions = []string{
		"Utility payment", "Supplier payment", "Loan repayment", "Investment purchase",
		"Insurance premium", "Equipment purchase", "Service fee payment", "Transfer to savings",
	}

	// Booking hours in UTC, peaking late afternoon.
	bookingHours       = []int{14, 15, 16, 17, 18, 19, 20, 21}
	bookingHourWeights = []float64{1, 2, 3, 4, 5, 5, 4, 3}
)

const maxDailyPayments = 8

func (g *Generator) writePayments() error {
	g.profiles = map[string]*anomalyProfile{}
	for _, c := range g.customers {
		if c.HasAnomaly {
			g.profiles[c.ID] = g.newAnomalyProfile()
		}
	}

	files := byDay{}
	for _, day := range days(g.start, g.end) {
		if !isBusinessDay(day) {
			continue
		}
		for _, pay := range g.dailyPayments(day) {
			files.add(pay.Booking.Format(dateLayout), pay.record())
			g.summary.Payments++
			g.summary.PaymentCurrencies[pay.Currency]++
			g.summary.PaymentVolume += math.Abs(pay.BaseAmount)
			if pay.Anomalous {
				g.summary.AnomalousPayments++
			}
		}
	}

	for _, day := range files.keys() {
		if err := g.writeCSV(PaymentsDir+"/pay_transactions_"+day+".csv", paymentHeader, files[day]); err != nil {
			return err
		}
	}
	return nil
}

// dailyPayments books the day's payments for every onboarded customer.
func (g *Generator) dailyPayments(day time.Time) []Payment {
	var out []Payment
	rate := g.cfg.TransactionsPerMonth / 22

	for _, c := range g.customers {
		if day.Before(truncateDay(c.Onboarding)) {
			continue
		}
		profile := g.profiles[c.ID]

		if profile != nil && profile.has(AnomalyHighFrequency) {
			if types := g.activeTypes(profile, day); containsType(types, AnomalyHighFrequency) {
				n := g.rnd.between(5, profile.burstMax)
				for i := 0; i < n; i++ {
					pay := g.payment(c, day)
					pay.Anomalous = true
					if g.rnd.chance(0.4) {
						g.applyAnomalies(&pay, types, profile)
					}
					out = append(out, pay)
				}
				continue
			}
		}

		n := g.rnd.poisson(rate)
		if n == 0 && g.rnd.chance(0.3) {
			n = 1
		}
		n = min(n, maxDailyPayments)

		for i := 0; i < n; i++ {
			pay := g.payment(c, day)
			if profile == nil {
				out = append(out, pay)
				continue
			}
			types := g.activeTypes(profile, day)
			g.applyAnomalies(&pay, types, profile)
			out = append(out, pay)
			if containsType(types, AnomalyRapidSuccession) {
				out = append(out, g.rapidSuccession(pay)...)
			}
		}
	}
	return out
}

func containsType(types []AnomalyType, t AnomalyType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// payment draws a single normal payment for c on day.
func (g *Generator) payment(c *Customer, day time.Time) Payment {
	r := g.rnd
	hour := pickWeighted(r, bookingHours, bookingHourWeights)
	booking := day.Add(time.Duration(hour)*time.Hour +
		time.Duration(r.between(0, 59))*time.Minute +
		time.Duration(r.between(0, 59))*time.Second +
		time.Duration(r.between(0, 999999))*time.Microsecond)

	incoming := r.chance(0.5)
	currency := pick(r, g.cfg.Currencies)
	amount := math.Min(g.cfg.MaxAmount, math.Max(g.cfg.MinAmount, r.lognormal(6.5, 1.2)))

	prefixes, descriptions := outgoingPrefixes, outgoingDescriptions
	if incoming {
		prefixes, descriptions = incomingPrefixes, incomingDescriptions
	}
	description := pick(r, descriptions)
	switch {
	case amount > 10000:
		description = "Large " + strings.ToLower(description)
	case amount > 5000:
		description = "Substantial " + strings.ToLower(description)
	}

	value := g.valueDate(booking, incoming, amount, currency)
	rate := g.fx.rate(currency, BaseCurrency, value)
	if !incoming {
		amount = -amount
	}

	return Payment{
		Booking:      booking,
		Value:        value,
		ID:           "TXN_" + r.hexID(12),
		AccountID:    g.paymentAccount(c),
		Amount:       round(amount, 2),
		Currency:     currency,
		BaseAmount:   round(round(amount, 2)*round(rate, 6), 2),
		BaseCurrency: BaseCurrency,
		FXRate:       round(rate, 6),
		Counterparty: pick(r, prefixes) + r.digits(10),
		Description:  description,
		CustomerID:   c.ID,
	}
}

func (g *Generator) paymentAccount(c *Customer) string {
	held := g.accountsOf(c.ID, "")
	if len(held) == 0 {
		return c.ID + "_CHECKING_01"
	}
	weights := make([]float64, len(held))
	for i, a := range held {
		weights[i] = paymentAccountWeights[a.Type]
	}
	return pickWeighted(g.rnd, held, weights).ID
}

// valueDate settles larger and incoming payments later; foreign currency
// adds up to two days. Weekends are skipped.
func (g *Generator) valueDate(booking time.Time, incoming bool, amount float64, currency string) time.Time {
	r := g.rnd
	var offset int
	switch {
	case incoming && amount < 1000:
		offset = r.weighted([]float64{70, 30})
	case incoming && amount < 10000:
		offset = r.weighted([]float64{50, 40, 10})
	case incoming:
		offset = r.weighted([]float64{20, 40, 30, 10})
	case amount < 1000:
		offset = r.weighted([]float64{80, 20})
	case amount < 10000:
		offset = r.weighted([]float64{60, 40})
	default:
		offset = r.weighted([]float64{30, 50, 20})
	}
	if currency != BaseCurrency && r.chance(0.3) {
		offset += r.between(1, 2)
	}
	return addBusinessDays(truncateDay(booking), offset)
}
