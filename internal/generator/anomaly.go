package generator

import (
	"fmt"
	"math"
	"time"
)

// AnomalyType is a suspicious behaviour injected into a customer's payments.
type AnomalyType string

const (
	AnomalyLargeAmount         AnomalyType = "LARGE_AMOUNT"
	AnomalyHighFrequency       AnomalyType = "HIGH_FREQUENCY"
	AnomalyUnusualCounterparty AnomalyType = "UNUSUAL_COUNTERPARTY"
	AnomalyRoundAmount         AnomalyType = "ROUND_AMOUNT"
	AnomalyOffHours            AnomalyType = "OFF_HOURS"
	AnomalyRapidSuccession     AnomalyType = "RAPID_SUCCESSION"
	AnomalyNewBeneficiaryLarge AnomalyType = "NEW_BENEFICIARY_LARGE"
)

// AllAnomalyTypes lists every pattern.
var AllAnomalyTypes = []AnomalyType{
	AnomalyLargeAmount, AnomalyHighFrequency, AnomalyUnusualCounterparty, AnomalyRoundAmount,
	AnomalyOffHours, AnomalyRapidSuccession, AnomalyNewBeneficiaryLarge,
}

// Description markers appended to anomalous payments.
const (
	MarkerLargeTransfer          = "[LARGE_TRANSFER]"
	MarkerSuspiciousCounterparty = "[SUSPICIOUS_COUNTERPARTY]"
	MarkerRoundAmount            = "[ROUND_AMOUNT]"
	MarkerOffHours               = "[OFF_HOURS]"
	MarkerNewLargeBeneficiary    = "[NEW_LARGE_BENEFICIARY]"
	MarkerRapidSuccession        = "[RAPID_SUCCESSION]"
)

var suspiciousPrefixes = []string{"OFF_SHORE_", "SHELL_CORP_", "CRYPTO_EX_", "CASH_SERV_", "MONEY_TRANS_"}

var roundAmounts = []float64{1000, 5000, 10000, 25000, 50000, 100000}

// anomalyProfile is the fixed behaviour of one flagged customer.
type anomalyProfile struct {
	types          []AnomalyType
	start          time.Time
	end            time.Time
	counterparties []string
	largeThreshold float64
	burstMax       int
}

func (p *anomalyProfile) has(t AnomalyType) bool {
	for _, x := range p.types {
		if x == t {
			return true
		}
	}
	return false
}

func (g *Generator) newAnomalyProfile() *anomalyProfile {
	r := g.rnd
	p := &anomalyProfile{
		types:          sample(r, AllAnomalyTypes, r.between(1, 3)),
		largeThreshold: (g.cfg.MinAmount + g.cfg.MaxAmount) / 2 * r.uniform(5, 20),
		burstMax:       r.between(10, 25),
	}

	total := int(g.end.Sub(g.start).Hours() / 24)
	var offset int
	if total <= 60 {
		offset = r.between(1, max(2, total/2))
	} else {
		offset = r.between(total/4, total-30)
	}
	p.start = g.start.AddDate(0, 0, offset)
	p.end = p.start.AddDate(0, 0, r.between(1, 90))

	for _, prefix := range sample(r, suspiciousPrefixes, r.between(1, 3)) {
		p.counterparties = append(p.counterparties, prefix+r.digits(7))
	}
	return p
}

// activeTypes decides whether day falls in the anomaly window and, with 30%
// probability, which of the customer's patterns fire (each with 70%).
func (g *Generator) activeTypes(p *anomalyProfile, day time.Time) []AnomalyType {
	if day.Before(truncateDay(p.start)) || day.After(p.end) {
		return nil
	}
	if !g.rnd.chance(0.3) {
		return nil
	}
	var out []AnomalyType
	for _, t := range p.types {
		if g.rnd.chance(0.7) {
			out = append(out, t)
		}
	}
	return out
}

// applyAnomalies mutates pay in place. Amount patterns change the magnitude
// and keep the direction.
func (g *Generator) applyAnomalies(pay *Payment, types []AnomalyType, p *anomalyProfile) {
	r := g.rnd
	sign := 1.0
	if pay.Amount < 0 {
		sign = -1
	}
	magnitude := math.Abs(pay.Amount)
	marked := false

	for _, t := range types {
		switch t {
		case AnomalyLargeAmount:
			magnitude = math.Max(p.largeThreshold, magnitude*r.uniform(2, 5))
			pay.mark(MarkerLargeTransfer)
		case AnomalyUnusualCounterparty:
			pay.Counterparty = pick(r, p.counterparties)
			pay.mark(MarkerSuspiciousCounterparty)
		case AnomalyRoundAmount:
			magnitude = g.roundAmount(magnitude)
			pay.mark(MarkerRoundAmount)
		case AnomalyOffHours:
			pay.Booking = g.offHours(pay.Booking)
			if pay.Value.Before(truncateDay(pay.Booking)) {
				pay.Value = truncateDay(pay.Booking)
			}
			pay.mark(MarkerOffHours)
		case AnomalyNewBeneficiaryLarge:
			pay.Counterparty = fmt.Sprintf("NEW_BENEF_%d", r.between(100000, 999999))
			magnitude = math.Max(magnitude*r.uniform(3, 8), p.largeThreshold*0.5)
			pay.mark(MarkerNewLargeBeneficiary)
		default:
			continue
		}
		marked = true
	}

	if marked {
		pay.Anomalous = true
		pay.Amount = round(sign*magnitude, 2)
		pay.BaseAmount = round(pay.Amount*pay.FXRate, 2)
	}
}

func (g *Generator) roundAmount(amount float64) float64 {
	var suitable []float64
	for _, v := range roundAmounts {
		if v >= amount*0.5 {
			suitable = append(suitable, v)
		}
	}
	if len(suitable) > 0 {
		return pick(g.rnd, suitable)
	}
	return math.Round(amount/1000) * 1000
}

// offHours moves a booking into the night or onto the next weekend.
func (g *Generator) offHours(t time.Time) time.Time {
	r := g.rnd
	if r.chance(0.5) {
		hour := pick(r, []int{23, 0, 1, 2, 3, 4, 5})
		return time.Date(t.Year(), t.Month(), t.Day(), hour, r.between(0, 59), 0, 0, time.UTC)
	}
	shift := (int(time.Saturday) - int(t.Weekday()) + 7) % 7
	if shift == 0 {
		shift = 1
	}
	d := t.AddDate(0, 0, shift)
	return time.Date(d.Year(), d.Month(), d.Day(), r.between(9, 18), r.between(0, 59), 0, 0, time.UTC)
}

// rapidSuccession clones pay into a burst of two to four transfers to the
// same counterparty a few minutes apart.
func (g *Generator) rapidSuccession(pay Payment) []Payment {
	n := g.rnd.between(2, 4)
	out := make([]Payment, 0, n)
	at := pay.Booking
	for i := 0; i < n; i++ {
		at = at.Add(time.Duration(g.rnd.between(30, 300)) * time.Second)
		clone := pay
		clone.ID = "TXN_" + g.rnd.hexID(12)
		clone.Booking = at
		if clone.Value.Before(truncateDay(at)) {
			clone.Value = truncateDay(at)
		}
		clone.Anomalous = true
		clone.mark(MarkerRapidSuccession)
		out = append(out, clone)
	}
	return out
}
