package generator

import (
	"slices"
	"time"
)

// Customer update categories and their relative frequency.
const (
	UpdateEmployment  = "EMPLOYMENT_CHANGE"
	UpdateAccountTier = "ACCOUNT_TIER"
	UpdateContactInfo = "CONTACT_INFO"
	UpdateRiskProfile = "RISK_PROFILE"
)

var (
	updateTypes   = []string{UpdateEmployment, UpdateAccountTier, UpdateContactInfo, UpdateRiskProfile}
	updateWeights = []float64{35, 30, 25, 10}
)

// addressUpdateCountries are the destinations of customers who move.
var addressUpdateCountries = []string{
	"Norway", "Netherlands", "Sweden", "Germany", "France", "Italy",
	"United Kingdom", "Denmark", "Belgium", "Austria", "Switzerland",
}

// writeCustomerUpdates spreads the update files evenly over the period. Every
// row is the full customer record after the change, so the SCD2 history in
// the warehouse can be rebuilt from the feed alone.
func (g *Generator) writeCustomerUpdates() error {
	files := g.cfg.CustomerUpdateFiles
	if files <= 0 {
		return nil
	}
	span := g.end.Sub(g.start)
	for i := 0; i < files; i++ {
		day := truncateDay(g.start.Add(span * time.Duration(i+1) / time.Duration(files+1)))
		candidates := g.onboardedBy(day)
		if len(candidates) == 0 {
			continue
		}

		n := max(3, int(float64(len(g.customers))*g.rnd.uniform(0.05, 0.15)))
		var rows [][]string
		for _, c := range sample(g.rnd, candidates, n) {
			g.updateCustomer(c, pickWeighted(g.rnd, updateTypes, updateWeights))
			c.InsertedAt = day.Add(time.Duration(g.rnd.between(9*3600, 17*3600)) * time.Second)
			rows = append(rows, c.record())
		}
		name := CustomerUpdateDir + "/customer_updates_" + day.Format(dateLayout) + ".csv"
		if err := g.writeCSV(name, customerHeader, rows); err != nil {
			return err
		}
		g.summary.CustomerUpdates += len(rows)
	}
	return nil
}

func (g *Generator) onboardedBy(day time.Time) []*Customer {
	var out []*Customer
	for _, c := range g.customers {
		if c.Onboarding.Before(day) {
			out = append(out, c)
		}
	}
	return out
}

// updateCustomer applies one category of change to c.
func (g *Generator) updateCustomer(c *Customer, kind string) {
	r := g.rnd
	switch kind {
	case UpdateEmployment:
		if r.chance(0.4) {
			c.Employer = r.fake.Company()
		}
		if r.chance(0.3) {
			c.Position = pick(r, positions)
		}
		if r.chance(0.3) {
			c.EmploymentType = pick(r, employmentTypes)
		}
		if r.chance(0.4) {
			c.IncomeRange = step(incomeRanges, c.IncomeRange, r.chance(0.7))
		}
	case UpdateAccountTier:
		c.AccountTier = step(accountTiers, c.AccountTier, r.chance(0.6))
	case UpdateContactInfo:
		if r.chance(0.5) {
			c.Email = g.email(c)
		}
		if r.chance(0.5) {
			c.Phone = r.fake.Phone()
		}
		if r.chance(0.3) {
			c.ContactMethod = pick(r, contactMethods)
		}
	case UpdateRiskProfile:
		if r.chance(0.5) {
			c.RiskClass = pick(r, riskClasses)
		}
		if r.chance(0.5) {
			c.CreditBand = pick(r, creditBands)
		}
	}
}

// step moves value one position up or down the ordered scale, clamped.
func step(scale []string, value string, up bool) string {
	i := slices.Index(scale, value)
	if i < 0 {
		return scale[0]
	}
	if up && i < len(scale)-1 {
		return scale[i+1]
	}
	if !up && i > 0 {
		return scale[i-1]
	}
	return value
}

// writeAddressUpdates writes move batches dated further into the past for
// each successive file. Batches that land on the same day share a file.
func (g *Generator) writeAddressUpdates() error {
	files := byDay{}
	for i := 0; i < g.cfg.AddressUpdateFiles; i++ {
		day := truncateDay(g.now).AddDate(0, 0, -g.rnd.between(30+45*i, 90+45*i))
		n := max(5, int(float64(len(g.customers))*g.rnd.uniform(0.05, 0.15)))
		for _, c := range sample(g.rnd, g.customers, n) {
			country := pick(g.rnd, addressUpdateCountries)
			a := g.newAddress(c.ID, country)
			a.InsertedAt = day.Add(time.Duration(g.rnd.between(9*3600, 17*3600)) * time.Second)
			files.add(day.Format(dateLayout), a.record())
		}
	}
	for _, day := range files.keys() {
		name := AddressUpdatesDir + "/customer_addresses_" + day + ".csv"
		if err := g.writeCSV(name, addressHeader, files[day]); err != nil {
			return err
		}
		g.summary.AddressUpdates += len(files[day])
	}
	return nil
}
