package generator

import (
	"fmt"
	"sort"
)

// Account types.
const (
	AccountChecking   = "CHECKING"
	AccountSavings    = "SAVINGS"
	AccountBusiness   = "BUSINESS"
	AccountInvestment = "INVESTMENT"
)

var accountTypes = []string{AccountChecking, AccountSavings, AccountBusiness, AccountInvestment}

// paymentAccountWeights is how often each account type books a payment.
var paymentAccountWeights = map[string]float64{
	AccountChecking:   0.6,
	AccountSavings:    0.2,
	AccountBusiness:   0.15,
	AccountInvestment: 0.05,
}

// Account is one row of master_data/accounts.csv.
type Account struct {
	ID         string
	Type       string
	Currency   string
	CustomerID string
	Status     string
}

var accountHeader = []string{"account_id", "account_type", "base_currency", "customer_id", "status"}

func (a Account) record() []string {
	return []string{a.ID, a.Type, a.Currency, a.CustomerID, a.Status}
}

func (g *Generator) writeAccounts() error {
	rows := make([][]string, 0, len(g.customers)*2)
	g.held = make(map[string][]Account, len(g.customers))
	for _, c := range g.customers {
		for _, a := range g.accountsFor(c) {
			g.accounts = append(g.accounts, a)
			g.held[a.CustomerID] = append(g.held[a.CustomerID], a)
			g.summary.AccountTypes[a.Type]++
			g.summary.AccountCurrencies[a.Currency]++
			rows = append(rows, a.record())
		}
	}
	g.summary.Accounts = len(g.accounts)
	return g.writeCSV(MasterDataDir+"/accounts.csv", accountHeader, rows)
}

// accountsFor opens one to three accounts of distinct types.
func (g *Generator) accountsFor(c *Customer) []Account {
	n := 1 + g.rnd.weighted([]float64{50, 35, 15})
	types := sample(g.rnd, accountTypes, n)
	sort.SliceStable(types, func(i, j int) bool { return typeRank(types[i]) < typeRank(types[j]) })

	out := make([]Account, 0, n)
	for i, t := range types {
		status := "ACTIVE"
		if g.rnd.chance(0.25) {
			status = "DORMANT"
		}
		out = append(out, Account{
			ID:         fmt.Sprintf("%s_%s_%02d", c.ID, t, i+1),
			Type:       t,
			Currency:   g.accountCurrency(t),
			CustomerID: c.ID,
			Status:     status,
		})
	}
	return out
}

// accountCurrency favours the first configured currency, more strongly for
// retail account types.
func (g *Generator) accountCurrency(accountType string) string {
	base := []float64{40, 20, 20, 10, 10}
	if accountType == AccountChecking || accountType == AccountSavings {
		base = []float64{70, 10, 10, 5, 5}
	}
	weights := make([]float64, len(g.cfg.Currencies))
	for i := range weights {
		if i < len(base) {
			weights[i] = base[i]
		} else {
			weights[i] = 5
		}
	}
	return pickWeighted(g.rnd, g.cfg.Currencies, weights)
}

func typeRank(t string) int {
	for i, at := range accountTypes {
		if at == t {
			return i
		}
	}
	return len(accountTypes)
}

// accountsOf returns the accounts held by customerID, optionally of one type.
func (g *Generator) accountsOf(customerID, accountType string) []Account {
	var out []Account
	for _, a := range g.held[customerID] {
		if accountType == "" || a.Type == accountType {
			out = append(out, a)
		}
	}
	return out
}
