package generator

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Customer is one row of master_data/customers.csv and of the update files.
type Customer struct {
	ID             string
	FirstName      string
	FamilyName     string
	DateOfBirth    time.Time
	Onboarding     time.Time
	Currency       string
	HasAnomaly     bool
	Employer       string
	Position       string
	EmploymentType string
	IncomeRange    string
	AccountTier    string
	Email          string
	Phone          string
	ContactMethod  string
	RiskClass      string
	CreditBand     string
	InsertedAt     time.Time

	// Country of residence; drives SWIFT agent and IBAN selection.
	Country string
}

var customerHeader = []string{
	"customer_id", "first_name", "family_name", "date_of_birth", "onboarding_date",
	"reporting_currency", "has_anomaly", "employer", "position", "employment_type",
	"income_range", "account_tier", "email", "phone", "preferred_contact_method",
	"risk_classification", "credit_score_band", "insert_timestamp_utc",
}

func (c *Customer) record() []string {
	return []string{
		c.ID, c.FirstName, c.FamilyName,
		c.DateOfBirth.Format(dateLayout), c.Onboarding.Format(dateLayout),
		c.Currency, boolString(c.HasAnomaly),
		c.Employer, c.Position, c.EmploymentType, c.IncomeRange, c.AccountTier,
		c.Email, c.Phone, c.ContactMethod, c.RiskClass, c.CreditBand,
		c.InsertedAt.Format(timestampLayout),
	}
}

// FullName is "FIRST FAMILY".
func (c *Customer) FullName() string {
	return c.FirstName + " " + c.FamilyName
}

// Address is one row of the address files; the newest row per customer wins.
type Address struct {
	CustomerID string
	Street     string
	City       string
	State      string
	Zipcode    string
	Country    string
	InsertedAt time.Time
}

var addressHeader = []string{
	"customer_id", "street_address", "city", "state", "zipcode", "country", "insert_timestamp_utc",
}

func (a Address) record() []string {
	return []string{
		a.CustomerID, a.Street, a.City, a.State, a.Zipcode, a.Country,
		a.InsertedAt.Format(timestampLayout),
	}
}

type region struct {
	iso      string
	currency string
	cities   []string
	states   []string
	zip      string // '#' is a digit, '?' a letter
}

var regions = map[string]region{
	"United Kingdom": {"GB", "GBP", []string{"London", "Manchester", "Leeds", "Bristol", "Glasgow"}, []string{"England", "Scotland", "Wales"}, "??# #??"},
	"Germany":        {"DE", "EUR", []string{"Berlin", "Hamburg", "Munich", "Cologne", "Frankfurt"}, []string{"Bayern", "Berlin", "Hessen", "Hamburg"}, "#####"},
	"France":         {"FR", "EUR", []string{"Paris", "Lyon", "Marseille", "Toulouse", "Lille"}, nil, "#####"},
	"Italy":          {"IT", "EUR", []string{"Rome", "Milan", "Naples", "Turin", "Florence"}, []string{"Lazio", "Lombardia", "Campania", "Piemonte"}, "#####"},
	"Spain":          {"ES", "EUR", []string{"Madrid", "Barcelona", "Valencia", "Seville", "Bilbao"}, []string{"Madrid", "Cataluna", "Andalucia", "Valencia"}, "#####"},
	"Netherlands":    {"NL", "EUR", []string{"Amsterdam", "Rotterdam", "Utrecht", "The Hague", "Eindhoven"}, nil, "####"},
	"Portugal":       {"PT", "EUR", []string{"Lisbon", "Porto", "Braga", "Coimbra", "Faro"}, nil, "####-###"},
	"Poland":         {"PL", "PLN", []string{"Warsaw", "Krakow", "Gdansk", "Wroclaw", "Poznan"}, nil, "##-###"},
	"Sweden":         {"SE", "SEK", []string{"Stockholm", "Gothenburg", "Malmo", "Uppsala", "Lund"}, nil, "### ##"},
	"Norway":         {"NO", "NOK", []string{"Oslo", "Bergen", "Trondheim", "Stavanger", "Tromso"}, nil, "####"},
	"Denmark":        {"DK", "DKK", []string{"Copenhagen", "Aarhus", "Odense", "Aalborg", "Esbjerg"}, nil, "####"},
	"Finland":        {"FI", "EUR", []string{"Helsinki", "Espoo", "Tampere", "Turku", "Oulu"}, nil, "#####"},
	"Belgium":        {"BE", "EUR", []string{"Brussels", "Antwerp", "Ghent", "Bruges", "Liege"}, nil, "####"},
	"Austria":        {"AT", "EUR", []string{"Vienna", "Graz", "Linz", "Salzburg", "Innsbruck"}, nil, "####"},
	"Switzerland":    {"CH", "CHF", []string{"Zurich", "Geneva", "Basel", "Bern", "Lausanne"}, nil, "####"},
}

// customerCountries are the residence countries new customers are drawn from.
var customerCountries = []string{
	"United Kingdom", "Germany", "France", "Italy", "Spain", "Netherlands",
	"Portugal", "Poland", "Sweden", "Norway", "Denmark", "Finland",
}

var (
	accountTiers     = []string{"STANDARD", "SILVER", "GOLD", "PLATINUM", "PREMIUM"}
	employmentTypes  = []string{"FULL_TIME", "PART_TIME", "CONTRACT", "SELF_EMPLOYED", "RETIRED"}
	riskClasses      = []string{"LOW", "MEDIUM", "HIGH", "VERY_HIGH"}
	incomeRanges     = []string{"<30K", "30K-50K", "50K-75K", "75K-100K", "100K-150K", ">150K"}
	creditBands      = []string{"POOR", "FAIR", "GOOD", "VERY_GOOD", "EXCELLENT"}
	contactMethods   = []string{"EMAIL", "SMS", "POST", "MOBILE_APP", "PHONE"}
	positions        = []string{"Analyst", "Manager", "Director", "Engineer", "Consultant", "Specialist"}
	anomalyRiskClass = []string{"HIGH", "VERY_HIGH"}
)

// anomalousCount is the number of customers flagged for anomalies.
func anomalousCount(customers int, pct float64) int {
	if pct <= 0 {
		return 0
	}
	n := int(float64(customers) * pct / 100)
	if n < 1 {
		n = 1
	}
	return n
}

func (g *Generator) writeCustomers() error {
	n := g.cfg.Customers
	flagged := map[int]bool{}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for _, i := range sample(g.rnd, indices, anomalousCount(n, g.cfg.AnomalyPercentage)) {
		flagged[i] = true
	}

	for i := 0; i < n; i++ {
		country := pick(g.rnd, customerCountries)
		c := &Customer{
			ID:          fmt.Sprintf("CUST_%05d", i+1),
			FirstName:   g.rnd.fake.FirstName(),
			FamilyName:  g.rnd.fake.LastName(),
			DateOfBirth: g.dateOfBirth(),
			Onboarding:  g.onboardingDate(),
			Currency:    regions[country].currency,
			HasAnomaly:  flagged[i],
			Country:     country,
		}
		g.fillProfile(c)
		g.customers = append(g.customers, c)
		g.addresses = append(g.addresses, g.addressHistory(c, g.newAddress(c.ID, country))...)
	}

	g.addFuzzyTestCustomer()

	rows := make([][]string, 0, len(g.customers))
	for _, c := range g.customers {
		rows = append(rows, c.record())
		if c.HasAnomaly {
			g.summary.AnomalousCustomers = append(g.summary.AnomalousCustomers, c.ID)
		}
	}
	if err := g.writeCSV(MasterDataDir+"/customers.csv", customerHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, a := range g.addresses {
		rows = append(rows, a.record())
	}
	g.summary.Customers = len(g.customers)
	g.summary.Addresses = len(g.addresses)
	return g.writeCSV(MasterDataDir+"/customer_addresses.csv", addressHeader, rows)
}

func (g *Generator) dateOfBirth() time.Time {
	age := g.rnd.between(18, 80)
	return truncateDay(g.now).AddDate(-age, 0, -g.rnd.between(0, 364))
}

// onboardingDate puts 20% of customers inside the period and the rest up to
// three years before it.
func (g *Generator) onboardingDate() time.Time {
	if g.rnd.chance(0.2) {
		return g.start.AddDate(0, 0, g.rnd.between(0, g.cfg.PeriodMonths*30))
	}
	return g.start.AddDate(0, 0, -g.rnd.between(30, 365*3))
}

func (g *Generator) fillProfile(c *Customer) {
	r := g.rnd
	c.Employer = r.fake.Company()
	c.Position = pick(r, positions)
	c.EmploymentType = pickWeighted(r, employmentTypes, []float64{60, 10, 10, 12, 8})
	c.IncomeRange = pick(r, incomeRanges)
	c.AccountTier = pickWeighted(r, accountTiers, []float64{45, 25, 15, 10, 5})
	c.Email = g.email(c)
	c.Phone = r.fake.Phone()
	c.ContactMethod = pick(r, contactMethods)
	c.RiskClass = pickWeighted(r, riskClasses, []float64{55, 30, 12, 3})
	if c.HasAnomaly {
		c.RiskClass = pick(r, anomalyRiskClass)
	}
	c.CreditBand = pick(r, creditBands)
	c.InsertedAt = c.Onboarding.Add(time.Duration(r.between(9*3600, 17*3600)) * time.Second)
}

func (g *Generator) email(c *Customer) string {
	local := strings.ToLower(asciiFold(c.FirstName) + "." + asciiFold(c.FamilyName))
	local = strings.ReplaceAll(local, " ", "")
	return fmt.Sprintf("%s%d@%s", local, g.rnd.between(1, 99), g.rnd.fake.DomainName())
}

func (g *Generator) newAddress(customerID, country string) Address {
	reg := regions[country]
	a := Address{
		CustomerID: customerID,
		Street:     g.rnd.fake.Street(),
		City:       pick(g.rnd, reg.cities),
		Zipcode:    g.numerify(reg.zip),
		Country:    country,
	}
	if len(reg.states) > 0 {
		a.State = pick(g.rnd, reg.states)
	}
	return a
}

func (g *Generator) numerify(pattern string) string {
	var b strings.Builder
	for _, ch := range pattern {
		switch ch {
		case '#':
			b.WriteByte(byte('0' + g.rnd.IntN(10)))
		case '?':
			b.WriteByte(byte('A' + g.rnd.IntN(26)))
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// addressHistory returns the onboarding address and, for one customer in
// five, one to three later moves spread over the time since onboarding.
func (g *Generator) addressHistory(c *Customer, initial Address) []Address {
	initial.InsertedAt = c.Onboarding
	history := []Address{initial}
	if !g.rnd.chance(0.2) {
		return history
	}

	changes := g.rnd.between(1, 3)
	periodDays := int(g.now.Sub(c.Onboarding).Hours() / 24)
	step := periodDays / (changes + 1)
	for i := 0; i < changes; i++ {
		lo := int(math.Max(30, float64(step*(i+1)-60)))
		hi := int(math.Min(float64(periodDays-30), float64(step*(i+2))))
		if lo >= hi {
			continue
		}
		moved := g.newAddress(c.ID, c.Country)
		moved.InsertedAt = c.Onboarding.AddDate(0, 0, g.rnd.between(lo, hi))
		history = append(history, moved)
	}
	return history
}

// addFuzzyTestCustomer adds a customer whose name is one substitution away
// from a PEP entry, for screening tests.
func (g *Generator) addFuzzyTestCustomer() {
	c := &Customer{
		ID:          fmt.Sprintf("CUST_%05d_FUZZY_TEST", g.cfg.Customers+1),
		FirstName:   "YURI",
		FamilyName:  "TOPCHEV",
		DateOfBirth: g.dateOfBirth(),
		Onboarding:  g.onboardingDate(),
		Currency:    "EUR",
		Country:     "Germany",
	}
	g.fillProfile(c)
	g.customers = append(g.customers, c)

	a := g.newAddress(c.ID, "Germany")
	a.InsertedAt = c.Onboarding
	g.addresses = append(g.addresses, a)
}

var foldReplacer = strings.NewReplacer(
	"ä", "a", "á", "a", "à", "a", "â", "a", "å", "a", "ã", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "ø", "o", "õ", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c", "ß", "ss", "ł", "l", "ś", "s", "ż", "z", "ź", "z", "ć", "c", "ń", "n",
	"Ä", "A", "Á", "A", "À", "A", "Å", "A", "É", "E", "È", "E", "Ö", "O", "Ø", "O", "Ó", "O",
	"Ü", "U", "Ú", "U", "Ñ", "N", "Ç", "C", "Ł", "L", "Ś", "S", "Ż", "Z",
)

// asciiFold strips the common European diacritics.
func asciiFold(s string) string {
	return foldReplacer.Replace(s)
}
