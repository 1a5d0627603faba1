package generator

import (
	"fmt"
	"strings"
	"time"
)

// PEP categories.
const (
	PEPDomestic         = "DOMESTIC"
	PEPForeign          = "FOREIGN"
	PEPInternationalOrg = "INTERNATIONAL_ORG"
	PEPFamilyMember     = "FAMILY_MEMBER"
	PEPCloseAssociate   = "CLOSE_ASSOCIATE"
)

var pepCategories = []string{PEPDomestic, PEPForeign, PEPInternationalOrg, PEPFamilyMember, PEPCloseAssociate}

var pepCountries = []string{
	"Germany", "France", "United Kingdom", "Italy", "Spain", "Netherlands",
	"Belgium", "Austria", "Switzerland", "Sweden", "Norway", "Denmark",
}

var pepCountryCodes = map[string]string{
	"Germany": "de", "France": "fr", "United Kingdom": "uk", "Italy": "it",
	"Spain": "es", "Netherlands": "nl", "Belgium": "be", "Austria": "at",
	"Switzerland": "ch", "Sweden": "se", "Norway": "no", "Denmark": "dk",
}

var pepPositions = map[string][]string{
	PEPDomestic: {
		"Prime Minister", "President", "Minister of Finance", "Minister of Defense",
		"Minister of Interior", "Minister of Justice", "Minister of Foreign Affairs",
		"Deputy Prime Minister", "State Secretary", "Parliamentary Secretary",
		"Member of Parliament", "Senator", "Regional Governor", "Mayor",
		"Supreme Court Judge", "Constitutional Court Judge", "Central Bank Governor",
		"Deputy Central Bank Governor", "Financial Regulator", "Tax Authority Director",
	},
	PEPForeign: {
		"Ambassador", "Consul General", "Trade Representative", "Cultural Attaché",
		"Military Attaché", "Economic Counselor", "Deputy Ambassador",
	},
	PEPInternationalOrg: {
		"UN Secretary-General", "EU Commissioner", "ECB Executive Board Member",
		"IMF Managing Director", "World Bank President", "NATO Secretary General",
		"OECD Secretary-General", "WHO Director-General", "UNESCO Director-General",
		"European Parliament President", "Council of Europe President",
	},
	PEPFamilyMember: {
		"Spouse of Prime Minister", "Child of President", "Parent of Minister",
		"Sibling of Governor", "Spouse of Ambassador", "Child of Judge",
	},
	PEPCloseAssociate: {
		"Business Partner", "Close Friend", "Financial Advisor", "Legal Counsel",
		"Campaign Manager", "Chief of Staff", "Personal Assistant",
	},
}

var pepOrganizations = map[string][]string{
	"Germany":        {"Bundestag", "Bundesrat", "Federal Government", "Bundesbank", "BaFin"},
	"France":         {"Assemblée Nationale", "Sénat", "Government of France", "Banque de France", "AMF"},
	"United Kingdom": {"House of Commons", "House of Lords", "HM Government", "Bank of England", "FCA"},
	"Italy":          {"Camera dei Deputati", "Senato", "Government of Italy", "Banca d'Italia", "CONSOB"},
	"Spain":          {"Congreso", "Senado", "Government of Spain", "Banco de España", "CNMV"},
	"Netherlands":    {"Tweede Kamer", "Eerste Kamer", "Government of Netherlands", "DNB", "AFM"},
	"Belgium":        {"Chamber of Representatives", "Senate", "Government of Belgium", "NBB", "FSMA"},
	"Austria":        {"Nationalrat", "Bundesrat", "Government of Austria", "OeNB", "FMA"},
	"Switzerland":    {"National Council", "Council of States", "Federal Council", "SNB", "FINMA"},
	"Sweden":         {"Riksdag", "Government of Sweden", "Sveriges Riksbank", "Finansinspektionen"},
	"Norway":         {"Storting", "Government of Norway", "Norges Bank", "Finanstilsynet"},
	"Denmark":        {"Folketing", "Government of Denmark", "Danmarks Nationalbank", "Finanstilsynet"},
}

// pepRiskKeywords maps a category to risk levels and the title keywords
// that imply them, checked in order.
var pepRiskKeywords = map[string][]struct {
	level    string
	keywords []string
}{
	PEPDomestic: {
		{"HIGH", []string{"Prime Minister", "President", "Minister"}},
		{"MEDIUM", []string{"Member of Parliament", "Judge"}},
		{"LOW", []string{"Mayor"}},
	},
	PEPForeign: {
		{"MEDIUM", []string{"Ambassador"}},
		{"LOW", []string{"Consul", "Attaché"}},
	},
	PEPInternationalOrg: {
		{"CRITICAL", []string{"Secretary-General", "President", "Managing Director"}},
		{"HIGH", []string{"Commissioner", "Director"}},
	},
	PEPFamilyMember: {
		{"MEDIUM", []string{"Spouse", "Child"}},
		{"LOW", []string{"Parent", "Sibling"}},
	},
	PEPCloseAssociate: {
		{"LOW", []string{"Business Partner", "Advisor"}},
		{"MEDIUM", []string{"Campaign Manager", "Chief of Staff"}},
	},
}

var pepDefaultRisk = map[string]string{
	PEPDomestic:         "MEDIUM",
	PEPForeign:          "LOW",
	PEPInternationalOrg: "HIGH",
	PEPFamilyMember:     "LOW",
	PEPCloseAssociate:   "LOW",
}

// PEPRecord is one row of master_data/pep_data.csv.
type PEPRecord struct {
	ID          string
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Country     string
	Position    string
	Org         string
	Category    string
	Risk        string
	Status      string
	Start       *time.Time
	End         *time.Time
	Link        string
	Created     time.Time
	Updated     time.Time
}

var pepHeader = []string{
	"pep_id", "full_name", "first_name", "last_name", "date_of_birth", "nationality",
	"position_title", "organization", "country", "pep_category", "risk_level", "status",
	"start_date", "end_date", "reference_link", "source", "last_updated", "created_date",
}

func (p PEPRecord) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p PEPRecord) record() []string {
	return []string{
		p.ID, p.FullName(), p.FirstName, p.LastName, optionalDate(p.DateOfBirth), p.Country,
		p.Position, p.Org, p.Country, p.Category, p.Risk, p.Status,
		optionalDate(p.Start), optionalDate(p.End), p.Link,
		"Official " + p.Country + " Government Database",
		p.Updated.Format(dateLayout), p.Created.Format(dateLayout),
	}
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// pepScreeningTarget is the listed name the fuzzy test customer resembles.
var pepScreeningTarget = [2]string{"YURY", "TOPCHEV"}

func (g *Generator) writePEP() error {
	total := g.cfg.PEPRecords
	if total <= 0 {
		return nil
	}

	var pool []*Customer
	for _, c := range g.customers {
		if !strings.HasSuffix(c.ID, "_FUZZY_TEST") {
			pool = append(pool, c)
		}
	}
	matches := sample(g.rnd, pool, max(1, int(float64(total)*0.01)))

	rows := make([][]string, 0, total)
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("PEP_%05d", i+1)
		var rec PEPRecord
		switch {
		case i < len(matches):
			rec = g.pepFromCustomer(id, matches[i])
			g.summary.PEPCustomerMatches++
		case i == total-1 && total > len(matches):
			rec = g.newPEP(id)
			rec.FirstName, rec.LastName = pepScreeningTarget[0], pepScreeningTarget[1]
			rec.Link = pepLink(rec.Country, rec.Category, rec.Org, rec.FullName())
		default:
			rec = g.newPEP(id)
		}
		rows = append(rows, rec.record())
	}
	g.summary.PEPRecords = len(rows)
	return g.writeCSV(MasterDataDir+"/pep_data.csv", pepHeader, rows)
}

func (g *Generator) newPEP(id string) PEPRecord {
	r := g.rnd
	rec := PEPRecord{
		ID:        id,
		FirstName: r.fake.FirstName(),
		LastName:  r.fake.LastName(),
		Country:   pick(r, pepCountries),
		Category:  pick(r, pepCategories),
	}
	if r.chance(0.9) {
		dob := truncateDay(g.now).AddDate(-r.between(25, 85), 0, -r.between(0, 364))
		rec.DateOfBirth = &dob
	}
	g.finishPEP(&rec)
	return rec
}

// pepFromCustomer lists an existing customer under a slightly different
// spelling, mostly as a relative or associate.
func (g *Generator) pepFromCustomer(id string, c *Customer) PEPRecord {
	first, last := g.nameVariation(c.FirstName, c.FamilyName)
	dob := c.DateOfBirth
	rec := PEPRecord{
		ID:          id,
		FirstName:   first,
		LastName:    last,
		DateOfBirth: &dob,
		Country:     pick(g.rnd, pepCountries),
		Category:    pickWeighted(g.rnd, []string{PEPFamilyMember, PEPCloseAssociate, PEPDomestic, PEPForeign}, []float64{40, 30, 20, 10}),
	}
	g.finishPEP(&rec)
	return rec
}

func (g *Generator) finishPEP(rec *PEPRecord) {
	r := g.rnd
	rec.Position = pick(r, pepPositions[rec.Category])
	rec.Org = pick(r, pepOrganizations[rec.Country])
	rec.Risk = pepRisk(rec.Position, rec.Category)
	rec.Status = pickWeighted(r, []string{"ACTIVE", "INACTIVE", "DECEASED"}, []float64{60, 30, 10})
	rec.Start, rec.End = g.pepTenure(rec.Status)
	rec.Link = pepLink(rec.Country, rec.Category, rec.Org, rec.FullName())

	today := truncateDay(g.now)
	rec.Created = g.dateBetween(today.AddDate(-2, 0, 0), today)
	rec.Updated = g.dateBetween(rec.Created, today)
}

func (g *Generator) pepTenure(status string) (*time.Time, *time.Time) {
	today := truncateDay(g.now)
	var start time.Time
	switch status {
	case "ACTIVE":
		start = g.dateBetween(today.AddDate(-10, 0, 0), today.AddDate(-1, 0, 0))
		return &start, nil
	case "INACTIVE":
		start = g.dateBetween(today.AddDate(-20, 0, 0), today.AddDate(-2, 0, 0))
	default:
		start = g.dateBetween(today.AddDate(-30, 0, 0), today.AddDate(-5, 0, 0))
	}
	end := g.dateBetween(start.AddDate(0, 0, 365), today.AddDate(-1, 0, 0))
	return &start, &end
}

// dateBetween returns a day in [from, to]; to before from yields from.
func (g *Generator) dateBetween(from, to time.Time) time.Time {
	span := int(to.Sub(from).Hours() / 24)
	return from.AddDate(0, 0, g.rnd.between(0, span))
}

func pepRisk(position, category string) string {
	title := strings.ToLower(position)
	for _, rule := range pepRiskKeywords[category] {
		for _, kw := range rule.keywords {
			if strings.Contains(title, strings.ToLower(kw)) {
				return rule.level
			}
		}
	}
	if risk, ok := pepDefaultRisk[category]; ok {
		return risk
	}
	return "MEDIUM"
}

func pepLink(country, category, org, name string) string {
	cc, ok := pepCountryCodes[country]
	if !ok {
		cc = "eu"
	}
	slug := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(name), " ", "-"), ".", "")

	switch category {
	case PEPDomestic:
		switch {
		case strings.Contains(org, "Parliament"), strings.Contains(org, "Bundestag"), strings.Contains(org, "Assemblée"):
			return fmt.Sprintf("https://www.parliament.%s/members/%s", cc, slug)
		case strings.Contains(org, "Government"):
			return fmt.Sprintf("https://www.government.%s/officials/%s", cc, slug)
		case strings.Contains(org, "Bank"):
			return fmt.Sprintf("https://www.centralbank.%s/leadership/%s", cc, slug)
		default:
			return fmt.Sprintf("https://www.official-register.%s/pep/%s", cc, slug)
		}
	case PEPForeign:
		return fmt.Sprintf("https://www.diplomatic-corps.%s/staff/%s", cc, slug)
	case PEPInternationalOrg:
		switch {
		case strings.Contains(org, "UN"):
			return "https://www.un.org/leadership/" + slug
		case strings.Contains(org, "EU"), strings.Contains(org, "European"):
			return "https://www.europa.eu/officials/" + slug
		case strings.Contains(org, "ECB"):
			return "https://www.ecb.europa.eu/leadership/" + slug
		default:
			return "https://www.international-org.org/officials/" + slug
		}
	case PEPFamilyMember, PEPCloseAssociate:
		return fmt.Sprintf("https://www.pep-database.%s/associates/%s", cc, slug)
	}
	return fmt.Sprintf("https://www.compliance-database.%s/pep/%s", cc, slug)
}

var (
	nordicFold = strings.NewReplacer("ø", "o", "å", "a", "æ", "ae")
	frenchFold = strings.NewReplacer("é", "e", "è", "e", "ê", "e")
	germanFold = strings.NewReplacer("ü", "u", "ö", "o", "ä", "a")
	singleFold = strings.NewReplacer("tt", "t", "nn", "n", "ll", "l")
)

// nameVariation returns a spelling of the name that differs in one of the
// ways screening engines must tolerate.
func (g *Generator) nameVariation(first, last string) (string, string) {
	edits := []func(string) string{
		nordicFold.Replace,
		frenchFold.Replace,
		germanFold.Replace,
		func(s string) string {
			if len(s) > 3 && !strings.HasSuffix(s, "e") {
				return s + "e"
			}
			return s
		},
		func(s string) string {
			if len(s) > 4 && strings.HasSuffix(s, "e") {
				return s[:len(s)-1]
			}
			return s
		},
		func(s string) string {
			return strings.Replace(strings.ReplaceAll(s, "ph", "f"), "c", "k", 1)
		},
		func(s string) string { return strings.ReplaceAll(s, "van ", "") },
		singleFold.Replace,
		func(s string) string {
			return strings.Replace(strings.Replace(s, "t", "tt", 1), "n", "nn", 1)
		},
	}

	var candidates [][2]string
	for _, edit := range edits {
		if f := edit(first); f != first {
			candidates = append(candidates, [2]string{f, last})
		}
		if l := edit(last); l != last {
			candidates = append(candidates, [2]string{first, l})
		}
	}
	if len(candidates) == 0 {
		if len(first) > 3 {
			return first + "e", last
		}
		return first, last + "e"
	}
	v := pick(g.rnd, candidates)
	return v[0], v[1]
}
