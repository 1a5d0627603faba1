package generator

import (
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ISO 20022 namespaces of the generated messages.
const (
	Pacs008Namespace = "urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08"
	Pacs002Namespace = "urn:iso:std:iso:20022:tech:xsd:pacs.002.001.10"

	swiftCurrency   = "EUR"
	swiftStatusAccp = "ACCP"
)

var bicsByCountry = map[string][]string{
	"DE": {"DEUTDEFF", "COBADEFF", "DRESDEFF", "HYVEDEMM"},
	"CH": {"UBSWCHZH", "CRESCHZZ", "ZKBKCHZZ", "RAIFCH22"},
	"NO": {"DNBANOKK", "NDEANOKK", "SHEDNOKK"},
	"IT": {"UNCRITMM", "BCITITMM", "BPMOIT22"},
	"GB": {"BARCGB22", "HBUKGB4B", "LOYDGB2L", "NWBKGB2L"},
	"NL": {"INGBNL2A", "ABNANL2A", "RABONL2U"},
	"ES": {"BSCHESMM", "BBVAESMM", "CAIXESBB"},
	"IE": {"AIBKIE2D", "BOFIIE2D"},
	"HU": {"OTPVHUHB", "GIBAHUHB"},
	"EE": {"HABAEE2X", "EEUHEE2X"},
	"FR": {"BNPAFRPP", "SOGEFRPP", "CRLYFRPP", "AGRIFRPP"},
	"AT": {"RZBAATWW", "BKAUATWW", "GIBAATWW"},
	"BE": {"KREDBEBB", "GEBABEBB", "BBRUBEBB"},
	"LU": {"BCEELULL", "BGLLLULL"},
	"PT": {"CGDIPTPL", "BCOMPTPL"},
	"FI": {"NDEAFIHH", "OKOYFIHH"},
	"SE": {"ESSESESS", "HANDSESS", "SWEDSESS"},
	"DK": {"DABADKKK", "NDEADKKK"},
}

// bbanLayout is the bank code and account number length per country.
var bbanLayout = map[string][]int{
	"DE": {8, 10},
	"FR": {5, 5, 11, 2},
	"NO": {4, 7},
	"PL": {8, 16},
}

var defaultBBAN = []int{4, 10}

var remittanceTemplates = []string{
	"Invoice SWIFT-2025-%06d",
	"Payment for services INV-%06d",
	"Contract settlement CTR-%06d",
	"Trade finance TF-%06d",
	"Consulting fees CF-%06d",
	"Equipment purchase EQ-%06d",
	"Licence fee LIC-%06d",
	"Freight charges FRT-%06d",
	"Commission payment COM-%06d",
	"Dividend distribution DIV-%06d",
	"Loan repayment LN-%06d",
	"Insurance premium INS-%06d",
	"Software subscription SUB-%06d",
	"Rental payment RNT-%06d",
	"Supplier payment SUP-%06d",
	"Project milestone PRJ-%06d",
	"Maintenance fee MNT-%06d",
	"Royalty payment ROY-%06d",
	"Advance payment ADV-%06d",
	"Tax refund TAX-%06d",
}

// creditorCountries are the beneficiary locations of outgoing transfers.
var creditorCountries = []string{"DE", "CH", "NO", "IT", "GB", "NL", "ES", "IE", "HU", "EE", "FR", "AT", "BE", "LU", "PT", "FI", "SE", "DK"}

var creditorTowns = map[string][]string{
	"DE": {"Frankfurt", "Berlin", "Munich"},
	"CH": {"Zurich", "Geneva", "Basel"},
	"NO": {"Oslo", "Bergen"},
	"IT": {"Milan", "Rome"},
	"GB": {"London", "Manchester"},
	"NL": {"Amsterdam", "Rotterdam"},
	"ES": {"Madrid", "Barcelona"},
	"IE": {"Dublin", "Cork"},
	"HU": {"Budapest"},
	"EE": {"Tallinn"},
	"FR": {"Paris", "Lyon"},
	"AT": {"Vienna", "Graz"},
	"BE": {"Brussels", "Antwerp"},
	"LU": {"Luxembourg"},
	"PT": {"Lisbon", "Porto"},
	"FI": {"Helsinki", "Espoo"},
	"SE": {"Stockholm", "Gothenburg"},
	"DK": {"Copenhagen", "Aarhus"},
}

// pacs.008 customer credit transfer.
type creditTransferDocument struct {
	XMLName  xml.Name       `xml:"Document"`
	Xmlns    string         `xml:"xmlns,attr"`
	Transfer creditTransfer `xml:"FIToFICstmrCdtTrf"`
}

type creditTransfer struct {
	Header groupHeader      `xml:"GrpHdr"`
	Tx     creditTransferTx `xml:"CdtTrfTxInf"`
}

type groupHeader struct {
	MsgID      string          `xml:"MsgId"`
	Created    string          `xml:"CreDtTm"`
	TxCount    int             `xml:"NbOfTxs,omitempty"`
	Settlement *settlementInfo `xml:"SttlmInf,omitempty"`
}

type settlementInfo struct {
	Method         string `xml:"SttlmMtd"`
	ClearingSystem struct {
		Code string `xml:"Cd"`
	} `xml:"ClrSys"`
}

type creditTransferTx struct {
	PaymentID struct {
		InstrID    string `xml:"InstrId"`
		EndToEndID string `xml:"EndToEndId"`
		TxID       string `xml:"TxId"`
	} `xml:"PmtId"`
	Amount          activeAmount     `xml:"IntrBkSttlmAmt"`
	SettlementDate  string           `xml:"IntrBkSttlmDt"`
	ChargeBearer    string           `xml:"ChrgBr"`
	InstructingAgt  agent            `xml:"InstgAgt"`
	InstructedAgt   agent            `xml:"InstdAgt"`
	Debtor          party            `xml:"Dbtr"`
	DebtorAccount   cashAccount      `xml:"DbtrAcct"`
	DebtorAgent     agent            `xml:"DbtrAgt"`
	CreditorAgent   agent            `xml:"CdtrAgt"`
	Creditor        party            `xml:"Cdtr"`
	CreditorAccount cashAccount      `xml:"CdtrAcct"`
	Remittance      remittanceDetail `xml:"RmtInf"`
}

type activeAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type agent struct {
	BIC string `xml:"FinInstnId>BICFI"`
}

type party struct {
	Name    string `xml:"Nm"`
	Town    string `xml:"PstlAdr>TwnNm"`
	Country string `xml:"PstlAdr>Ctry"`
}

type cashAccount struct {
	IBAN string `xml:"Id>IBAN"`
}

type remittanceDetail struct {
	Unstructured string `xml:"Ustrd"`
}

// pacs.002 payment status report.
type statusReportDocument struct {
	XMLName xml.Name     `xml:"Document"`
	Xmlns   string       `xml:"xmlns,attr"`
	Report  statusReport `xml:"FIToFIPmtStsRpt"`
}

type statusReport struct {
	Header   groupHeader `xml:"GrpHdr"`
	Original struct {
		MsgID   string `xml:"OrgnlMsgId"`
		MsgName string `xml:"OrgnlMsgNmId"`
		Status  string `xml:"GrpSts"`
	} `xml:"OrgnlGrpInfAndSts"`
	Tx txStatus `xml:"TxInfAndSts"`
}

type txStatus struct {
	StatusID       string `xml:"StsId"`
	OrigInstrID    string `xml:"OrgnlInstrId"`
	OrigEndToEndID string `xml:"OrgnlEndToEndId"`
	OrigTxID       string `xml:"OrgnlTxId"`
	Status         string `xml:"TxSts"`
	ReasonCode     string `xml:"StsRsnInf>Rsn>Cd"`
	AcceptedAt     string `xml:"AccptncDtTm"`
	InstructingAgt agent  `xml:"InstgAgt"`
	InstructedAgt  agent  `xml:"InstdAgt"`
}

// transfer is one pacs.008 instruction with its status report.
type transfer struct {
	CustomerID  string
	Batch       int
	MessageID   string
	EndToEndID  string
	Created     time.Time
	Accepted    time.Time
	Amount      float64
	DebtorBIC   string
	CreditorBIC string
	DebtorIBAN  string
	Creditor    party
	CreditorAcc string
	Remittance  string
}

func (g *Generator) writeSwiftMessages() error {
	selected := g.swiftCustomers()
	counts := g.swiftMessageCounts(len(selected))

	batch := 0
	for i, c := range selected {
		for j := 0; j < counts[i]; j++ {
			batch++
			t := g.swiftTransfer(c, batch)
			if err := g.writeTransfer(t, c); err != nil {
				return err
			}
			g.summary.SwiftMessages += 2
		}
		if counts[i] > 0 {
			g.summary.SwiftCustomers++
		}
	}
	return nil
}

// swiftCustomers are anomalous customers first, then a sample of the rest,
// SwiftPercentage percent of the base in total.
func (g *Generator) swiftCustomers() []*Customer {
	n := int(float64(len(g.customers)) * g.cfg.SwiftPercentage / 100)
	if n <= 0 {
		return nil
	}
	var anomalous, normal []*Customer
	for _, c := range g.customers {
		if c.HasAnomaly {
			anomalous = append(anomalous, c)
		} else {
			normal = append(normal, c)
		}
	}
	if len(anomalous) >= n {
		return anomalous[:n]
	}
	return append(anomalous, sample(g.rnd, normal, n-len(anomalous))...)
}

// swiftMessageCounts draws per-customer message counts and nudges them
// toward SwiftAvgMessages per customer.
func (g *Generator) swiftMessageCounts(customers int) []int {
	counts := make([]int, customers)
	total := 0
	for i := range counts {
		switch g.rnd.weighted([]float64{60, 20, 15, 5}) {
		case 0:
			counts[i] = 1
		case 1:
			counts[i] = 2
		case 2:
			counts[i] = 0
		default:
			counts[i] = g.rnd.between(3, 5)
		}
		total += counts[i]
	}
	if customers == 0 {
		return counts
	}
	target := int(float64(customers) * g.cfg.SwiftAvgMessages)
	for total < target {
		counts[g.rnd.IntN(customers)]++
		total++
	}
	for tries := 0; total > target && tries < 100*customers; tries++ {
		i := g.rnd.IntN(customers)
		if counts[i] > 1 {
			counts[i]--
			total--
		}
	}
	return counts
}

func (g *Generator) swiftTransfer(c *Customer, batch int) transfer {
	r := g.rnd
	span := int(g.end.Sub(g.start).Seconds())
	created := g.start.Add(time.Duration(r.between(0, span)) * time.Second)
	if created.Before(c.Onboarding) {
		created = c.Onboarding.Add(time.Duration(r.between(3600, 30*24*3600)) * time.Second)
	}

	debtorCountry := regions[c.Country].iso
	if _, ok := bicsByCountry[debtorCountry]; !ok {
		debtorCountry = "DE"
	}
	debtorBIC := pick(r, bicsByCountry[debtorCountry])
	creditorCountry := pick(r, creditorCountries)
	creditorBIC := pick(r, bicsByCountry[creditorCountry])

	creditorName := r.fake.Company()
	if r.chance(0.4) {
		creditorName = strings.ToUpper(r.fake.FirstName() + " " + r.fake.LastName())
	}

	day := created.Format("20060102")
	return transfer{
		CustomerID:  c.ID,
		Batch:       batch,
		MessageID:   fmt.Sprintf("%s-%s-%03d", day, debtorBIC, r.between(1, 999)),
		EndToEndID:  fmt.Sprintf("%s-%s-TXN-%03d", day, debtorBIC, r.between(1, 999)) + "-" + r.hexID(6),
		Created:     created,
		Accepted:    created.Add(time.Duration(r.between(1, 45)) * time.Minute),
		Amount:      g.swiftAmount(c),
		DebtorBIC:   debtorBIC,
		CreditorBIC: creditorBIC,
		DebtorIBAN:  g.iban(debtorCountry),
		Creditor: party{
			Name:    creditorName,
			Town:    pick(r, creditorTowns[creditorCountry]),
			Country: creditorCountry,
		},
		CreditorAcc: g.iban(creditorCountry),
		Remittance:  fmt.Sprintf(pick(r, remittanceTemplates), r.between(1, 999999)) + " - Customer: " + c.ID,
	}
}

// swiftAmount is skewed high for anomalous customers.
func (g *Generator) swiftAmount(c *Customer) float64 {
	r := g.rnd
	var amount int
	switch {
	case c.HasAnomaly && r.chance(0.4):
		amount = r.between(50000, 500000)
	case c.HasAnomaly:
		amount = r.between(10000, 100000)
	case r.chance(0.5):
		amount = r.between(100, 10000)
	case r.chance(0.8):
		amount = r.between(10000, 100000)
	default:
		amount = r.between(100000, 1000000)
	}
	return float64(amount) + float64(r.between(0, 99))/100
}

func (g *Generator) writeTransfer(t transfer, c *Customer) error {
	town := c.Country
	if a, ok := g.currentAddress(c.ID); ok {
		town = a.City
	}

	var instr creditTransferDocument
	instr.Xmlns = Pacs008Namespace
	hdr := &instr.Transfer.Header
	hdr.MsgID = t.MessageID
	hdr.Created = t.Created.Format(isoLayout)
	hdr.TxCount = 1
	hdr.Settlement = &settlementInfo{Method: "CLRG"}
	hdr.Settlement.ClearingSystem.Code = "TGT"

	tx := &instr.Transfer.Tx
	tx.PaymentID.InstrID = t.MessageID
	tx.PaymentID.EndToEndID = t.EndToEndID
	tx.PaymentID.TxID = t.EndToEndID
	tx.Amount = activeAmount{Currency: swiftCurrency, Value: fixed(t.Amount, 2)}
	tx.SettlementDate = t.Created.Format(dateLayout)
	tx.ChargeBearer = "SHAR"
	tx.InstructingAgt = agent{BIC: t.DebtorBIC}
	tx.InstructedAgt = agent{BIC: t.CreditorBIC}
	tx.Debtor = party{Name: strings.ToUpper(c.FullName()), Town: town, Country: t.DebtorIBAN[:2]}
	tx.DebtorAccount = cashAccount{IBAN: t.DebtorIBAN}
	tx.DebtorAgent = agent{BIC: t.DebtorBIC}
	tx.CreditorAgent = agent{BIC: t.CreditorBIC}
	tx.Creditor = t.Creditor
	tx.CreditorAccount = cashAccount{IBAN: t.CreditorAcc}
	tx.Remittance = remittanceDetail{Unstructured: t.Remittance}

	var status statusReportDocument
	status.Xmlns = Pacs002Namespace
	rpt := &status.Report
	rpt.Header.MsgID = fmt.Sprintf("%s-%s-STS-%03d", t.Accepted.Format("20060102"), t.CreditorBIC, t.Batch%1000)
	rpt.Header.Created = t.Accepted.Format(isoLayout)
	rpt.Original.MsgID = t.MessageID
	rpt.Original.MsgName = "pacs.008.001.08"
	rpt.Original.Status = swiftStatusAccp
	rpt.Tx = txStatus{
		StatusID:       rpt.Header.MsgID,
		OrigInstrID:    t.MessageID,
		OrigEndToEndID: t.EndToEndID,
		OrigTxID:       t.EndToEndID,
		Status:         swiftStatusAccp,
		ReasonCode:     "G000",
		AcceptedAt:     t.Accepted.Format(isoLayout),
		InstructingAgt: agent{BIC: t.CreditorBIC},
		InstructedAgt:  agent{BIC: t.DebtorBIC},
	}

	base := fmt.Sprintf("%s/swift_%s_%06d", SwiftDir, t.CustomerID, t.Batch)
	if err := g.writeXML(base+"_pacs008.xml", instr); err != nil {
		return err
	}
	return g.writeXML(base+"_pacs002.xml", status)
}

func (g *Generator) writeXML(rel string, doc any) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return g.writeFile(rel, append([]byte(xml.Header), append(data, '\n')...))
}

// currentAddress is the newest address row for a customer.
func (g *Generator) currentAddress(customerID string) (Address, bool) {
	var latest Address
	found := false
	for _, a := range g.addresses {
		if a.CustomerID == customerID && (!found || a.InsertedAt.After(latest.InsertedAt)) {
			latest, found = a, true
		}
	}
	return latest, found
}

// iban builds an IBAN with valid ISO 7064 mod 97 check digits.
func (g *Generator) iban(country string) string {
	layout, ok := bbanLayout[country]
	if !ok {
		layout = defaultBBAN
	}
	var bban strings.Builder
	for _, n := range layout {
		bban.WriteString(g.rnd.digits(n))
	}
	return country + ibanCheckDigits(country, bban.String()) + bban.String()
}

func ibanCheckDigits(country, bban string) string {
	var numeric strings.Builder
	for _, ch := range strings.ToUpper(bban + country + "00") {
		if ch >= 'A' && ch <= 'Z' {
			fmt.Fprintf(&numeric, "%d", ch-'A'+10)
		} else {
			numeric.WriteRune(ch)
		}
	}
	n, _ := new(big.Int).SetString(numeric.String(), 10)
	mod := new(big.Int).Mod(n, big.NewInt(97)).Int64()
	return fmt.Sprintf("%02d", 98-mod)
}
