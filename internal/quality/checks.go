// Package quality runs data-quality assertions against a loaded warehouse.
// Each check is a query returning the number of violating rows.
package quality

import (
	"fmt"
	"sort"
	"strings"

	"snowbank/pkg/errors"
)

// Severity decides whether a failed check fails the run.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Check is one data-quality assertion.
type Check struct {
	ID          string
	Domain      string
	Description string
	Severity    Severity
	// Query returns a single count of violating rows.
	Query string
}

// DefaultTolerance is the absolute tolerance for portfolio reconciliation.
const DefaultTolerance = 0.01

// Builtin returns the shipped checks. tolerance <= 0 uses DefaultTolerance.
func Builtin(tolerance float64) []Check {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	tol := fmt.Sprintf("%g", tolerance)

	return []Check{
		{
			ID:          "fx_bid_mid_ask",
			Domain:      "REF",
			Description: "bid_rate <= mid_rate <= ask_rate for every FX rate",
			Severity:    SeverityError,
			Query: `SELECT COUNT(*) FROM REF_RAW_001.FXRI_RAW_TB_FX_RATES
WHERE NOT (BID_RATE <= MID_RATE AND MID_RATE <= ASK_RATE)`,
		},
		{
			ID:          "crm_customer_current",
			Domain:      "CRM",
			Description: "latest customer version appears exactly once in the current view",
			Severity:    SeverityError,
			Query: currentVersionQuery("CRM_RAW_001.CRMI_RAW_TB_CUSTOMER",
				"CRM_AGG_001.CRMA_AGG_DT_CUSTOMER_CURRENT"),
		},
		{
			ID:          "crm_address_current",
			Domain:      "CRM",
			Description: "latest address version appears exactly once in the current view",
			Severity:    SeverityError,
			Query: currentVersionQuery("CRM_RAW_001.CRMI_RAW_TB_ADDRESSES",
				"CRM_AGG_001.CRMA_AGG_DT_ADDRESSES_CURRENT"),
		},
		{
			ID:          "icg_status_matched",
			Domain:      "ICG",
			Description: "every pacs.002 matches a pacs.008 or is reported as ORPHAN_STATUS",
			Severity:    SeverityError,
			Query: `SELECT COUNT(*) FROM ICG_AGG_001.ICGA_AGG_DT_SWIFT_PACS002 s
LEFT JOIN ICG_AGG_001.ICGA_AGG_DT_SWIFT_PACS008 i
  ON i.END_TO_END_ID = s.ORIGINAL_END_TO_END_ID
LEFT JOIN ICG_AGG_001.ICGA_AGG_DT_SWIFT_PAYMENT_LIFECYCLE l
  ON l.END_TO_END_ID = s.ORIGINAL_END_TO_END_ID AND l.LIFECYCLE_STATUS = 'ORPHAN_STATUS'
WHERE i.END_TO_END_ID IS NULL AND l.END_TO_END_ID IS NULL`,
		},
		{
			ID:          "eqt_position_quantity",
			Domain:      "EQT",
			Description: "net bought minus sold quantity matches the position per account and symbol",
			Severity:    SeverityError,
			Query: `WITH t AS (
    SELECT ACCOUNT_ID, SYMBOL, SUM(IFF(SIDE = '1', QUANTITY, -QUANTITY)) AS QTY
    FROM EQT_RAW_001.EQTI_RAW_TB_TRADES GROUP BY ACCOUNT_ID, SYMBOL
), p AS (
    SELECT ACCOUNT_ID, SYMBOL, SUM(NET_QUANTITY) AS QTY
    FROM EQT_AGG_001.EQTA_AGG_DT_PORTFOLIO_POSITIONS GROUP BY ACCOUNT_ID, SYMBOL
)
SELECT COUNT(*) FROM t FULL OUTER JOIN p
  ON p.ACCOUNT_ID = t.ACCOUNT_ID AND p.SYMBOL = t.SYMBOL
WHERE ABS(COALESCE(t.QTY, 0) - COALESCE(p.QTY, 0)) > ` + tol,
		},
		{
			ID:          "eqt_position_amount",
			Domain:      "EQT",
			Description: "BUY minus SELL base gross amount matches the position total per account",
			Severity:    SeverityError,
			Query: `WITH t AS (
    SELECT ACCOUNT_ID,
           SUM(IFF(SIDE = '1', ABS(BASE_GROSS_AMOUNT), -ABS(BASE_GROSS_AMOUNT))) AS AMOUNT
    FROM EQT_RAW_001.EQTI_RAW_TB_TRADES GROUP BY ACCOUNT_ID
), p AS (
    SELECT ACCOUNT_ID, SUM(TOTAL_BASE_GROSS_AMOUNT) AS AMOUNT
    FROM EQT_AGG_001.EQTA_AGG_DT_PORTFOLIO_POSITIONS GROUP BY ACCOUNT_ID
)
SELECT COUNT(*) FROM t FULL OUTER JOIN p ON p.ACCOUNT_ID = t.ACCOUNT_ID
WHERE ABS(COALESCE(t.AMOUNT, 0) - COALESCE(p.AMOUNT, 0)) > ` + tol,
		},
		{
			ID:          "eqt_quantity_positive",
			Domain:      "EQT",
			Description: "equity trade quantity is positive",
			Severity:    SeverityWarning,
			Query:       `SELECT COUNT(*) FROM EQT_RAW_001.EQTI_RAW_TB_TRADES WHERE QUANTITY <= 0`,
		},
		{
			ID:          "fx_mid_positive",
			Domain:      "REF",
			Description: "FX mid rate is positive",
			Severity:    SeverityWarning,
			Query:       `SELECT COUNT(*) FROM REF_RAW_001.FXRI_RAW_TB_FX_RATES WHERE MID_RATE <= 0`,
		},
		settlementCheck("eqt", "EQT", "EQT_RAW_001.EQTI_RAW_TB_TRADES"),
		settlementCheck("fii", "FII", "FII_RAW_001.FIII_RAW_TB_TRADES"),
		settlementCheck("cmd", "CMD", "CMD_RAW_001.CMDI_RAW_TB_TRADES"),
		{
			ID:          "pay_value_after_booking",
			Domain:      "PAY",
			Description: "payment value date is on or after the booking date",
			Severity:    SeverityWarning,
			Query: `SELECT COUNT(*) FROM PAY_RAW_001.PAYI_RAW_TB_TRANSACTIONS
WHERE VALUE_DATE < BOOKING_DATE::DATE`,
		},
		{
			ID:          "acc_customer_exists",
			Domain:      "ACC",
			Description: "every account belongs to a known customer",
			Severity:    SeverityWarning,
			Query: `SELECT COUNT(*) FROM CRM_RAW_001.ACCI_RAW_TB_ACCOUNTS a
LEFT JOIN (SELECT DISTINCT CUSTOMER_ID FROM CRM_RAW_001.CRMI_RAW_TB_CUSTOMER) c
  ON c.CUSTOMER_ID = a.CUSTOMER_ID
WHERE c.CUSTOMER_ID IS NULL`,
		},
		{
			ID:          "pay_unique_transaction_id",
			Domain:      "PAY",
			Description: "transaction ids are unique",
			Severity:    SeverityWarning,
			Query: `SELECT COUNT(*) FROM (
    SELECT TRANSACTION_ID FROM PAY_RAW_001.PAYI_RAW_TB_TRANSACTIONS
    GROUP BY TRANSACTION_ID HAVING COUNT(*) > 1
)`,
		},
	}
}

func currentVersionQuery(raw, current string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM (
    SELECT CUSTOMER_ID, MAX(INSERT_TIMESTAMP_UTC) AS LATEST FROM %s GROUP BY CUSTOMER_ID
) r
LEFT JOIN (
    SELECT CUSTOMER_ID, INSERT_TIMESTAMP_UTC, COUNT(*) OVER (PARTITION BY CUSTOMER_ID) AS N FROM %s
) c ON c.CUSTOMER_ID = r.CUSTOMER_ID AND c.INSERT_TIMESTAMP_UTC = r.LATEST
WHERE c.CUSTOMER_ID IS NULL OR c.N <> 1`, raw, current)
}

func settlementCheck(prefix, domain, table string) Check {
	return Check{
		ID:          prefix + "_settlement_after_trade",
		Domain:      domain,
		Description: "settlement date is on or after the trade date",
		Severity:    SeverityWarning,
		Query:       "SELECT COUNT(*) FROM " + table + " WHERE SETTLEMENT_DATE < TRADE_DATE::DATE",
	}
}

// Select keeps the checks named in ids, in their original order. An empty
// ids list keeps everything.
func Select(checks []Check, ids []string) ([]Check, error) {
	if len(ids) == 0 {
		return checks, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[strings.ToLower(strings.TrimSpace(id))] = true
	}

	var out []Check
	for _, c := range checks {
		if wanted[c.ID] {
			out = append(out, c)
			delete(wanted, c.ID)
		}
	}

	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for id := range wanted {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "unknown quality check(s): %s", strings.Join(unknown, ", ")).
			WithSuggestions("Run 'snowbank check --list' to see the available checks")
	}
	return out, nil
}
