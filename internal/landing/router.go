package landing

import (
	"path"
	"regexp"
)

// Route sends a family of generated files to a RAW stage and the task that
// loads them.
type Route struct {
	Domain  string
	Stage   string
	Task    string
	Pattern *regexp.Regexp
}

// Router maps generated files to their landing stage.
type Router struct {
	routes []Route
}

// DefaultRoutes covers every file family written by the generator.
var DefaultRoutes = []Route{
	{"CRM", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS",
		regexp.MustCompile(`^(customers\.csv|customer_updates_[0-9-]+\.csv)$`)},
	{"CRM", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_ADDRESSES",
		regexp.MustCompile(`^customer_addresses(_[0-9-]+)?\.csv$`)},
	{"CRM", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_EXPOSED_PERSON",
		regexp.MustCompile(`^pep_data.*\.csv$`)},
	{"ACC", "CRM_RAW_001.ACCI_RAW_STAGE", "CRM_RAW_001.ACCI_RAW_TA_LOAD_ACCOUNTS",
		regexp.MustCompile(`^accounts.*\.csv$`)},
	{"REF", "REF_RAW_001.FXRI_RAW_STAGE", "REF_RAW_001.FXRI_RAW_TA_LOAD_FX_RATES",
		regexp.MustCompile(`^fx_rates.*\.csv$`)},
	{"PAY", "PAY_RAW_001.PAYI_RAW_STAGE", "PAY_RAW_001.PAYI_RAW_TA_LOAD_TRANSACTIONS",
		regexp.MustCompile(`^pay_transactions_[0-9-]+\.csv$`)},
	{"EQT", "EQT_RAW_001.EQTI_RAW_STAGE", "EQT_RAW_001.EQTI_RAW_TA_LOAD_TRADES",
		regexp.MustCompile(`^trades_[0-9-]+\.csv$`)},
	{"FII", "FII_RAW_001.FIII_RAW_STAGE", "FII_RAW_001.FIII_RAW_TA_LOAD_TRADES",
		regexp.MustCompile(`^fixed_income_trades_[0-9-]+\.csv$`)},
	{"CMD", "CMD_RAW_001.CMDI_RAW_STAGE", "CMD_RAW_001.CMDI_RAW_TA_LOAD_TRADES",
		regexp.MustCompile(`^commodity_trades_[0-9-]+\.csv$`)},
	{"ICG", "ICG_RAW_001.ICGI_RAW_SWIFT_STAGE", "ICG_RAW_001.ICGI_RAW_TA_LOAD_SWIFT_MESSAGES",
		regexp.MustCompile(`^swift_.+\.xml$`)},
}

// NewRouter returns a router over routes, or DefaultRoutes when none given.
func NewRouter(routes ...Route) *Router {
	if len(routes) == 0 {
		routes = DefaultRoutes
	}
	return &Router{routes: routes}
}

// Match finds the route for a slash-separated key. Only the base name is
// matched so the generator's directory layout is free to change.
func (r *Router) Match(key string) (Route, bool) {
	name := path.Base(key)
	for _, rt := range r.routes {
		if rt.Pattern.MatchString(name) {
			return rt, true
		}
	}
	return Route{}, false
}

// Routes returns the configured routes in order.
func (r *Router) Routes() []Route {
	return r.routes
}
