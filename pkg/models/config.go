package models

// Config is the on-disk configuration file (~/.snowbank/config.yaml).
type Config struct {
	Snowflake    Snowflake     `yaml:"snowflake"`
	Deployment   Deployment    `yaml:"deployment"`
	Generator    Generator     `yaml:"generator"`
	Landing      Landing       `yaml:"landing"`
	Quality      Quality       `yaml:"quality"`
	Logging      Logging       `yaml:"logging"`
	Environments []Environment `yaml:"environments,omitempty"`
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password,omitempty"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"` // e.g. "30s"
}

// Deployment contains deployment-specific configuration
type Deployment struct {
	SQLDir     string   `yaml:"sql_dir,omitempty"` // external catalog checkout; empty uses the embedded catalog
	Layers     []string `yaml:"layers,omitempty"`  // RAW, AGG, REPORTING, SEMANTIC
	Domains    []string `yaml:"domains,omitempty"` // CRM, ACC, REF, PAY, EQT, FII, CMD, ICG, REP, SEM
	DryRun     bool     `yaml:"dry_run"`
	Force      bool     `yaml:"force"`       // re-apply scripts whose checksum is already recorded
	Timeout    string   `yaml:"timeout"`     // e.g. "30m"
	MaxRetries int      `yaml:"max_retries"` // connection retries
	Confirm    bool     `yaml:"confirm"`     // prompt before applying
	HistoryDir string   `yaml:"history_dir,omitempty"`
}

// Generator controls synthetic data generation.
type Generator struct {
	Customers            int      `yaml:"customers"`
	AnomalyPercentage    float64  `yaml:"anomaly_percentage"`
	PeriodMonths         int      `yaml:"period_months"`
	TransactionsPerMonth float64  `yaml:"transactions_per_month"`
	Currencies           []string `yaml:"currencies"`
	MinAmount            float64  `yaml:"min_amount"`
	MaxAmount            float64  `yaml:"max_amount"`
	StartDate            string   `yaml:"start_date,omitempty"` // YYYY-MM-DD, defaults to now minus period
	OutputDir            string   `yaml:"output_dir"`
	Seed                 uint64   `yaml:"seed"`
	SwiftPercentage      float64  `yaml:"swift_percentage"`
	SwiftAvgMessages     float64  `yaml:"swift_avg_messages"`
	PEPRecords           int      `yaml:"pep_records"`
	AddressUpdateFiles   int      `yaml:"address_update_files"`
	CustomerUpdateFiles  int      `yaml:"customer_update_files"`
	FixedIncomeTrades    int      `yaml:"fixed_income_trades"`
	CommodityTrades      int      `yaml:"commodity_trades"`
	SkipTrades           bool     `yaml:"skip_trades"`
	SkipSwift            bool     `yaml:"skip_swift"`
}

// Landing selects where generated files are uploaded.
type Landing struct {
	Target       string `yaml:"target"` // local, stage, s3, gcs
	LocalDir     string `yaml:"local_dir,omitempty"`
	S3           S3     `yaml:"s3,omitempty"`
	GCS          GCS    `yaml:"gcs,omitempty"`
	ExecuteTasks bool   `yaml:"execute_tasks"`
}

type S3 struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

type GCS struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type Quality struct {
	FailOnViolation bool     `yaml:"fail_on_violation"`
	Checks          []string `yaml:"checks,omitempty"` // empty runs all
	Tolerance       float64  `yaml:"tolerance"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Environment overrides connection settings for a named target (dev, prod).
type Environment struct {
	Name      string `yaml:"name"`
	Account   string `yaml:"account,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	Database  string `yaml:"database,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
	Role      string `yaml:"role,omitempty"`
}

// Defaults returns a configuration with every default filled in.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Snowflake.Database == "" {
		c.Snowflake.Database = "AAA_DEV_SYNTHETIC_BANK"
	}
	if c.Snowflake.Schema == "" {
		c.Snowflake.Schema = "PUBLIC"
	}
	if c.Snowflake.Timeout == "" {
		c.Snowflake.Timeout = "30s"
	}
	if c.Deployment.Timeout == "" {
		c.Deployment.Timeout = "30m"
	}
	if c.Deployment.MaxRetries == 0 {
		c.Deployment.MaxRetries = 3
	}

	g := &c.Generator
	if g.Customers == 0 {
		g.Customers = 10
	}
	if g.AnomalyPercentage == 0 {
		g.AnomalyPercentage = 2.0
	}
	if g.PeriodMonths == 0 {
		g.PeriodMonths = 24
	}
	if g.TransactionsPerMonth == 0 {
		g.TransactionsPerMonth = 3.5
	}
	if len(g.Currencies) == 0 {
		g.Currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD"}
	}
	if g.MinAmount == 0 {
		g.MinAmount = 10
	}
	if g.MaxAmount == 0 {
		g.MaxAmount = 50000
	}
	if g.OutputDir == "" {
		g.OutputDir = "generated_data"
	}
	if g.Seed == 0 {
		g.Seed = 42
	}
	if g.SwiftPercentage == 0 {
		g.SwiftPercentage = 30
	}
	if g.SwiftAvgMessages == 0 {
		g.SwiftAvgMessages = 1.2
	}
	if g.PEPRecords == 0 {
		g.PEPRecords = 50
	}
	if g.AddressUpdateFiles == 0 {
		g.AddressUpdateFiles = 6
	}
	if g.CustomerUpdateFiles == 0 {
		g.CustomerUpdateFiles = 4
	}
	if g.FixedIncomeTrades == 0 {
		g.FixedIncomeTrades = 1000
	}
	if g.CommodityTrades == 0 {
		g.CommodityTrades = 500
	}

	if c.Landing.Target == "" {
		c.Landing.Target = "stage"
	}
	if c.Quality.Tolerance == 0 {
		c.Quality.Tolerance = 0.01
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Environment returns the named environment, or nil.
func (c *Config) Environment(name string) *Environment {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			return &c.Environments[i]
		}
	}
	return nil
}

// ApplyEnvironment overlays the named environment onto the Snowflake section.
func (c *Config) ApplyEnvironment(name string) bool {
	env := c.Environment(name)
	if env == nil {
		return false
	}
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&c.Snowflake.Account, env.Account)
	overlay(&c.Snowflake.Username, env.Username)
	overlay(&c.Snowflake.Password, env.Password)
	overlay(&c.Snowflake.Database, env.Database)
	overlay(&c.Snowflake.Warehouse, env.Warehouse)
	overlay(&c.Snowflake.Role, env.Role)
	return true
}
