package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built once in main and
// passed by pointer; nothing below main reads the environment.
type Config struct {
	Target    TargetConfig    `mapstructure:"target"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	ROI       ROIConfig       `mapstructure:"roi"`
	Store     StoreConfig     `mapstructure:"store"`
	Google    GoogleConfig    `mapstructure:"google"`
	Email     EmailConfig     `mapstructure:"email"`
	Output    OutputConfig    `mapstructure:"output"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Log       LogConfig       `mapstructure:"log"`
}

// TargetConfig is the market being scanned. Neighborhoods are village names
// that listing sites use in place of the city in detail URLs.
type TargetConfig struct {
	City          string   `mapstructure:"city"`
	State         string   `mapstructure:"state"`
	Country       string   `mapstructure:"country"`
	Neighborhoods []string `mapstructure:"neighborhoods"`
}

// ScrapeConfig controls the source adapters.
type ScrapeConfig struct {
	Sources      []string `mapstructure:"sources"`
	MaxListings  int      `mapstructure:"max_listings"`
	RateLimitMs  int      `mapstructure:"rate_limit_ms"`
	MaxRetries   int      `mapstructure:"max_retries"`
	ScrollPasses int      `mapstructure:"scroll_passes"`
	ChromeBin    string   `mapstructure:"chrome_bin"`
	FixturePath  string   `mapstructure:"fixture_path"`
	RedfinURL    string   `mapstructure:"redfin_url"`
	RealtorURL   string   `mapstructure:"realtor_url"`
	ZillowURL    string   `mapstructure:"zillow_url"`
}

// AnthropicConfig holds the LLM oracle credentials. An empty APIKey disables
// the oracle and the classifier runs keyword-only.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// ClassifyConfig holds the redevelopment phrase list.
type ClassifyConfig struct {
	Keywords []string `mapstructure:"keywords"`
}

// GeocodeConfig configures the Nominatim oracle and the fallback point.
type GeocodeConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	UserAgent    string  `mapstructure:"user_agent"`
	PauseMs      int     `mapstructure:"pause_ms"`
	TimeoutsSecs []int   `mapstructure:"timeouts_secs"`
	FallbackLat  float64 `mapstructure:"fallback_lat"`
	FallbackLon  float64 `mapstructure:"fallback_lon"`
}

// ROIConfig holds the development cost model.
type ROIConfig struct {
	CoverageRatio    float64 `mapstructure:"coverage_ratio"`
	HardCostPerSF    float64 `mapstructure:"hard_cost_per_sf"`
	SoftCostPct      float64 `mapstructure:"soft_cost_pct"`
	ResalePricePerSF float64 `mapstructure:"resale_price_per_sf"`
	SkipUnpriced     bool    `mapstructure:"skip_unpriced"`
}

// StoreConfig selects the relational sink.
type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	DatabasePath string `mapstructure:"database_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	Table        string `mapstructure:"table"`
}

// GoogleConfig holds the spreadsheet mirror settings.
type GoogleConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	SheetsID        string `mapstructure:"sheets_id"`
	Worksheet       string `mapstructure:"worksheet"`
	BaseURL         string `mapstructure:"base_url"`
}

// EmailConfig holds SMTP settings for alerts.
type EmailConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	To       string `mapstructure:"to"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
}

// OutputConfig holds local artifact paths.
type OutputConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	HistoryPath   string `mapstructure:"history_path"`
	ClassifiedCSV string `mapstructure:"classified_csv"`
	LeadsCSV      string `mapstructure:"leads_csv"`
	XLSXPath      string `mapstructure:"xlsx_path"`
	MapPath       string `mapstructure:"map_path"`
}

// ScheduleConfig holds cron specs for the schedule command. Specs carry a
// leading seconds field.
type ScheduleConfig struct {
	Timezone  string `mapstructure:"timezone"`
	FullCron  string `mapstructure:"full_cron"`
	PriceCron string `mapstructure:"price_cron"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultKeywords is the redevelopment phrase list used when none is
// configured.
var DefaultKeywords = []string{
	"tear down", "teardown", "tear-down",
	"builder", "contractor special", "development opportunity",
	"zoned multi", "corner lot", "subdivide",
}

// Load reads the .env file, an optional config.yaml and the environment, and
// returns a populated Config. Environment keys are the upper-cased config
// path with dots replaced by underscores (anthropic.api_key → ANTHROPIC_API_KEY).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("[config] No .env file found, falling back to system env vars")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Classify.Keywords) == 0 {
		cfg.Classify.Keywords = DefaultKeywords
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.city", "Newton")
	v.SetDefault("target.state", "MA")
	v.SetDefault("target.country", "USA")
	v.SetDefault("target.neighborhoods", []string{
		"West Newton", "Newtonville", "Newton Center", "Auburndale",
		"Waban", "Chestnut Hill", "Nonantum", "Oak Hill",
	})

	v.SetDefault("scrape.sources", []string{"redfin", "zillow", "realtor"})
	v.SetDefault("scrape.max_listings", 15)
	v.SetDefault("scrape.rate_limit_ms", 2000)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.scroll_passes", 12)
	v.SetDefault("scrape.chrome_bin", "")
	v.SetDefault("scrape.fixture_path", "")
	v.SetDefault("scrape.redfin_url", "https://www.redfin.com/city/11619/MA/Newton")
	v.SetDefault("scrape.realtor_url", "https://www.realtor.com/realestateandhomes-search/Newton_MA")
	v.SetDefault("scrape.zillow_url", "https://www.zillow.com/newton-ma/")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)

	v.SetDefault("classify.keywords", []string{})

	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "dev_pipeline")
	v.SetDefault("geocode.pause_ms", 1000)
	v.SetDefault("geocode.timeouts_secs", []int{10, 15, 20})
	v.SetDefault("geocode.fallback_lat", 42.337)
	v.SetDefault("geocode.fallback_lon", -71.209)

	v.SetDefault("roi.coverage_ratio", 0.35)
	v.SetDefault("roi.hard_cost_per_sf", 275.0)
	v.SetDefault("roi.soft_cost_pct", 0.15)
	v.SetDefault("roi.resale_price_per_sf", 550.0)
	v.SetDefault("roi.skip_unpriced", false)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_path", "./data/development_leads.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.table", "development_leads")

	v.SetDefault("google.credentials_path", "./google_credentials.json")
	v.SetDefault("google.sheets_id", "")
	v.SetDefault("google.worksheet", "DevelopmentLeads")
	v.SetDefault("google.base_url", "https://sheets.googleapis.com")

	v.SetDefault("email.user", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.to", "")
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)

	v.SetDefault("output.data_dir", "./data")
	v.SetDefault("output.history_path", "")
	v.SetDefault("output.classified_csv", "")
	v.SetDefault("output.leads_csv", "")
	v.SetDefault("output.xlsx_path", "")
	v.SetDefault("output.map_path", "")

	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.full_cron", "0 0 1 * * *")
	v.SetDefault("schedule.price_cron", "0 0 14 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// HistoryPath returns the price-history store location.
func (c *Config) HistoryPath() string {
	return c.Output.pathOr(c.Output.HistoryPath, "price_history.json")
}

// ClassifiedCSVPath returns where classified rows are written.
func (c *Config) ClassifiedCSVPath() string {
	return c.Output.pathOr(c.Output.ClassifiedCSV, "classified_listings.csv")
}

// LeadsCSVPath returns where enriched rows are written.
func (c *Config) LeadsCSVPath() string {
	return c.Output.pathOr(c.Output.LeadsCSV, "development_leads.csv")
}

// MapPath returns where the HTML map is written.
func (c *Config) MapPath() string {
	return c.Output.pathOr(c.Output.MapPath, filepath.Join("maps", "latest_map.html"))
}

// LockPath returns the run-serialisation lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Output.DataDir, ".pipeline.lock")
}

// Location is the human form of the target market, e.g. "Newton, MA".
func (c *Config) Location() string {
	return c.Target.City + ", " + c.Target.State
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Google.SheetsID != ""
}

// EmailEnabled reports whether alert e-mails can be sent.
func (c *Config) EmailEnabled() bool {
	return c.Email.User != "" && c.Email.Password != ""
}

// Validate returns the names of missing credentials. The pipeline runs
// degraded without them; check-env reports them.
func (c *Config) Validate() []string {
	var missing []string
	if c.Anthropic.APIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.Google.SheetsID == "" {
		missing = append(missing, "GOOGLE_SHEETS_ID")
	}
	if c.Email.Password == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if c.Store.Driver == "postgres" && c.Store.PostgresDSN == "" {
		missing = append(missing, "STORE_POSTGRES_DSN")
	}
	return missing
}

func (o OutputConfig) pathOr(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(o.DataDir, name)
}

// XLSXPath returns where the leads workbook is written.
func (c *Config) XLSXPath() string {
	return c.Output.pathOr(c.Output.XLSXPath, "development_leads.xlsx")
}
