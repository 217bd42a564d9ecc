package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig
	Account   AccountConfig
	Browser   BrowserConfig
	Crawler   CrawlerConfig
	Scheduler SchedulerConfig
	Monitor   MonitorConfig
	Notify    NotifyConfig
	Archive   ArchiveConfig
	Log       LogConfig
	DBPath    string `validate:"required"`
	// SessionDir holds the badger files for the cookie/localStorage blobs.
	SessionDir string `validate:"required"`
	SiteID     string                 `validate:"required"`
	Sites      map[string]*SiteConfig `validate:"-"`
}

type DatabaseConfig struct {
	URL      string `validate:"required"`
	MaxConns int32  `validate:"gte=1"`
	MinConns int32  `validate:"gte=0"`
}

type AccountConfig struct {
	Username string
	Password string
}

type BrowserConfig struct {
	Headless  bool
	ProxyURL  string `validate:"omitempty,url"`
	UserAgent string
}

type CrawlerConfig struct {
	MaxDetailItems int           `validate:"gte=0"`
	Concurrency    int           `validate:"gte=1,lte=20"`
	MaxAttempts    int           `validate:"gte=1"`
	EnqueueDelay   time.Duration `validate:"gte=0"`
	SettleDelay    time.Duration
	ClickSettle    time.Duration
	NavTimeout     time.Duration `validate:"gt=0"`
	WaitTimeout    time.Duration `validate:"gt=0"`
	TaskTimeout    time.Duration `validate:"gt=0"`
	ListMinItems   int           `validate:"gte=0"`
	PriceFloor     float64
	PriceCeiling   float64 `validate:"gtefield=PriceFloor"`
}

type SchedulerConfig struct {
	Cron        string `validate:"required"`
	NightlyCron string `validate:"required"`
	Timezone    string `validate:"required"`
}

type MonitorConfig struct {
	MinInterval   time.Duration `validate:"gt=0"`
	MaxInterval   time.Duration `validate:"gtefield=MinInterval"`
	Step          time.Duration `validate:"gte=0"`
	RestartDelay  time.Duration `validate:"gt=0"`
	RiseThreshold float64
	FallThreshold float64
	Force         bool
}

type NotifyConfig struct {
	FeishuWebhook string `validate:"omitempty,url"`
	Timeout       time.Duration
}

// ArchiveConfig is optional; an empty Bucket disables raw payload archiving.
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// LogConfig controls the daemon log file. An empty Path logs to stdout only.
type LogConfig struct {
	Path    string
	MaxSize int64 `validate:"gt=0"`
	Backups int   `validate:"gte=0,lte=20"`
}

type SiteConfig struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	ListURL       string            `yaml:"list_url"`
	DetailURL     string            `yaml:"detail_url"`
	PrimaryCookie string            `yaml:"primary_cookie"`
	Endpoints     map[string]string `yaml:"endpoints"`
	Login         LoginSelectors    `yaml:"login"`
	Index         IndexSelectors    `yaml:"index"`
	Detail        DetailSelectors   `yaml:"detail"`
}

type LoginSelectors struct {
	Prompt      string `yaml:"prompt"`
	VisitorText string `yaml:"visitor_text"`
	Button      string `yaml:"button"`
	ButtonText  string `yaml:"button_text"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Remember    string `yaml:"remember"`
	Terms       string `yaml:"terms"`
	Submit      string `yaml:"submit"`
	UserBadge   string `yaml:"user_badge"`
}

type IndexSelectors struct {
	BondIndex         string `yaml:"bond_index"`
	MedianPrice       string `yaml:"median_price"`
	MedianPremiumRate string `yaml:"median_premium_rate"`
	YieldToMaturity   string `yaml:"yield_to_maturity"`
}

type DetailSelectors struct {
	Industry string `yaml:"industry"`
	Concepts string `yaml:"concepts"`
	CashFlow string `yaml:"cash_flow"`
}

// Endpoint names used by the capture routes.
const (
	EndpointList         = "list"
	EndpointIndexHistory = "index_history"
	EndpointHistory      = "history"
	EndpointAdjustLogs   = "adjust_logs"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DATABASE_MIN_CONNS", 2)),
		},
		Account: AccountConfig{
			Username: os.Getenv("JSL_USERNAME"),
			Password: os.Getenv("JSL_PASSWORD"),
		},
		Browser: BrowserConfig{
			Headless:  getEnvBool("BROWSER_HEADLESS", false),
			ProxyURL:  os.Getenv("BROWSER_PROXY"),
			UserAgent: os.Getenv("BROWSER_USER_AGENT"),
		},
		Crawler: CrawlerConfig{
			MaxDetailItems: getEnvInt("CRAWL_MAX_DETAILS", 600),
			Concurrency:    getEnvInt("CRAWL_CONCURRENCY", 5),
			MaxAttempts:    getEnvInt("CRAWL_MAX_ATTEMPTS", 3),
			EnqueueDelay:   getEnvDuration("CRAWL_ENQUEUE_DELAY", 5*time.Second),
			SettleDelay:    getEnvDuration("CRAWL_SETTLE_DELAY", 5*time.Second),
			ClickSettle:    getEnvDuration("CRAWL_CLICK_SETTLE", 2*time.Second),
			NavTimeout:     getEnvDuration("CRAWL_NAV_TIMEOUT", 60*time.Second),
			WaitTimeout:    getEnvDuration("CRAWL_WAIT_TIMEOUT", 60*time.Second),
			TaskTimeout:    getEnvDuration("CRAWL_TASK_TIMEOUT", 180*time.Second),
			ListMinItems:   getEnvInt("CRAWL_LIST_MIN_ITEMS", 50),
			PriceFloor:     getEnvFloat("CRAWL_PRICE_FLOOR", 94),
			PriceCeiling:   getEnvFloat("CRAWL_PRICE_CEILING", 140),
		},
		Scheduler: SchedulerConfig{
			Cron:        getEnv("CRAWL_CRON", "*/30 9-15 * * 1-5"),
			NightlyCron: getEnv("NIGHTLY_CRON", "30 21 * * *"),
			Timezone:    getEnv("MARKET_TZ", "Asia/Shanghai"),
		},
		Monitor: MonitorConfig{
			MinInterval:   getEnvDuration("MONITOR_MIN_INTERVAL", 40*time.Second),
			MaxInterval:   getEnvDuration("MONITOR_MAX_INTERVAL", 300*time.Second),
			Step:          getEnvDuration("MONITOR_STEP", 20*time.Second),
			RestartDelay:  getEnvDuration("MONITOR_RESTART_DELAY", 5*time.Second),
			RiseThreshold: getEnvFloat("MONITOR_RISE_PCT", 3),
			FallThreshold: getEnvFloat("MONITOR_FALL_PCT", -2),
			Force:         getEnvBool("MONITOR_FORCE", false),
		},
		Notify: NotifyConfig{
			FeishuWebhook: os.Getenv("FEISHU_WEBHOOK"),
			Timeout:       getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Archive: ArchiveConfig{
			Bucket:   os.Getenv("ARCHIVE_BUCKET"),
			Prefix:   getEnv("ARCHIVE_PREFIX", "jisilu"),
			Region:   getEnv("AWS_REGION", "ap-east-1"),
			Endpoint: os.Getenv("ARCHIVE_ENDPOINT"),
			// empty keys fall back to the default AWS credential chain
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		Log: LogConfig{
			Path:    getEnv("LOG_PATH", "daemon.log"),
			MaxSize: int64(getEnvInt("LOG_MAX_SIZE_KB", 2048)) * 1024,
			Backups: getEnvInt("LOG_BACKUPS", 3),
		},
		DBPath:     getEnv("DB_PATH", "crawler.db"),
		SessionDir: getEnv("SESSION_DIR", "session"),
		SiteID:     getEnv("SITE_ID", "jisilu"),
		Sites:      make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(getEnv("SITES_DIR", "config/sites")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct constraints and that the selected site exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Sites[c.SiteID]; !ok {
		return fmt.Errorf("invalid config: no site config for %q", c.SiteID)
	}
	return nil
}

// Site returns the selected site config.
func (c *Config) Site() *SiteConfig {
	return c.Sites[c.SiteID]
}

func (c *Config) loadSiteConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
