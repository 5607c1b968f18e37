package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database  DatabaseConfig
	Scrape    ScrapeConfig
	Browser   BrowserConfig
	Currency  CurrencyConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string `mapstructure:"dbname"`
}

// URL builds the postgres connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// ScrapeConfig bounds the sweep worker pools and per-fetch behaviour.
// Total concurrent browser sessions never exceed OwnerWorkers * ItemWorkers.
type ScrapeConfig struct {
	OwnerWorkers     int     `mapstructure:"owner_workers"`
	ItemWorkers      int     `mapstructure:"item_workers"`
	FetchTimeoutSec  int     `mapstructure:"fetch_timeout_sec"`
	DomainRatePerMin float64 `mapstructure:"domain_rate_per_min"`
}

// BrowserConfig selects and tunes the page-fetch backend.
type BrowserConfig struct {
	Backend    string // "chromedp" or "static"
	Headless   bool
	UserAgent  string `mapstructure:"user_agent"`
	DelayMinMS int    `mapstructure:"delay_min_ms"`
	DelayMaxMS int    `mapstructure:"delay_max_ms"`
}

// CurrencyConfig holds the base currency and fixed conversion rates.
// Rates are static configuration, refreshed by redeploying, and are a
// known staleness risk rather than a live feed.
type CurrencyConfig struct {
	Base  string
	Rates map[string]float64
}

// NotifyConfig holds the alert delivery settings.
type NotifyConfig struct {
	SMTP     SMTPConfig
	Telegram TelegramConfig
}

// SMTPConfig defines the mail relay used for price alerts.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// TelegramConfig defines the optional Telegram alert channel.
// An empty token disables it.
type TelegramConfig struct {
	Token  string
	ChatID int64 `mapstructure:"chat_id"`
}

// SchedulerConfig defines the sweep cadence.
type SchedulerConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("scrape.owner_workers", 4)
	viper.SetDefault("scrape.item_workers", 4)
	viper.SetDefault("scrape.fetch_timeout_sec", 60)
	viper.SetDefault("scrape.domain_rate_per_min", 6)
	viper.SetDefault("browser.backend", "chromedp")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("browser.delay_min_ms", 2000)
	viper.SetDefault("browser.delay_max_ms", 6000)
	viper.SetDefault("currency.base", "GBP")
	viper.SetDefault("currency.rates", map[string]float64{"PKR": 0.0028})
	viper.SetDefault("scheduler.interval_hours", 6)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
