// internal/config/config.go
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresURL string `mapstructure:"postgres_url"`

	TonAPIURL   string `mapstructure:"ton_api_url"`
	TonAPIKey   string `mapstructure:"ton_api_key"`
	DeDustURL   string `mapstructure:"dedust_api_url"`
	StonFiURL   string `mapstructure:"stonfi_api_url"`
	SignerURL   string `mapstructure:"signer_url"`
	Retries     int    `mapstructure:"retries"`
	HTTPTimeout int    `mapstructure:"http_timeout_seconds"`

	MonitorInterval   int `mapstructure:"monitor_interval_seconds"`
	TradingInterval   int `mapstructure:"trading_interval_seconds"`
	ReconcileInterval int `mapstructure:"reconcile_interval_seconds"`
	Workers           int `mapstructure:"workers"`
	ListingFailureCap int `mapstructure:"listing_failure_cap"`

	FeePercentage       float64 `mapstructure:"fee_percentage"`
	FeeRecipientWallet  string  `mapstructure:"fee_recipient_wallet"`
	SwapGasTon          string  `mapstructure:"swap_gas_ton"`
	TransferGasTon      string  `mapstructure:"transfer_gas_ton"`
	PendingTimeoutHours int     `mapstructure:"pending_timeout_hours"`

	StrategiesFile  string   `mapstructure:"strategies_file"`
	SymbolBlacklist []string `mapstructure:"symbol_blacklist"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultTonAPIURL         = "https://tonapi.io"
	DefaultDeDustURL         = "https://api.dedust.io"
	DefaultStonFiURL         = "https://api.ston.fi"
	DefaultRetries           = 3
	DefaultHTTPTimeout       = 15
	DefaultMonitorInterval   = 30
	DefaultTradingInterval   = 5
	DefaultReconcileInterval = 10
	DefaultWorkers           = 5
	DefaultListingFailureCap = 5
	DefaultFeePercentage     = 0.01
	DefaultSwapGasTon        = "0.25"
	DefaultTransferGasTon    = "0.005"
	DefaultPendingTimeout    = 24
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"ton_api_url":                DefaultTonAPIURL,
		"dedust_api_url":             DefaultDeDustURL,
		"stonfi_api_url":             DefaultStonFiURL,
		"retries":                    DefaultRetries,
		"http_timeout_seconds":       DefaultHTTPTimeout,
		"monitor_interval_seconds":   DefaultMonitorInterval,
		"trading_interval_seconds":   DefaultTradingInterval,
		"reconcile_interval_seconds": DefaultReconcileInterval,
		"workers":                    DefaultWorkers,
		"listing_failure_cap":        DefaultListingFailureCap,
		"fee_percentage":             DefaultFeePercentage,
		"swap_gas_ton":               DefaultSwapGasTon,
		"transfer_gas_ton":           DefaultTransferGasTon,
		"pending_timeout_hours":      DefaultPendingTimeout,
		"log_file":                   "jettonbot.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.PostgresURL == "" {
		return errors.New("missing postgres_url in configuration")
	}
	if cfg.TonAPIKey == "" {
		return errors.New("missing ton_api_key in configuration")
	}
	if cfg.FeeRecipientWallet == "" {
		return errors.New("missing fee_recipient_wallet in configuration")
	}
	for _, u := range []string{cfg.TonAPIURL, cfg.DeDustURL, cfg.StonFiURL} {
		if err := validateURL(u, "http"); err != nil {
			return err
		}
	}
	if cfg.SignerURL != "" {
		if err := validateURL(cfg.SignerURL, "http"); err != nil {
			return err
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval_seconds")
	}
	if cfg.TradingInterval <= 0 {
		return errors.New("invalid trading_interval_seconds")
	}
	if cfg.ReconcileInterval <= 0 {
		return errors.New("invalid reconcile_interval_seconds")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.ListingFailureCap <= 0 {
		return errors.New("invalid listing_failure_cap")
	}
	if cfg.FeePercentage < 0 || cfg.FeePercentage >= 1 {
		return errors.New("fee_percentage must be in [0, 1)")
	}
	if cfg.PendingTimeoutHours <= 0 {
		return errors.New("invalid pending_timeout_hours")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol: " + rawURL)
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("JETTONBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if key := v.GetString("TON_API_KEY"); key != "" {
		cfg.TonAPIKey = key
	}
	if dsn := v.GetString("POSTGRES_URL"); dsn != "" {
		cfg.PostgresURL = dsn
	}
	return nil
}

// MonitorTick returns the pool monitor interval as a duration.
func (c *Config) MonitorTick() time.Duration {
	return time.Duration(c.MonitorInterval) * time.Second
}

// TradingTick returns the trading cycle interval as a duration.
func (c *Config) TradingTick() time.Duration {
	return time.Duration(c.TradingInterval) * time.Second
}

// ReconcileTick returns the reconciler interval as a duration.
func (c *Config) ReconcileTick() time.Duration {
	return time.Duration(c.ReconcileInterval) * time.Second
}

// UpstreamTimeout returns the upstream HTTP timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// PendingTimeout returns the pending transaction age limit.
func (c *Config) PendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutHours) * time.Hour
}
