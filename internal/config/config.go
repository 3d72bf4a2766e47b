package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/spf13/viper"
)

// CoinPlaceholder is substituted with the coin symbol in URL and cache name templates
const CoinPlaceholder = "{coin}"

type Config struct {
	Signals string        `mapstructure:"signals"`
	Report  ReportConfig  `mapstructure:"report"`
	Data    DataConfig    `mapstructure:"data"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ReportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"` // "html", "csv" or "json"
}

// DataConfig selects where historical minute bars come from.
type DataConfig struct {
	Source      string         `mapstructure:"source"` // "cdd", "binance" or "okx"
	URLTemplate string         `mapstructure:"url_template"`
	CacheName   string         `mapstructure:"cache_name"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Binance     ExchangeConfig `mapstructure:"binance"`
	OKX         ExchangeConfig `mapstructure:"okx"`
}

// ExchangeConfig holds candle download settings for an exchange API source.
type ExchangeConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Quote   string `mapstructure:"quote"`
	Start   string `mapstructure:"start"` // YYYY-MM-DD, inclusive
	End     string `mapstructure:"end"`   // YYYY-MM-DD, exclusive
}

// CacheConfig holds the per-coin series cache backend.
type CacheConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("SIGSIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config that reproduces the classic cryptodatadownload setup
func Defaults() *Config {
	return &Config{
		Signals: "signals.csv",
		Report: ReportConfig{
			Path:   "simulation_result.html",
			Format: "html",
		},
		Data: DataConfig{
			Source:      "cdd",
			URLTemplate: "https://www.cryptodatadownload.com/cdd/Binance_{coin}USDT_2023_minute.csv",
			CacheName:   "Binance_{coin}USDT_2023_minute.csv",
			Timeout:     2 * time.Minute,
			Binance: ExchangeConfig{
				BaseURL: "https://api.binance.com",
				Quote:   "USDT",
				Start:   "2023-01-01",
				End:     "2024-01-01",
			},
			OKX: ExchangeConfig{
				BaseURL: "https://www.okx.com",
				Quote:   "USDT",
				Start:   "2023-01-01",
				End:     "2024-01-01",
			},
		},
		Cache: CacheConfig{
			Type: "localfs",
			Path: ".",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Report.Format {
	case "html", "csv", "json":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report format must be html, csv or json, got %q", c.Report.Format))
	}
	if c.Report.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("report path required"))
	}

	if !strings.Contains(c.Data.CacheName, CoinPlaceholder) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache_name must contain %s, got %q", CoinPlaceholder, c.Data.CacheName))
	}
	if c.Data.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("timeout cannot be negative, got %s", c.Data.Timeout))
	}

	switch c.Data.Source {
	case "cdd":
		if !strings.Contains(c.Data.URLTemplate, CoinPlaceholder) {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("url_template must contain %s, got %q", CoinPlaceholder, c.Data.URLTemplate))
		}
	case "binance":
		if err := c.Data.Binance.validate("binance"); err != nil {
			return err
		}
	case "okx":
		if err := c.Data.OKX.validate("okx"); err != nil {
			return err
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data source must be cdd, binance or okx, got %q", c.Data.Source))
	}

	switch c.Cache.Type {
	case "localfs":
		if c.Cache.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("cache path required when type is localfs"))
		}
	case "s3":
		if c.Cache.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache type must be localfs or s3, got %q", c.Cache.Type))
	}

	return nil
}

func (e ExchangeConfig) validate(source string) error {
	if e.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("%s base_url required when source is %s", source, source))
	}
	if e.Quote == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("%s quote required when source is %s", source, source))
	}
	if _, _, err := e.Range(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", source, err))
	}
	return nil
}

// Range parses the configured download window.
func (e ExchangeConfig) Range() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", e.Start)
	if err != nil {
		return start, end, fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
	}
	end, err = time.Parse("2006-01-02", e.End)
	if err != nil {
		return start, end, fmt.Errorf("invalid end date (expected YYYY-MM-DD): %w", err)
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}
