package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Log         LogConfig
	Pools       PoolsConfig
	Prices      PricesConfig
	Tokens      TokensConfig
	Ledger      LedgerConfig
	Ranking     RankingConfig
	Correlation CorrelationConfig
	Volume      VolumeConfig
	Database    DatabaseConfig
}

// LogConfig defines the logger settings.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// PoolsConfig defines where swap events are read from.
type PoolsConfig struct {
	Dir     string
	Targets []string
	// Source is either "files" or "database".
	Source string
}

// PricesConfig defines the reference price table and symbol handling.
type PricesConfig struct {
	File      string
	Stable    []string
	Canonical map[string]string
}

// TokensConfig holds the static decimal precision registry.
type TokensConfig struct {
	Decimals map[string]int32
}

// LedgerConfig defines the activity threshold a user must clear.
type LedgerConfig struct {
	MinBuys  int `mapstructure:"min_buys"`
	MinSells int `mapstructure:"min_sells"`
}

// RankingConfig defines the aggregation and export settings.
type RankingConfig struct {
	TopN      int `mapstructure:"top_n"`
	Workers   int
	OutputDir string `mapstructure:"output_dir"`
}

// CorrelationConfig defines the volume/volatility analysis.
type CorrelationConfig struct {
	Enabled         bool
	ReferenceSymbol string `mapstructure:"reference_symbol"`
}

// VolumeConfig holds fixed reference prices for the volume breakdown.
type VolumeConfig struct {
	ReferencePrices map[string]float64 `mapstructure:"reference_prices"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("pools.dir", "pools")
	v.SetDefault("pools.source", "files")
	v.SetDefault("pools.targets", []string{"WETH_USDT", "USDC_WETH", "MATIC_WETH", "UNI_WETH", "DAI_WETH"})

	v.SetDefault("prices.file", "Combined_Historical_Price_Data.csv")
	v.SetDefault("prices.stable", []string{"USDT", "USDC", "DAI", "FRAX", "LDO"})
	v.SetDefault("prices.canonical", map[string]string{"WETH": "ETH", "WBTC": "BTC"})

	v.SetDefault("tokens.decimals", map[string]int32{
		"WETH": 18, "DAI": 18, "USDC": 6, "USDT": 6, "WBTC": 8,
		"LINK": 18, "UNI": 18, "MKR": 18, "MATIC": 18, "SHIB": 18,
		"LDO": 18, "PEPE": 18, "SKL": 18,
	})

	v.SetDefault("ledger.min_buys", 25)
	v.SetDefault("ledger.min_sells", 25)

	v.SetDefault("ranking.top_n", 100)
	v.SetDefault("ranking.workers", 4)
	v.SetDefault("ranking.output_dir", ".")

	v.SetDefault("correlation.enabled", false)
	v.SetDefault("correlation.reference_symbol", "ETH")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	config.normalize()
	return
}

// normalize upper-cases token symbols; viper lower-cases map keys.
func (c *Config) normalize() {
	decimals := make(map[string]int32, len(c.Tokens.Decimals))
	for sym, p := range c.Tokens.Decimals {
		decimals[strings.ToUpper(sym)] = p
	}
	c.Tokens.Decimals = decimals

	canonical := make(map[string]string, len(c.Prices.Canonical))
	for from, to := range c.Prices.Canonical {
		canonical[strings.ToUpper(from)] = strings.ToUpper(to)
	}
	c.Prices.Canonical = canonical

	for i, s := range c.Prices.Stable {
		c.Prices.Stable[i] = strings.ToUpper(s)
	}

	refs := make(map[string]float64, len(c.Volume.ReferencePrices))
	for sym, p := range c.Volume.ReferencePrices {
		refs[strings.ToUpper(sym)] = p
	}
	c.Volume.ReferencePrices = refs
}
