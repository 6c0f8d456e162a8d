// Package config defines all configuration for the market-making engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MM_* environment variables.
//
// Grounded on _examples/0xtitan6-polymarket-mm/internal/config/config.go's
// Load/Validate shape, with WalletConfig/StrategyConfig (Avellaneda-Stoikov
// params) replaced by VenueConfig (plain API key/secret, per spec §6) and a
// per-contract ContractPolicy table (spec §3), which spec.md treats as
// "immutable-during-run configuration".
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"marketmaker/pkg/types"
)

// Config is the top-level configuration, mapped directly from YAML.
type Config struct {
	DryRun    bool                      `mapstructure:"dry_run"`
	Venue     VenueConfig               `mapstructure:"venue"`
	Book      BookConfig                `mapstructure:"book"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	OrderLog  OrderLogConfig            `mapstructure:"order_log"`
	Contracts map[string]ContractConfig `mapstructure:"contracts"`
}

// VenueConfig holds REST/WS endpoints and API credentials for the venue.
type VenueConfig struct {
	RESTBaseURL string `mapstructure:"rest_base_url"`
	WSURL       string `mapstructure:"ws_url"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
}

// BookConfig tunes the local order book mirror.
type BookConfig struct {
	Depth          int `mapstructure:"depth"`            // levels retained per side
	MaxDeltaBuffer int `mapstructure:"max_delta_buffer"` // bound on pre-snapshot buffered deltas
}

// LoggingConfig mirrors the teacher's logging config exactly.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OrderLogConfig controls the CSV order logger (spec §1's named, out-of-
// scope external collaborator).
type OrderLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ContractConfig is the YAML shape for one contract's policy; numeric
// fields are strings in YAML so they parse as exact decimal.Decimal rather
// than float64.
type ContractConfig struct {
	MaxLong                     string `mapstructure:"max_long"`
	MaxShort                    string `mapstructure:"max_short"`
	DefaultLongSize             string `mapstructure:"default_long_size"`
	DefaultShortSize            string `mapstructure:"default_short_size"`
	PositiveQuoteDistanceBps    int64  `mapstructure:"positive_quote_distance_bps"`
	NegativeQuoteDistanceBps    int64  `mapstructure:"negative_quote_distance_bps"`
	LongAdjustmentThresholdBps  int64  `mapstructure:"long_adjustment_threshold_bps"`
	ShortAdjustmentThresholdBps int64  `mapstructure:"short_adjustment_threshold_bps"`
	PriceStep                   string `mapstructure:"price_step"`
	PriceRoundingPrecision      int32  `mapstructure:"price_rounding_precision"`
	QuoteStepSize               string `mapstructure:"quote_step_size"`
	EnableLongQuotes            bool   `mapstructure:"enable_long_quotes"`
	EnableShortQuotes           bool   `mapstructure:"enable_short_quotes"`
	MidPriceMode                string `mapstructure:"mid_price_mode"` // "arithmetic" or "vwmp"
	VWMPDepth                   int    `mapstructure:"vwmp_depth"`
	ImbalanceDepth              int    `mapstructure:"imbalance_depth"`
	StrategyTag                 string `mapstructure:"strategy_tag"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("MM_API_KEY"); key != "" {
		cfg.Venue.APIKey = key
	}
	if secret := os.Getenv("MM_API_SECRET"); secret != "" {
		cfg.Venue.APISecret = secret
	}
	if os.Getenv("MM_DRY_RUN") == "true" || os.Getenv("MM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if c.Venue.WSURL == "" {
		return fmt.Errorf("venue.ws_url is required")
	}
	if c.Venue.APIKey == "" || c.Venue.APISecret == "" {
		return fmt.Errorf("venue.api_key and venue.api_secret are required (set MM_API_KEY / MM_API_SECRET)")
	}
	if c.Book.Depth <= 0 {
		return fmt.Errorf("book.depth must be > 0")
	}
	if len(c.Contracts) == 0 {
		return fmt.Errorf("at least one entry under contracts is required")
	}
	for symbol := range c.Contracts {
		if _, err := c.ContractPolicy(symbol); err != nil {
			return fmt.Errorf("contracts.%s: %w", symbol, err)
		}
	}
	return nil
}

// ContractPolicy parses the YAML entry for symbol into a
// types.ContractPolicy with decimal-typed fields.
func (c *Config) ContractPolicy(symbol string) (types.ContractPolicy, error) {
	cc, ok := c.Contracts[symbol]
	if !ok {
		return types.ContractPolicy{}, fmt.Errorf("no contract config for %q", symbol)
	}

	maxLong, err := decimal.NewFromString(cc.MaxLong)
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("max_long: %w", err)
	}
	maxShort, err := decimal.NewFromString(cc.MaxShort)
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("max_short: %w", err)
	}
	defaultLong, err := decimal.NewFromString(cc.DefaultLongSize)
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("default_long_size: %w", err)
	}
	defaultShort, err := decimal.NewFromString(cc.DefaultShortSize)
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("default_short_size: %w", err)
	}
	priceStep, err := decimal.NewFromString(orDefault(cc.PriceStep, "0"))
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("price_step: %w", err)
	}
	quoteStep, err := decimal.NewFromString(orDefault(cc.QuoteStepSize, "0"))
	if err != nil {
		return types.ContractPolicy{}, fmt.Errorf("quote_step_size: %w", err)
	}

	mode := types.MidArithmetic
	if cc.MidPriceMode == string(types.MidVWMP) {
		mode = types.MidVWMP
	}

	return types.ContractPolicy{
		Contract:                    symbol,
		MaxLong:                     maxLong,
		MaxShort:                    maxShort,
		DefaultLongSize:             defaultLong,
		DefaultShortSize:            defaultShort,
		PositiveQuoteDistanceBps:    cc.PositiveQuoteDistanceBps,
		NegativeQuoteDistanceBps:    cc.NegativeQuoteDistanceBps,
		LongAdjustmentThresholdBps:  cc.LongAdjustmentThresholdBps,
		ShortAdjustmentThresholdBps: cc.ShortAdjustmentThresholdBps,
		PriceStep:                   priceStep,
		PriceRoundingPrecision:      cc.PriceRoundingPrecision,
		QuoteStepSize:               quoteStep,
		EnableLongQuotes:            cc.EnableLongQuotes,
		EnableShortQuotes:           cc.EnableShortQuotes,
		MidPriceMode:                mode,
		VWMPDepth:                   cc.VWMPDepth,
		ImbalanceDepth:              imbalanceDepthOrDefault(cc.ImbalanceDepth),
	}, nil
}

// defaultImbalanceDepth is used when a contract config leaves
// imbalance_depth unset (zero value) — enough levels for the signal to be
// meaningful without reaching past what a typical order_book.Depth keeps.
const defaultImbalanceDepth = 5

func imbalanceDepthOrDefault(depth int) int {
	if depth <= 0 {
		return defaultImbalanceDepth
	}
	return depth
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
