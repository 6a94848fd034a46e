// Package config loads the YAML configuration shared by the backtest and
// bot runner commands.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"botfleet/internal/domain"
	"botfleet/internal/logger"
)

type Config struct {
	Pair           domain.Pair
	FeeMarketOrder decimal.Decimal
	FeeLimitOrder  decimal.Decimal
	StartBase      decimal.Decimal
	StartQuote     decimal.Decimal

	Strategy       string
	StrategyParams []byte

	CandleInterval string
	CandlesFile    string

	BadgerDir  string
	JournalDir string
	EnvFile    string

	Log logger.Config
}

type configTmp struct {
	Pair           string    `yaml:"pair"`
	FeeMarketOrder string    `yaml:"fee_market_order"`
	FeeLimitOrder  string    `yaml:"fee_limit_order"`
	StartBase      string    `yaml:"start_base"`
	StartQuote     string    `yaml:"start_quote"`
	Strategy       string    `yaml:"strategy"`
	StrategyParams yaml.Node `yaml:"strategy_params"`
	CandleInterval string    `yaml:"candle_interval"`
	CandlesFile    string    `yaml:"candles_file"`
	BadgerDir      string    `yaml:"badger_dir"`
	JournalDir     string    `yaml:"journal_dir"`
	EnvFile        string    `yaml:"env_file"`

	Log logger.Config `yaml:"log"`
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	pair, err := parsePair(tmp.Pair)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Pair:           pair,
		Strategy:       tmp.Strategy,
		CandleInterval: tmp.CandleInterval,
		CandlesFile:    tmp.CandlesFile,
		BadgerDir:      tmp.BadgerDir,
		JournalDir:     tmp.JournalDir,
		EnvFile:        tmp.EnvFile,
		Log:            tmp.Log,
	}

	if cfg.FeeMarketOrder, err = parseDecimal(tmp.FeeMarketOrder, "fee_market_order"); err != nil {
		return nil, err
	}
	if cfg.FeeLimitOrder, err = parseDecimal(tmp.FeeLimitOrder, "fee_limit_order"); err != nil {
		return nil, err
	}
	if cfg.StartBase, err = parseDecimal(tmp.StartBase, "start_base"); err != nil {
		return nil, err
	}
	if cfg.StartQuote, err = parseDecimal(tmp.StartQuote, "start_quote"); err != nil {
		return nil, err
	}

	if cfg.Strategy == "" {
		return nil, errors.New("strategy is required")
	}
	if !tmp.StrategyParams.IsZero() {
		// re-encode the params node so the strategy can decode its own
		// parameter shape
		params, err := yamlNodeToJSON(&tmp.StrategyParams)
		if err != nil {
			return nil, errors.Wrap(err, "strategy_params")
		}
		cfg.StrategyParams = params
	}

	return cfg, nil
}

func parsePair(s string) (domain.Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, errors.Errorf("invalid pair %q, expected BASE_QUOTE", s)
	}
	return domain.Pair{Base: parts[0], Quote: parts[1]}, nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s", field)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("%s must not be negative", field)
	}
	return d, nil
}
