package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultPoint is one step of a backtest result series.
type ResultPoint struct {
	Time time.Time
	// StrategyValue is the portfolio value in quote at this step's close.
	StrategyValue decimal.Decimal
	// HodlValue is the value of a buy-and-hold baseline established from
	// the starting portfolio value at the first simulated step.
	HodlValue decimal.Decimal
}

// BacktestResult is the time-aligned series produced by the backtest
// engine, one point per simulated step.
type BacktestResult []ResultPoint
