package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Time is the bar's open time.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}
