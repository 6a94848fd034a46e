// Package domain defines the core value objects of the trading core:
// pairs, candles, orders, balances and the bot lifecycle status.
package domain

import "fmt"

// Pair is a base/quote trading pair, e.g. BTC/USDT.
type Pair struct {
	// Base asset symbol.
	Base string `json:"base"`
	// Quote asset symbol.
	Quote string `json:"quote"`
}

// String returns the underscore representation, e.g. "BTC_USDT".
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated venue symbol, e.g. "BTCUSDT".
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
