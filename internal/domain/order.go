package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Kind of an order.
type Kind string

const (
	KindMarket Kind = "market"
	KindLimit  Kind = "limit"
)

// OrderStatus of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order records a single execution request and, once filled or cancelled,
// becomes an immutable history entry on the State.
//
// Amounts are denominated in the spent asset: quote for buys, base for
// sells. Received is denominated in the opposite asset. Fee is charged in
// the spent asset.
type Order struct {
	// ID is the executor-assigned order id. The simulated executor uses a
	// deterministic sequence; the live executor uses the client order id
	// sent to the venue.
	ID string `json:"id"`
	// VenueID is the venue-assigned id, empty for simulated orders.
	VenueID string `json:"venue_id,omitempty"`

	Pair   Pair        `json:"pair"`
	Side   Side        `json:"side"`
	Kind   Kind        `json:"kind"`
	Status OrderStatus `json:"status"`

	// Requested is the amount the caller asked to spend.
	Requested decimal.Decimal `json:"requested"`
	// OnHold is the reservation taken from the available balance while the
	// order is open. Zero for market orders, which fill immediately.
	OnHold decimal.Decimal `json:"on_hold"`

	LimitPrice decimal.Decimal `json:"limit_price"`
	FillPrice  decimal.Decimal `json:"fill_price"`
	// Fee paid in the spent asset.
	Fee decimal.Decimal `json:"fee"`
	// Received is the amount credited in the opposite asset.
	Received decimal.Decimal `json:"received"`

	CreatedAt time.Time `json:"created_at"`
	FilledAt  time.Time `json:"filled_at,omitempty"`
}

// SpendsQuote reports whether the order spends the quote asset.
func (o Order) SpendsQuote() bool {
	return o.Side == SideBuy
}
