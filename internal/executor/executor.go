// Package executor routes every balance-affecting action of a strategy
// through one interface with two variants: Simulated (deterministic
// fill-at-price-with-fee, used by the backtest engine) and Live
// (delegates to a venue client and reconciles state from confirmed
// responses). Strategies are executor-agnostic.
package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"botfleet/internal/domain"
)

// ErrOrderRejected is returned when the venue declines an order. State is
// never mutated on rejection.
var ErrOrderRejected = errors.New("order rejected by venue")

// Executor performs buy/sell/cancel operations and owns the State they
// mutate. Both variants expose exactly these signatures.
type Executor interface {
	// PlaceMarketBuyOrder spends quoteAmount of the quote asset on the
	// given base asset at the current market price.
	PlaceMarketBuyOrder(ctx context.Context, asset string, quoteAmount decimal.Decimal) (domain.Order, error)
	// PlaceMarketSellOrder sells baseAmount of the base asset at the
	// current market price.
	PlaceMarketSellOrder(ctx context.Context, asset string, baseAmount decimal.Decimal) (domain.Order, error)
	// PlaceLimitOrder places a resting order. Quantity is denominated in
	// the spent asset: quote for buys, base for sells.
	PlaceLimitOrder(ctx context.Context, asset string, price, quantity decimal.Decimal, side domain.Side) (domain.Order, error)
	// CancelOpenOrders cancels every open order and releases its
	// reservation.
	CancelOpenOrders(ctx context.Context) error
	// GetOpenOrders returns the current open-order set.
	GetOpenOrders(ctx context.Context) ([]domain.Order, error)
	// GetOrderInfo looks an order up by id across open orders and history.
	GetOrderInfo(ctx context.Context, id string) (domain.Order, error)
	// Reconcile settles open orders against the latest market information:
	// the simulated variant fills limit orders crossed by the current
	// candle, the live variant syncs order status from the venue.
	Reconcile(ctx context.Context) error
	// State returns a read-only copy of the executor's state.
	State() *domain.State
}

// VenueFill is a venue-confirmed execution. Spent is the amount actually
// debited in the spent asset, Received the amount credited net of fee.
type VenueFill struct {
	OrderID  string
	Spent    decimal.Decimal
	Received decimal.Decimal
	Fee      decimal.Decimal
	Price    decimal.Decimal
}

// VenueOrderStatus is the venue's view of a resting order.
type VenueOrderStatus struct {
	Open      bool
	Cancelled bool
	Fill      VenueFill
}

// VenueClient is implemented by exchange adapters (internal/venue). It is
// the only network boundary of the live executor; adapters own timeouts
// and must wrap venue-side rejections in ErrOrderRejected.
type VenueClient interface {
	PlaceMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error)
	PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error)
	CancelOrder(ctx context.Context, pair domain.Pair, venueOrderID string) error
	OrderStatus(ctx context.Context, pair domain.Pair, venueOrderID string) (VenueOrderStatus, error)
}

// FillJournal records confirmed fills for audit. Implemented by the
// WAL-backed order journal.
type FillJournal interface {
	Record(o domain.Order) error
}
