package venue

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"botfleet/internal/domain"
	"botfleet/internal/executor"
)

// Bybit implements VenueClient over the v5 spot API. Create responses
// carry no fill data, so every confirmation goes through the realtime
// order query keyed by the order link id.
type Bybit struct {
	client *bybit.Client
}

var _ executor.VenueClient = (*Bybit)(nil)

func NewBybit(client *bybit.Client) *Bybit {
	return &Bybit{client: client}
}

func (b *Bybit) PlaceMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (executor.VenueFill, error) {
	_, err := b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        bybitSide(side),
		OrderType:   bybit.OrderTypeMarket,
		Qty:         amount.String(),
		OrderLinkID: &clientOrderID,
	})
	if err != nil {
		return executor.VenueFill{}, errors.Wrapf(executor.ErrOrderRejected, "place market order: %v", err)
	}

	status, err := b.fetchOrder(pair, clientOrderID)
	if err != nil {
		return executor.VenueFill{}, err
	}
	if status.Fill.OrderID == "" {
		return executor.VenueFill{}, errors.Wrap(executor.ErrOrderRejected, "market order not executed")
	}
	return status.Fill, nil
}

func (b *Bybit) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
	baseQty := quantity
	if side == domain.SideBuy {
		baseQty = quantity.Div(price)
	}
	priceStr := price.String()

	_, err := b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        bybitSide(side),
		OrderType:   bybit.OrderTypeLimit,
		Qty:         baseQty.String(),
		Price:       &priceStr,
		OrderLinkID: &clientOrderID,
	})
	if err != nil {
		return "", errors.Wrapf(executor.ErrOrderRejected, "place limit order: %v", err)
	}
	return clientOrderID, nil
}

func (b *Bybit) CancelOrder(ctx context.Context, pair domain.Pair, venueOrderID string) error {
	symbol := bybit.SymbolV5(pair.Symbol())
	_, err := b.client.V5().Order().CancelOrder(bybit.V5CancelOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      symbol,
		OrderLinkID: &venueOrderID,
	})
	if err != nil {
		return errors.Wrap(err, "cancel bybit order")
	}
	return nil
}

func (b *Bybit) OrderStatus(ctx context.Context, pair domain.Pair, venueOrderID string) (executor.VenueOrderStatus, error) {
	return b.fetchOrder(pair, venueOrderID)
}

// fetchOrder queries the realtime order endpoint, which returns both
// resting and recently closed orders.
func (b *Bybit) fetchOrder(pair domain.Pair, orderLinkID string) (executor.VenueOrderStatus, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	resp, err := b.client.V5().Order().GetOpenOrders(bybit.V5GetOpenOrdersParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      &symbol,
		OrderLinkID: &orderLinkID,
	})
	if err != nil {
		return executor.VenueOrderStatus{}, errors.Wrap(err, "query bybit order")
	}
	if len(resp.Result.List) == 0 {
		return executor.VenueOrderStatus{}, errors.Errorf("bybit order %s not found", orderLinkID)
	}
	item := resp.Result.List[0]

	switch item.OrderStatus {
	case bybit.OrderStatusFilled:
		fill, err := bybitFill(item)
		if err != nil {
			return executor.VenueOrderStatus{}, err
		}
		return executor.VenueOrderStatus{Fill: fill}, nil
	case bybit.OrderStatusCancelled, bybit.OrderStatusRejected:
		return executor.VenueOrderStatus{Cancelled: true}, nil
	default:
		return executor.VenueOrderStatus{Open: true}, nil
	}
}

func bybitFill(item bybit.V5GetOrder) (executor.VenueFill, error) {
	execQty, err := decimal.NewFromString(item.CumExecQty)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse executed quantity")
	}
	execValue, err := decimal.NewFromString(item.CumExecValue)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse executed value")
	}
	fee, err := decimal.NewFromString(item.CumExecFee)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse executed fee")
	}
	if execQty.IsZero() {
		return executor.VenueFill{}, errors.New("filled order reports zero executed quantity")
	}

	side := domain.SideSell
	if item.Side == bybit.SideBuy {
		side = domain.SideBuy
	}
	price := execValue.Div(execQty)
	return buildFill(item.OrderLinkID, side, execQty, execValue, fee, price), nil
}

func bybitSide(side domain.Side) bybit.Side {
	if side == domain.SideBuy {
		return bybit.SideBuy
	}
	return bybit.SideSell
}
