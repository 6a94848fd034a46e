// Package venue adapts exchange SDKs to the executor's VenueClient
// interface. Adapters translate venue responses into confirmed fills and
// wrap venue-side rejections in executor.ErrOrderRejected; they never
// touch strategy state.
package venue

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"botfleet/internal/domain"
	"botfleet/internal/executor"
)

// Binance implements VenueClient over the spot REST API. Resting orders
// are addressed by their client order id, so lookups survive restarts as
// long as the id is persisted.
type Binance struct {
	client *binance.Client
}

var _ executor.VenueClient = (*Binance)(nil)

func NewBinance(client *binance.Client) *Binance {
	return &Binance{client: client}
}

// PlaceMarketOrder submits a market order and converts the immediate fill
// report. Buys are sized by quote amount (QuoteOrderQty), sells by base
// quantity, matching the executor's spent-asset convention.
func (b *Binance) PlaceMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (executor.VenueFill, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(clientOrderID)

	if side == domain.SideBuy {
		svc = svc.Side(binance.SideTypeBuy).QuoteOrderQty(amount.String())
	} else {
		svc = svc.Side(binance.SideTypeSell).Quantity(amount.String())
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return executor.VenueFill{}, wrapBinanceErr(err, "place market order")
	}

	return binanceFillFromCreate(resp, side)
}

func (b *Binance) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
	// The API wants base quantity; buy reservations arrive in quote.
	baseQty := quantity
	if side == domain.SideBuy {
		baseQty = quantity.Div(price)
	}

	sideType := binance.SideTypeSell
	if side == domain.SideBuy {
		sideType = binance.SideTypeBuy
	}

	resp, err := b.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(sideType).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Price(price.String()).
		Quantity(baseQty.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return "", wrapBinanceErr(err, "place limit order")
	}
	return resp.ClientOrderID, nil
}

func (b *Binance) CancelOrder(ctx context.Context, pair domain.Pair, venueOrderID string) error {
	_, err := b.client.NewCancelOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(venueOrderID).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok && (apiErr.Code == -2011 || apiErr.Code == -2013) {
			// already gone, cancel is idempotent
			return nil
		}
		return errors.Wrap(err, "cancel binance order")
	}
	return nil
}

func (b *Binance) OrderStatus(ctx context.Context, pair domain.Pair, venueOrderID string) (executor.VenueOrderStatus, error) {
	order, err := b.client.NewGetOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(venueOrderID).
		Do(ctx)
	if err != nil {
		return executor.VenueOrderStatus{}, errors.Wrap(err, "query binance order")
	}

	switch order.Status {
	case binance.OrderStatusTypeFilled:
		fill, err := binanceFillFromOrder(order)
		if err != nil {
			return executor.VenueOrderStatus{}, err
		}
		return executor.VenueOrderStatus{Fill: fill}, nil
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		return executor.VenueOrderStatus{Cancelled: true}, nil
	default:
		// new or partially filled: keep waiting
		return executor.VenueOrderStatus{Open: true}, nil
	}
}

func binanceFillFromCreate(resp *binance.CreateOrderResponse, side domain.Side) (executor.VenueFill, error) {
	execQty, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse executed quantity")
	}
	quoteQty, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse quote quantity")
	}
	if execQty.IsZero() {
		return executor.VenueFill{}, errors.Wrap(executor.ErrOrderRejected, "market order not executed")
	}

	fee := decimal.Zero
	for _, f := range resp.Fills {
		commission, err := decimal.NewFromString(f.Commission)
		if err != nil {
			return executor.VenueFill{}, errors.Wrap(err, "parse commission")
		}
		fee = fee.Add(commission)
	}

	price := quoteQty.Div(execQty)
	return buildFill(resp.ClientOrderID, side, execQty, quoteQty, fee, price), nil
}

func binanceFillFromOrder(order *binance.Order) (executor.VenueFill, error) {
	execQty, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse executed quantity")
	}
	quoteQty, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return executor.VenueFill{}, errors.Wrap(err, "parse quote quantity")
	}
	if execQty.IsZero() {
		return executor.VenueFill{}, errors.New("filled order reports zero executed quantity")
	}

	side := domain.SideSell
	if order.Side == binance.SideTypeBuy {
		side = domain.SideBuy
	}
	price := quoteQty.Div(execQty)
	// the order endpoint does not itemize commissions; report zero and
	// let Received carry the venue-confirmed credit
	return buildFill(order.ClientOrderID, side, execQty, quoteQty, decimal.Zero, price), nil
}

// buildFill maps venue quantities onto the spent/received convention:
// buys spend quote and receive base net of a base-denominated commission,
// sells the other way around.
func buildFill(orderID string, side domain.Side, execQty, quoteQty, commission, price decimal.Decimal) executor.VenueFill {
	if side == domain.SideBuy {
		return executor.VenueFill{
			OrderID:  orderID,
			Spent:    quoteQty,
			Received: execQty.Sub(commission),
			Fee:      commission.Mul(price),
			Price:    price,
		}
	}
	return executor.VenueFill{
		OrderID:  orderID,
		Spent:    execQty,
		Received: quoteQty.Sub(commission),
		Fee:      commission,
		Price:    price,
	}
}

func wrapBinanceErr(err error, msg string) error {
	if apiErr, ok := err.(*common.APIError); ok {
		return errors.Wrapf(executor.ErrOrderRejected, "%s: binance code %d: %s", msg, apiErr.Code, apiErr.Message)
	}
	return errors.Wrap(err, msg)
}
