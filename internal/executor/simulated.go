package executor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"botfleet/internal/domain"
)

// Simulated fills orders against the current candle with a configurable
// fee, without I/O, wall-clock reads or randomness: identical inputs
// always produce the identical order and state delta. Market orders fill
// at the candle close; limit orders rest until a candle crosses their
// price and then fill at the limit price.
type Simulated struct {
	state     *domain.State
	feeMarket decimal.Decimal
	feeLimit  decimal.Decimal
	logger    *zap.Logger

	candle    domain.Candle
	hasCandle bool
	seq       int
}

var _ Executor = (*Simulated)(nil)

// NewSimulated creates a simulated executor bound to the given state.
func NewSimulated(state *domain.State, feeMarketOrder, feeLimitOrder decimal.Decimal, logger *zap.Logger) (*Simulated, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	if feeMarketOrder.IsNegative() || feeLimitOrder.IsNegative() {
		return nil, errors.New("fee rates must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		state:     state,
		feeMarket: feeMarketOrder,
		feeLimit:  feeLimitOrder,
		logger:    logger,
	}, nil
}

// SetCandle advances the simulation to the given candle. The backtest
// engine calls this once per step before reconciling and executing.
func (s *Simulated) SetCandle(c domain.Candle) {
	s.candle = c
	s.hasCandle = true
}

func (s *Simulated) PlaceMarketBuyOrder(ctx context.Context, asset string, quoteAmount decimal.Decimal) (domain.Order, error) {
	if err := s.checkReady(asset); err != nil {
		return domain.Order{}, err
	}
	if !quoteAmount.IsPositive() {
		return domain.Order{}, errors.Errorf("buy amount must be positive, got %s", quoteAmount)
	}

	price := s.candle.Close
	fee := quoteAmount.Mul(s.feeMarket)
	received := quoteAmount.Sub(fee).Div(price)

	order := domain.Order{
		ID:        s.nextID(),
		Pair:      s.state.Pair(),
		Side:      domain.SideBuy,
		Kind:      domain.KindMarket,
		Status:    domain.OrderStatusFilled,
		Requested: quoteAmount,
		FillPrice: price,
		Fee:       fee,
		Received:  received,
		CreatedAt: s.candle.Time,
		FilledAt:  s.candle.Time,
	}
	if err := s.state.FillMarket(order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Debug("simulated market buy",
		zap.String("id", order.ID),
		zap.String("spent", quoteAmount.String()),
		zap.String("price", price.String()),
		zap.String("fee", fee.String()))
	return order, nil
}

func (s *Simulated) PlaceMarketSellOrder(ctx context.Context, asset string, baseAmount decimal.Decimal) (domain.Order, error) {
	if err := s.checkReady(asset); err != nil {
		return domain.Order{}, err
	}
	if !baseAmount.IsPositive() {
		return domain.Order{}, errors.Errorf("sell amount must be positive, got %s", baseAmount)
	}

	price := s.candle.Close
	fee := baseAmount.Mul(s.feeMarket)
	received := baseAmount.Sub(fee).Mul(price)

	order := domain.Order{
		ID:        s.nextID(),
		Pair:      s.state.Pair(),
		Side:      domain.SideSell,
		Kind:      domain.KindMarket,
		Status:    domain.OrderStatusFilled,
		Requested: baseAmount,
		FillPrice: price,
		Fee:       fee,
		Received:  received,
		CreatedAt: s.candle.Time,
		FilledAt:  s.candle.Time,
	}
	if err := s.state.FillMarket(order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Debug("simulated market sell",
		zap.String("id", order.ID),
		zap.String("spent", baseAmount.String()),
		zap.String("price", price.String()),
		zap.String("fee", fee.String()))
	return order, nil
}

func (s *Simulated) PlaceLimitOrder(ctx context.Context, asset string, price, quantity decimal.Decimal, side domain.Side) (domain.Order, error) {
	if err := s.checkReady(asset); err != nil {
		return domain.Order{}, err
	}
	if !price.IsPositive() || !quantity.IsPositive() {
		return domain.Order{}, errors.New("limit price and quantity must be positive")
	}

	order := domain.Order{
		ID:         s.nextID(),
		Pair:       s.state.Pair(),
		Side:       side,
		Kind:       domain.KindLimit,
		Status:     domain.OrderStatusOpen,
		Requested:  quantity,
		OnHold:     quantity,
		LimitPrice: price,
		CreatedAt:  s.candle.Time,
	}
	if err := s.state.Hold(order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Debug("simulated limit order placed",
		zap.String("id", order.ID),
		zap.String("side", string(side)),
		zap.String("limit_price", price.String()),
		zap.String("on_hold", quantity.String()))
	return order, nil
}

func (s *Simulated) CancelOpenOrders(ctx context.Context) error {
	for _, o := range s.state.OpenOrders() {
		if _, err := s.state.ReleaseHeld(o.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulated) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return s.state.OpenOrders(), nil
}

func (s *Simulated) GetOrderInfo(ctx context.Context, id string) (domain.Order, error) {
	o, ok := s.state.Order(id)
	if !ok {
		return domain.Order{}, errors.Errorf("no order %s", id)
	}
	return o, nil
}

// Reconcile fills every open limit order crossed by the current candle:
// buys fill when the candle low reaches the limit price, sells when the
// candle high reaches it. Fills happen at the limit price with the
// limit-order fee.
func (s *Simulated) Reconcile(ctx context.Context) error {
	if !s.hasCandle {
		return nil
	}

	for _, o := range s.state.OpenOrders() {
		crossed := (o.Side == domain.SideBuy && s.candle.Low.LessThanOrEqual(o.LimitPrice)) ||
			(o.Side == domain.SideSell && s.candle.High.GreaterThanOrEqual(o.LimitPrice))
		if !crossed {
			continue
		}

		fee := o.OnHold.Mul(s.feeLimit)
		net := o.OnHold.Sub(fee)
		var received decimal.Decimal
		if o.SpendsQuote() {
			received = net.Div(o.LimitPrice)
		} else {
			received = net.Mul(o.LimitPrice)
		}

		filled, err := s.state.SettleHeld(o.ID, o.LimitPrice, fee, received, s.candle.Time)
		if err != nil {
			return err
		}
		s.logger.Debug("simulated limit order filled",
			zap.String("id", filled.ID),
			zap.String("fill_price", filled.FillPrice.String()),
			zap.String("received", filled.Received.String()))
	}
	return nil
}

// State returns a deep copy; callers cannot mutate executor state.
func (s *Simulated) State() *domain.State {
	return s.state.Clone()
}

func (s *Simulated) checkReady(asset string) error {
	if asset != s.state.Pair().Base {
		return errors.Errorf("executor is bound to %s, got asset %s", s.state.Pair().Base, asset)
	}
	if !s.hasCandle {
		return errors.New("no current candle set")
	}
	if !s.candle.Close.IsPositive() {
		return errors.Errorf("invalid candle close price %s", s.candle.Close)
	}
	return nil
}

func (s *Simulated) nextID() string {
	s.seq++
	return fmt.Sprintf("sim-%d", s.seq)
}
