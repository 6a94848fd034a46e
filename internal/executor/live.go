package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"botfleet/internal/domain"
	"botfleet/pkg/retrier"
)

// Live delegates order placement to a venue client and reconciles state
// from the venue's confirmed responses, never from an assumed fill. A
// venue rejection surfaces as ErrOrderRejected with no state mutation.
//
// Placement calls are made exactly once; only idempotent reads and
// cancels are retried.
type Live struct {
	state   *domain.State
	venue   VenueClient
	journal FillJournal
	retry   *retrier.Retrier
	logger  *zap.Logger
}

var _ Executor = (*Live)(nil)

// NewLive creates a live executor bound to the given state and venue
// client. The journal may be nil.
func NewLive(state *domain.State, venue VenueClient, journal FillJournal, logger *zap.Logger) (*Live, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	if venue == nil {
		return nil, errors.New("venue client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Live{
		state:   state,
		venue:   venue,
		journal: journal,
		retry:   retrier.New(retrier.WithMaxRetries(3)),
		logger:  logger,
	}, nil
}

func (l *Live) PlaceMarketBuyOrder(ctx context.Context, asset string, quoteAmount decimal.Decimal) (domain.Order, error) {
	return l.placeMarket(ctx, asset, domain.SideBuy, quoteAmount)
}

func (l *Live) PlaceMarketSellOrder(ctx context.Context, asset string, baseAmount decimal.Decimal) (domain.Order, error) {
	return l.placeMarket(ctx, asset, domain.SideSell, baseAmount)
}

func (l *Live) placeMarket(ctx context.Context, asset string, side domain.Side, amount decimal.Decimal) (domain.Order, error) {
	if err := l.checkAsset(asset); err != nil {
		return domain.Order{}, err
	}
	if !amount.IsPositive() {
		return domain.Order{}, errors.Errorf("order amount must be positive, got %s", amount)
	}
	if err := l.checkAvailable(side, amount); err != nil {
		return domain.Order{}, err
	}

	clientOrderID := uuid.NewString()
	fill, err := l.venue.PlaceMarketOrder(ctx, l.state.Pair(), side, amount, clientOrderID)
	if err != nil {
		return domain.Order{}, errors.Wrapf(err, "place market %s order", side)
	}

	now := time.Now()
	order := domain.Order{
		ID:        clientOrderID,
		VenueID:   fill.OrderID,
		Pair:      l.state.Pair(),
		Side:      side,
		Kind:      domain.KindMarket,
		Status:    domain.OrderStatusFilled,
		Requested: fill.Spent,
		FillPrice: fill.Price,
		Fee:       fill.Fee,
		Received:  fill.Received,
		CreatedAt: now,
		FilledAt:  now,
	}
	if err := l.state.FillMarket(order); err != nil {
		return domain.Order{}, errors.Wrap(err, "apply confirmed fill")
	}
	l.recordFill(order)

	l.logger.Info("live market order filled",
		zap.String("id", order.ID),
		zap.String("venue_id", order.VenueID),
		zap.String("side", string(side)),
		zap.String("spent", fill.Spent.String()),
		zap.String("price", fill.Price.String()))
	return order, nil
}

func (l *Live) PlaceLimitOrder(ctx context.Context, asset string, price, quantity decimal.Decimal, side domain.Side) (domain.Order, error) {
	if err := l.checkAsset(asset); err != nil {
		return domain.Order{}, err
	}
	if !price.IsPositive() || !quantity.IsPositive() {
		return domain.Order{}, errors.New("limit price and quantity must be positive")
	}
	if err := l.checkAvailable(side, quantity); err != nil {
		return domain.Order{}, err
	}

	clientOrderID := uuid.NewString()
	venueID, err := l.venue.PlaceLimitOrder(ctx, l.state.Pair(), side, price, quantity, clientOrderID)
	if err != nil {
		return domain.Order{}, errors.Wrapf(err, "place limit %s order", side)
	}

	order := domain.Order{
		ID:         clientOrderID,
		VenueID:    venueID,
		Pair:       l.state.Pair(),
		Side:       side,
		Kind:       domain.KindLimit,
		Status:     domain.OrderStatusOpen,
		Requested:  quantity,
		OnHold:     quantity,
		LimitPrice: price,
		CreatedAt:  time.Now(),
	}
	if err := l.state.Hold(order); err != nil {
		return domain.Order{}, errors.Wrap(err, "hold limit order reservation")
	}

	l.logger.Info("live limit order placed",
		zap.String("id", order.ID),
		zap.String("venue_id", venueID),
		zap.String("side", string(side)),
		zap.String("limit_price", price.String()))
	return order, nil
}

func (l *Live) CancelOpenOrders(ctx context.Context) error {
	for _, o := range l.state.OpenOrders() {
		orderID := o.VenueID
		err := l.retry.Do(ctx, func(ctx context.Context) error {
			return l.venue.CancelOrder(ctx, l.state.Pair(), orderID)
		})
		if err != nil {
			return errors.Wrapf(err, "cancel order %s", o.ID)
		}
		if _, err := l.state.ReleaseHeld(o.ID); err != nil {
			return err
		}
		l.logger.Info("live order cancelled", zap.String("id", o.ID), zap.String("venue_id", orderID))
	}
	return nil
}

func (l *Live) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return l.state.OpenOrders(), nil
}

func (l *Live) GetOrderInfo(ctx context.Context, id string) (domain.Order, error) {
	o, ok := l.state.Order(id)
	if !ok {
		return domain.Order{}, errors.Errorf("no order %s", id)
	}
	return o, nil
}

// Reconcile syncs every open order with the venue: confirmed fills are
// settled from the venue's numbers, venue-side cancellations release the
// reservation. Orders still open are left alone.
func (l *Live) Reconcile(ctx context.Context) error {
	for _, o := range l.state.OpenOrders() {
		orderID := o.VenueID
		status, err := retrier.DoWithData(l.retry, ctx, func(ctx context.Context) (VenueOrderStatus, error) {
			return l.venue.OrderStatus(ctx, l.state.Pair(), orderID)
		})
		if err != nil {
			return errors.Wrapf(err, "query order %s status", o.ID)
		}

		switch {
		case status.Open:
			continue
		case status.Cancelled:
			if _, err := l.state.ReleaseHeld(o.ID); err != nil {
				return err
			}
			l.logger.Info("live order cancelled by venue", zap.String("id", o.ID))
		default:
			filled, err := l.state.SettleHeld(o.ID, status.Fill.Price, status.Fill.Fee, status.Fill.Received, time.Now())
			if err != nil {
				return err
			}
			l.recordFill(filled)
			l.logger.Info("live limit order filled",
				zap.String("id", filled.ID),
				zap.String("fill_price", filled.FillPrice.String()),
				zap.String("received", filled.Received.String()))
		}
	}
	return nil
}

// State returns a deep copy; callers cannot mutate executor state.
func (l *Live) State() *domain.State {
	return l.state.Clone()
}

func (l *Live) checkAsset(asset string) error {
	if asset != l.state.Pair().Base {
		return errors.Errorf("executor is bound to %s, got asset %s", l.state.Pair().Base, asset)
	}
	return nil
}

func (l *Live) checkAvailable(side domain.Side, amount decimal.Decimal) error {
	if side == domain.SideBuy {
		if l.state.QuoteAvailable().LessThan(amount) {
			return errors.Wrapf(domain.ErrInsufficientBalance, "%s: have %s need %s",
				l.state.Pair().Quote, l.state.QuoteAvailable(), amount)
		}
		return nil
	}
	if l.state.BaseAvailable().LessThan(amount) {
		return errors.Wrapf(domain.ErrInsufficientBalance, "%s: have %s need %s",
			l.state.Pair().Base, l.state.BaseAvailable(), amount)
	}
	return nil
}

func (l *Live) recordFill(o domain.Order) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Record(o); err != nil {
		l.logger.Warn("failed to journal fill", zap.String("id", o.ID), zap.Error(err))
	}
}
