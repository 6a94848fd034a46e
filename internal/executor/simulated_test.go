package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/domain"
)

var simPair = domain.Pair{Base: "XRP", Quote: "USDT"}

func newSimulated(t *testing.T, base, quote, feeMarket, feeLimit string) *Simulated {
	t.Helper()
	state, err := domain.NewState(simPair,
		decimal.RequireFromString(base), decimal.RequireFromString(quote))
	require.NoError(t, err)
	sim, err := NewSimulated(state,
		decimal.RequireFromString(feeMarket), decimal.RequireFromString(feeLimit), nil)
	require.NoError(t, err)
	return sim
}

func candleAt(tm time.Time, low, high, close string) domain.Candle {
	return domain.Candle{
		Time:  tm,
		Open:  decimal.RequireFromString(close),
		High:  decimal.RequireFromString(high),
		Low:   decimal.RequireFromString(low),
		Close: decimal.RequireFromString(close),
	}
}

func TestSimulated_MarketBuySpendsFullQuoteWithFee(t *testing.T) {
	sim := newSimulated(t, "0", "1000", "0.0025", "0.001")
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim.SetCandle(candleAt(ts, "0.5", "0.5", "0.5"))

	order, err := sim.PlaceMarketBuyOrder(context.Background(), "XRP", decimal.RequireFromString("1000"))
	require.NoError(t, err)

	state := sim.State()
	assert.True(t, state.QuoteAvailable().IsZero(), "quote available must be exactly zero")
	// (1000 * 0.9975) / 0.5
	want := decimal.RequireFromString("1995")
	assert.True(t, state.BaseAvailable().Equal(want), "want %s got %s", want, state.BaseAvailable())

	assert.Equal(t, ts, order.CreatedAt, "timestamps come from the candle, not the clock")
	assert.Equal(t, ts, order.FilledAt)
	assert.Equal(t, "sim-1", order.ID)
}

func TestSimulated_BuySellConservation(t *testing.T) {
	sim := newSimulated(t, "0", "1000", "0.0025", "0.001")
	sim.SetCandle(candleAt(time.Now(), "2", "2", "2"))
	ctx := context.Background()

	_, err := sim.PlaceMarketBuyOrder(ctx, "XRP", decimal.RequireFromString("1000"))
	require.NoError(t, err)
	base := sim.State().BaseAvailable()
	_, err = sim.PlaceMarketSellOrder(ctx, "XRP", base)
	require.NoError(t, err)

	state := sim.State()
	want := decimal.RequireFromString("1000").
		Mul(decimal.RequireFromString("0.9975")).
		Mul(decimal.RequireFromString("0.9975"))
	assert.True(t, state.TotalQuote().Equal(want), "want %s got %s", want, state.TotalQuote())
	assert.True(t, state.TotalBase().IsZero())
	assert.Equal(t, 2, state.Transactions())
}

func TestSimulated_InsufficientBalance(t *testing.T) {
	sim := newSimulated(t, "0", "100", "0.0025", "0.001")
	sim.SetCandle(candleAt(time.Now(), "1", "1", "1"))

	_, err := sim.PlaceMarketBuyOrder(context.Background(), "XRP", decimal.RequireFromString("100.01"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	state := sim.State()
	assert.True(t, state.QuoteAvailable().Equal(decimal.RequireFromString("100")), "state untouched on rejection")
}

func TestSimulated_RejectsUnknownAssetAndMissingCandle(t *testing.T) {
	sim := newSimulated(t, "0", "100", "0", "0")
	ctx := context.Background()

	_, err := sim.PlaceMarketBuyOrder(ctx, "XRP", decimal.NewFromInt(1))
	require.Error(t, err, "no candle set yet")

	sim.SetCandle(candleAt(time.Now(), "1", "1", "1"))
	_, err = sim.PlaceMarketBuyOrder(ctx, "BTC", decimal.NewFromInt(1))
	require.Error(t, err, "executor is bound to XRP")
}

func TestSimulated_LimitOrderLifecycle(t *testing.T) {
	sim := newSimulated(t, "0", "1000", "0.0025", "0.001")
	ctx := context.Background()
	sim.SetCandle(candleAt(time.Now(), "0.5", "0.5", "0.5"))

	order, err := sim.PlaceLimitOrder(ctx, "XRP",
		decimal.RequireFromString("0.4"), decimal.RequireFromString("100"), domain.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, order.Status)

	state := sim.State()
	assert.True(t, state.QuoteAvailable().Equal(decimal.RequireFromString("900")))
	assert.True(t, state.TotalQuote().Equal(decimal.RequireFromString("1000")))

	// candle does not reach the limit: stays open
	sim.SetCandle(candleAt(time.Now(), "0.45", "0.55", "0.5"))
	require.NoError(t, sim.Reconcile(ctx))
	open, err := sim.GetOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// candle low crosses the limit: fills at the limit price
	fillTime := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	sim.SetCandle(candleAt(fillTime, "0.35", "0.5", "0.42"))
	require.NoError(t, sim.Reconcile(ctx))

	state = sim.State()
	assert.Empty(t, state.OpenOrders())
	require.Len(t, state.FilledOrders(), 1)
	filled := state.FilledOrders()[0]
	assert.True(t, filled.FillPrice.Equal(decimal.RequireFromString("0.4")), "fills at the limit price, not the candle price")
	assert.Equal(t, fillTime, filled.FilledAt)

	// (100 - 100*0.001) / 0.4
	wantBase := decimal.RequireFromString("249.75")
	assert.True(t, state.BaseAvailable().Equal(wantBase), "want %s got %s", wantBase, state.BaseAvailable())
	assert.True(t, state.TotalQuote().Equal(decimal.RequireFromString("900")))
}

func TestSimulated_CancelOpenOrdersReleasesReservations(t *testing.T) {
	sim := newSimulated(t, "500", "1000", "0", "0")
	ctx := context.Background()
	sim.SetCandle(candleAt(time.Now(), "1", "1", "1"))

	_, err := sim.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("0.9"), decimal.RequireFromString("300"), domain.SideBuy)
	require.NoError(t, err)
	_, err = sim.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("1.1"), decimal.RequireFromString("200"), domain.SideSell)
	require.NoError(t, err)

	require.NoError(t, sim.CancelOpenOrders(ctx))

	state := sim.State()
	assert.Empty(t, state.OpenOrders())
	assert.Len(t, state.CancelledOrders(), 2)
	assert.True(t, state.QuoteAvailable().Equal(decimal.RequireFromString("1000")))
	assert.True(t, state.BaseAvailable().Equal(decimal.RequireFromString("500")))
}

func TestSimulated_SellLimitFillsOnHighCross(t *testing.T) {
	sim := newSimulated(t, "100", "0", "0", "0.001")
	ctx := context.Background()
	sim.SetCandle(candleAt(time.Now(), "1", "1", "1"))

	_, err := sim.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("1.5"), decimal.RequireFromString("100"), domain.SideSell)
	require.NoError(t, err)

	sim.SetCandle(candleAt(time.Now(), "1.2", "1.6", "1.4"))
	require.NoError(t, sim.Reconcile(ctx))

	state := sim.State()
	assert.True(t, state.TotalBase().IsZero())
	// (100 - 0.1) * 1.5
	want := decimal.RequireFromString("149.85")
	assert.True(t, state.QuoteAvailable().Equal(want), "want %s got %s", want, state.QuoteAvailable())
}

func TestSimulated_DeterministicReplay(t *testing.T) {
	run := func() *domain.State {
		sim := newSimulated(t, "0", "1000", "0.0025", "0.001")
		ctx := context.Background()
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		sim.SetCandle(candleAt(ts, "0.5", "0.6", "0.55"))
		_, err := sim.PlaceMarketBuyOrder(ctx, "XRP", decimal.RequireFromString("500"))
		require.NoError(t, err)
		_, err = sim.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("0.5"), decimal.RequireFromString("500"), domain.SideBuy)
		require.NoError(t, err)

		sim.SetCandle(candleAt(ts.Add(time.Hour), "0.45", "0.6", "0.5"))
		require.NoError(t, sim.Reconcile(ctx))
		return sim.State()
	}

	a, b := run(), run()
	assert.True(t, a.TotalBase().Equal(b.TotalBase()))
	assert.True(t, a.TotalQuote().Equal(b.TotalQuote()))
	require.Equal(t, len(a.FilledOrders()), len(b.FilledOrders()))
	for i := range a.FilledOrders() {
		assert.Equal(t, a.FilledOrders()[i].ID, b.FilledOrders()[i].ID, "order ids are deterministic")
	}
}
