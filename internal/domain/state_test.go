package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPair = Pair{Base: "XRP", Quote: "USDT"}

func newTestState(t *testing.T, base, quote string) *State {
	t.Helper()
	s, err := NewState(testPair, decimal.RequireFromString(base), decimal.RequireFromString(quote))
	require.NoError(t, err)
	return s
}

func TestNewState_RejectsNegativeBalances(t *testing.T) {
	_, err := NewState(testPair, decimal.NewFromInt(-1), decimal.Zero)
	require.Error(t, err)
}

func TestFillMarket_BuyFeeAccounting(t *testing.T) {
	s := newTestState(t, "0", "1000")

	// spend 1000 USDT at 0.5, fee rate 0.0025 on the spent asset
	requested := decimal.RequireFromString("1000")
	fee := requested.Mul(decimal.RequireFromString("0.0025"))
	price := decimal.RequireFromString("0.5")
	received := requested.Sub(fee).Div(price)

	err := s.FillMarket(Order{
		ID:        "o1",
		Pair:      testPair,
		Side:      SideBuy,
		Kind:      KindMarket,
		Status:    OrderStatusFilled,
		Requested: requested,
		FillPrice: price,
		Fee:       fee,
		Received:  received,
	})
	require.NoError(t, err)

	assert.True(t, s.QuoteAvailable().IsZero(), "quote available should be exactly zero, got %s", s.QuoteAvailable())
	assert.True(t, s.TotalQuote().IsZero())
	assert.True(t, s.BaseAvailable().Equal(decimal.RequireFromString("1995")), "got %s", s.BaseAvailable())
	assert.True(t, s.TotalBase().Equal(s.BaseAvailable()))
	assert.Equal(t, 1, s.Transactions())
	assert.Len(t, s.FilledOrders(), 1)
}

func TestFillMarket_SellRoundTripConservation(t *testing.T) {
	s := newTestState(t, "0", "1000")
	feeRate := decimal.RequireFromString("0.0025")
	price := decimal.RequireFromString("2")

	buyFee := decimal.RequireFromString("1000").Mul(feeRate)
	bought := decimal.RequireFromString("1000").Sub(buyFee).Div(price)
	require.NoError(t, s.FillMarket(Order{
		ID: "b", Pair: testPair, Side: SideBuy, Kind: KindMarket, Status: OrderStatusFilled,
		Requested: decimal.RequireFromString("1000"), FillPrice: price, Fee: buyFee, Received: bought,
	}))

	sellFee := bought.Mul(feeRate)
	proceeds := bought.Sub(sellFee).Mul(price)
	require.NoError(t, s.FillMarket(Order{
		ID: "s", Pair: testPair, Side: SideSell, Kind: KindMarket, Status: OrderStatusFilled,
		Requested: bought, FillPrice: price, Fee: sellFee, Received: proceeds,
	}))

	// both fees bite: 1000 * 0.9975^2
	want := decimal.RequireFromString("1000").
		Mul(decimal.RequireFromString("0.9975")).
		Mul(decimal.RequireFromString("0.9975"))
	assert.True(t, s.TotalQuote().Equal(want), "want %s got %s", want, s.TotalQuote())
	assert.True(t, s.TotalBase().IsZero())
	assert.Equal(t, 2, s.Transactions())
}

func TestFillMarket_InsufficientBalanceLeavesStateUntouched(t *testing.T) {
	s := newTestState(t, "0", "100")

	err := s.FillMarket(Order{
		ID: "o1", Pair: testPair, Side: SideBuy, Kind: KindMarket, Status: OrderStatusFilled,
		Requested: decimal.RequireFromString("100.01"),
		Received:  decimal.RequireFromString("1"),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.True(t, s.QuoteAvailable().Equal(decimal.RequireFromString("100")))
	assert.True(t, s.TotalQuote().Equal(decimal.RequireFromString("100")))
	assert.Equal(t, 0, s.Transactions())
	assert.Empty(t, s.FilledOrders())
}

func TestHold_ReservationKeepsTotals(t *testing.T) {
	s := newTestState(t, "0", "1000")

	require.NoError(t, s.Hold(Order{
		ID: "l1", Pair: testPair, Side: SideBuy, Kind: KindLimit, Status: OrderStatusOpen,
		Requested:  decimal.RequireFromString("400"),
		OnHold:     decimal.RequireFromString("400"),
		LimitPrice: decimal.RequireFromString("0.4"),
	}))

	assert.True(t, s.QuoteAvailable().Equal(decimal.RequireFromString("600")))
	assert.True(t, s.TotalQuote().Equal(decimal.RequireFromString("1000")), "totals unchanged while reserved")
	require.Len(t, s.OpenOrders(), 1)

	released, err := s.ReleaseHeld("l1")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, released.Status)
	assert.True(t, s.QuoteAvailable().Equal(decimal.RequireFromString("1000")))
	assert.Len(t, s.OpenOrders(), 0)
	assert.Len(t, s.CancelledOrders(), 1)
	assert.Equal(t, 0, s.Transactions(), "cancellation is not a transaction")
}

func TestHold_InsufficientAvailable(t *testing.T) {
	s := newTestState(t, "0", "100")
	err := s.Hold(Order{
		ID: "l1", Pair: testPair, Side: SideBuy, Kind: KindLimit, Status: OrderStatusOpen,
		OnHold: decimal.RequireFromString("101"),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, s.OpenOrders())
}

func TestSettleHeld_BuyLimitFill(t *testing.T) {
	s := newTestState(t, "0", "1000")
	require.NoError(t, s.Hold(Order{
		ID: "l1", Pair: testPair, Side: SideBuy, Kind: KindLimit, Status: OrderStatusOpen,
		OnHold:     decimal.RequireFromString("100"),
		LimitPrice: decimal.RequireFromString("0.4"),
	}))

	fee := decimal.RequireFromString("0.1")
	received := decimal.RequireFromString("99.9").Div(decimal.RequireFromString("0.4"))
	filledAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	filled, err := s.SettleHeld("l1", decimal.RequireFromString("0.4"), fee, received, filledAt)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusFilled, filled.Status)
	assert.Equal(t, filledAt, filled.FilledAt)

	assert.True(t, s.TotalQuote().Equal(decimal.RequireFromString("900")))
	assert.True(t, s.QuoteAvailable().Equal(decimal.RequireFromString("900")))
	assert.True(t, s.BaseAvailable().Equal(received))
	assert.True(t, s.TotalBase().Equal(received))
	assert.Empty(t, s.OpenOrders())
	assert.Equal(t, 1, s.Transactions())
}

func TestRestoreState_ValidatesReservationInvariant(t *testing.T) {
	open := []Order{{
		ID: "l1", Pair: testPair, Side: SideBuy, Kind: KindLimit, Status: OrderStatusOpen,
		OnHold: decimal.RequireFromString("400"),
	}}

	// consistent: total 1000 = available 600 + held 400
	s, err := RestoreState(testPair,
		decimal.Zero, decimal.RequireFromString("1000"),
		decimal.Zero, decimal.RequireFromString("600"),
		open, nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Transactions())

	// inconsistent: available does not account for the hold
	_, err = RestoreState(testPair,
		decimal.Zero, decimal.RequireFromString("1000"),
		decimal.Zero, decimal.RequireFromString("1000"),
		open, nil, nil, 0)
	require.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	s := newTestState(t, "5", "100")
	require.NoError(t, s.Hold(Order{
		ID: "l1", Pair: testPair, Side: SideSell, Kind: KindLimit, Status: OrderStatusOpen,
		OnHold: decimal.RequireFromString("2"), LimitPrice: decimal.RequireFromString("3"),
	}))

	c := s.Clone()
	_, err := s.ReleaseHeld("l1")
	require.NoError(t, err)

	assert.Len(t, c.OpenOrders(), 1, "clone keeps its own order sets")
	assert.True(t, c.BaseAvailable().Equal(decimal.RequireFromString("3")))
}

func TestTotalValueInQuote(t *testing.T) {
	s := newTestState(t, "2", "50")
	v := s.TotalValueInQuote(decimal.RequireFromString("10"))
	assert.True(t, v.Equal(decimal.RequireFromString("70")))
}
