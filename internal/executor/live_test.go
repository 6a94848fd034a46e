package executor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/domain"
)

// mockVenue scripts venue behavior per call.
type mockVenue struct {
	placeMarket func(pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error)
	placeLimit  func(pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error)
	cancel      func(pair domain.Pair, venueOrderID string) error
	status      func(pair domain.Pair, venueOrderID string) (VenueOrderStatus, error)

	marketCalls int
}

func (m *mockVenue) PlaceMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error) {
	m.marketCalls++
	return m.placeMarket(pair, side, amount, clientOrderID)
}

func (m *mockVenue) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
	return m.placeLimit(pair, side, price, quantity, clientOrderID)
}

func (m *mockVenue) CancelOrder(ctx context.Context, pair domain.Pair, venueOrderID string) error {
	return m.cancel(pair, venueOrderID)
}

func (m *mockVenue) OrderStatus(ctx context.Context, pair domain.Pair, venueOrderID string) (VenueOrderStatus, error) {
	return m.status(pair, venueOrderID)
}

type recordingJournal struct {
	fills []domain.Order
}

func (j *recordingJournal) Record(o domain.Order) error {
	j.fills = append(j.fills, o)
	return nil
}

func newLiveState(t *testing.T, base, quote string) *domain.State {
	t.Helper()
	state, err := domain.NewState(simPair,
		decimal.RequireFromString(base), decimal.RequireFromString(quote))
	require.NoError(t, err)
	return state
}

func TestLive_MarketBuyAppliesVenueConfirmedFill(t *testing.T) {
	venue := &mockVenue{
		placeMarket: func(pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error) {
			return VenueFill{
				OrderID:  "venue-1",
				Spent:    amount,
				Received: decimal.RequireFromString("199"),
				Fee:      decimal.RequireFromString("0.25"),
				Price:    decimal.RequireFromString("0.5"),
			}, nil
		},
	}
	journal := &recordingJournal{}
	live, err := NewLive(newLiveState(t, "0", "100"), venue, journal, nil)
	require.NoError(t, err)

	order, err := live.PlaceMarketBuyOrder(context.Background(), "XRP", decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.Equal(t, "venue-1", order.VenueID)
	assert.NotEmpty(t, order.ID)

	state := live.State()
	assert.True(t, state.QuoteAvailable().IsZero())
	assert.True(t, state.BaseAvailable().Equal(decimal.RequireFromString("199")), "credited exactly what the venue confirmed")
	require.Len(t, journal.fills, 1)
	assert.Equal(t, order.ID, journal.fills[0].ID)
}

func TestLive_RejectionDoesNotTouchState(t *testing.T) {
	venue := &mockVenue{
		placeMarket: func(pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error) {
			return VenueFill{}, errors.Wrap(ErrOrderRejected, "min notional")
		},
	}
	live, err := NewLive(newLiveState(t, "0", "100"), venue, nil, nil)
	require.NoError(t, err)

	_, err = live.PlaceMarketBuyOrder(context.Background(), "XRP", decimal.RequireFromString("50"))
	require.ErrorIs(t, err, ErrOrderRejected)

	state := live.State()
	assert.True(t, state.QuoteAvailable().Equal(decimal.RequireFromString("100")))
	assert.Empty(t, state.FilledOrders())
	assert.Equal(t, 1, venue.marketCalls, "placement is never retried")
}

func TestLive_InsufficientBalanceSkipsVenueCall(t *testing.T) {
	venue := &mockVenue{
		placeMarket: func(pair domain.Pair, side domain.Side, amount decimal.Decimal, clientOrderID string) (VenueFill, error) {
			t.Fatal("venue must not be called when the local balance check fails")
			return VenueFill{}, nil
		},
	}
	live, err := NewLive(newLiveState(t, "0", "100"), venue, nil, nil)
	require.NoError(t, err)

	_, err = live.PlaceMarketBuyOrder(context.Background(), "XRP", decimal.RequireFromString("101"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, 0, venue.marketCalls)
}

func TestLive_ReconcileSettlesAndReleases(t *testing.T) {
	var placed []string
	venue := &mockVenue{
		placeLimit: func(pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
			placed = append(placed, clientOrderID)
			return "venue-" + clientOrderID, nil
		},
		status: func(pair domain.Pair, venueOrderID string) (VenueOrderStatus, error) {
			if venueOrderID == "venue-"+placed[0] {
				return VenueOrderStatus{Fill: VenueFill{
					Spent:    decimal.RequireFromString("40"),
					Received: decimal.RequireFromString("99.9"),
					Fee:      decimal.RequireFromString("0.04"),
					Price:    decimal.RequireFromString("0.4"),
				}}, nil
			}
			return VenueOrderStatus{Cancelled: true}, nil
		},
	}
	live, err := NewLive(newLiveState(t, "0", "100"), venue, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = live.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("0.4"), decimal.RequireFromString("40"), domain.SideBuy)
	require.NoError(t, err)
	_, err = live.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("0.3"), decimal.RequireFromString("30"), domain.SideBuy)
	require.NoError(t, err)

	require.NoError(t, live.Reconcile(ctx))

	state := live.State()
	assert.Empty(t, state.OpenOrders())
	assert.Len(t, state.FilledOrders(), 1)
	assert.Len(t, state.CancelledOrders(), 1)
	// 100 - 40 spent, cancelled 30 released
	assert.True(t, state.QuoteAvailable().Equal(decimal.RequireFromString("60")))
	assert.True(t, state.BaseAvailable().Equal(decimal.RequireFromString("99.9")))
}

func TestLive_CancelOpenOrders(t *testing.T) {
	venue := &mockVenue{
		placeLimit: func(pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
			return "v1", nil
		},
		cancel: func(pair domain.Pair, venueOrderID string) error {
			assert.Equal(t, "v1", venueOrderID)
			return nil
		},
	}
	live, err := NewLive(newLiveState(t, "100", "0"), venue, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = live.PlaceLimitOrder(ctx, "XRP", decimal.RequireFromString("2"), decimal.RequireFromString("50"), domain.SideSell)
	require.NoError(t, err)
	require.NoError(t, live.CancelOpenOrders(ctx))

	state := live.State()
	assert.Empty(t, state.OpenOrders())
	assert.True(t, state.BaseAvailable().Equal(decimal.RequireFromString("100")))
}

func TestLive_GetOrderInfo(t *testing.T) {
	venue := &mockVenue{
		placeLimit: func(pair domain.Pair, side domain.Side, price, quantity decimal.Decimal, clientOrderID string) (string, error) {
			return "v1", nil
		},
	}
	live, err := NewLive(newLiveState(t, "100", "0"), venue, nil, nil)
	require.NoError(t, err)

	order, err := live.PlaceLimitOrder(context.Background(), "XRP",
		decimal.RequireFromString("2"), decimal.RequireFromString("10"), domain.SideSell)
	require.NoError(t, err)

	got, err := live.GetOrderInfo(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = live.GetOrderInfo(context.Background(), "missing")
	require.Error(t, err)
}
