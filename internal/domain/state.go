package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned when a requested spend exceeds the
// available balance. The request is never clamped to what is available.
var ErrInsufficientBalance = errors.New("insufficient balance")

// State holds the balances and open-order bookkeeping of one bot. All
// fields are unexported: mutation goes through the methods below, which
// keep the reservation invariant
//
//	total == available + sum(on-hold in open orders)
//
// for both assets. Executors are the only callers of the mutating methods.
type State struct {
	pair Pair

	totalBase      decimal.Decimal
	totalQuote     decimal.Decimal
	baseAvailable  decimal.Decimal
	quoteAvailable decimal.Decimal

	open      []Order
	filled    []Order
	cancelled []Order

	transactions int
}

// NewState creates a State with no open orders; the full balances are
// available.
func NewState(pair Pair, totalBase, totalQuote decimal.Decimal) (*State, error) {
	if totalBase.IsNegative() || totalQuote.IsNegative() {
		return nil, errors.New("initial balances must not be negative")
	}
	return &State{
		pair:           pair,
		totalBase:      totalBase,
		totalQuote:     totalQuote,
		baseAvailable:  totalBase,
		quoteAvailable: totalQuote,
	}, nil
}

// RestoreState rebuilds a State from persisted values, verifying the
// reservation invariant so a corrupted snapshot cannot produce a state
// the executors would mis-account.
func RestoreState(
	pair Pair,
	totalBase, totalQuote, baseAvailable, quoteAvailable decimal.Decimal,
	open, filled, cancelled []Order,
	transactions int,
) (*State, error) {
	for _, v := range []decimal.Decimal{totalBase, totalQuote, baseAvailable, quoteAvailable} {
		if v.IsNegative() {
			return nil, errors.New("restored balances must not be negative")
		}
	}

	heldBase, heldQuote := decimal.Zero, decimal.Zero
	for _, o := range open {
		if o.Status != OrderStatusOpen {
			return nil, errors.Errorf("order %s in open set has status %s", o.ID, o.Status)
		}
		if o.SpendsQuote() {
			heldQuote = heldQuote.Add(o.OnHold)
		} else {
			heldBase = heldBase.Add(o.OnHold)
		}
	}
	if !totalBase.Equal(baseAvailable.Add(heldBase)) {
		return nil, errors.Errorf("base invariant violated: total %s != available %s + held %s",
			totalBase, baseAvailable, heldBase)
	}
	if !totalQuote.Equal(quoteAvailable.Add(heldQuote)) {
		return nil, errors.Errorf("quote invariant violated: total %s != available %s + held %s",
			totalQuote, quoteAvailable, heldQuote)
	}

	s := &State{
		pair:           pair,
		totalBase:      totalBase,
		totalQuote:     totalQuote,
		baseAvailable:  baseAvailable,
		quoteAvailable: quoteAvailable,
		open:           append([]Order(nil), open...),
		filled:         append([]Order(nil), filled...),
		cancelled:      append([]Order(nil), cancelled...),
		transactions:   transactions,
	}
	return s, nil
}

func (s *State) Pair() Pair                      { return s.pair }
func (s *State) TotalBase() decimal.Decimal      { return s.totalBase }
func (s *State) TotalQuote() decimal.Decimal     { return s.totalQuote }
func (s *State) BaseAvailable() decimal.Decimal  { return s.baseAvailable }
func (s *State) QuoteAvailable() decimal.Decimal { return s.quoteAvailable }
func (s *State) Transactions() int               { return s.transactions }

// OpenOrders returns a copy of the open-order set.
func (s *State) OpenOrders() []Order {
	return append([]Order(nil), s.open...)
}

// FilledOrders returns a copy of the filled-order history.
func (s *State) FilledOrders() []Order {
	return append([]Order(nil), s.filled...)
}

// CancelledOrders returns a copy of the cancelled-order history.
func (s *State) CancelledOrders() []Order {
	return append([]Order(nil), s.cancelled...)
}

// Order looks an order up by id across the open set and both histories.
func (s *State) Order(id string) (Order, bool) {
	for _, set := range [][]Order{s.open, s.filled, s.cancelled} {
		for _, o := range set {
			if o.ID == id {
				return o, true
			}
		}
	}
	return Order{}, false
}

// TotalValueInQuote values the whole portfolio at the given price.
func (s *State) TotalValueInQuote(price decimal.Decimal) decimal.Decimal {
	return s.totalBase.Mul(price).Add(s.totalQuote)
}

// Clone returns a deep copy. Executors expose clones as read-only views.
func (s *State) Clone() *State {
	c := *s
	c.open = append([]Order(nil), s.open...)
	c.filled = append([]Order(nil), s.filled...)
	c.cancelled = append([]Order(nil), s.cancelled...)
	return &c
}

// FillMarket applies an immediately filled market order: the requested
// amount leaves the spent asset, the received amount (already net of fee)
// is credited to the other side, and the order joins the filled history.
func (s *State) FillMarket(o Order) error {
	if o.Kind != KindMarket || o.Status != OrderStatusFilled {
		return errors.Errorf("order %s is not a filled market order", o.ID)
	}
	if !o.Requested.IsPositive() {
		return errors.Errorf("order %s requested amount must be positive", o.ID)
	}

	if o.SpendsQuote() {
		if s.quoteAvailable.LessThan(o.Requested) {
			return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s",
				s.pair.Quote, s.quoteAvailable, o.Requested)
		}
		s.quoteAvailable = s.quoteAvailable.Sub(o.Requested)
		s.totalQuote = s.totalQuote.Sub(o.Requested)
		s.baseAvailable = s.baseAvailable.Add(o.Received)
		s.totalBase = s.totalBase.Add(o.Received)
	} else {
		if s.baseAvailable.LessThan(o.Requested) {
			return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s",
				s.pair.Base, s.baseAvailable, o.Requested)
		}
		s.baseAvailable = s.baseAvailable.Sub(o.Requested)
		s.totalBase = s.totalBase.Sub(o.Requested)
		s.quoteAvailable = s.quoteAvailable.Add(o.Received)
		s.totalQuote = s.totalQuote.Add(o.Received)
	}

	s.filled = append(s.filled, o)
	s.transactions++
	return nil
}

// Hold places an open order, reserving its on-hold amount from the
// available balance of the spent asset. Totals are unchanged: the
// reservation stays inside the portfolio until the order settles.
func (s *State) Hold(o Order) error {
	if o.Status != OrderStatusOpen {
		return errors.Errorf("order %s must be open to be held", o.ID)
	}
	if !o.OnHold.IsPositive() {
		return errors.Errorf("order %s on-hold amount must be positive", o.ID)
	}

	if o.SpendsQuote() {
		if s.quoteAvailable.LessThan(o.OnHold) {
			return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s",
				s.pair.Quote, s.quoteAvailable, o.OnHold)
		}
		s.quoteAvailable = s.quoteAvailable.Sub(o.OnHold)
	} else {
		if s.baseAvailable.LessThan(o.OnHold) {
			return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s",
				s.pair.Base, s.baseAvailable, o.OnHold)
		}
		s.baseAvailable = s.baseAvailable.Sub(o.OnHold)
	}

	s.open = append(s.open, o)
	return nil
}

// SettleHeld converts an open order into a fill: the reservation leaves
// the portfolio, the received amount (net of fee) is credited, and the
// completed order joins the filled history.
func (s *State) SettleHeld(id string, fillPrice, fee, received decimal.Decimal, filledAt time.Time) (Order, error) {
	idx := s.openIndex(id)
	if idx < 0 {
		return Order{}, errors.Errorf("no open order %s", id)
	}

	o := s.open[idx]
	if o.SpendsQuote() {
		s.totalQuote = s.totalQuote.Sub(o.OnHold)
		s.baseAvailable = s.baseAvailable.Add(received)
		s.totalBase = s.totalBase.Add(received)
	} else {
		s.totalBase = s.totalBase.Sub(o.OnHold)
		s.quoteAvailable = s.quoteAvailable.Add(received)
		s.totalQuote = s.totalQuote.Add(received)
	}

	s.open = append(s.open[:idx], s.open[idx+1:]...)

	o.Status = OrderStatusFilled
	o.FillPrice = fillPrice
	o.Fee = fee
	o.Received = received
	o.FilledAt = filledAt
	s.filled = append(s.filled, o)
	s.transactions++
	return o, nil
}

// ReleaseHeld cancels an open order and returns its reservation to the
// available balance.
func (s *State) ReleaseHeld(id string) (Order, error) {
	idx := s.openIndex(id)
	if idx < 0 {
		return Order{}, errors.Errorf("no open order %s", id)
	}

	o := s.open[idx]
	if o.SpendsQuote() {
		s.quoteAvailable = s.quoteAvailable.Add(o.OnHold)
	} else {
		s.baseAvailable = s.baseAvailable.Add(o.OnHold)
	}

	s.open = append(s.open[:idx], s.open[idx+1:]...)

	o.Status = OrderStatusCancelled
	s.cancelled = append(s.cancelled, o)
	return o, nil
}

func (s *State) openIndex(id string) int {
	for i, o := range s.open {
		if o.ID == id {
			return i
		}
	}
	return -1
}
