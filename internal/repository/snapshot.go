package repository

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"botfleet/internal/domain"
)

// SchemaVersion is the current snapshot encoding version. Snapshots carry
// it explicitly so a fleet can be upgraded without corrupting bots
// persisted by an older build.
const SchemaVersion = 1

// StoredState is the serialized form of domain.State. Decimals marshal as
// quoted strings, which keeps the encoding exact and stable across
// versions.
type StoredState struct {
	Pair            domain.Pair     `json:"pair"`
	TotalBase       decimal.Decimal `json:"total_base"`
	TotalQuote      decimal.Decimal `json:"total_quote"`
	BaseAvailable   decimal.Decimal `json:"base_available"`
	QuoteAvailable  decimal.Decimal `json:"quote_available"`
	OpenOrders      []domain.Order  `json:"open_orders,omitempty"`
	FilledOrders    []domain.Order  `json:"filled_orders,omitempty"`
	CancelledOrders []domain.Order  `json:"cancelled_orders,omitempty"`
	Transactions    int             `json:"transactions"`
}

// Snapshot is the persisted union of a strategy's parameters/buffers and
// its state, addressed by a Key. Params stay opaque to the repository;
// only the owning strategy can decode them.
type Snapshot struct {
	Version   int             `json:"version"`
	Strategy  string          `json:"strategy"`
	Params    json.RawMessage `json:"params"`
	State     StoredState     `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSnapshot captures a strategy name, its marshalled parameters and a
// state into a storable snapshot.
func NewSnapshot(strategyName string, params []byte, state *domain.State) *Snapshot {
	return &Snapshot{
		Version:  SchemaVersion,
		Strategy: strategyName,
		Params:   params,
		State: StoredState{
			Pair:            state.Pair(),
			TotalBase:       state.TotalBase(),
			TotalQuote:      state.TotalQuote(),
			BaseAvailable:   state.BaseAvailable(),
			QuoteAvailable:  state.QuoteAvailable(),
			OpenOrders:      state.OpenOrders(),
			FilledOrders:    state.FilledOrders(),
			CancelledOrders: state.CancelledOrders(),
			Transactions:    state.Transactions(),
		},
	}
}

// RestoreState rebuilds the domain state, re-validating the reservation
// invariant.
func (s *Snapshot) RestoreState() (*domain.State, error) {
	st := s.State
	restored, err := domain.RestoreState(
		st.Pair,
		st.TotalBase, st.TotalQuote, st.BaseAvailable, st.QuoteAvailable,
		st.OpenOrders, st.FilledOrders, st.CancelledOrders,
		st.Transactions,
	)
	if err != nil {
		return nil, errors.Wrap(err, "restore state from snapshot")
	}
	return restored, nil
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return payload, nil
}

func decodeSnapshot(payload []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if s.Version > SchemaVersion {
		return nil, errors.Errorf("snapshot schema version %d is newer than supported %d", s.Version, SchemaVersion)
	}
	return &s, nil
}
