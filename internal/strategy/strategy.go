// Package strategy defines the contract a trading decision procedure has
// to satisfy to run unmodified against a backtest or a live market, plus
// a registry so persisted snapshots can be rehydrated by name.
package strategy

import (
	"context"

	"github.com/pkg/errors"

	"botfleet/internal/domain"
	"botfleet/internal/executor"
)

// Strategy is implemented by user-supplied decision procedures. Execute
// is invoked once per time step with a rolling window of WindowSize
// candles ending at and including the current step; no later data is ever
// visible. The strategy may call any executor operation zero or more
// times per invocation and may mutate its own buffers, but must not
// retain the window beyond the call.
//
// Parameters and internal buffers round-trip through MarshalParams /
// UnmarshalParams; they are stored inside the snapshot, so a strategy
// survives process restarts between invocations.
type Strategy interface {
	Name() string
	WindowSize() int
	// Bind attaches the executor. Called after construction and after
	// every snapshot restore; the executor itself is never serialized.
	Bind(exec executor.Executor)
	Execute(ctx context.Context, window []domain.Candle) error
	MarshalParams() ([]byte, error)
	UnmarshalParams(data []byte) error
}

// FeatureTransformer is the optional feature-augmentation stage applied
// to raw candles before Execute sees them. Implementations must be pure:
// no side effects, input slice untouched.
type FeatureTransformer interface {
	Transform(raw []domain.Candle) ([]domain.Candle, error)
}

// ApplyFeatures runs the strategy's feature stage when it declares one,
// and passes the window through unchanged otherwise.
func ApplyFeatures(s Strategy, window []domain.Candle) ([]domain.Candle, error) {
	ft, ok := s.(FeatureTransformer)
	if !ok {
		return window, nil
	}
	augmented, err := ft.Transform(window)
	if err != nil {
		return nil, errors.Wrap(err, "feature stage")
	}
	return augmented, nil
}

// Factory builds an unbound strategy with default parameters, ready for
// UnmarshalParams.
type Factory func() Strategy

var registry = make(map[string]Factory)

// Register makes a strategy rehydratable by name. Typically called from
// the implementation's init.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic("strategy: duplicate registration of " + name)
	}
	registry[name] = f
}

// New builds a registered strategy by name.
func New(name string) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown strategy %q", name)
	}
	return f(), nil
}
