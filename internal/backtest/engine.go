// Package backtest replays a historical candle series through a strategy
// bound to the simulated executor, producing a time-aligned value series
// against a buy-and-hold baseline.
package backtest

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"botfleet/internal/domain"
	"botfleet/internal/executor"
	"botfleet/internal/strategy"
)

// Engine drives one backtest run. It is an offline computation: any
// failure aborts the run immediately, since a partial result series has
// no value.
type Engine struct {
	exec   *executor.Simulated
	logger *zap.Logger
}

// NewEngine creates a backtest engine around a simulated executor.
func NewEngine(exec *executor.Simulated, logger *zap.Logger) (*Engine, error) {
	if exec == nil {
		return nil, errors.New("simulated executor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{exec: exec, logger: logger}, nil
}

// Run replays candles through the strategy. With window size W it
// iterates step i from W-1 to the last candle; at each step the strategy
// sees exactly candles[i-W+1 .. i] (feature-augmented), open limit orders
// are settled against candle i, and one result point is sampled at the
// close of candle i. Reruns on identical inputs produce identical series:
// nothing in the loop consults a clock or a random source.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, candles []domain.Candle) (domain.BacktestResult, error) {
	if strat == nil {
		return nil, errors.New("strategy is required")
	}
	w := strat.WindowSize()
	if w < 1 {
		return nil, errors.Errorf("window size must be at least 1, got %d", w)
	}
	if len(candles) < w {
		return nil, errors.Errorf("need at least %d candles for window size %d, got %d", w, w, len(candles))
	}

	strat.Bind(e.exec)

	firstClose := candles[w-1].Close
	if !firstClose.IsPositive() {
		return nil, errors.Errorf("invalid close price %s at first step", firstClose)
	}
	startValue := e.exec.State().TotalValueInQuote(firstClose)
	hodlUnits := startValue.Div(firstClose)

	e.logger.Info("backtest started",
		zap.Int("candles", len(candles)),
		zap.Int("window", w),
		zap.String("start_value", startValue.String()))

	result := make(domain.BacktestResult, 0, len(candles)-w+1)
	for i := w - 1; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current := candles[i]
		e.exec.SetCandle(current)
		if err := e.exec.Reconcile(ctx); err != nil {
			return nil, errors.Wrapf(err, "settle open orders at step %d", i)
		}

		window := append([]domain.Candle(nil), candles[i-w+1:i+1]...)
		window, err := strategy.ApplyFeatures(strat, window)
		if err != nil {
			return nil, errors.Wrapf(err, "feature stage at step %d", i)
		}

		if err := strat.Execute(ctx, window); err != nil {
			return nil, errors.Wrapf(err, "strategy execution at step %d", i)
		}

		state := e.exec.State()
		result = append(result, domain.ResultPoint{
			Time:          current.Time,
			StrategyValue: state.TotalValueInQuote(current.Close),
			HodlValue:     hodlUnits.Mul(current.Close),
		})
	}

	e.logger.Info("backtest finished",
		zap.Int("points", len(result)),
		zap.String("final_value", result[len(result)-1].StrategyValue.String()))
	return result, nil
}
