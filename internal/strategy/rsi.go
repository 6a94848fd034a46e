package strategy

import (
	"context"
	"encoding/json"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"botfleet/internal/domain"
	"botfleet/internal/executor"
)

const rsiName = "rsi"

func init() {
	Register(rsiName, func() Strategy {
		return NewRSIStrategy(RSIParams{
			Period: 14,
			Window: 50,
			Lower:  35,
			Upper:  65,
		}, nil)
	})
}

// RSIParams are the tunables and buffers of RSIStrategy.
type RSIParams struct {
	// Period of the RSI calculation.
	Period int `json:"period"`
	// Window is the rolling-window size requested from the driver. Must
	// be at least Period+2 so two consecutive RSI values exist.
	Window int `json:"window"`
	// Lower threshold: RSI crossing below it is a buy signal.
	Lower float64 `json:"lower"`
	// Upper threshold: RSI crossing above it is a sell signal.
	Upper float64 `json:"upper"`
}

// RSIStrategy buys the full quote balance when RSI crosses under the
// lower threshold and sells the full base balance when it crosses over
// the upper one. Signals are recomputed from the window alone, so a
// repeated invocation on the same data makes the same decision.
type RSIStrategy struct {
	params RSIParams
	exec   executor.Executor
	logger *zap.Logger
}

var _ Strategy = (*RSIStrategy)(nil)

// NewRSIStrategy creates the strategy; a nil logger is replaced by a nop.
func NewRSIStrategy(params RSIParams, logger *zap.Logger) *RSIStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSIStrategy{params: params, logger: logger}
}

func (s *RSIStrategy) Name() string { return rsiName }

func (s *RSIStrategy) WindowSize() int { return s.params.Window }

func (s *RSIStrategy) Bind(exec executor.Executor) { s.exec = exec }

func (s *RSIStrategy) MarshalParams() ([]byte, error) {
	return json.Marshal(s.params)
}

func (s *RSIStrategy) UnmarshalParams(data []byte) error {
	var p RSIParams
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, "decode rsi params")
	}
	if p.Window < p.Period+2 {
		return errors.Errorf("window %d too small for rsi period %d", p.Window, p.Period)
	}
	s.params = p
	return nil
}

func (s *RSIStrategy) Execute(ctx context.Context, window []domain.Candle) error {
	if s.exec == nil {
		return errors.New("rsi strategy is not bound to an executor")
	}
	if len(window) < s.params.Period+2 {
		return errors.Errorf("window of %d candles too small for rsi period %d", len(window), s.params.Period)
	}

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i], _ = c.Close.Float64()
	}

	rsi := momentum.NewRsiWithPeriod[float64](s.params.Period)
	values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(values) < 2 {
		return errors.New("not enough data points for rsi")
	}

	prev := values[len(values)-2]
	curr := values[len(values)-1]
	state := s.exec.State()

	if prev > s.params.Lower && curr < s.params.Lower && state.QuoteAvailable().IsPositive() {
		s.logger.Info("rsi buy signal",
			zap.Float64("prev", prev),
			zap.Float64("curr", curr),
			zap.String("spend", state.QuoteAvailable().String()))
		_, err := s.exec.PlaceMarketBuyOrder(ctx, state.Pair().Base, state.QuoteAvailable())
		return err
	}

	if prev < s.params.Upper && curr > s.params.Upper && state.BaseAvailable().IsPositive() {
		s.logger.Info("rsi sell signal",
			zap.Float64("prev", prev),
			zap.Float64("curr", curr),
			zap.String("sell", state.BaseAvailable().String()))
		_, err := s.exec.PlaceMarketSellOrder(ctx, state.Pair().Base, state.BaseAvailable())
		return err
	}

	return nil
}
