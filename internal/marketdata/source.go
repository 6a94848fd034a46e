// Package marketdata supplies candle series: live fetches from an
// exchange for deployed bots, CSV files for backtests.
package marketdata

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	bybitapi "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"botfleet/internal/domain"
)

// CandleSource fetches the most recent candles for a pair, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error)
}

// BinanceSource fetches klines from the Binance spot API.
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Candles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines for %s", pair)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for i, k := range klines {
		c, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		c.Time = time.Unix(0, k.OpenTime*int64(time.Millisecond))
		candles = append(candles, c)
	}
	return candles, nil
}

// BybitSource fetches klines from the Bybit v5 spot API. Bybit returns
// newest first; the result is reversed to match the oldest-first
// contract.
type BybitSource struct {
	client *bybitapi.Client
}

func NewBybitSource(client *bybitapi.Client) *BybitSource {
	return &BybitSource{client: client}
}

func (s *BybitSource) Candles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	resp, err := s.client.V5().Market().GetKline(bybitapi.V5GetKlineParam{
		Category: bybitapi.CategoryV5Spot,
		Symbol:   bybitapi.SymbolV5(pair.Symbol()),
		Interval: bybitapi.Interval(interval),
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines for %s", pair)
	}

	list := resp.Result.List
	candles := make([]domain.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		k := list[i]
		c, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		ts, err := decimal.NewFromString(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "parse start time at index %d", i)
		}
		c.Time = time.Unix(0, ts.IntPart()*int64(time.Millisecond))
		candles = append(candles, c)
	}
	return candles, nil
}

func parseCandle(open, high, low, closePrice, volume string) (domain.Candle, error) {
	var c domain.Candle
	var err error
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return c, errors.Wrap(err, "parse open")
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return c, errors.Wrap(err, "parse high")
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return c, errors.Wrap(err, "parse low")
	}
	if c.Close, err = decimal.NewFromString(closePrice); err != nil {
		return c, errors.Wrap(err, "parse close")
	}
	if c.Volume, err = decimal.NewFromString(volume); err != nil {
		return c, errors.Wrap(err, "parse volume")
	}
	return c, nil
}
