package main

import (
	"context"
	"flag"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"botfleet/config"
	"botfleet/internal/backtest"
	"botfleet/internal/domain"
	"botfleet/internal/executor"
	"botfleet/internal/logger"
	"botfleet/internal/marketdata"
	"botfleet/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal("backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	candles, err := marketdata.LoadCSV(cfg.CandlesFile)
	if err != nil {
		return err
	}

	state, err := domain.NewState(cfg.Pair, cfg.StartBase, cfg.StartQuote)
	if err != nil {
		return err
	}
	sim, err := executor.NewSimulated(state, cfg.FeeMarketOrder, cfg.FeeLimitOrder, log)
	if err != nil {
		return err
	}

	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		return err
	}
	if len(cfg.StrategyParams) > 0 {
		if err := strat.UnmarshalParams(cfg.StrategyParams); err != nil {
			return err
		}
	}

	engine, err := backtest.NewEngine(sim, log)
	if err != nil {
		return err
	}
	result, err := engine.Run(ctx, strat, candles)
	if err != nil {
		return err
	}

	printReport(cfg, strat.Name(), result, sim.State())
	return nil
}

func printReport(cfg *config.Config, strategyName string, result domain.BacktestResult, final *domain.State) {
	first := result[0]
	last := result[len(result)-1]

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Backtest %s on %s", strategyName, cfg.Pair)
	t.AppendRows([]table.Row{
		{"Period", first.Time.Format("2006-01-02 15:04") + " .. " + last.Time.Format("2006-01-02 15:04")},
		{"Samples", len(result)},
		{"Start value", first.StrategyValue.StringFixed(4) + " " + cfg.Pair.Quote},
		{"Final value", last.StrategyValue.StringFixed(4) + " " + cfg.Pair.Quote},
		{"Return", returnPct(first.StrategyValue, last.StrategyValue) + "%"},
		{"Hodl value", last.HodlValue.StringFixed(4) + " " + cfg.Pair.Quote},
		{"Hodl return", returnPct(first.HodlValue, last.HodlValue) + "%"},
		{"Transactions", final.Transactions()},
		{"Final " + cfg.Pair.Base, final.TotalBase().String()},
		{"Final " + cfg.Pair.Quote, final.TotalQuote().String()},
	})
	t.Render()
}

func returnPct(start, end decimal.Decimal) string {
	if start.IsZero() {
		return "n/a"
	}
	hundred := decimal.NewFromInt(100)
	return end.Sub(start).Div(start).Mul(hundred).StringFixed(2)
}
