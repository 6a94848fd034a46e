package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"botfleet/config"
	"botfleet/internal/clients"
	"botfleet/internal/credentials"
	"botfleet/internal/domain"
	"botfleet/internal/executor"
	"botfleet/internal/logger"
	"botfleet/internal/marketdata"
	"botfleet/internal/orchestrator"
	"botfleet/internal/repository"
	"botfleet/internal/storage/orders"
	"botfleet/internal/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	action := flag.String("action", "run", "run | stop")
	person := flag.String("person", "", "person id owning the bot")
	exchange := flag.String("exchange", "binance", "exchange the bot trades on")
	botID := flag.String("bot", "", "bot id")
	status := flag.String("status", "active", "current bot status (active | paused)")
	handling := flag.String("asset-handling", "ignore", "on stop: quote_only | base_only | ignore")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	if *person == "" || *botID == "" {
		log.Fatal("-person and -bot are required")
	}

	result, err := execute(context.Background(), cfg, log, *action, *person, *exchange, *botID,
		domain.Status(*status), domain.AssetHandling(*handling))
	if err != nil {
		log.Fatal("invocation aborted", zap.Error(err))
	}

	fmt.Printf("outcome: %s\n", result.Outcome)
	if result.Cause != nil {
		fmt.Printf("cause: %v\n", result.Cause)
		os.Exit(1)
	}
}

func execute(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	action, person, exchange, botID string,
	status domain.Status,
	handling domain.AssetHandling,
) (orchestrator.Result, error) {
	repo, err := repository.NewBadgerRepository(cfg.BadgerDir)
	if err != nil {
		return orchestrator.Result{}, err
	}
	defer repo.Close()

	creds, err := credentials.NewEnvProvider(cfg.EnvFile)
	if err != nil {
		return orchestrator.Result{}, err
	}

	var journal executor.FillJournal
	if cfg.JournalDir != "" {
		store, err := orders.NewWALStore(cfg.JournalDir)
		if err != nil {
			return orchestrator.Result{}, err
		}
		defer store.Close()
		journal = store
	}

	source, err := candleSource(exchange)
	if err != nil {
		return orchestrator.Result{}, err
	}

	bot, err := orchestrator.NewBot(repo, creds, venue.New, source, journal, cfg.CandleInterval, log)
	if err != nil {
		return orchestrator.Result{}, err
	}

	switch action {
	case "run":
		return bot.Run(ctx, person, exchange, botID, status)
	case "stop":
		return bot.Stop(ctx, person, exchange, botID, status, handling)
	default:
		return orchestrator.Result{}, fmt.Errorf("unknown action %q", action)
	}
}

// candleSource returns a public market-data client for the exchange;
// kline endpoints need no credentials.
func candleSource(exchange string) (marketdata.CandleSource, error) {
	switch strings.ToLower(exchange) {
	case "binance":
		return marketdata.NewBinanceSource(clients.NewBinanceClient("", "")), nil
	case "bybit":
		return marketdata.NewBybitSource(clients.NewBybitClient("", "")), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", exchange)
	}
}
