// Package orchestrator drives one deployed bot invocation end to end:
// load the snapshot, rebuild the strategy against a live executor, run a
// single decision step and persist the outcome. Failure handling is
// deliberate: after the snapshot is read, no error aborts the process —
// the bot's state is persisted as-is and the bot is moved to paused, so
// an operator decides whether it resumes.
package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"botfleet/internal/credentials"
	"botfleet/internal/domain"
	"botfleet/internal/executor"
	"botfleet/internal/marketdata"
	"botfleet/internal/repository"
	"botfleet/internal/strategy"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	// OutcomeCompleted means the step ran and the snapshot was persisted.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailedPaused means a failure after the snapshot read; the
	// bot was persisted and moved to paused.
	OutcomeFailedPaused Outcome = "failed_paused"
	// OutcomeFatal means the snapshot itself could not be read; nothing
	// was touched.
	OutcomeFatal Outcome = "fatal"
)

// Result reports the invocation outcome. Cause is set for every outcome
// except OutcomeCompleted.
type Result struct {
	Outcome Outcome
	Cause   error
}

// VenueFactory builds a venue client for an exchange with resolved
// credentials.
type VenueFactory func(exchange, apiKey, apiSecret string) (executor.VenueClient, error)

// Bot wires the collaborators of a deployed bot. Concurrent Run/Stop
// calls for the same key are not synchronized here; the scheduler owns
// that.
type Bot struct {
	repo     repository.Repository
	creds    credentials.Provider
	venues   VenueFactory
	source   marketdata.CandleSource
	journal  executor.FillJournal
	interval string
	logger   *zap.Logger
}

// NewBot assembles an orchestrator. The journal may be nil.
func NewBot(
	repo repository.Repository,
	creds credentials.Provider,
	venues VenueFactory,
	source marketdata.CandleSource,
	journal executor.FillJournal,
	interval string,
	logger *zap.Logger,
) (*Bot, error) {
	if repo == nil || creds == nil || venues == nil || source == nil {
		return nil, errors.New("repository, credentials, venue factory and candle source are required")
	}
	if interval == "" {
		return nil, errors.New("candle interval is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		repo:     repo,
		creds:    creds,
		venues:   venues,
		source:   source,
		journal:  journal,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run performs one decision step: reconcile open orders, fetch the
// strategy's window, run the feature stage and Execute once, then persist
// under the same key. The returned error is non-nil only when the
// snapshot read fails (OutcomeFatal); every later failure is reported in
// the Result with the bot persisted and paused.
func (b *Bot) Run(ctx context.Context, personID, exchange, botID string, status domain.Status) (Result, error) {
	key := repository.Key{PersonID: personID, Exchange: exchange, BotID: botID, Status: status}
	log := b.logger.With(zap.String("bot", key.String()))

	snap, err := b.repo.Read(key)
	if err != nil {
		log.Error("snapshot read failed", zap.Error(err))
		return Result{Outcome: OutcomeFatal, Cause: err}, err
	}

	live, strat, err := b.rebuild(snap, key)
	if err != nil {
		return b.failRun(log, key, snap, err), nil
	}

	// settle anything left open by a previous invocation or a crash
	if err := live.Reconcile(ctx); err != nil {
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), errors.Wrap(err, "reconcile open orders")), nil
	}

	candles, err := b.source.Candles(ctx, live.State().Pair(), b.interval, strat.WindowSize())
	if err != nil {
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), errors.Wrap(err, "fetch candles")), nil
	}
	if len(candles) < strat.WindowSize() {
		err := errors.Errorf("got %d candles, strategy window is %d", len(candles), strat.WindowSize())
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), err), nil
	}
	window := candles[len(candles)-strat.WindowSize():]

	window, err = strategy.ApplyFeatures(strat, window)
	if err != nil {
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), err), nil
	}

	if err := strat.Execute(ctx, window); err != nil {
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), errors.Wrap(err, "strategy execution")), nil
	}

	if err := b.repo.Store(key, b.snapshotOf(strat, live, snap)); err != nil {
		return b.failRun(log, key, nil, errors.Wrap(err, "persist snapshot")), nil
	}

	log.Info("invocation completed", zap.Int("transactions", live.State().Transactions()))
	return Result{Outcome: OutcomeCompleted}, nil
}

// Stop cancels open orders, applies the asset-handling policy and moves
// the bot to stopped. Stopping an already stopped bot is a no-op. On any
// failure after the read the bot is persisted and parked at paused
// instead.
func (b *Bot) Stop(ctx context.Context, personID, exchange, botID string, status domain.Status, handling domain.AssetHandling) (Result, error) {
	if status == domain.StatusStopped {
		b.logger.Info("stop requested for already stopped bot", zap.String("bot_id", botID))
		return Result{Outcome: OutcomeCompleted}, nil
	}
	if !handling.Valid() {
		err := errors.Errorf("unknown asset handling %q", handling)
		return Result{Outcome: OutcomeFatal, Cause: err}, err
	}

	key := repository.Key{PersonID: personID, Exchange: exchange, BotID: botID, Status: status}
	log := b.logger.With(zap.String("bot", key.String()))

	snap, err := b.repo.Read(key)
	if err != nil {
		log.Error("snapshot read failed", zap.Error(err))
		return Result{Outcome: OutcomeFatal, Cause: err}, err
	}

	live, strat, err := b.rebuild(snap, key)
	if err != nil {
		return b.failRun(log, key, snap, err), nil
	}

	if err := b.windDown(ctx, live, handling); err != nil {
		return b.failRun(log, key, b.snapshotOf(strat, live, snap), err), nil
	}

	if err := b.repo.Store(key, b.snapshotOf(strat, live, snap)); err != nil {
		return b.failRun(log, key, nil, errors.Wrap(err, "persist snapshot")), nil
	}
	if err := b.repo.ChangeStatus(personID, exchange, botID, status, domain.StatusStopped); err != nil {
		return b.failRun(log, key, nil, errors.Wrap(err, "move to stopped")), nil
	}

	log.Info("bot stopped", zap.String("asset_handling", string(handling)))
	return Result{Outcome: OutcomeCompleted}, nil
}

// windDown cancels resting orders, then converts the remaining balance
// per the policy: quote_only sells all base, base_only spends all quote,
// ignore leaves balances as they are.
func (b *Bot) windDown(ctx context.Context, live *executor.Live, handling domain.AssetHandling) error {
	if err := live.CancelOpenOrders(ctx); err != nil {
		return errors.Wrap(err, "cancel open orders")
	}

	state := live.State()
	base := state.Pair().Base
	switch handling {
	case domain.AssetHandlingQuoteOnly:
		if state.BaseAvailable().IsPositive() {
			if _, err := live.PlaceMarketSellOrder(ctx, base, state.BaseAvailable()); err != nil {
				return errors.Wrap(err, "liquidate base")
			}
		}
	case domain.AssetHandlingBaseOnly:
		if state.QuoteAvailable().IsPositive() {
			if _, err := live.PlaceMarketBuyOrder(ctx, base, state.QuoteAvailable()); err != nil {
				return errors.Wrap(err, "convert quote to base")
			}
		}
	case domain.AssetHandlingIgnore:
	}
	return nil
}

// rebuild restores the state and strategy from a snapshot and binds them
// to a fresh live executor.
func (b *Bot) rebuild(snap *repository.Snapshot, key repository.Key) (*executor.Live, strategy.Strategy, error) {
	apiKey, err := b.creds.APIKey(key.PersonID, key.Exchange)
	if err != nil {
		return nil, nil, err
	}
	apiSecret, err := b.creds.APISecretKey(key.PersonID, key.Exchange)
	if err != nil {
		return nil, nil, err
	}
	venueClient, err := b.venues(key.Exchange, apiKey, apiSecret)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build venue client")
	}

	state, err := snap.RestoreState()
	if err != nil {
		return nil, nil, err
	}
	live, err := executor.NewLive(state, venueClient, b.journal, b.logger)
	if err != nil {
		return nil, nil, err
	}

	strat, err := strategy.New(snap.Strategy)
	if err != nil {
		return nil, nil, err
	}
	if err := strat.UnmarshalParams(snap.Params); err != nil {
		return nil, nil, errors.Wrapf(err, "restore %s parameters", snap.Strategy)
	}
	strat.Bind(live)
	return live, strat, nil
}

// snapshotOf captures the current strategy and executor state. When
// params cannot be marshalled the previous snapshot is kept, so a
// persistence attempt always has something coherent to write.
func (b *Bot) snapshotOf(strat strategy.Strategy, live *executor.Live, prev *repository.Snapshot) *repository.Snapshot {
	params, err := strat.MarshalParams()
	if err != nil {
		b.logger.Warn("marshal strategy params failed, keeping previous snapshot", zap.Error(err))
		return prev
	}
	return repository.NewSnapshot(strat.Name(), params, live.State())
}

// failRun persists the snapshot when one is supplied, parks the bot at
// paused and wraps the cause into the result. Pausing a bot that is
// already paused is a no-op in the repository.
func (b *Bot) failRun(log *zap.Logger, key repository.Key, snap *repository.Snapshot, cause error) Result {
	log.Error("invocation failed, pausing bot", zap.Error(cause))

	if snap != nil {
		if err := b.repo.Store(key, snap); err != nil {
			log.Error("persist on failure path failed", zap.Error(err))
		}
	}
	if err := b.repo.ChangeStatus(key.PersonID, key.Exchange, key.BotID, key.Status, domain.StatusPaused); err != nil {
		log.Error("pause on failure path failed", zap.Error(err))
	}
	return Result{Outcome: OutcomeFailedPaused, Cause: cause}
}
