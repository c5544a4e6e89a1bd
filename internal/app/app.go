package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger-whale-alerts/internal/alerting"
	"ledger-whale-alerts/internal/config"
	"ledger-whale-alerts/internal/health"
	"ledger-whale-alerts/internal/ledger"
	"ledger-whale-alerts/internal/poller"
	"ledger-whale-alerts/internal/scheduler"
	"ledger-whale-alerts/internal/service"
	"ledger-whale-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLedgerClient() *ledger.Client {
	return ledger.NewClient(ledger.Options{
		Endpoints: a.Config.Ledger.Endpoints,
		Timeout:   a.Config.Ledger.RequestTimeout,
		PageLimit: a.Config.Ledger.PageLimit,
		UserAgent: a.Config.Ledger.UserAgent,
	}, a.Logger)
}

func (a *App) newSender() alerting.Sender {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramSender(cfg.BotToken, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) channelSet() alerting.ChannelSet {
	channels := a.Config.Alerting.Channels
	return alerting.ChannelSet{
		Critical:         alerting.Channel(channels.Critical),
		ExchangeDeposits: alerting.Channel(channels.ExchangeDeposits),
		WhaleMovements:   alerting.Channel(channels.WhaleMovements),
		System:           alerting.Channel(channels.System),
	}
}

func (a *App) retryPolicy() alerting.RetryPolicy {
	retry := a.Config.Alerting.Retry
	return alerting.RetryPolicy{
		MaxAttempts: retry.MaxAttempts,
		BaseDelay:   retry.BaseDelay,
		MaxDelay:    retry.MaxDelay,
	}
}

func (a *App) newPoller(store *storage.Store) *poller.Poller {
	return poller.New(a.newLedgerClient(), store, store, store, poller.Options{
		WorkerLimit: a.Config.Polling.WorkerLimit,
	}, a.Logger)
}

func (a *App) newClassifier(store *storage.Store) *alerting.Classifier {
	bands := alerting.SeverityBands{
		CriticalFloor: decimal.NewFromFloat(a.Config.Alerting.CriticalFloor),
		HighFloor:     decimal.NewFromFloat(a.Config.Alerting.HighFloor),
	}
	directory := alerting.NewExchangeDirectory(a.Config.Exchanges)
	defaultThreshold := decimal.NewFromFloat(a.Config.Polling.DefaultThreshold)
	return alerting.NewClassifier(store, directory, bands, defaultThreshold, a.Logger)
}

func (a *App) newDispatcher(store *storage.Store, sender alerting.Sender) *alerting.Dispatcher {
	if sender == nil {
		return nil
	}
	retryer := alerting.NewRetryer(a.retryPolicy(), store, a.Logger)
	return alerting.NewDispatcher(sender, store, store, retryer, alerting.DispatcherOptions{
		Channels:     a.channelSet(),
		DepositFloor: decimal.NewFromFloat(a.Config.Alerting.ExchangeDepositFloor),
		TrendWindow:  a.Config.Alerting.TrendWindow,
	}, a.Logger)
}

func (a *App) newAggregator(store *storage.Store, p *poller.Poller, dispatcher *alerting.Dispatcher, sender alerting.Sender) *health.Aggregator {
	cfg := a.Config.Health
	// Health notifications carry no alert id, so their retryer skips the
	// attempt audit trail.
	retryer := alerting.NewRetryer(a.retryPolicy(), nil, a.Logger)

	var notifierProbe health.Probe
	if dispatcher != nil {
		notifierProbe = dispatcher
	}

	return health.New(store, store, p, notifierProbe, sender, retryer, health.Options{
		CheckTimeout:         cfg.CheckTimeout,
		DownWindow:           cfg.DownWindow,
		DownThreshold:        cfg.DownThreshold,
		SlowLatency:          cfg.SlowLatency,
		SlowWindow:           cfg.SlowWindow,
		SlowCountThreshold:   cfg.SlowCountThreshold,
		SummaryInterval:      cfg.SummaryInterval,
		AlertActivityWindow:  cfg.AlertActivityWindow,
		SampleActivityWindow: cfg.SampleActivityWindow,
		Channels:             a.channelSet(),
	}, a.Logger)
}

func (a *App) newService(store *storage.Store) *service.Service {
	sender := a.newSender()
	p := a.newPoller(store)
	dispatcher := a.newDispatcher(store, sender)
	aggregator := a.newAggregator(store, p, dispatcher, sender)

	return service.New(
		p,
		a.newClassifier(store),
		dispatcher,
		aggregator,
		store,
		a.Config.Alerting.Enabled,
		store,
		a.Config.Scheduler.AdvisoryLockKey,
		a.Logger,
	)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running pipeline: the poll tick and the health
// sweep each on their own aligned cadence.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	pollSched := scheduler.New(scheduler.Options{
		Name:         "poll",
		Interval:     a.Config.Scheduler.PollInterval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	healthSched := scheduler.New(scheduler.Options{
		Name:         "health",
		Interval:     a.Config.Scheduler.HealthInterval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting whale watch pipeline")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return pollSched.Run(groupCtx, svc.RunPollTick)
	})
	group.Go(func() error {
		return healthSched.Run(groupCtx, svc.RunHealthTick)
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("pipeline terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline stopped")
	return nil
}

// PollOptions configure the poll command.
type PollOptions struct {
	Wallet string
}

// DispatchOptions configure the dispatch command.
type DispatchOptions struct {
	AlertID  int64
	TestMode bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
