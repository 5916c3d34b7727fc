package app

import (
	"context"
	"errors"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"feedwatcher/internal/alerting"
	"feedwatcher/internal/config"
	"feedwatcher/internal/feed"
	"feedwatcher/internal/scheduler"
	"feedwatcher/internal/service"
	"feedwatcher/internal/storage"
	"feedwatcher/internal/trap"
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

func (a *App) newFeeds() (feed.Source, feed.Source) {
	primary := feed.NewAggregator(feed.AggregatorOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Address: a.Config.Ethereum.PrimaryAggregator,
		Name:    "primary",
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	fallback := feed.NewAggregator(feed.AggregatorOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Address: a.Config.Ethereum.FallbackAggregator,
		Name:    "fallback",
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	return primary, fallback
}

func (a *App) newVolumeSource() feed.VolumeSource {
	if a.Config.Volume.Mode == "http" {
		return feed.NewHTTPVolume(feed.HTTPVolumeOptions{
			BaseURL:   a.Config.Volume.BaseURL,
			Timeout:   a.Config.Volume.RequestTimeout,
			UserAgent: a.Config.Volume.UserAgent,
		}, a.Logger)
	}
	return feed.ZeroVolume{}
}

func (a *App) newCollector(primary, fallback feed.Source) *trap.Collector {
	return trap.NewCollector(primary, fallback, a.newVolumeSource(), a.Config.Volume.Pair, a.Logger)
}

func (a *App) newDetector() *trap.DivergenceDetector {
	return trap.NewDivergenceDetector(trap.DivergenceConfig{
		ThresholdBP:        a.Config.Detection.DivergenceThresholdBP,
		VolumeThreshold:    new(big.Int).SetUint64(a.Config.Detection.VolumeThreshold),
		RequiredMatchCount: a.Config.Detection.RequiredMatchCount,
	})
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
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

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	primary, fallback := a.newFeeds()
	collector := a.newCollector(primary, fallback)
	detector := a.newDetector()
	notifier := a.newNotifier()

	var sampleStore storage.FeedSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, collector, detector, sampleStore, alertStore, notifier, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ReplayOptions configure the replay job.
type ReplayOptions struct {
	From        time.Time
	To          time.Time
	ThresholdBP uint64
	MatchCount  int
}
