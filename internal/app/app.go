package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/infrastructure/archive"
	"MarketNewsroom/internal/infrastructure/kv"
	"MarketNewsroom/internal/infrastructure/llm"
	"MarketNewsroom/internal/infrastructure/market"
	"MarketNewsroom/internal/infrastructure/news"
	"MarketNewsroom/internal/infrastructure/notify"
	"MarketNewsroom/internal/infrastructure/queue"
	"MarketNewsroom/internal/infrastructure/scheduler"
	"MarketNewsroom/internal/infrastructure/storage"
	"MarketNewsroom/internal/infrastructure/storage/memory"
	"MarketNewsroom/internal/logging"
	"MarketNewsroom/internal/ports"
	"MarketNewsroom/internal/transport/httpapi"
	"MarketNewsroom/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	schema    ports.SchemaManager
	pipeline  *usecase.Pipeline
	direct    *usecase.DirectStrategy
	queued    *usecase.QueuedStrategy
	scheduler *usecase.Scheduler
	workers   *queue.WorkerPool
	handler   *httpapi.Handler

	closers []func() error
}

type repositories struct {
	schema    ports.SchemaManager
	symbols   ports.SymbolRepository
	snapshots ports.SnapshotRepository
	reports   ports.ReportRepository
	drafts    ports.DraftRepository
	runs      ports.RunRepository
}

// New builds every component from cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	repos, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	generator, err := llm.NewGenerator(ctx, cfg.LLM, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	cacheDB, queueDB, err := a.openBadger()
	if err != nil {
		a.Close()
		return nil, err
	}
	cache := kv.NewCache(cacheDB)

	oracle, err := market.NewOracle(cfg.Market, generator, repos.symbols)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := usecase.Clock(time.Now)
	active := cfg.LLM.Active()

	registry := usecase.NewSymbolRegistry(repos.symbols, baseLogger)
	collector := usecase.NewCollector(oracle, cache, registry, repos.snapshots, usecase.CollectorConfig{
		CacheTTL:  cfg.Market.CacheTTL,
		Synthetic: syntheticRanges(cfg.Market.Synthetic),
	}, clock, baseLogger)
	analyzer := usecase.NewSentimentAnalyzer(newsSource(cfg.News, baseLogger), generator, cache, repos.reports, usecase.SentimentConfig{
		Language:    cfg.News.Language,
		Limit:       cfg.News.PageSize,
		CacheTTL:    cfg.News.CacheTTL,
		Temperature: active.Temperature,
		MaxTokens:   active.MaxTokens,
	}, clock, baseLogger)
	drafter := usecase.NewDrafter(generator, cache, repos.drafts, usecase.DrafterConfig{
		CacheTTL:    cfg.Drafter.CacheTTL,
		Temperature: cfg.Drafter.Temperature,
		MaxTokens:   cfg.Drafter.MaxTokens,
	}, clock, baseLogger)
	dispatcher := usecase.NewNotificationDispatcher(repos.drafts, clock, baseLogger, notifiers(cfg.Notifications, baseLogger)...)
	review := usecase.NewReviewGate(repos.drafts, repos.runs, repos.snapshots, repos.reports,
		archive.NewFilesystem(cfg.Archive.Dir), clock, baseLogger)

	a.schema = repos.schema
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Runs:      repos.runs,
		Snapshots: repos.snapshots,
		Reports:   repos.reports,
		Drafts:    repos.drafts,
		Registry:  registry,
		Collector: collector,
		Analyzer:  analyzer,
		Drafter:   drafter,
		Notifier:  dispatcher,
		Clock:     clock,
		Logger:    baseLogger,
	})
	a.direct = usecase.NewDirectStrategy(a.pipeline)

	taskQueue, err := queue.NewBadgerQueue(queueDB, cfg.Queue.Name, cfg.Queue.VisibilityTimeout, cfg.Queue.MaxAttempts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.queued = usecase.NewQueuedStrategy(a.pipeline, taskQueue, cfg.Queue.MaxAttempts, baseLogger)
	taskQueue.OnDiscard(a.queued.Abandon)
	a.workers = queue.NewWorkerPool(taskQueue, a.queued.HandleTask, queue.PoolConfig{
		Workers:      cfg.Queue.Workers,
		PollInterval: cfg.Queue.PollInterval,
	}, baseLogger)

	var driver ports.Scheduler
	if cfg.Scheduler.Enabled {
		if err := scheduler.Validate(cfg.Scheduler.CronExpression); err != nil {
			a.Close()
			return nil, err
		}
		driver = scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger)
	}
	a.scheduler = usecase.NewScheduler(driver, registry, a.pipeline, a.queued, baseLogger)

	a.handler = httpapi.NewHandler(httpapi.Deps{
		Pipeline:  a.pipeline,
		Direct:    a.direct,
		Queued:    a.queued,
		Review:    review,
		Symbols:   registry,
		Snapshots: repos.snapshots,
		Reports:   repos.reports,
		Drafts:    repos.drafts,
		Runs:      repos.runs,
		APIToken:  cfg.HTTP.APIToken,
		Logger:    baseLogger,
	})

	return a, nil
}

func (a *Application) openStorage(ctx context.Context) (repositories, error) {
	switch a.cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		return repositories{
			schema:    store,
			symbols:   store.Symbols(),
			snapshots: store.Snapshots(),
			reports:   store.Reports(),
			drafts:    store.Drafts(),
			runs:      store.Runs(),
		}, nil
	case "", "postgres":
		db, err := storage.Open(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxOpenConns, a.logger.With("component", "storage"))
		if err != nil {
			return repositories{}, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			a.Close()
			return repositories{}, err
		}
		return repositories{
			schema:    db,
			symbols:   storage.NewSymbolRepository(db),
			snapshots: storage.NewSnapshotRepository(db),
			reports:   storage.NewReportRepository(db),
			drafts:    storage.NewDraftRepository(db),
			runs:      storage.NewRunRepository(db),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
}

// openBadger opens the cache and queue stores; one directory yields one database.
func (a *Application) openBadger() (*badger.DB, *badger.DB, error) {
	cacheDB, err := kv.Open(a.cfg.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, cacheDB.Close)
	if a.cfg.Queue.Dir == a.cfg.Cache.Dir && a.cfg.Cache.Dir != "" {
		return cacheDB, cacheDB, nil
	}

	queueDB, err := kv.Open(a.cfg.Queue.Dir)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, queueDB.Close)
	return cacheDB, queueDB, nil
}

func newsSource(cfg config.NewsConfig, logger *slog.Logger) ports.NewsSource {
	registry := news.NewRegistry()
	if cfg.APIKey != "" {
		registry.Register(news.NewNewsAPI(news.NewsAPIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			PerMinute: cfg.RateLimit,
			PageSize:  cfg.PageSize,
		}))
	}
	if cfg.RSSURL != "" {
		registry.Register(news.NewRSSSource(cfg.RSSURL, cfg.Timeout))
	}
	return registry.Chain(logger, cfg.Provider, news.NewsAPIName, news.RSSName)
}

func notifiers(cfg config.NotificationConfig, logger *slog.Logger) []ports.ReviewerNotifier {
	var out []ports.ReviewerNotifier
	if cfg.ReviewerEmail != "" && cfg.SMTP.Host != "" {
		out = append(out, notify.NewEmailNotifier(cfg, logger))
	} else {
		logger.Warn("reviewer email not configured, e-mail notifications disabled")
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		out = append(out, notify.NewTelegramNotifier(cfg))
	}
	return out
}

func syntheticRanges(c config.SyntheticConfig) usecase.SyntheticRanges {
	return usecase.SyntheticRanges{
		BasePrice:    c.BasePrice,
		PriceSpread:  c.PriceSpread,
		HighFactor:   c.HighFactor,
		LowFactor:    c.LowFactor,
		MaxChange:    c.MaxChange,
		VolumeMin:    c.VolumeMin,
		VolumeMax:    c.VolumeMax,
		MarketCapMin: c.MarketCapMin,
		MarketCapMax: c.MarketCapMax,
	}
}

// Migrate provisions the storage schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.schema.EnsureSchema(ctx)
}

// RunOnce executes one direct-mode run for companyName.
func (a *Application) RunOnce(ctx context.Context, companyName, ticker string) (usecase.RunResult, error) {
	return a.pipeline.Run(ctx, companyName, ticker, "cli", a.direct)
}

// Router exposes the HTTP routes, mainly for tests.
func (a *Application) Router() http.Handler {
	return httpapi.NewRouter(a.handler)
}

// RunWorkers processes queued stage tasks until ctx is done.
func (a *Application) RunWorkers(ctx context.Context) error {
	a.workers.Start(ctx)
	<-ctx.Done()
	a.workers.Stop()
	return nil
}

// Serve runs the HTTP API, queue workers and the scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	a.workers.Start(ctx)
	defer a.workers.Stop()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases databases in reverse order of opening.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
	a.closers = nil
}
