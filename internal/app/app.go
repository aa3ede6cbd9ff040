package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"CVEWatch/internal/config"
	"CVEWatch/internal/infrastructure/discord"
	"CVEWatch/internal/infrastructure/feed"
	"CVEWatch/internal/infrastructure/httpapi"
	"CVEWatch/internal/infrastructure/llm"
	"CVEWatch/internal/infrastructure/nvd"
	"CVEWatch/internal/infrastructure/scheduler"
	"CVEWatch/internal/infrastructure/storage"
	"CVEWatch/internal/infrastructure/telegram"
	"CVEWatch/internal/logging"
	"CVEWatch/internal/metrics"
	"CVEWatch/internal/ports"
	"CVEWatch/internal/query"
	"CVEWatch/internal/translate"
	"CVEWatch/internal/usecase"
)

const defaultStoreTimeout = 5 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     ports.StateStore
	detector  *usecase.Detector
	search    *usecase.SearchService
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	session   *discordgo.Session
	bot       *discord.Bot
}

// New builds the runnable service. An unreachable state store is fatal.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := metrics.New()
	timeouts := usecase.Timeouts{
		Feed:       cfg.Timeouts.Feed,
		Enrichment: cfg.Timeouts.Enrichment,
		Generation: cfg.Timeouts.Generation,
		Notify:     cfg.Timeouts.Notify,
		State:      cfg.Timeouts.State,
	}

	store, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg, logger: baseLogger, metrics: m, store: store}

	notifier, err := app.buildNotifier()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	source := feed.NewRSSSource(feed.Options{
		URL:             cfg.Feed.URL,
		Timeout:         cfg.Timeouts.Feed,
		SortByPublished: cfg.Feed.SortEnabled(),
	}, logging.Component(baseLogger, "feed"))

	nvdClient := nvd.NewClient(nvd.Options{
		BaseURL:           cfg.NVD.BaseURL,
		APIKey:            cfg.NVD.APIKey,
		Timeout:           cfg.Timeouts.Enrichment,
		RequestsPerWindow: cfg.NVD.RequestsPerWindow,
	}, logging.Component(baseLogger, "nvd"))

	chat := chatClient(cfg, baseLogger)
	translator := translate.New(chat, logging.Component(baseLogger, "translator"),
		translate.WithLanguage(cfg.Translation.Language),
		translate.WithFailureHook(m.ObserveTranslationFailure),
	)

	app.detector = usecase.NewDetector(usecase.DetectorDeps{
		Feed:         source,
		Store:        store,
		Enricher:     nvdClient,
		Translator:   translator,
		Notifier:     notifier,
		Metrics:      m,
		Logger:       logging.Component(baseLogger, "detector"),
		Timeouts:     timeouts,
		StateRetries: cfg.State.Retries,
	})

	app.search = usecase.NewSearchService(usecase.SearchDeps{
		Compiler:   query.NewCompiler(chat, logging.Component(baseLogger, "compiler")),
		Searcher:   nvdClient,
		Translator: translator,
		Metrics:    m,
		Logger:     logging.Component(baseLogger, "search"),
		Timeouts:   timeouts,
	})

	cron := scheduler.NewCronScheduler(cfg.Scheduler.CronSpec(), logging.Component(baseLogger, "cron"))
	cron.RunOnStart = true
	app.scheduler = usecase.NewScheduler(cron, app.detector, logging.Component(baseLogger, "scheduler"))

	app.server = httpapi.NewServer(httpapi.Deps{
		Port:    cfg.Server.Port,
		Poller:  app.detector,
		Search:  app.search,
		Health:  store,
		Metrics: m.Handler(),
		Logger:  logging.Component(baseLogger, "http"),
	})

	if app.session != nil {
		app.bot = discord.NewBot(app.session, app.search, 0, logging.Component(baseLogger, "discord"))
	}

	return app, nil
}

// Run starts the scheduler, the Discord gateway and the HTTP API, and blocks
// until ctx is cancelled or one of them fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := a.scheduler.Stop(context.Background()); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	if a.bot != nil {
		if err := a.bot.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })

	a.logger.Info("cvewatch running",
		"interval", a.cfg.Scheduler.Interval,
		"state_backend", a.cfg.State.Backend,
		"notifications", a.cfg.Notifications.Provider,
	)
	return g.Wait()
}

// Close releases the gateway session and the state store.
func (a *Application) Close() error {
	var errs []error
	if a.bot != nil {
		errs = append(errs, a.bot.Close())
	} else if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Search exposes the on-demand pipeline to other drivers.
func (a *Application) Search() *usecase.SearchService {
	return a.search
}

func (a *Application) buildNotifier() (ports.Notifier, error) {
	switch a.cfg.Notifications.Provider {
	case config.ProviderTelegram:
		tg := a.cfg.Notifications.Telegram
		return telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.APIBase), nil
	default:
		session, err := discord.NewSession(a.cfg.Notifications.Discord.Token)
		if err != nil {
			return nil, err
		}
		a.session = session
		return discord.NewNotifier(session, a.cfg.Notifications.Discord.ChannelID), nil
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.StateStore, error) {
	limit := cfg.Timeouts.State
	if limit <= 0 {
		limit = defaultStoreTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	switch cfg.State.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := storage.NewRedisStateStore(client, cfg.Redis.Key)
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("state store unavailable: %w", err)
		}
		logger.Info("state store ready", "backend", "redis", "key", cfg.Redis.Key)
		return store, nil
	default:
		db, err := storage.OpenPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStateStore(db, cfg.State.Key)
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("state store unavailable: %w", err)
		}
		if err := store.EnsureSchema(pingCtx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("state store ready", "backend", "postgres", "key", cfg.State.Key)
		return store, nil
	}
}

func chatClient(cfg config.Config, logger *slog.Logger) ports.ChatClient {
	if cfg.ChatGPT.APIKey == "" {
		logger.Warn("no chat api key configured, translations and searches will fail gracefully")
		return nil
	}
	return llm.NewChatGPTClient(cfg.ChatGPT, cfg.Timeouts.Generation)
}

// NewQueryCompiler builds only the question compiler, for offline use.
func NewQueryCompiler(cfg config.Config, logger *slog.Logger) (*query.Compiler, error) {
	if cfg.ChatGPT.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required to compile questions")
	}
	return query.NewCompiler(llm.NewChatGPTClient(cfg.ChatGPT, cfg.Timeouts.Generation), logging.Component(logger, "compiler")), nil
}

// RegisterCommands registers the slash command with Discord.
func RegisterCommands(cfg config.Config) (*discordgo.ApplicationCommand, error) {
	dc := cfg.Notifications.Discord
	if dc.Token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	session, err := discord.NewSession(dc.Token)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return discord.RegisterCommands(session, dc.ClientID, dc.GuildID)
}
