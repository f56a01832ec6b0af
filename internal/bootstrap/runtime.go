// Package bootstrap assembles the bot and the admin API from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatwarden/internal/cache"
	"chatwarden/internal/config"
	"chatwarden/internal/database"
	"chatwarden/internal/featureflags"
	"chatwarden/internal/ledger"
	"chatwarden/internal/moderation"
	"chatwarden/internal/notifications"
	"chatwarden/internal/observability"
	"chatwarden/internal/policy"
	"chatwarden/internal/repository"
	"chatwarden/internal/server"
	"chatwarden/internal/telegram"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ServiceVersion is reported in traces.
const ServiceVersion = "1.0.0"

const shutdownTimeout = 10 * time.Second

// Options control runtime initialization behavior.
type Options struct {
	// RequireDatabase fails startup when the database is unreachable.
	// Otherwise the bot runs with a ledger that records nothing.
	RequireDatabase bool
}

// Runtime owns every long-lived component of the process.
type Runtime struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Matcher   *policy.Matcher
	Ledger    *ledger.Ledger
	Flags     *featureflags.Manager
	Moderator *moderation.Moderator
	// Poller is nil when no bot token is configured.
	Poller *telegram.Poller
	Server *server.Server

	shutdownTracing func(context.Context) error
}

// InitRuntime connects storage and cache, loads rules and builds the bot and
// the admin API.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "chatwarden",
		ServiceVersion: ServiceVersion,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	rt.shutdownTracing = shutdown

	extra, err := policy.LoadFile(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	rt.Matcher = policy.NewMatcher(extra...)
	observability.Logger.Info("Policy rules loaded",
		slog.Int("literals", rt.Matcher.Rules().LiteralCount()),
		slog.Int("patterns", len(rt.Matcher.Rules().Patterns())),
	)

	db, err := database.Connect(cfg)
	if err != nil {
		if opts.RequireDatabase {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		observability.Logger.Error("Database unavailable, moderation events will not be recorded",
			slog.String("error", err.Error()))
	}
	rt.DB = db

	// Nil when Redis is not configured or unreachable.
	rt.Redis = cache.InitRedis(cfg.RedisURL)
	counts := cache.NewCountCache(rt.Redis, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second)

	var repo repository.EventRepository
	if db != nil {
		repo = repository.NewEventRepository(db)
	}
	ledgerOpts := []ledger.Option{ledger.WithCountCache(counts)}
	if rt.Redis != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(notifications.NewNotifier(rt.Redis)))
	}
	rt.Ledger = ledger.New(repo, ledgerOpts...)
	rt.Flags = featureflags.NewManager(cfg.FeatureFlags)

	if err := rt.initBot(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	rt.Server, err = server.NewServer(server.Deps{
		Config:  cfg,
		Matcher: rt.Matcher,
		Ledger:  rt.Ledger,
		Flags:   rt.Flags,
		DB:      rt.DB,
		Redis:   rt.Redis,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("server init failed: %w", err)
	}

	return rt, nil
}

func (rt *Runtime) initBot(ctx context.Context) error {
	cfg := rt.Config
	if cfg.BotToken == "" {
		observability.Logger.Warn("BOT_TOKEN not set, running the admin API only")
		return nil
	}

	pollTimeout := time.Duration(cfg.BotPollTimeoutSeconds) * time.Second
	client, err := telegram.NewClient(cfg.BotToken, telegram.ClientOptions{
		APIURL:  cfg.TelegramAPIURL,
		Timeout: pollTimeout + 30*time.Second,
		HTTP:    []telegram.HTTPOption{telegram.WithHTTPLogger(observability.Logger)},
	})
	if err != nil {
		return fmt.Errorf("telegram client init failed: %w", err)
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe failed: %w", err)
	}
	observability.Logger.Info("Bot authorized", slog.String("username", me.Username))

	rt.Moderator = moderation.New(telegram.NewGateway(client), rt.Matcher, rt.Ledger, moderation.Options{
		Flags:        rt.Flags,
		MuteDuration: time.Duration(cfg.MuteDefaultMinutes) * time.Minute,
		BotUsername:  me.Username,
	})
	rt.Poller = telegram.NewPoller(client, telegram.PollerOptions{
		Timeout: pollTimeout,
		Workers: cfg.BotWorkers,
	})
	return nil
}

// Run serves the admin API and polls updates until ctx is cancelled or
// either stops with an error.
func (rt *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := rt.Server.Start(); err != nil {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	})

	if rt.Poller != nil {
		g.Go(func() error {
			err := rt.Poller.Run(gctx, func(ctx context.Context, msg moderation.Message) {
				rt.Moderator.Handle(ctx, msg)
			})
			if err != nil {
				return err
			}
			// Polling only stops cleanly on shutdown.
			return gctx.Err()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		observability.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return rt.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close releases storage, cache and tracing resources.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Ledger != nil {
		if err := rt.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
