package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	logpkg "github.com/vovakirdan/roomchat/internal/log"
	"github.com/vovakirdan/roomchat/internal/messaging"
	"github.com/vovakirdan/roomchat/internal/ratelimit"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/postgres"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server *stdhttp.Server
	hub    *core.Hub
	store  store.Store
	cfg    *config.Config
	log    *zerolog.Logger

	// closers run in reverse order after the store is closed.
	closers []func() error
	stop    chan struct{}
}

// OpenStore opens the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		return sqlite.New(cfg.DatabasePath)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

// JWTConfig converts the token settings.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("database initialized")

	a := &App{
		store: st,
		cfg:   cfg,
		log:   logger,
		stop:  make(chan struct{}),
	}

	authService := auth.NewService(st, JWTConfig(cfg))

	opts := []core.Option{
		core.WithBatchSize(cfg.BatchSize),
		core.WithLogger(logpkg.Component(logger, "hub")),
	}
	if limiter := a.newLimiter(); limiter != nil {
		opts = append(opts, core.WithLimiter(limiter))
	}
	if cfg.NATSURL != "" {
		pub, err := messaging.Connect(messaging.Config{URL: cfg.NATSURL, Subject: cfg.NATSSubject}, logpkg.Component(logger, "nats"))
		if err != nil {
			// The feed is optional; chat keeps working without it.
			logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable, message feed disabled")
		} else {
			opts = append(opts, core.WithPublisher(pub))
			a.closers = append(a.closers, pub.Close)
		}
	}

	a.hub = core.NewHub(authService, st, opts...)
	a.server = transporthttp.NewServer(a.hub, authService, cfg, logpkg.Component(logger, "http"))
	return a, nil
}

func (a *App) newLimiter() core.Limiter {
	if a.cfg.MessageRateLimit <= 0 {
		return nil
	}
	rule := ratelimit.MessageRule(a.cfg.MessageRateLimit, a.cfg.MessageRateWindow)
	if a.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		a.log.Info().Str("addr", a.cfg.RedisAddr).Msg("using redis rate limiter")
		return ratelimit.NewRedis(client, rule, logpkg.Component(a.log, "ratelimit"))
	}
	local := ratelimit.NewLocal(rule)
	local.StartSweeper(a.stop)
	return local
}

// Hub exposes the coordinator.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.hub.Close()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		// Websocket connections are hijacked and not tracked by Shutdown;
		// closing the hub ends their write loops.
		a.log.Info().Msg("closing chat sessions")
		a.hub.Close()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	close(a.stop)
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}
