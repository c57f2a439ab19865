package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tracker/internal/logger"
	"tracker/internal/ratelimit"
	"tracker/internal/server"
	"tracker/internal/service"
	db "tracker/repository/db"
	inmemory "tracker/repository/inmemory"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	flags := server.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, warnings := server.ReadConfig(flags)

	log, err := logger.New(cfg.Env, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("env", cfg.Env).Msg("refusing to start")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
	log.Info().Msg("service stopped")
}

func run(cfg *server.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := RunMigrations(cfg); err != nil {
		log.Warn().Err(err).Msg("migrations not applied")
	} else {
		log.Info().Msg("migrations applied")
	}

	store, closeStore := InitializeStore(ctx, cfg, log)
	defer closeStore()

	limiter, closeLimiter := InitializeLimiter(ctx, cfg, log)
	defer closeLimiter()

	api := server.NewTaskAPI(cfg, log, store, limiter)
	if api == nil {
		return fmt.Errorf("failed to initialize API")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(api.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return api.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func RunMigrations(cfg *server.Config) error {
	return db.Migration(cfg.DBStr, cfg.MigratePath)
}

// InitializeStore connects to Postgres and falls back to the in-memory store
// when the database is unreachable.
func InitializeStore(ctx context.Context, cfg *server.Config, log zerolog.Logger) (service.Store, func()) {
	dbStorage, err := db.NewStorage(ctx, cfg.DBStr, log)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, using in-memory storage")
		return inmemory.NewStorage(), func() {}
	}
	return dbStorage, dbStorage.Close
}

// InitializeLimiter returns nil when Redis is not configured or unreachable,
// leaving the account endpoints unthrottled.
func InitializeLimiter(ctx context.Context, cfg *server.Config, log zerolog.Logger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}

	client, err := ratelimit.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		return nil, func() {}
	}
	return ratelimit.NewRedisLimiter(client, cfg.AuthRateLimit, cfg.AuthRateWindow, "tracker:ratelimit:"),
		func() { _ = client.Close() }
}
