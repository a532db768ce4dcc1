package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"pdf2png/internal/config"
	"pdf2png/internal/convert"
	"pdf2png/internal/http/server"
	"pdf2png/internal/infra/logging"
	"pdf2png/internal/infra/pool"
	"pdf2png/internal/infra/ratelimit"
	"pdf2png/internal/render"
	"pdf2png/internal/tokens"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := render.New(cfg)
	if err != nil {
		logging.Error("Failed to initialise render engine", "engine", cfg.Render.Engine, "error", err)
		os.Exit(1)
	}
	var renderer render.Renderer = engine
	if cfg.Cache.PageCacheEnabled && cfg.Cache.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PageCacheDB,
		})
		renderer = render.NewCached(engine, rdb, cfg.Cache.PageCacheTTL)
		logging.Info("Page cache enabled", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.PageCacheDB, "ttl", cfg.Cache.PageCacheTTL.String())
	}
	defer renderer.Close()

	renderPool, err := pool.NewPool(cfg.Render.PoolSize, cfg.Render.Engine)
	if err != nil {
		logging.Error("Failed to create render pool", "error", err)
		os.Exit(1)
	}
	defer renderPool.Close()

	coord := convert.NewCoordinator(renderer,
		convert.WithAdmission(renderPool),
		convert.WithDefaultLimit(cfg.Render.Concurrency),
		convert.WithAcquireTimeout(cfg.AcquireTimeout()),
	)
	svc := convert.NewService(coord, convert.Limits{
		MaxPages:         cfg.Limits.MaxPages,
		MaxDocumentBytes: cfg.Limits.MaxDocumentBytes,
		DefaultDPI:       cfg.Render.DefaultDPI,
		MaxDPI:           cfg.Render.MaxDPI,
		MaxConcurrency:   cfg.Render.Concurrency,
		Timeout:          cfg.RenderTimeout(),
	})

	var tokenCache *tokens.Cache
	if cfg.Auth.Enabled {
		tokenCache = startTokenReloader(ctx, cfg)
	}

	app := server.New(server.Deps{
		Config:       cfg,
		Converter:    svc,
		Stats:        renderPool,
		Tokens:       tokenCache,
		LimiterStore: ratelimit.NewStore(cfg.Cache.RedisHost, cfg.Cache.RateLimitDB),
	})

	logging.Info("Starting pdf2png",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"engine", cfg.Render.Engine,
		"pool_size", cfg.Render.PoolSize,
		"concurrency", cfg.Render.Concurrency,
	)

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startTokenReloader loads API tokens once and keeps them fresh in the background.
// A failed initial load leaves the cache not ready; keyed requests get 503 until a reload succeeds.
func startTokenReloader(ctx context.Context, cfg config.Config) *tokens.Cache {
	cache := tokens.NewCache()
	dsn, err := tokens.PostgresDSN(cfg.Auth.Postgres)
	if err != nil {
		logging.Error("Invalid token database config", "error", err)
		return cache
	}
	reloader := tokens.NewReloader(tokens.NewRepository(tokens.NewDB(), dsn), cache, cfg.Auth.ReloadInterval)
	if err := reloader.LoadOnce(ctx); err != nil {
		logging.Error("Failed to load API tokens", "error", err)
	}
	reloader.Start(ctx)
	return cache
}

// startServer starts the Fiber app and blocks until a shutdown signal arrives.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
