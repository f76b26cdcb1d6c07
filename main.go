package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todotrack-api/api"
	"todotrack-api/auth"
	"todotrack-api/config"
	"todotrack-api/gateway"
	"todotrack-api/ordering"
	"todotrack-api/storage"
	"todotrack-api/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Errorf("storage close: %v", err)
		}
	}()
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("indexes: %v", err)
	}

	var limiter *api.RedisLimiter
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		limiter = api.NewRedisLimiter(rc, cfg.RateLimitWindow, cfg.RateLimitRequests)
	} else {
		logger.Warn("REDIS_ADDR not set, rate limiting disabled")
		limiter = api.NewRedisLimiter(nil, cfg.RateLimitWindow, cfg.RateLimitRequests)
	}

	tokens := token.New(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	accounts := auth.NewService(store, tokens, logger, uuid.NewString, cfg.MaxRefreshTokens, cfg.BcryptCost)
	engine := ordering.NewEngine(store)

	hub := gateway.NewHub(accounts, logger, cfg.SweepInterval)
	go hub.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, api.Deps{
		Store:         store,
		Engine:        engine,
		Accounts:      accounts,
		Hub:           hub,
		Limiter:       limiter,
		Logger:        logger,
		CookieTTL:     cfg.RefreshTokenTTL,
		SecureCookies: !cfg.Debug,
	})

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-exit
		logger.Infof("signal caught: %v", sig)
		cancel()
		_ = e.Close()
	}()

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
