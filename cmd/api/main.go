package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"numbers-game-backend/internal/config"
	"numbers-game-backend/internal/handlers"
	"numbers-game-backend/internal/logger"
	"numbers-game-backend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameEngine := services.NewGameEngine(services.GameConfig{
		BettingWindow: cfg.BettingWindow,
		AutoRepeat:    cfg.AutoRepeat,
		RepeatDelay:   cfg.RepeatDelay,
	}, services.NewRandomNumberGenerator(), quartz.NewReal(), zl)
	defer gameEngine.Close()

	hub := handlers.NewHub(zl)
	gameEngine.RegisterListener(hub)

	g, gctx := errgroup.WithContext(ctx)

	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		rs, err := services.NewRedisService(cfg, zl)
		if err != nil {
			return err
		}
		defer rs.Close()
		redisService = rs

		gameEngine.RegisterListener(redisService)
		g.Go(func() error {
			return redisService.Run(gctx)
		})
		zl.Info("redis enabled", zap.String("channel", redisService.Channel()))
	} else {
		zl.Info("REDIS_URL not set, event fan-out and rate limiting disabled")
	}

	var jwtService *services.JWTService
	if cfg.AdminJWTSecret != "" {
		jwtService = services.NewJWTService(cfg.AdminJWTSecret)
	} else {
		zl.Warn("ADMIN_JWT_SECRET not set, round control is unauthenticated")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			GameEngine:   gameEngine,
			Hub:          hub,
			JWTService:   jwtService,
			RedisService: redisService,
			BetRateLimit: cfg.BetRateLimit,
			Logger:       zl,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		gameEngine.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.AutoStart {
		gameEngine.StartNewRound()
	}

	return g.Wait()
}
