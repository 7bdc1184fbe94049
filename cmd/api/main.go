package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"crash-rounds-backend/internal/config"
	"crash-rounds-backend/internal/handlers"
	"crash-rounds-backend/internal/middleware"
	"crash-rounds-backend/internal/services"
	"crash-rounds-backend/pkg/logger"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		// Not an error: container deployments pass real env vars.
		logger.Info(ctx).Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("failed to load config")
	}

	if cfg.LogFile != "" {
		logger.InitWithFile(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	} else {
		logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	store, err := buildStore(cfg)
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("failed to connect store")
	}
	defer store.Close()

	fairness, err := services.NewFairnessEngine(services.DefaultFairnessConfig(cfg.MaxMultiplier))
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("invalid fairness config")
	}

	engineCfg := services.DefaultEngineConfig()
	engineCfg.TickInterval = cfg.TickInterval
	engineCfg.TickCap = cfg.TickCap

	hub := handlers.NewWebSocketHub()
	engine := services.NewRoundEngine(engineCfg, fairness, store, hub)

	jwtService := services.NewJWTService(cfg)
	userHandler := handlers.NewUserHandler(store, jwtService)
	gameHandler := handlers.NewGameHandler(engine)
	wsHandler := handlers.NewWebSocketHandler(hub)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/auth/login", userHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.Me)
		protected.GET("/balance", userHandler.GetBalance)
		protected.POST("/transfer", userHandler.Transfer)
		protected.GET("/transactions", userHandler.GetTransactions)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		rooms := protected.Group("/rooms/:room")
		{
			rooms.POST("/start", gameHandler.StartRound)
			rooms.POST("/bets", gameHandler.PlaceBet)
			rooms.POST("/go", gameHandler.Go)
			rooms.POST("/cashout", gameHandler.CashOut)
			rooms.GET("/round", gameHandler.GetRound)
			rooms.GET("/reveal", gameHandler.Reveal)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info(ctx).Str("port", cfg.Port).Str("store", cfg.Store).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx).Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx).Msg("shutting down, letting tick loops finish their tick")
	engine.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx).Err(err).Msg("server shutdown failed")
	}
}

func buildStore(cfg *config.Config) (services.Store, error) {
	if cfg.Store == "memory" {
		return services.NewMemoryStore(), nil
	}
	return services.NewRedisStore(cfg)
}
