package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/davitr/userhub-be/internal/api"
	"github.com/davitr/userhub-be/internal/auth"
	"github.com/davitr/userhub-be/internal/cache"
	"github.com/davitr/userhub-be/internal/config"
	"github.com/davitr/userhub-be/internal/database"
	"github.com/davitr/userhub-be/internal/logger"
	"github.com/davitr/userhub-be/internal/monitoring"
	"github.com/davitr/userhub-be/internal/services"
	"github.com/davitr/userhub-be/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.IsDevelopment())

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			log.Fatal().Msg("JWT_SECRET must be set outside development")
		}
		log.Warn().Msg("JWT_SECRET is empty; tokens are not secure")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up the Redis-backed cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Handlers fall back to the store on cache errors, so a cache
		// outage in development is survivable.
		if cfg.IsDevelopment() {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable; running without cache acceleration")
		} else {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
	}
	cancelPing()
	defer redisClient.Close()
	userCache := cache.NewRedisCache(redisClient)

	// Set up WebSocket Hub for the audit event feed
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	userService := services.NewUserService(db)
	privilegeService := services.NewPrivilegeService(db)
	eventService := services.NewEventService(db, hub)

	// Set up and run the audit retention sweeper
	sweeper := monitoring.NewRetentionSweeper(eventService, cfg.AuditSweepSchedule, cfg.AuditRetentionDays)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweeper")
	}

	// Set up router
	tokens := auth.NewManager(cfg.JWTSecret)
	router := api.NewRouter(hub, userService, privilegeService, eventService, userCache, tokens, cfg.IsDevelopment())

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
