package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/shiurfinder/shiurfinder/docs" // Swagger docs (generated)
	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/authz"
	"github.com/shiurfinder/shiurfinder/internal/backup"
	"github.com/shiurfinder/shiurfinder/internal/catalog"
	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/database"
	"github.com/shiurfinder/shiurfinder/internal/email"
	"github.com/shiurfinder/shiurfinder/internal/feed"
	httpServer "github.com/shiurfinder/shiurfinder/internal/http"
	"github.com/shiurfinder/shiurfinder/internal/importer"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/ratelimit"
	"github.com/shiurfinder/shiurfinder/internal/user"
)

// @title           ShiurFinder API
// @version         1.0
// @description     Browse, favorite and follow shiurim and rabbis, import catalogs and publish favorite feeds.

// @host      localhost:5000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	ctx := context.Background()

	// Open the store, falling back to memory when allowed
	st, err := database.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close(context.Background())

	// Redis is optional; without it auth rate limits are off
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("redis not configured, auth rate limits disabled")
	}
	rateLimiter := ratelimit.NewLimiter(redisClient)

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return fmt.Errorf("failed to initialize authorization: %w", err)
	}

	emailService := email.NewService(cfg.Email)

	authService := auth.NewService(
		st,
		tokenService,
		emailService,
		logger,
		cfg.Auth.TokenTTL,
		cfg.Auth.ResetTTL,
		cfg.Auth.AdminEmails,
	)

	publisher, err := feed.NewPublisher(ctx, cfg.Feed)
	if err != nil {
		logger.Warn("feed publishing disabled", "error", err)
	}
	resolver := feed.NewPageScraper(&http.Client{}, cfg.Feed.FetchTimeout)
	feedService := feed.NewService(st, resolver, publisher, cfg.Feed, logger)

	handlers := httpServer.Handlers{
		Auth:            auth.NewHandler(authService, rateLimiter, logger),
		User:            user.NewHandler(user.NewService(st, logger)),
		Catalog:         catalog.NewHandler(catalog.NewService(st)),
		Importer:        importer.NewHandler(importer.NewService(st, logger), cfg.Server.MaxUploadSize),
		Backup:          backup.NewHandler(backup.NewService(st.Name(), cfg.Store, cfg.Backup, logger)),
		Feed:            feed.NewHandler(feedService),
		AuthMiddleware:  auth.NewMiddleware(tokenService),
		AuthzMiddleware: authz.NewMiddleware(enforcer),
		Store:           st,
	}

	router := httpServer.NewRouter(cfg, handlers, logger)

	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- server.Start()
	}()

	var metricsServer *httpServer.Server
	if cfg.Server.MetricsAddr != "" {
		metricsServer = httpServer.NewServer(
			cfg.Server.MetricsAddr,
			httpServer.NewMetricsRouter(),
			cfg.Server.ReadTimeout,
			cfg.Server.WriteTimeout,
			logger.WithFields(map[string]any{"listener": "metrics"}),
		)
		go func() {
			serverErrors <- metricsServer.Start()
		}()
	}

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("metrics shutdown failed: %w", err)
			}
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
