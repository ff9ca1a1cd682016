package main

import (
	"context"
	"log"

	"shiplink/internal/config"
	"shiplink/internal/modules/bookings"
	"shiplink/internal/modules/journeys"
	"shiplink/internal/modules/users"
	"shiplink/internal/routes"
	"shiplink/pkg/mailer"
	"shiplink/pkg/payment"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()

	// 2. Connect to Postgres.
	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to create connection pool: %v", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Fatalf("Failed to reach database: %v", err)
	}

	// 3. Redis backs the search-response cache; the service runs without it.
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, search caching disabled")
			cache = nil
		}
	}

	// 4. Outbound adapters.
	var mail mailer.Sender
	if cfg.AWSRegion != "" && cfg.MailFrom != "" {
		mail, err = mailer.NewSESMailer(ctx, cfg.AWSRegion, cfg.MailFrom)
		if err != nil {
			logger.Fatalf("Failed to initialize SES mailer: %v", err)
		}
	} else {
		mail = &mailer.LogMailer{Log: logger}
	}
	payments := payment.NewStripeService(cfg.StripeAPIKey)

	// 5. Modules.
	userRepo := users.NewRepository(db)
	userService := users.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL(),
		cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	userHandler := users.NewHandler(userService)

	searchIndex := journeys.NewSearchIndex()
	journeyRepo := journeys.NewRepository(db)
	journeyService := journeys.NewService(journeyRepo, searchIndex, cache, logger)
	journeyHandler := journeys.NewHandler(journeyService)
	if err := journeyService.SeedIndex(ctx); err != nil {
		logger.Fatalf("Failed to seed search index: %v", err)
	}

	bookingRepo := bookings.NewRepository(db)
	bookingService := bookings.NewService(bookingRepo, payments, mail, searchIndex, logger)
	bookingHandler := bookings.NewHandler(bookingService)

	// 6. HTTP server.
	e := echo.New()
	e.HideBanner = true
	routes.Setup(e, cfg, userHandler, journeyHandler, bookingHandler)

	logger.WithField("port", cfg.ServerPort).Info("starting API server")
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}
