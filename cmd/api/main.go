package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activities-api/internal/catalog"
	"github.com/noah-isme/gema-activities-api/internal/config"
	"github.com/noah-isme/gema-activities-api/internal/database"
	"github.com/noah-isme/gema-activities-api/internal/handler"
	"github.com/noah-isme/gema-activities-api/internal/middleware"
	"github.com/noah-isme/gema-activities-api/internal/models"
	"github.com/noah-isme/gema-activities-api/internal/repository"
	"github.com/noah-isme/gema-activities-api/internal/router"
	"github.com/noah-isme/gema-activities-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	validate := validator.New(validator.WithRequiredStructEnabled())

	loader, err := catalog.NewLoader(validate)
	if err != nil {
		log.Fatalf("failed to prepare catalog loader: %v", err)
	}
	doc, err := loader.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load activity catalog: %v", err)
	}
	registry, err := catalog.Build(doc)
	if err != nil {
		log.Fatalf("failed to build activity registry: %v", err)
	}
	logger.Info().Int("activities", len(doc.Activities)).Str("catalog", catalogSource(cfg.CatalogPath)).Msg("activity catalog loaded")

	var logRepo repository.EnrollmentLogRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.EnrollmentLog{}); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		logRepo = repository.NewEnrollmentLogRepository(db)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var publisher service.EventPublisher
	if redisClient != nil || natsConn != nil {
		publisher = service.NewEventPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	}

	enrollmentService := service.NewEnrollmentService(registry, logRepo, publisher, validate, service.EnrollmentServiceOptions{
		StrictEmail: cfg.StrictEmail,
	}, logger)

	deps := router.Dependencies{
		Enrollments:     enrollmentService,
		ActivityHandler: handler.NewActivityHandler(enrollmentService, logger),
		RateLimiter:     middleware.RateLimit("enrollment", cfg.RateLimitMax, cfg.RateLimitWindow),
	}
	if logRepo != nil {
		deps.EnrollmentLogHandler = handler.NewEnrollmentLogHandler(enrollmentService, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cfg.ShutdownTimeout, logger)
}

func catalogSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func waitForShutdown(app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
