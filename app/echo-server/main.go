package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garageBooking/app/echo-server/router"
	"garageBooking/business/admin"
	"garageBooking/business/auth"
	"garageBooking/business/booking"
	"garageBooking/business/documents"
	"garageBooking/business/garage"
	"garageBooking/business/payments"
	"garageBooking/business/review"
	"garageBooking/internal/middleware"
	"garageBooking/internal/repository/chapa"
	mongoRepo "garageBooking/internal/repository/mongo"
	"garageBooking/internal/repository/notification"
	psqlRepo "garageBooking/internal/repository/postgres"
	redisRepo "garageBooking/internal/repository/redis"
	"garageBooking/internal/rest"
	"garageBooking/internal/scheduler"
	"garageBooking/pkg/config"
	"garageBooking/pkg/database"
	redisdb "garageBooking/pkg/database/redis"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/metrics"
	"garageBooking/pkg/tracing"
	"garageBooking/pkg/utils"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting "+cfg.App.Name, "version", cfg.App.Version, "environment", cfg.App.Environment)

	metrics.Init()

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName)
	if err != nil {
		logger.Fatal("Failed to init tracing", "error", err)
	}

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get database handle", "error", err)
	}

	logger.Info("Database connected successfully")

	redisClient, err := redisdb.NewRedisClient(cfg.Redis, 5, 2*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}

	mongoClient, err := database.ConnectMongo(cfg.Mongo, 5, 2*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to mongo", "error", err)
	}

	// Init mongo stores
	webhookRepo := mongoRepo.NewWebhookRepository(mongoClient, cfg.Mongo.Database, cfg.Mongo.WebhookCollection)
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 10*time.Second)
	if err := webhookRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to create webhook indexes", "error", err)
	}
	cancelIndex()
	blobStore := mongoRepo.NewBlobStore(mongoClient, cfg.Mongo.Database, cfg.Mongo.DocumentBucket)

	// Init notification from mailjet
	mailjetEmail := notification.NewMailjetRepository(
		notification.MailjetConfig{
			MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
			MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
			MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
			MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
			MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
		},
	)

	chapaRepo := chapa.NewChapaRepository(
		chapa.ChapaConfig{
			SecretKey:   cfg.Payment.SecretKey,
			BaseURL:     cfg.Payment.BaseURL,
			CallbackURL: cfg.Payment.CallbackURL,
			ReturnURL:   cfg.Payment.ReturnURL,
			Timeout:     cfg.Payment.Timeout,
		},
	)

	// Init validate
	validate := utils.NewValidator()
	jwtManager := utils.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.TTL)

	// Init repo
	accountRepo := psqlRepo.NewAccountRepository(db)
	profileRepo := psqlRepo.NewGarageProfileRepository(db)
	attemptRepo := psqlRepo.NewPaymentAttemptRepository(db)
	garageRepo := psqlRepo.NewGarageRepository(db)
	bookingRepo := psqlRepo.NewBookingRepository(db)
	reviewRepo := psqlRepo.NewReviewRepository(db)
	tokenRepo := redisRepo.NewTokenRepository(redisClient)

	// Init service
	documentsService := documents.NewDocumentsService(profileRepo, blobStore)
	authService := auth.NewAuthService(accountRepo, profileRepo, documentsService, tokenRepo, mailjetEmail, jwtManager, validate, auth.Options{
		MaxFailedLogins: cfg.Security.MaxFailedLogins,
		LockDuration:    cfg.Security.LockDuration,
		ResetLinkTTL:    cfg.App.ResetLinkTTL,
		LinkCodeKey:     cfg.App.AppLinkCodeKey,
		DeploymentURL:   cfg.App.AppDeploymentUrl,
	})
	paymentsService := payments.NewPaymentsService(profileRepo, attemptRepo, accountRepo, chapaRepo, webhookRepo, cfg.Payment)
	garageService := garage.NewGarageService(garageRepo, bookingRepo, profileRepo, validate)
	bookingService := booking.NewBookingService(bookingRepo, garageRepo, validate)
	reviewService := review.NewReviewService(reviewRepo, garageRepo, bookingRepo, validate)
	adminService := admin.NewAdminService(profileRepo, accountRepo, documentsService, mailjetEmail, admin.Counters{
		Garages:  garageRepo,
		Bookings: bookingRepo,
		Reviews:  reviewRepo,
	})

	jobs := scheduler.NewScheduler(paymentsService, cfg.Scheduler.PaymentExpirySchedule)
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", "error", err)
	}

	// Init handler
	authHandler := rest.NewAuthHandler(authService)
	garageHandler := rest.NewGarageHandler(garageService)
	bookingHandler := rest.NewBookingHandler(bookingService)
	reviewHandler := rest.NewReviewHandler(reviewService)
	paymentsHandler := rest.NewPaymentsHandler(paymentsService)
	documentsHandler := rest.NewDocumentsHandler(documentsService)
	adminHandler := rest.NewAdminHandler(adminService, paymentsService, authService)
	healthHandler := rest.NewHealthHandler(cfg.App.Version, map[string]rest.Check{
		"postgres": sqlDB.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
	})

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler(!cfg.App.IsProduction())

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.BodyLimit("30M"))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomiddleware.ContextTimeout(cfg.Server.RequestTimeout))
	e.Use(middleware.Metrics())

	// Auth middleware
	guards := router.Guards{
		AuthRequired: middleware.AuthMiddleware(jwtManager, tokenRepo),
		AuthOptional: middleware.OptionalAuth(jwtManager, tokenRepo),
	}

	// Setup routes
	router.SetupSystemRoutes(e, healthHandler)
	api := e.Group("/api/v1")
	router.SetupAuthRoutes(api, authHandler, guards)
	router.SetupGarageRoutes(api, garageHandler, guards)
	router.SetupBookingRoutes(api, bookingHandler, guards)
	router.SetupReviewRoutes(api, reviewHandler, guards)
	router.SetupPaymentRoutes(api, paymentsHandler, guards)
	router.SetupDocumentRoutes(api, documentsHandler, guards)
	router.SetupAdminRoutes(api, adminHandler, documentsHandler, guards)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	jobs.Stop(ctx)

	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Error("Mongo disconnect error", "error", err)
	}
	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Database close error", "error", err)
	}
	shutdownTracing()

	logger.Info("Server stopped")
}
