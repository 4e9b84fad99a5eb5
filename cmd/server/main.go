package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/config"
	"github.com/vrental/booking-service/internal/database"
	"github.com/vrental/booking-service/internal/database/migrations"
	"github.com/vrental/booking-service/internal/handlers"
	"github.com/vrental/booking-service/internal/middleware"
	"github.com/vrental/booking-service/internal/services"
	"github.com/vrental/booking-service/pkg/jwt"
	"github.com/vrental/booking-service/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

const (
	softLockReaperJob = "soft-lock-reaper"
	orderExpirerJob   = "order-expirer"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting vehicle rental booking service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if err := validator.RegisterBindingValidators(); err != nil {
		logger.Fatalf("Failed to register request validators: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrations.Apply(migrateCtx, db.DB, logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Initialize repositories
	softLockRepository := database.NewSoftLockRepository(db.DB)
	orderRepository := database.NewOrderRepository(db.DB)
	paymentAuditRepository := database.NewPaymentAuditRepository(db.DB)
	txManager := database.NewTxManager(db.DB)

	// Initialize services
	logger.Info("Initializing services...")
	clk := clock.NewSystem()
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer)

	var trustProvider services.TrustScoreProvider
	if cfg.TrustScore.ServiceURL != "" {
		trustProvider = services.NewHTTPTrustScoreProvider(cfg.TrustScore.ServiceURL, cfg.TrustScore.Timeout)
		logger.WithField("url", cfg.TrustScore.ServiceURL).Info("Trust scores from user service")
	} else {
		trustProvider = services.StaticTrustScoreProvider{Score: cfg.TrustScore.DefaultScore}
		logger.WithField("score", cfg.TrustScore.DefaultScore).Warn("TRUST_SCORE_URL not set, using a static trust score")
	}

	// Notifications: in-process hub, optionally bridged through Redis and
	// mirrored to Kafka
	hub := services.NewNotificationHub(cfg.Notifications.SessionBuffer, logger)
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var notifiers services.MultiNotifier
	if cfg.Notifications.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Notifications.RedisAddr})
		defer redisClient.Close()

		redisNotifier := services.NewRedisNotifier(redisClient, cfg.Notifications.RedisChannel, hub, logger)
		go func() {
			if err := redisNotifier.Run(bgCtx); err != nil {
				logger.WithError(err).Error("Redis notification subscriber stopped")
			}
		}()
		notifiers = append(notifiers, redisNotifier)
		logger.WithField("addr", cfg.Notifications.RedisAddr).Info("Notifications fan out through Redis")
	} else {
		notifiers = append(notifiers, hub)
	}
	if len(cfg.Notifications.KafkaBrokers) > 0 {
		kafkaNotifier := services.NewKafkaNotifier(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic, logger)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				logger.WithError(err).Warn("Failed to flush Kafka writer")
			}
		}()
		notifiers = append(notifiers, kafkaNotifier)
		logger.WithField("topic", cfg.Notifications.KafkaTopic).Info("Lifecycle events mirrored to Kafka")
	}

	availabilityService := services.NewAvailabilityService(softLockRepository, orderRepository, clk, logger)
	orchestratorService := services.NewBookingOrchestratorService(
		txManager,
		softLockRepository,
		orderRepository,
		availabilityService,
		trustProvider,
		notifiers,
		clk,
		services.BookingOrchestratorConfig{
			SoftLockTTL:       cfg.Booking.SoftLockTTL,
			PaymentTTL:        cfg.Booking.PaymentTTL,
			MaxRentalDuration: cfg.Booking.MaxRentalDuration,
			CostTolerance:     cfg.Booking.CostTolerance,
		},
		logger,
	)
	paymentService := services.NewPaymentService(cfg.Payment.SigningSecret, cfg.Booking.CostTolerance, orderRepository, orchestratorService, logger).
		WithAuditLog(paymentAuditRepository, cfg.Payment.Currency)

	// Expiration sweepers
	cronService := services.NewCronService(logger)
	cronService.Register(softLockReaperJob, cfg.Booking.SoftLockSweepInterval,
		services.NewSoftLockReaper(softLockRepository, clk, cfg.Booking.SweepBatchSize, logger))
	cronService.Register(orderExpirerJob, cfg.Booking.OrderSweepInterval,
		services.NewOrderExpirer(orderRepository, notifiers, clk, cfg.Booking.SweepBatchSize, logger))
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(orchestratorService, logger)
	orderHandler := handlers.NewOrderHandler(orchestratorService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, paymentAuditRepository, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, logger)
	notificationHandler := handlers.NewNotificationHandler(hub, time.Duration(cfg.Notifications.HeartbeatSeconds)*time.Second, logger)
	healthHandler := handlers.NewHealthHandler(db, cronService, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		// Payment collaborator (HMAC signed, no JWT)
		v1.POST("/payments/callback", paymentHandler.Callback)

		// SSE clients cannot set headers, so the token may ride in the query
		v1.GET("/notifications/stream", middleware.AuthMiddleware(jwtService, logger, true), notificationHandler.Stream)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtService, logger, false))
		{
			bookings := protected.Group("/bookings")
			{
				bookings.POST("/preview", bookingHandler.Preview)
				bookings.POST("/confirm", bookingHandler.Confirm)
				bookings.GET("/soft-locks/:token", bookingHandler.GetSoftLock)
				bookings.POST("/soft-locks/:token/cancel", bookingHandler.CancelSoftLock)
			}

			orders := protected.Group("/orders")
			{
				orders.GET("", orderHandler.ListOrders)
				orders.GET("/:id", orderHandler.GetOrder)
				orders.POST("/:id/cancel", orderHandler.CancelOrder)
				orders.POST("/:id/start", middleware.RequireRole(jwt.RoleStaff), orderHandler.StartRental)
				orders.POST("/:id/complete", middleware.RequireRole(jwt.RoleStaff), orderHandler.CompleteRental)
			}

			protected.GET("/vehicles/:id/availability", availabilityHandler.GetAvailability)

			admin := protected.Group("/admin", middleware.RequireRole(jwt.RoleStaff))
			{
				admin.POST("/sweepers/:name/run", handlers.RunSweeper(cronService, logger))
				admin.GET("/orders/:id/payment-audits", paymentHandler.ListAudits)
				admin.GET("/payment-audits/mismatches", paymentHandler.ListAmountMismatches)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(hub.CloseAll)

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop sweepers first so no expiry runs against a closing pool
	cronService.Stop()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
