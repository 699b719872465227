package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playfield/marketplace-backend/internal/config"
	"github.com/playfield/marketplace-backend/internal/database"
	"github.com/playfield/marketplace-backend/internal/handlers"
	"github.com/playfield/marketplace-backend/internal/middleware"
	"github.com/playfield/marketplace-backend/internal/realtime"
	"github.com/playfield/marketplace-backend/internal/services"
	"github.com/playfield/marketplace-backend/pkg/gateway"
	"github.com/playfield/marketplace-backend/pkg/jwt"
	"github.com/playfield/marketplace-backend/pkg/mq"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75/webhook"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Playfield marketplace payments backend")
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

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Real-time channel registry; live pushes are skipped when Redis is down
	redisClient := config.NewRedisClient(cfg.Redis)
	if redisClient == nil {
		logger.WithField("addr", cfg.Redis.Addr).Warn("Redis unreachable, live notification pushes disabled")
	} else {
		defer redisClient.Close()
		logger.Info("Redis connection established")
	}

	// Domain event broker
	var publisher services.EventPublisher
	if cfg.Broker.URL != "" {
		mqPublisher, err := mq.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.WithError(err).Warn("Broker unreachable, domain events disabled")
		} else {
			defer mqPublisher.Close()
			publisher = mqPublisher
			logger.WithField("exchange", cfg.Broker.Exchange).Info("Broker connection established")
		}
	}

	// Initialize repositories
	bookingRepository := database.NewBookingRepository(db)
	pendingChargeRepository := database.NewPendingChargeRepository(db)
	notificationRepository := database.NewNotificationRepository(db)
	sessionRepository := database.NewSessionRepository(db)
	paymentAuditRepository := database.NewPaymentAuditRepository(db, logger)
	reconciliationStore := database.NewReconciliationStore(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	stripeGateway := gateway.NewStripeGateway(gateway.Config{
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		APIVersion:    cfg.Payment.APIVersion,
		Tolerance:     webhook.DefaultTolerance,
	}, logger)

	auditService := services.NewPaymentAuditService(paymentAuditRepository, logger)
	snapshotService := services.NewBookingSnapshotService(bookingRepository, logger)
	paymentIntentService := services.NewPaymentIntentService(
		snapshotService,
		pendingChargeRepository,
		stripeGateway,
		auditService,
		services.PaymentIntentConfig{DefaultCurrency: cfg.Payment.DefaultCurrency},
		logger,
	)
	emitter := services.NewNotificationEmitter(
		realtime.NewRedisChannelRegistry(redisClient, cfg.Redis.PresencePrefix),
		cfg.Redis.PushTimeout,
		logger,
	)
	reconciliationService := services.NewReconciliationService(reconciliationStore, emitter, publisher, cfg.Broker.PublishTimeout, logger)
	webhookService := services.NewWebhookService(stripeGateway, reconciliationService, auditService, logger)

	// Session status sweeper
	var cronService *services.CronService
	if cfg.Sweeper.Enabled {
		cronService = services.NewCronService(sessionRepository, cfg.Sweeper.Schedule, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(paymentIntentService, webhookService, cfg.Payment.MaxWebhookBytes, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationRepository, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			// Signature-authenticated
			payments.POST("/webhook", paymentHandler.Webhook)

			authed := payments.Group("")
			authed.Use(middleware.AuthMiddleware(jwtService, logger))
			authed.POST("/intent", paymentHandler.CreateIntent)
			authed.GET("/status", paymentHandler.GetChargeStatus)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			notifications.GET("", notificationHandler.List)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		cronService.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
