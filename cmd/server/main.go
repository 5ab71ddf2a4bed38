package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
	"github.com/doarsal/readymarket-backend-sub002/internal/handlers"
	appMiddleware "github.com/doarsal/readymarket-backend-sub002/internal/middleware"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	// Initialize Database
	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis backs the partner token cache; the server only needs it for the
	// synchronous operator retry endpoint
	cache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()

	// Wire services
	paymentService := services.NewPaymentService(db, cfg.Gateway, !cfg.IsProduction())
	orderService := services.NewOrderService(db)
	emailService := services.NewEmailService(cfg.SMTP)
	wahaService := services.NewWahaService(cfg.Waha)
	notificationService := services.NewNotificationService(db, emailService, wahaService)
	partnerService := services.NewPartnerService(cfg.Partner, cache)
	provisioningService := services.NewProvisioningService(db, partnerService, notificationService)

	// Create Echo instance
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(db, paymentService, orderService)
	orderHandler := handlers.NewOrderHandler(db, provisioningService)

	// Payment pipeline routes
	e.POST("/api/checkout", paymentHandler.Checkout)
	e.POST("/pay/callback", paymentHandler.GatewayCallback)
	e.GET("/pay/result/:reference", paymentHandler.Result)
	e.POST("/internal/payments/webhook", paymentHandler.InternalWebhook)

	// Operator routes
	e.GET("/api/orders/:id", orderHandler.GetOrder)
	e.POST("/api/orders/:id/provision", orderHandler.RetryProvisioning)

	log.Printf("Server starting on port %s", cfg.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
