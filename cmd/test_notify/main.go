package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
)

// Smoke test for the operator alert fan-out. Sends a fake provisioning
// failure alert through the configured recipients without touching orders.
func main() {
	msg := flag.String("msg", "Test alert from readymarket notifier", "Alert message")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	emailService := services.NewEmailService(cfg.SMTP)
	wahaService := services.NewWahaService(cfg.Waha)
	notifier := services.NewNotificationService(db, emailService, wahaService)

	log.Printf("Sending test alert: %s", *msg)
	notifier.NotifyFailure(nil, *msg, map[string]string{
		"step":  "smoke_test",
		"error": "this is only a test",
	})
	log.Println("Done. Check recipient inboxes and the logs above for per-channel failures.")
}
