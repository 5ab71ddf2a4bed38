package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
	"github.com/doarsal/readymarket-backend-sub002/internal/tasks"
)

func main() {
	orderID := flag.Uint("order", 0, "Order ID to enqueue a provisioning attempt for")
	installCleanup := flag.Bool("install-cleanup", false, "Install the recurring session cleanup task")

	flag.Parse()

	if *orderID == 0 && !*installCleanup {
		fmt.Println("Usage: schedule_task [-order <id>] [-install-cleanup]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := services.InitDB(dsn)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	if *orderID != 0 {
		task, err := tasks.ProvisionOrderTask.CreateTask(*orderID)
		if err != nil {
			log.Fatalf("Failed to build provisioning task: %v", err)
		}
		if err := db.Create(task).Error; err != nil {
			log.Fatalf("Failed to create provisioning task: %v", err)
		}
		fmt.Printf("Enqueued provisioning task ID %d for order %d\n", task.ID, *orderID)
	}

	if *installCleanup {
		// Avoid stacking duplicate recurring sweeps
		var existing int64
		db.Model(&models.ScheduledTask{}).
			Where("task_name = ? AND status = ?", tasks.CleanupSessionsTask.TaskID(), models.ScheduledTaskStatusActive).
			Count(&existing)
		if existing > 0 {
			fmt.Println("Cleanup task already installed, skipping")
			return
		}

		task, err := tasks.CleanupSessionsTask.CreateTask()
		if err != nil {
			log.Fatalf("Failed to build cleanup task: %v", err)
		}
		if err := db.Create(task).Error; err != nil {
			log.Fatalf("Failed to create cleanup task: %v", err)
		}
		fmt.Printf("Installed recurring cleanup task ID %d (%s)\n", task.ID, tasks.CleanupRecurrence)
	}
}
