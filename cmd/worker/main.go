package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
	"github.com/doarsal/readymarket-backend-sub002/internal/tasks"
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

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()

	// Wire the provisioning pipeline the worker drives
	emailService := services.NewEmailService(cfg.SMTP)
	wahaService := services.NewWahaService(cfg.Waha)
	notificationService := services.NewNotificationService(db, emailService, wahaService)
	partnerService := services.NewPartnerService(cfg.Partner, cache)
	provisioningService := services.NewProvisioningService(db, partnerService, notificationService)

	deps := &tasks.Deps{
		DB:          db,
		Provisioner: provisioningService,
	}

	tasks.DefineTasks()

	log.Println("Worker started. Waiting for next tick...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run once immediately so freshly enqueued work does not sit a full tick
	processScheduledTasks(ctx, deps)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, deps)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, deps *tasks.Deps) {
	log.Println("Checking for pending tasks...")

	var pendingTasks []models.ScheduledTask
	now := time.Now()
	if err := deps.DB.Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).Find(&pendingTasks).Error; err != nil {
		log.Printf("Error fetching pending tasks: %v", err)
		return
	}

	if len(pendingTasks) == 0 {
		log.Println("No pending tasks found.")
		return
	}

	log.Printf("Found %d pending tasks.", len(pendingTasks))

	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return
		}

		executeTask(ctx, deps, task)
	}
}

// executeTask runs a single task and records the outcome. Retries are not
// handled here: handlers that want another attempt enqueue a fresh onetime
// task themselves, so a failing row is simply marked failure.
func executeTask(ctx context.Context, deps *tasks.Deps, task models.ScheduledTask) {
	log.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	handler, found := tasks.GetHandler(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)

		now := time.Now()
		deps.DB.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})

		history := models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		}
		deps.DB.Create(&history)
		return
	}

	startTime := time.Now()
	result, err := handler(ctx, deps, task)
	duration := time.Since(startTime)
	runtimeMs := int(duration.Milliseconds())

	status := "success"
	resultData := result
	if err != nil {
		status = "failure"
		if resultData == nil {
			resultData = map[string]interface{}{}
		}
		resultData["error"] = err.Error()
		log.Printf("Task %s failed: %v", task.TaskName, err)
	} else {
		log.Printf("Task %s completed successfully.", task.TaskName)
	}

	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   attemptNumber(task),
		Arguments:       task.Arguments,
		Result:          resultData,
	}
	deps.DB.Create(&history)

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	if status != "success" {
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeOneTime:
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		case models.ScheduledTaskTypeRecurring:
			nextDue := task.NextDue()
			// keep the task from firing again in the same tick
			if nextDue.After(task.Due) {
				taskUpdates["status"] = models.ScheduledTaskStatusActive
				taskUpdates["due"] = nextDue
			} else {
				taskUpdates["status"] = models.ScheduledTaskStatusDone
			}
		}
	}

	deps.DB.Model(&task).Updates(taskUpdates)
}

func attemptNumber(task models.ScheduledTask) int {
	if task.Arguments == nil {
		return 1
	}
	if raw, ok := task.Arguments["attempt_count"]; ok {
		switch v := raw.(type) {
		case float64:
			return int(v) + 1
		case int:
			return v + 1
		}
	}
	return 1
}
