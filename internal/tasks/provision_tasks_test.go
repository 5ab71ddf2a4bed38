package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
)

func newTestDeps(t *testing.T, partnerOK bool) *Deps {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/customers/cust-1/carts", func(w http.ResponseWriter, r *http.Request) {
		if !partnerOK {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"BadInput","description":"rejected"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "remote-cart-1"})
	})
	mux.HandleFunc("/customers/cust-1/carts/remote-cart-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"orders": []map[string]interface{}{
				{"id": "o1", "lineItems": []map[string]interface{}{
					{"catalogItemId": "cat-1", "subscriptionId": "sub-1", "quantity": 1, "termDuration": "P1Y"},
				}},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	partner := services.NewPartnerService(config.PartnerConfig{
		BaseURL:    server.URL,
		TokenURL:   server.URL + "/token",
		CustomerID: "cust-1",
	}, nil)

	return &Deps{
		DB:          db,
		Provisioner: services.NewProvisioningService(db, partner, nil),
	}
}

func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	order := models.Order{
		OrderNumber:       "RM-202609-000001",
		PaymentResponseID: 1,
		Status:            models.OrderStatusProcessing,
		PaymentStatus:     models.OrderPaymentPaid,
		TotalAmount:       10,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	item := models.OrderItem{OrderID: order.ID, SKU: "SKU-1", CatalogItemID: "cat-1", Quantity: 1}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to seed order item: %v", err)
	}
	return &order
}

func TestProvisionTaskSuccess(t *testing.T) {
	deps := newTestDeps(t, true)
	order := seedOrder(t, deps.DB)

	task, err := ProvisionOrderTask.CreateTask(order.ID)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.TaskName != "provision_order" || task.MaxAttempt != 3 {
		t.Errorf("task = %+v", task)
	}

	result, err := ProvisionOrderTask.HandleExecution(context.Background(), deps, *task)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if result["status"] != "success" {
		t.Errorf("result = %v", result)
	}

	var got models.Order
	deps.DB.First(&got, order.ID)
	if got.Status != models.OrderStatusCompleted {
		t.Errorf("order status = %q, want completed", got.Status)
	}
}

func TestProvisionTaskFailureReschedules(t *testing.T) {
	deps := newTestDeps(t, false)
	order := seedOrder(t, deps.DB)

	task, err := ProvisionOrderTask.CreateTask(order.ID)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := deps.DB.Create(task).Error; err != nil {
		t.Fatalf("failed to persist task: %v", err)
	}

	result, err := ProvisionOrderTask.HandleExecution(context.Background(), deps, *task)
	if err == nil {
		t.Fatal("expected execution to fail")
	}
	if result["step"] != "create_cart" {
		t.Errorf("step = %v, want create_cart", result["step"])
	}

	// Attempt 1 of 3 failed, so a later attempt must be waiting
	var retry models.ScheduledTask
	if err := deps.DB.Where("task_name = ? AND id <> ?", "provision_order", task.ID).First(&retry).Error; err != nil {
		t.Fatalf("retry task not enqueued: %v", err)
	}
	if got := retry.Arguments["attempt_count"]; got != float64(2) && got != 2 {
		t.Errorf("retry attempt_count = %v, want 2", got)
	}
	if !retry.Due.After(time.Now().Add(provisionRetryDelay - time.Minute)) {
		t.Errorf("retry due too soon: %v", retry.Due)
	}

	var got models.Order
	deps.DB.First(&got, order.ID)
	if got.Status != models.OrderStatusProcessing {
		t.Errorf("order status = %q, want processing", got.Status)
	}
}

func TestProvisionTaskLastAttemptDoesNotReschedule(t *testing.T) {
	deps := newTestDeps(t, false)
	order := seedOrder(t, deps.DB)

	task, err := BuildScheduledTask("provision_order",
		ProvisionOrderArgs{OrderID: order.ID, AttemptCount: 3},
		time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
	if err != nil {
		t.Fatalf("BuildScheduledTask failed: %v", err)
	}
	if err := deps.DB.Create(task).Error; err != nil {
		t.Fatalf("failed to persist task: %v", err)
	}

	if _, err := ProvisionOrderTask.HandleExecution(context.Background(), deps, *task); err == nil {
		t.Fatal("expected execution to fail")
	}

	var count int64
	deps.DB.Model(&models.ScheduledTask{}).Where("task_name = ?", "provision_order").Count(&count)
	if count != 1 {
		t.Errorf("tasks = %d, want 1 (no further retries)", count)
	}
}

func TestCleanupSessionsTask(t *testing.T) {
	deps := newTestDeps(t, true)
	now := time.Now()

	deps.DB.Create(&models.PaymentSession{TransactionReference: "RM1-LIVE", CartID: 1, ExpiresAt: now.Add(5 * time.Minute)})
	deps.DB.Create(&models.PaymentSession{TransactionReference: "RM2-DEAD", CartID: 2, ExpiresAt: now.Add(-time.Hour)})

	deps.DB.Create(&models.Cart{Status: models.CartStatusActive, ExpiresAt: now.Add(-48 * time.Hour)})
	deps.DB.Create(&models.Cart{Status: models.CartStatusActive, ExpiresAt: now.Add(time.Hour)})
	deps.DB.Create(&models.Cart{Status: models.CartStatusConverted, ExpiresAt: now.Add(-48 * time.Hour)})

	task, err := CleanupSessionsTask.CreateTask()
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.TaskType != models.ScheduledTaskTypeRecurring {
		t.Errorf("task type = %q, want recurring", task.TaskType)
	}

	result, err := CleanupSessionsTask.HandleExecution(context.Background(), deps, *task)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if result["sessions_removed"] != int64(1) {
		t.Errorf("sessions_removed = %v, want 1", result["sessions_removed"])
	}
	if result["carts_abandoned"] != int64(1) {
		t.Errorf("carts_abandoned = %v, want 1", result["carts_abandoned"])
	}

	var liveSessions int64
	deps.DB.Model(&models.PaymentSession{}).Count(&liveSessions)
	if liveSessions != 1 {
		t.Errorf("remaining sessions = %d, want 1", liveSessions)
	}
	var converted models.Cart
	deps.DB.Where("status = ?", models.CartStatusConverted).First(&converted)
	if converted.ID == 0 {
		t.Error("converted cart must never be touched by the sweep")
	}
}
