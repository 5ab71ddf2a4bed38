package services

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// 32 hex chars, AES-128
const testKeyHex = "5A7134743777217A25432A462D4A614E"

// newTestDB opens an in-memory database migrated with the full schema. A
// single connection keeps every goroutine on the same in-memory instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// seedCart creates an active cart with one line per given product.
type seedLine struct {
	product  models.Product
	quantity int
}

func seedCart(t *testing.T, db *gorm.DB, total float64, lines ...seedLine) *models.Cart {
	t.Helper()

	cart := models.Cart{
		Status:    models.CartStatusActive,
		Currency:  "MXN",
		Total:     total,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&cart).Error; err != nil {
		t.Fatalf("failed to seed cart: %v", err)
	}

	for i := range lines {
		if err := db.Create(&lines[i].product).Error; err != nil {
			t.Fatalf("failed to seed product: %v", err)
		}
		item := models.CartItem{
			CartID:    cart.ID,
			ProductID: lines[i].product.ID,
			Quantity:  lines[i].quantity,
			UnitPrice: lines[i].product.UnitPrice,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("failed to seed cart item: %v", err)
		}
	}

	if err := db.Preload("Items.Product").First(&cart, cart.ID).Error; err != nil {
		t.Fatalf("failed to reload cart: %v", err)
	}
	return &cart
}

func seedSession(t *testing.T, db *gorm.DB, reference string, cartID uint) *models.PaymentSession {
	t.Helper()

	session := models.PaymentSession{
		TransactionReference: reference,
		CartID:               cartID,
		ExpiresAt:            time.Now().Add(models.PaymentSessionTTL),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return &session
}
