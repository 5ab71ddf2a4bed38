package services

import (
	"fmt"
	"math"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

func seedApprovedResponse(t *testing.T, db *gorm.DB, reference string, cartID uint, amount float64) *models.PaymentResponse {
	t.Helper()

	resp := models.PaymentResponse{
		TransactionReference: reference,
		PaymentStatus:        models.PaymentStatusApproved,
		ResolvedVia:          models.ResolvedViaSession,
		CartID:               &cartID,
		Amount:               amount,
	}
	if err := db.Create(&resp).Error; err != nil {
		t.Fatalf("failed to seed payment response: %v", err)
	}
	return &resp
}

func TestMaterializeCreatesOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db)

	cart := seedCart(t, db, 115.98,
		seedLine{product: models.Product{SKU: "M365-BP", CatalogItemID: "CFQ7TTC0LH18:0001", Title: "Microsoft 365 Business Premium", Publisher: "Microsoft", Category: "productivity", UnitPrice: 57.99, ListPrice: 60.00, BillingCycle: "monthly", TermDuration: "P1Y"}, quantity: 1},
		seedLine{product: models.Product{SKU: "AZ-CREDIT", CatalogItemID: "MS-AZR-0145P", Title: "Azure Prepaid Credit", Publisher: "Microsoft", Category: "cloud", UnitPrice: 57.99, ListPrice: 57.99, IsPrepaid: true}, quantity: 1},
	)
	resp := seedApprovedResponse(t, db, "RM1-OK", cart.ID, 115.98)

	order, err := svc.Materialize(resp)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	wantNumber := fmt.Sprintf("RM-%s-000001", time.Now().Format("200601"))
	if order.OrderNumber != wantNumber {
		t.Errorf("order number = %q, want %q", order.OrderNumber, wantNumber)
	}
	if order.Status != models.OrderStatusProcessing {
		t.Errorf("status = %q, want processing", order.Status)
	}
	if order.PaymentStatus != models.OrderPaymentPaid {
		t.Errorf("payment status = %q, want paid", order.PaymentStatus)
	}
	if order.TotalAmount != 115.98 {
		t.Errorf("total = %v, want 115.98", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}

	// Snapshot columns carry the catalog values at purchase time
	var first models.OrderItem
	if err := db.Where("order_id = ? AND sku = ?", order.ID, "M365-BP").First(&first).Error; err != nil {
		t.Fatalf("snapshot item missing: %v", err)
	}
	if first.Title != "Microsoft 365 Business Premium" || first.CatalogItemID != "CFQ7TTC0LH18:0001" {
		t.Errorf("snapshot fields wrong: %+v", first)
	}
	if math.Abs(first.Discount-2.01) > 1e-9 {
		t.Errorf("discount = %v, want 2.01", first.Discount)
	}

	// Cart flips to converted and drops out of live queries
	var gotCart models.Cart
	db.First(&gotCart, cart.ID)
	if gotCart.Status != models.CartStatusConverted {
		t.Errorf("cart status = %q, want converted", gotCart.Status)
	}
	if gotCart.ExpiresAt.After(time.Now()) {
		t.Error("converted cart expiry not forced into the past")
	}

	// Response back-links the order
	var gotResp models.PaymentResponse
	db.First(&gotResp, resp.ID)
	if gotResp.OrderID == nil || *gotResp.OrderID != order.ID {
		t.Errorf("response order link = %v, want %d", gotResp.OrderID, order.ID)
	}
}

func TestMaterializeIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db)

	cart := seedCart(t, db, 50, seedLine{product: models.Product{SKU: "A", UnitPrice: 50, ListPrice: 50}, quantity: 1})
	resp := seedApprovedResponse(t, db, "RM1-DUP", cart.ID, 50)

	first, err := svc.Materialize(resp)
	if err != nil {
		t.Fatalf("first materialize failed: %v", err)
	}
	second, err := svc.Materialize(resp)
	if err != nil {
		t.Fatalf("second materialize failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("retry created a second order: %d vs %d", first.ID, second.ID)
	}
	var orders int64
	db.Model(&models.Order{}).Count(&orders)
	if orders != 1 {
		t.Errorf("orders count = %d, want 1", orders)
	}
	var items int64
	db.Model(&models.OrderItem{}).Count(&items)
	if items != 1 {
		t.Errorf("order items count = %d, want 1", items)
	}
}

func TestMaterializeSnapshotSurvivesCatalogMutation(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db)

	product := models.Product{SKU: "SNAP", Title: "Original Title", UnitPrice: 10, ListPrice: 12}
	cart := seedCart(t, db, 10, seedLine{product: product, quantity: 1})
	resp := seedApprovedResponse(t, db, "RM1-SNAP", cart.ID, 10)

	order, err := svc.Materialize(resp)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	db.Model(&models.Product{}).Where("sku = ?", "SNAP").Updates(map[string]interface{}{
		"title":      "Renamed Product",
		"unit_price": 999.0,
		"list_price": 999.0,
	})

	var item models.OrderItem
	if err := db.Where("order_id = ?", order.ID).First(&item).Error; err != nil {
		t.Fatalf("order item missing: %v", err)
	}
	if item.Title != "Original Title" || item.UnitPrice != 10 || item.ListPrice != 12 {
		t.Errorf("snapshot changed with the catalog: %+v", item)
	}
}

func TestMaterializeRejections(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db)
	cart := seedCart(t, db, 10, seedLine{product: models.Product{SKU: "X", UnitPrice: 10}, quantity: 1})

	t.Run("not approved", func(t *testing.T) {
		resp := seedApprovedResponse(t, db, "RM1-PEND", cart.ID, 10)
		db.Model(resp).Update("payment_status", models.PaymentStatusPending)
		resp.PaymentStatus = models.PaymentStatusPending
		if _, err := svc.Materialize(resp); err == nil {
			t.Error("expected error for non-approved response")
		}
	})

	t.Run("no resolved cart", func(t *testing.T) {
		resp := &models.PaymentResponse{
			TransactionReference: "RM1-NOCART",
			PaymentStatus:        models.PaymentStatusApproved,
		}
		db.Create(resp)
		if _, err := svc.Materialize(resp); err == nil {
			t.Error("expected error for unresolved response")
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		empty := seedCart(t, db, 10)
		resp := seedApprovedResponse(t, db, "RM1-EMPTY", empty.ID, 10)
		if _, err := svc.Materialize(resp); err == nil {
			t.Error("expected error for empty cart")
		}
	})
}

func TestOrderNumbersIncrementWithinPeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db)
	period := time.Now().Format("200601")

	for i := 1; i <= 3; i++ {
		cart := seedCart(t, db, 10, seedLine{product: models.Product{SKU: fmt.Sprintf("SKU-%d", i), UnitPrice: 10}, quantity: 1})
		resp := seedApprovedResponse(t, db, fmt.Sprintf("RM%d-SEQ", cart.ID), cart.ID, 10)

		order, err := svc.Materialize(resp)
		if err != nil {
			t.Fatalf("materialize %d failed: %v", i, err)
		}
		want := fmt.Sprintf("RM-%s-%06d", period, i)
		if order.OrderNumber != want {
			t.Errorf("order %d number = %q, want %q", i, order.OrderNumber, want)
		}
	}
}
