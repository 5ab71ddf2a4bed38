package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// OrderService converts a cart plus an approved payment response into an
// immutable order with point-in-time item snapshots.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// Materialize creates the order for an approved payment response. The order
// insert, the item snapshots, the cart flip to converted, and the response
// back-link all commit in one transaction; any failure rolls back the lot,
// so a retry simply runs again. A retry that finds an existing order for
// this payment response returns it without creating anything.
func (s *OrderService) Materialize(resp *models.PaymentResponse) (*models.Order, error) {
	if resp.PaymentStatus != models.PaymentStatusApproved {
		return nil, fmt.Errorf("payment response %s is %s, not approved", resp.TransactionReference, resp.PaymentStatus)
	}
	if resp.CartID == nil {
		return nil, fmt.Errorf("payment response %s has no resolved cart", resp.TransactionReference)
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Order
		err := tx.Preload("Items").Where("payment_response_id = ?", resp.ID).First(&existing).Error
		if err == nil {
			order = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var cart models.Cart
		if err := tx.Preload("Items.Product").First(&cart, *resp.CartID).Error; err != nil {
			return fmt.Errorf("failed to load cart %d: %w", *resp.CartID, err)
		}
		if cart.Status != models.CartStatusActive {
			return fmt.Errorf("cart %d is %s and cannot be converted again", cart.ID, cart.Status)
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("cart %d has no items", cart.ID)
		}

		now := time.Now()
		number, err := nextOrderNumber(tx, now)
		if err != nil {
			return fmt.Errorf("failed to assign order number: %w", err)
		}

		userID := resp.UserID
		if userID == nil {
			userID = cart.UserID
		}
		total := resp.Amount
		if cart.Total > 0 {
			total = cart.Total
		}

		order = models.Order{
			OrderNumber:       number,
			PaymentResponseID: resp.ID,
			CartID:            cart.ID,
			UserID:            userID,
			Status:            models.OrderStatusProcessing,
			PaymentStatus:     models.OrderPaymentPaid,
			Currency:          cart.Currency,
			TotalAmount:       total,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, ci := range cart.Items {
			items = append(items, snapshotItem(order.ID, ci))
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items

		// The converted cart stays around as read-only evidence; forcing the
		// expiry into the past keeps it out of every live-cart query.
		if err := tx.Model(&cart).Updates(map[string]interface{}{
			"status":     models.CartStatusConverted,
			"expires_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&models.PaymentResponse{}).Where("id = ?", resp.ID).
			Update("order_id", order.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to materialize order for %s: %w", resp.TransactionReference, err)
	}

	resp.OrderID = &order.ID
	return &order, nil
}

// snapshotItem copies every catalog field by value. Mutating the product
// afterwards must not change order history.
func snapshotItem(orderID uint, ci models.CartItem) models.OrderItem {
	discount := ci.Product.ListPrice - ci.UnitPrice
	if discount < 0 {
		discount = 0
	}
	return models.OrderItem{
		OrderID:       orderID,
		ProductID:     ci.ProductID,
		Quantity:      ci.Quantity,
		SKU:           ci.Product.SKU,
		CatalogItemID: ci.Product.CatalogItemID,
		Title:         ci.Product.Title,
		Publisher:     ci.Product.Publisher,
		Category:      ci.Product.Category,
		UnitPrice:     ci.UnitPrice,
		ListPrice:     ci.Product.ListPrice,
		Discount:      discount,
		BillingCycle:  ci.Product.BillingCycle,
		TermDuration:  ci.Product.TermDuration,
		IsPrepaid:     ci.Product.IsPrepaid,
	}
}

// nextOrderNumber increments a period-scoped counter inside the caller's
// transaction. The upsert is atomic at the database level, so concurrent
// materializations never observe the same value.
func nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	period := now.Format("200601")
	var counter int64
	err := tx.Raw(
		`INSERT INTO order_sequences (period, counter) VALUES (?, 1)
		 ON CONFLICT (period) DO UPDATE SET counter = order_sequences.counter + 1
		 RETURNING counter`, period).Scan(&counter).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RM-%s-%06d", period, counter), nil
}
