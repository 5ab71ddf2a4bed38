package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// budgetFactor is the documented discount factor applied when deriving a
// prepaid-credit spending budget from the purchased quantity.
const budgetFactor = "0.86"

// ProvisioningError is the typed failure a provisioning attempt returns to
// its caller. Detail is populated when the underlying cause was a partner
// API rejection.
type ProvisioningError struct {
	Step    string
	OrderID uint
	Detail  *PartnerAPIError
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning order %d failed at %s: %v", e.OrderID, e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Notifier alerts operators about pipeline failures. Implementations must be
// best-effort; the orchestrator never inspects their outcome.
type Notifier interface {
	NotifyFailure(order *models.Order, message string, details map[string]string)
}

// ProvisioningService drives the licensing API through the
// create-cart -> checkout -> persist-subscriptions sequence.
type ProvisioningService struct {
	db       *gorm.DB
	partner  *PartnerService
	notifier Notifier
}

func NewProvisioningService(db *gorm.DB, partner *PartnerService, notifier Notifier) *ProvisioningService {
	return &ProvisioningService{db: db, partner: partner, notifier: notifier}
}

// SpendingBudget computes the prepaid-credit budget for a purchased
// quantity: round(quantity * 0.86, 2).
func SpendingBudget(quantity int) float64 {
	factor, _ := decimal.NewFromString(budgetFactor)
	v, _ := decimal.NewFromInt(int64(quantity)).Mul(factor).Round(2).Float64()
	return v
}

// ProvisionOrder runs one provisioning attempt for a paid order. On any
// failure the order deliberately stays processing: a paid order is never
// marked permanently failed, it stays eligible for the next attempt. The
// typed error propagates so the caller knows the attempt did not succeed.
func (s *ProvisioningService) ProvisionOrder(ctx context.Context, orderID uint) error {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, orderID).Error; err != nil {
		return fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	if order.Status == models.OrderStatusCompleted {
		log.Printf("order %s already completed, nothing to provision", order.OrderNumber)
		return nil
	}
	if order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("order %s is cancelled", order.OrderNumber)
	}
	if order.PaymentStatus != models.OrderPaymentPaid {
		return fmt.Errorf("order %s is not paid (%s)", order.OrderNumber, order.PaymentStatus)
	}
	if len(order.Items) == 0 {
		return fmt.Errorf("order %s has no items", order.OrderNumber)
	}

	lineItems := make([]PartnerLineItem, len(order.Items))
	for i, item := range order.Items {
		lineItems[i] = PartnerLineItem{
			ID:            i,
			CatalogItemID: item.CatalogItemID,
			Quantity:      item.Quantity,
			BillingCycle:  item.BillingCycle,
			TermDuration:  item.TermDuration,
		}
	}

	cart, err := s.partner.CreateCart(ctx, lineItems)
	if err != nil {
		return s.fail(&order, "create_cart", err)
	}

	result, err := s.partner.CheckoutCart(ctx, cart.ID)
	if err != nil {
		return s.fail(&order, "checkout", err)
	}

	// Spending budget is best effort: a failure here is logged and never
	// rolls back the already-checked-out cart.
	for _, item := range order.Items {
		if !item.IsPrepaid {
			continue
		}
		budget := SpendingBudget(item.Quantity)
		if err := s.partner.SetSpendingBudget(ctx, budget); err != nil {
			log.Printf("order %s: spending budget %.2f not applied: %v", order.OrderNumber, budget, err)
		}
	}

	if err := s.persistSubscriptions(&order, result); err != nil {
		return s.fail(&order, "persist_subscriptions", err)
	}

	now := time.Now()
	if err := s.db.Model(&order).Updates(map[string]interface{}{
		"status":       models.OrderStatusCompleted,
		"completed_at": &now,
	}).Error; err != nil {
		return s.fail(&order, "complete", err)
	}

	log.Printf("order %s provisioned: %d subscription(s)", order.OrderNumber, len(result.LineItems()))
	return nil
}

// persistSubscriptions stores one row per returned line item, matched back
// to the originating order item by catalog id. Replacing any rows left by a
// previous half-finished attempt keeps the step retry-safe.
func (s *ProvisioningService) persistSubscriptions(order *models.Order, result *PartnerCheckoutResult) error {
	returned := result.LineItems()
	if len(returned) == 0 {
		return fmt.Errorf("checkout returned no line items")
	}

	byCatalogID := make(map[string]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		byCatalogID[item.CatalogItemID] = item
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		for _, line := range returned {
			item, ok := byCatalogID[line.CatalogItemID]
			if !ok {
				return fmt.Errorf("checkout returned unknown catalog item %s", line.CatalogItemID)
			}
			sub := models.Subscription{
				OrderID:       order.ID,
				OrderItemID:   item.ID,
				ExternalID:    line.SubscriptionID,
				SKU:           item.SKU,
				CatalogItemID: line.CatalogItemID,
				Quantity:      line.Quantity,
				UnitPrice:     item.UnitPrice,
				BillingCycle:  item.BillingCycle,
				TermDuration:  line.TermDuration,
				Status:        models.SubscriptionActive,
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// fail captures the structured detail, fires the fan-out, and re-raises. The
// order's status is intentionally left untouched.
func (s *ProvisioningService) fail(order *models.Order, step string, err error) error {
	perr := &ProvisioningError{Step: step, OrderID: order.ID, Err: err}

	var apiErr *PartnerAPIError
	if errors.As(err, &apiErr) {
		perr.Detail = apiErr
	}

	log.Printf("order %s: provisioning failed at %s: %v", order.OrderNumber, step, err)

	if s.notifier != nil {
		details := map[string]string{
			"order_number": order.OrderNumber,
			"step":         step,
			"error":        err.Error(),
		}
		if apiErr != nil {
			details["http_status"] = strconv.Itoa(apiErr.HTTPStatus)
			details["code"] = apiErr.Code
			details["description"] = apiErr.Description
			details["correlation_id"] = apiErr.CorrelationID
		}
		s.notifier.NotifyFailure(order, fmt.Sprintf("Provisioning failed at step %s", step), details)
	}

	return perr
}
