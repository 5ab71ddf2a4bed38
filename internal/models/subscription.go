package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionActive   = 1
	SubscriptionInactive = 0
)

// Subscription records one provisioned line item returned by the licensing
// API checkout, matched back to the originating order item by catalog id.
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID        uint    `gorm:"index" json:"order_id"`
	OrderItemID    uint    `gorm:"index" json:"order_item_id"`
	ExternalID     string  `gorm:"type:varchar(100);index" json:"external_id"` // provisioning API subscription id
	SKU            string  `gorm:"type:varchar(100)" json:"sku"`
	CatalogItemID  string  `gorm:"type:varchar(100)" json:"catalog_item_id"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `gorm:"type:decimal(15,2)" json:"unit_price"`
	BillingCycle   string  `gorm:"type:varchar(50)" json:"billing_cycle"`
	TermDuration   string  `gorm:"type:varchar(20)" json:"term_duration"`
	Status         int     `gorm:"default:1" json:"status"` // 1=active, 0=inactive

	Order Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}
