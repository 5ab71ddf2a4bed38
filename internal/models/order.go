package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus tracks fulfillment, independent of payment settlement.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderPaymentStatus tracks payment settlement on the order.
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "pending"
	OrderPaymentPaid     OrderPaymentStatus = "paid"
	OrderPaymentFailed   OrderPaymentStatus = "failed"
	OrderPaymentRefunded OrderPaymentStatus = "refunded"
)

// Order is created exactly once per successful payment response, together
// with its items, inside one transaction. The cart is referenced for
// traceability but the order owns its items outright.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderNumber       string             `gorm:"type:varchar(50);uniqueIndex" json:"order_number"`
	PaymentResponseID uint               `gorm:"uniqueIndex" json:"payment_response_id"`
	CartID            uint               `gorm:"index" json:"cart_id"`
	UserID            *uint              `gorm:"index" json:"user_id"`
	Status            OrderStatus        `gorm:"type:varchar(20);default:'processing';index" json:"status"`
	PaymentStatus     OrderPaymentStatus `gorm:"type:varchar(20);default:'pending'" json:"payment_status"`
	Currency          string             `gorm:"type:varchar(10)" json:"currency"`
	TotalAmount       float64            `gorm:"type:decimal(15,2)" json:"total_amount"`
	CompletedAt       *time.Time         `json:"completed_at"`

	Items         []OrderItem    `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:OrderID" json:"subscriptions,omitempty"`
	User          *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// OrderItem freezes the catalog fields of a purchased product at purchase
// time. All snapshot columns are copied by value; later catalog mutation
// must never change order history.
type OrderItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID   uint `gorm:"index" json:"order_id"`
	ProductID uint `gorm:"index" json:"product_id"`
	Quantity  int  `json:"quantity"`

	// Snapshot columns
	SKU           string  `gorm:"type:varchar(100)" json:"sku"`
	CatalogItemID string  `gorm:"type:varchar(100)" json:"catalog_item_id"`
	Title         string  `gorm:"type:varchar(255)" json:"title"`
	Publisher     string  `gorm:"type:varchar(255)" json:"publisher"`
	Category      string  `gorm:"type:varchar(100)" json:"category"`
	UnitPrice     float64 `gorm:"type:decimal(15,2)" json:"unit_price"` // price actually charged
	ListPrice     float64 `gorm:"type:decimal(15,2)" json:"list_price"`
	Discount      float64 `gorm:"type:decimal(15,2)" json:"discount"`
	BillingCycle  string  `gorm:"type:varchar(50)" json:"billing_cycle"`
	TermDuration  string  `gorm:"type:varchar(20)" json:"term_duration"`
	IsPrepaid     bool    `gorm:"default:false" json:"is_prepaid"`
}

// OrderSequence backs collision-free order numbering, one counter row per
// period, incremented atomically inside the materialization transaction.
type OrderSequence struct {
	Period  string `gorm:"primarykey;type:varchar(10)" json:"period"`
	Counter int64  `json:"counter"`
}
