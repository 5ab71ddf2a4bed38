package models

import (
	"time"

	"gorm.io/gorm"
)

// CartStatus represents the lifecycle state of a cart
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Cart is mutable while active. Once converted it becomes read-only
// evidence for the order snapshot and is never deleted.
type Cart struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID    *uint      `gorm:"index" json:"user_id"`
	Status    CartStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	Currency  string     `gorm:"type:varchar(10);default:'MXN'" json:"currency"`
	Total     float64    `gorm:"type:decimal(15,2)" json:"total"` // already-computed total, tax included
	ExpiresAt time.Time  `json:"expires_at"`

	User  *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

// CartItem is a line in an active cart, referencing the live catalog row.
type CartItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	CartID    uint    `gorm:"index" json:"cart_id"`
	ProductID uint    `gorm:"index" json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(15,2)" json:"unit_price"` // price actually charged

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
