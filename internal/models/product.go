package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is a catalog entry for a provisionable cloud product.
// Catalog rows are mutable; order items copy what they need at purchase time.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SKU           string  `gorm:"type:varchar(100);uniqueIndex" json:"sku"`
	CatalogItemID string  `gorm:"type:varchar(100)" json:"catalog_item_id"` // provisioning API catalog id
	Title         string  `gorm:"type:varchar(255)" json:"title"`
	Publisher     string  `gorm:"type:varchar(255)" json:"publisher"`
	Category      string  `gorm:"type:varchar(100)" json:"category"`
	ListPrice     float64 `gorm:"type:decimal(15,2)" json:"list_price"`
	UnitPrice     float64 `gorm:"type:decimal(15,2)" json:"unit_price"`
	BillingCycle  string  `gorm:"type:varchar(50);default:'monthly'" json:"billing_cycle"`
	TermDuration  string  `gorm:"type:varchar(20)" json:"term_duration"` // ISO 8601, e.g. "P1Y"
	IsPrepaid     bool    `gorm:"default:false" json:"is_prepaid"`       // prepaid credit product (Azure-style)
	IsActive      bool    `gorm:"default:true" json:"is_active"`
}
