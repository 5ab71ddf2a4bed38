package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a buyer account. Authentication is handled upstream;
// the pipeline only needs the identity for correlation and receipts.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string `gorm:"type:varchar(255)" json:"name"`
	Phone string `gorm:"type:varchar(50)" json:"phone"`
	Email string `gorm:"type:varchar(255);uniqueIndex" json:"email"`

	Carts  []Cart  `gorm:"foreignKey:UserID" json:"carts,omitempty"`
	Orders []Order `gorm:"foreignKey:UserID" json:"orders,omitempty"`
}
