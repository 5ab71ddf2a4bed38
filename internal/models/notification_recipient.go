package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationRecipient is an operator who receives pipeline failure alerts.
// Each recipient is attempted on every channel it has an address for.
type NotificationRecipient struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name     string `gorm:"type:varchar(255)" json:"name"`
	Email    string `gorm:"type:varchar(255)" json:"email"`
	Phone    string `gorm:"type:varchar(50)" json:"phone"` // WhatsApp chat id or raw number
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
