package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentSessionTTL is how long a session remains correlatable after the
// buyer is redirected to the gateway.
const PaymentSessionTTL = 10 * time.Minute

// PaymentSession binds a gateway transaction reference to the cart and user
// that initiated it, before any callback arrives. Created immediately before
// the redirect, never mutated, read once by the reconciler, then left to
// expire (lazy deletion).
type PaymentSession struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TransactionReference string    `gorm:"type:varchar(100);uniqueIndex" json:"transaction_reference"`
	FormPayload          string    `gorm:"type:text" json:"form_payload"` // exact document posted to the gateway, kept for audit/replay
	GatewayURL           string    `gorm:"type:varchar(500)" json:"gateway_url"`
	UserID               *uint     `gorm:"index" json:"user_id"`
	CartID               uint      `gorm:"index" json:"cart_id"`
	ExpiresAt            time.Time `gorm:"index" json:"expires_at"`

	Cart Cart  `gorm:"foreignKey:CartID" json:"cart,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Live reports whether the session is still within its correlation window.
func (s PaymentSession) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
