package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentStatus classifies a gateway callback
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusError    PaymentStatus = "error"
)

// ResolvedVia records which correlation path produced the cart/user link.
type ResolvedVia string

const (
	ResolvedViaSession       ResolvedVia = "session"
	ResolvedViaSessionPrefix ResolvedVia = "session_prefix"
	ResolvedViaCartFallback  ResolvedVia = "cart_fallback"
	ResolvedViaNone          ResolvedVia = ""
)

// PaymentResponse is the durable record of a gateway callback. At most one
// row exists per transaction reference (unique index); rows are immutable
// once created except for the later order back-link.
type PaymentResponse struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TransactionReference string        `gorm:"type:varchar(100);uniqueIndex" json:"transaction_reference"`
	PaymentSessionID     *uint         `gorm:"index" json:"payment_session_id"`
	CartID               *uint         `gorm:"index" json:"cart_id"`
	UserID               *uint         `gorm:"index" json:"user_id"`
	OrderID              *uint         `gorm:"index" json:"order_id"`
	PaymentStatus        PaymentStatus `gorm:"type:varchar(20);index" json:"payment_status"`
	ResolvedVia          ResolvedVia   `gorm:"type:varchar(30)" json:"resolved_via"`

	Amount        float64 `gorm:"type:decimal(15,2)" json:"amount"`
	AuthCode      string  `gorm:"type:varchar(50)" json:"auth_code"`
	ResponseText  string  `gorm:"type:varchar(100)" json:"response_text"`
	ErrorCode     string  `gorm:"type:varchar(50)" json:"error_code"`
	ErrorDesc     string  `gorm:"type:varchar(500)" json:"error_desc"`
	Folio         string  `gorm:"type:varchar(100)" json:"folio"`
	CardMask      string  `gorm:"type:varchar(50)" json:"card_mask"`
	ThreeDSCode   string  `gorm:"type:varchar(50)" json:"three_ds_code"`
	ThreeDSCavv   string  `gorm:"type:varchar(100)" json:"three_ds_cavv"`
	ThreeDSEci    string  `gorm:"type:varchar(10)" json:"three_ds_eci"`
	Voucher       string  `gorm:"type:text" json:"voucher"`
	GatewayDate   string  `gorm:"type:varchar(20)" json:"gateway_date"`
	GatewayTime   string  `gorm:"type:varchar(20)" json:"gateway_time"`
	RawXML        string  `gorm:"type:text" json:"raw_xml"`
	ParsedFields  json.RawMessage `gorm:"type:jsonb" json:"parsed_fields"`
	ClientIP      string  `gorm:"type:varchar(50)" json:"client_ip"`
	UserAgent     string  `gorm:"type:varchar(500)" json:"user_agent"`
}
