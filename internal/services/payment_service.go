package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
	"github.com/doarsal/readymarket-backend-sub002/internal/gateway"
	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// cartFallbackWindow bounds the last-resort cart lookup when no payment
// session can be correlated to a callback.
const cartFallbackWindow = 3 * time.Hour

// PaymentService drives the gateway leg of the pipeline: composing the
// outbound transaction and reconciling the asynchronous callback.
type PaymentService struct {
	db      *gorm.DB
	cfg     config.GatewayConfig
	builder *gateway.Builder
	decoder *gateway.Decoder
}

func NewPaymentService(db *gorm.DB, cfg config.GatewayConfig, allowSynthetic bool) *PaymentService {
	return &PaymentService{
		db:      db,
		cfg:     cfg,
		builder: gateway.NewBuilder(cfg),
		decoder: gateway.NewDecoder(cfg.KeyHex, allowSynthetic),
	}
}

// Decoder exposes the callback decoder for the HTTP boundary.
func (s *PaymentService) Decoder() *gateway.Decoder {
	return s.decoder
}

// CheckoutResult is what the HTTP layer hands back to the browser.
type CheckoutResult struct {
	TransactionReference string
	GatewayURL           string
	Form                 string
}

// CreateCheckout composes the gateway transaction for a cart, persists the
// correlation session, and returns the auto-submit form. The session is
// written before returning so a later callback always has something to find,
// even if the browser never reaches the gateway.
func (s *PaymentService) CreateCheckout(cart *models.Cart, card gateway.Card, billing gateway.Billing, browserIP string) (*CheckoutResult, error) {
	if cart.Status != models.CartStatusActive {
		return nil, fmt.Errorf("cart %d is not active", cart.ID)
	}
	if cart.Total <= 0 {
		return nil, fmt.Errorf("cart %d has no payable total", cart.ID)
	}

	reference := newTransactionReference(cart.ID)

	xmlDoc := s.builder.BuildTransactionXML(gateway.RequestParams{
		Reference: reference,
		Amount:    cart.Total,
		Currency:  cart.Currency,
		Card:      card,
		Billing:   billing,
		BrowserIP: browserIP,
	})

	encrypted, err := gateway.Encrypt(xmlDoc, s.cfg.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt transaction: %w", err)
	}

	frame := gateway.WrapPayload(s.cfg.PayloadID, encrypted)
	form := gateway.BuildPaymentForm(s.cfg.URL, frame)

	session := models.PaymentSession{
		TransactionReference: reference,
		FormPayload:          frame,
		GatewayURL:           s.cfg.URL,
		UserID:               cart.UserID,
		CartID:               cart.ID,
		ExpiresAt:            time.Now().Add(models.PaymentSessionTTL),
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to persist payment session: %w", err)
	}

	return &CheckoutResult{
		TransactionReference: reference,
		GatewayURL:           s.cfg.URL,
		Form:                 form,
	}, nil
}

// newTransactionReference builds a caller-generated correlation string. The
// random suffix keeps retried checkouts for the same cart distinct.
func newTransactionReference(cartID uint) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("RM%d-%s", cartID, suffix)
}

// Reconcile maps a decoded callback to a PaymentResponse exactly once. A
// repeated delivery of the same transaction reference returns the already
// persisted row untouched.
func (s *PaymentService) Reconcile(fields *gateway.CallbackFields, rawXML, clientIP, userAgent string) (*models.PaymentResponse, error) {
	reference := strings.TrimSpace(fields.Reference)
	if reference == "" {
		return nil, fmt.Errorf("callback carries no transaction reference")
	}

	var result *models.PaymentResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PaymentResponse
		err := tx.Where("transaction_reference = ?", reference).First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		resp, err := s.buildResponse(tx, fields, reference, rawXML, clientIP, userAgent)
		if err != nil {
			return err
		}
		if err := tx.Create(resp).Error; err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		// A concurrent delivery may have won the insert race; the unique
		// index makes that loss visible here. Surface the winner.
		var winner models.PaymentResponse
		if ferr := s.db.Where("transaction_reference = ?", reference).First(&winner).Error; ferr == nil {
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to reconcile callback %s: %w", reference, err)
	}
	return result, nil
}

func (s *PaymentService) buildResponse(tx *gorm.DB, fields *gateway.CallbackFields, reference, rawXML, clientIP, userAgent string) (*models.PaymentResponse, error) {
	now := time.Now()

	resp := &models.PaymentResponse{
		TransactionReference: reference,
		PaymentStatus:        models.PaymentStatus(fields.Classify()),
		AuthCode:             fields.Auth,
		ResponseText:         fields.Response,
		ErrorCode:            fields.ErrorCode,
		ErrorDesc:            fields.ErrorDesc,
		Folio:                fields.Folio,
		CardMask:             fields.CardMask,
		ThreeDSCode:          fields.ThreeDSCode,
		ThreeDSCavv:          fields.ThreeDSCavv,
		ThreeDSEci:           fields.ThreeDSEci,
		Voucher:              fields.Voucher,
		GatewayDate:          fields.Date,
		GatewayTime:          fields.Time,
		RawXML:               rawXML,
		ClientIP:             clientIP,
		UserAgent:            userAgent,
	}
	if parsed, err := json.Marshal(fields.Raw); err == nil {
		resp.ParsedFields = parsed
	}

	// Session resolution: exact reference first, then prefix (the reference
	// may carry an extra random suffix), then a bounded cart lookback as the
	// explicitly lossy last resort.
	var session models.PaymentSession
	err := tx.Where("transaction_reference = ? AND expires_at > ?", reference, now).
		Order("created_at desc").First(&session).Error
	switch {
	case err == nil:
		resp.ResolvedVia = models.ResolvedViaSession
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = tx.Where("? LIKE transaction_reference || '%' AND expires_at > ?", reference, now).
			Order("created_at desc").First(&session).Error
		if err == nil {
			resp.ResolvedVia = models.ResolvedViaSessionPrefix
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	default:
		return nil, err
	}

	if resp.ResolvedVia == models.ResolvedViaSession || resp.ResolvedVia == models.ResolvedViaSessionPrefix {
		resp.PaymentSessionID = &session.ID
		resp.CartID = &session.CartID
		resp.UserID = session.UserID
	} else {
		var cart models.Cart
		err := tx.Where("status = ? AND updated_at >= ?", models.CartStatusActive, now.Add(-cartFallbackWindow)).
			Order("updated_at desc").First(&cart).Error
		if err == nil {
			resp.ResolvedVia = models.ResolvedViaCartFallback
			resp.CartID = &cart.ID
			resp.UserID = cart.UserID
			log.Printf("callback %s: no payment session found, fell back to cart %d by recency", reference, cart.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		} else {
			log.Printf("callback %s: no payment session and no fallback cart, response left unresolved", reference)
		}
	}

	resp.Amount = s.resolveAmount(tx, resp.CartID, fields.Amount)
	return resp, nil
}

// resolveAmount prefers the cart's recorded total over the gateway's echoed
// amount, which is unreliable or absent for some response codes.
func (s *PaymentService) resolveAmount(tx *gorm.DB, cartID *uint, gatewayAmount string) float64 {
	if cartID != nil {
		var cart models.Cart
		if err := tx.First(&cart, *cartID).Error; err == nil && cart.Total > 0 {
			return cart.Total
		}
	}
	if amount, err := strconv.ParseFloat(strings.TrimSpace(gatewayAmount), 64); err == nil {
		return amount
	}
	return 0
}

// ResultStatus reduces a payment response to the coarse status shown to the
// end customer. Detailed provider error text never leaves the operator side.
func ResultStatus(status models.PaymentStatus) string {
	switch status {
	case models.PaymentStatusApproved:
		return "success"
	case models.PaymentStatusError:
		return "failed"
	default:
		return "pending"
	}
}
