package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/gateway"
	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
	"github.com/doarsal/readymarket-backend-sub002/internal/tasks"
)

type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	orders   *services.OrderService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, orders *services.OrderService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, orders: orders}
}

// CheckoutRequest carries the card and billing fields of a checkout attempt.
// Totals are not accepted from the client; the cart's recorded total is
// authoritative.
type CheckoutRequest struct {
	CartID uint `json:"cart_id"`
	Card   struct {
		Name     string `json:"name"`
		Number   string `json:"number"`
		ExpMonth string `json:"exp_month"`
		ExpYear  string `json:"exp_year"`
		CVV      string `json:"cvv"`
	} `json:"card"`
	Billing struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Street     string `json:"street"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	} `json:"billing"`
}

// Checkout composes the gateway transaction for a cart and answers with the
// auto-submitting form the browser posts to the gateway.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid checkout request")
	}
	if req.CartID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cart_id is required")
	}

	var cart models.Cart
	if err := h.db.Preload("Items").First(&cart, req.CartID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Cart not found")
	}

	result, err := h.payments.CreateCheckout(&cart,
		gateway.Card{
			Name:     req.Card.Name,
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVV:      req.Card.CVV,
		},
		gateway.Billing{
			Name:       req.Billing.Name,
			Email:      req.Billing.Email,
			Phone:      req.Billing.Phone,
			Street:     req.Billing.Street,
			City:       req.Billing.City,
			State:      req.Billing.State,
			PostalCode: req.Billing.PostalCode,
			Country:    req.Billing.Country,
		},
		c.RealIP(),
	)
	if err != nil {
		log.Printf("checkout for cart %d failed: %v", req.CartID, err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Could not start payment")
	}

	return c.HTML(http.StatusOK, result.Form)
}

// GatewayCallback receives the gateway's encrypted callback. Crypto and
// parse failures are logged and still answered with 200: a non-2xx here only
// provokes a retry storm from the gateway, and a payload that failed to
// decrypt will not decrypt on the retry either.
func (h *PaymentHandler) GatewayCallback(c echo.Context) error {
	var fields *gateway.CallbackFields
	var rawXML string
	var err error

	if c.FormValue("synthetic") == "true" {
		values := map[string]string{}
		form, ferr := c.FormParams()
		if ferr == nil {
			for k := range form {
				values[k] = form.Get(k)
			}
		}
		fields, err = h.payments.Decoder().DecodeSynthetic(values)
	} else {
		fields, rawXML, err = h.payments.Decoder().Decode(c.FormValue("strResponse"))
	}
	if err != nil {
		logCallbackError(c, err)
		return c.NoContent(http.StatusOK)
	}

	// The correlation token may also travel as a query parameter
	if fields.Reference == "" {
		fields.Reference = c.QueryParam("ref")
	}

	resp, err := h.payments.Reconcile(fields, rawXML, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		log.Printf("failed to reconcile gateway callback: %v", err)
		return c.NoContent(http.StatusOK)
	}

	h.processApproved(resp)

	return c.Redirect(http.StatusFound, "/pay/result/"+resp.TransactionReference)
}

// InternalWebhookRequest is the JSON shape the public callback endpoint
// forwards to the application core.
type InternalWebhookRequest struct {
	TransactionReference string            `json:"transaction_reference"`
	XMLResponse          string            `json:"xml_response"`
	ParsedData           map[string]string `json:"parsed_data"`
	Status               string            `json:"status"`
}

// InternalWebhook feeds an already-decoded callback into the same
// reconciliation path as the public endpoint.
func (h *PaymentHandler) InternalWebhook(c echo.Context) error {
	var req InternalWebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid webhook payload")
	}

	fields := gateway.FieldsFromRaw(req.ParsedData)
	if fields.Reference == "" {
		fields.Reference = req.TransactionReference
	}

	resp, err := h.payments.Reconcile(fields, req.XMLResponse, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		log.Printf("failed to reconcile internal webhook: %v", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Could not reconcile callback")
	}

	h.processApproved(resp)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transaction_reference": resp.TransactionReference,
		"payment_status":        resp.PaymentStatus,
		"order_id":              resp.OrderID,
	})
}

// Result is the customer-facing outcome page, keyed only by transaction
// reference and coarse status. Provider error detail stays with operators.
func (h *PaymentHandler) Result(c echo.Context) error {
	reference := c.Param("reference")

	var resp models.PaymentResponse
	if err := h.db.Where("transaction_reference = ?", reference).First(&resp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, map[string]string{
				"transaction_reference": reference,
				"status":                "pending",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not load payment result")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"transaction_reference": reference,
		"status":                services.ResultStatus(resp.PaymentStatus),
	})
}

// processApproved materializes the order for an approved response and
// enqueues the provisioning attempt. Both halves are idempotent, so a
// duplicated callback converges on the same order.
func (h *PaymentHandler) processApproved(resp *models.PaymentResponse) {
	if resp.PaymentStatus != models.PaymentStatusApproved {
		return
	}
	alreadyMaterialized := resp.OrderID != nil

	order, err := h.orders.Materialize(resp)
	if err != nil {
		log.Printf("failed to materialize order for %s: %v", resp.TransactionReference, err)
		return
	}
	if alreadyMaterialized {
		return
	}

	task, err := tasks.ProvisionOrderTask.CreateTask(order.ID)
	if err != nil {
		log.Printf("failed to build provisioning task for order %s: %v", order.OrderNumber, err)
		return
	}
	if err := h.db.Create(task).Error; err != nil {
		log.Printf("failed to enqueue provisioning task for order %s: %v", order.OrderNumber, err)
	}
}

func logCallbackError(c echo.Context, err error) {
	body := c.FormValue("strResponse")
	if len(body) > 64 {
		body = body[:64] + "..."
	}
	switch {
	case errors.Is(err, gateway.ErrMalformedPayload),
		errors.Is(err, gateway.ErrDecryptionFailed),
		errors.Is(err, gateway.ErrMalformedXML):
		log.Printf("gateway callback rejected: %v (payload %q from %s)", err, body, c.RealIP())
	case errors.Is(err, gateway.ErrSyntheticRejected):
		log.Printf("synthetic callback rejected in this environment (from %s)", c.RealIP())
	default:
		log.Printf("gateway callback failed: %v", err)
	}
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	val, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return uint(val), nil
}
