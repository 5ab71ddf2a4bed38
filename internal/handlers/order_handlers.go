package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
)

type OrderHandler struct {
	db          *gorm.DB
	provisioner *services.ProvisioningService
}

func NewOrderHandler(db *gorm.DB, provisioner *services.ProvisioningService) *OrderHandler {
	return &OrderHandler{db: db, provisioner: provisioner}
}

// GetOrder returns an order with its items and subscriptions, for operators.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("Subscriptions").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not load order")
	}

	return c.JSON(http.StatusOK, order)
}

// RetryProvisioning runs one synchronous provisioning attempt, the operator
// entry point of the pipeline. The response carries the structured failure
// detail; this endpoint is never exposed to customers.
func (h *OrderHandler) RetryProvisioning(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}

	if err := h.provisioner.ProvisionOrder(c.Request().Context(), id); err != nil {
		var provErr *services.ProvisioningError
		if errors.As(err, &provErr) {
			payload := map[string]interface{}{
				"error":    "provisioning attempt failed",
				"order_id": provErr.OrderID,
				"step":     provErr.Step,
			}
			if provErr.Detail != nil {
				payload["detail"] = provErr.Detail
			}
			return c.JSON(http.StatusBadGateway, payload)
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("Subscriptions").First(&order, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not reload order")
	}
	return c.JSON(http.StatusOK, order)
}
