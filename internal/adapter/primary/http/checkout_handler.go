package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/input"
	"go.uber.org/zap"
)

// CheckoutHandler is a primary adapter exposing payment initiation over HTTP.
type CheckoutHandler struct {
	log     *zap.Logger
	service input.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(log *zap.Logger, service input.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{log: log, service: service}
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
	// HTML is the auto-submitting form document for form-post providers.
	HTML string `json:"html,omitempty"`
	// Location is the provider payment page URL for API providers.
	Location string `json:"location,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Checkout handles POST /api/v1/checkout/:provider.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var req core.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	req.Provider = c.Param("provider")
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	result, err := h.service.Checkout(c.Request().Context(), &req)
	if err != nil {
		return h.checkoutError(c, &req, err)
	}

	return c.JSON(http.StatusOK, checkoutResponse{
		OrderID:  result.OrderID.String(),
		HTML:     result.HTML,
		Location: result.Location,
	})
}

func (h *CheckoutHandler) checkoutError(c echo.Context, req *core.PaymentRequest, err error) error {
	var configErr *core.ConfigError
	var transportErr *core.TransportError

	switch {
	case errors.Is(err, core.ErrUnknownProvider):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &configErr):
		h.log.Error("provider misconfigured",
			zap.String("provider", req.Provider), zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.As(err, &transportErr):
		h.log.Error("provider unreachable",
			zap.String("provider", req.Provider), zap.Error(err))
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "payment provider unavailable"})
	case errors.Is(err, core.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.log.Error("checkout failed",
			zap.String("provider", req.Provider), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checkout failed"})
	}
}
