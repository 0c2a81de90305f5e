package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/input"
	"github.com/northpay/gateway/internal/provider"
	"go.uber.org/zap"
)

// CallbackHandler is a primary adapter receiving provider callbacks. Each
// provider gets its own route: the payload shapes and the HTTP responses the
// providers expect differ.
type CallbackHandler struct {
	log        *zap.Logger
	service    input.CallbackService
	paypal     *provider.PayPal
	valitorPay *provider.ValitorPay
}

// NewCallbackHandler creates a new callback handler. The PayPal and
// ValitorPay adapters are needed to construct their callbacks: both verify
// through outbound provider calls.
func NewCallbackHandler(log *zap.Logger, service input.CallbackService, paypal *provider.PayPal, valitorPay *provider.ValitorPay) *CallbackHandler {
	return &CallbackHandler{log: log, service: service, paypal: paypal, valitorPay: valitorPay}
}

// Borgun handles Borgun's server callback (form/query fields).
// Borgun retries on any non-200 response.
func (h *CallbackHandler) Borgun(c echo.Context) error {
	var cb provider.BorgunCallback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	default:
		return c.String(http.StatusBadRequest, "verification failed")
	}
}

// Valitor handles Valitor's server-side callback (query string). Valitor
// only treats a 200 as delivered.
func (h *CallbackHandler) Valitor(c echo.Context) error {
	var cb provider.ValitorCallback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	default:
		return c.String(http.StatusInternalServerError, "verification failed")
	}
}

// ValitorPay handles the 3-D Secure completion post.
func (h *CallbackHandler) ValitorPay(c echo.Context) error {
	cb := h.valitorPay.NewCallback()
	if err := c.Bind(cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	default:
		return c.String(http.StatusBadRequest, "verification failed")
	}
}

// Netgiro handles Netgiro's JSON confirmation callback.
func (h *CallbackHandler) Netgiro(c echo.Context) error {
	var cb provider.NetgiroCallback
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad payload"})
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	case callbackNotFound:
		return c.JSON(http.StatusNotFound, errorResponse{Error: "order not found"})
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "verification failed"})
	}
}

// PayPal handles Instant Payment Notifications. IPN expects an empty 200 for
// any received notification; non-200 responses trigger PayPal's retry
// schedule, so only transport-level problems surface as errors.
func (h *CallbackHandler) PayPal(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	cb := h.paypal.NewCallback(c.Request().PostForm)
	_, err := h.service.Process(c.Request().Context(), cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.NoContent(http.StatusOK)
	case callbackNotFound:
		return c.NoContent(http.StatusNotFound)
	default:
		return c.NoContent(http.StatusBadRequest)
	}
}

// SiminnPay handles SiminnPay's JSON status callback. SiminnPay documents a
// 401 for authentication failures.
func (h *CallbackHandler) SiminnPay(c echo.Context) error {
	var cb provider.SiminnPayCallback
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad payload"})
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	case callbackNotFound:
		return c.JSON(http.StatusNotFound, errorResponse{Error: "order not found"})
	case callbackVerificationFailed:
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "hmac mismatch"})
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad payload"})
	}
}

// AltaPay handles AltaPay's JSON payment callback. Non-success statuses are
// acknowledged with a fixed body and never processed.
func (h *CallbackHandler) AltaPay(c echo.Context) error {
	var cb provider.AltaPayCallback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	if errors.Is(err, provider.ErrIgnoreCallback) {
		return c.String(http.StatusOK, "Payment not Valid")
	}
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	default:
		return c.String(http.StatusBadRequest, "verification failed")
	}
}

// Straumur handles Straumur's JSON webhook. Failed payments are acknowledged
// with a fixed body; a signature mismatch is answered with a 500.
func (h *CallbackHandler) Straumur(c echo.Context) error {
	var cb provider.StraumurCallback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	if errors.Is(err, provider.ErrIgnoreCallback) {
		return c.String(http.StatusOK, "Payment not Valid")
	}
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	case callbackVerificationFailed:
		return c.String(http.StatusInternalServerError, "verification failed")
	default:
		return c.String(http.StatusBadRequest, "bad payload")
	}
}

// Demo handles the demo provider's form callback.
func (h *CallbackHandler) Demo(c echo.Context) error {
	var cb provider.DemoCallback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}
	_, err := h.service.Process(c.Request().Context(), &cb)
	switch h.classify(c, err) {
	case callbackOK:
		return c.String(http.StatusOK, "OK")
	case callbackNotFound:
		return c.String(http.StatusNotFound, "order not found")
	default:
		return c.String(http.StatusBadRequest, "verification failed")
	}
}

type callbackOutcome int

const (
	callbackOK callbackOutcome = iota
	callbackNotFound
	callbackVerificationFailed
	callbackBadRequest
	callbackInternal
)

// classify maps the callback service's errors onto response categories.
// Replays and ignorable callbacks are acknowledged as OK: the provider must
// stop retrying.
func (h *CallbackHandler) classify(c echo.Context, err error) callbackOutcome {
	var verificationErr *core.VerificationError

	switch {
	case err == nil,
		errors.Is(err, core.ErrAlreadyPaid),
		errors.Is(err, provider.ErrIgnoreCallback):
		return callbackOK
	case errors.Is(err, core.ErrOrderNotFound):
		h.log.Warn("callback for unknown order", zap.String("path", c.Path()))
		return callbackNotFound
	case errors.As(err, &verificationErr):
		return callbackVerificationFailed
	default:
		h.log.Error("callback processing failed",
			zap.String("path", c.Path()), zap.Error(err))
		return callbackInternal
	}
}
