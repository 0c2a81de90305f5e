package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCallbackService struct {
	order *core.Order
	err   error
	calls int
}

func (m *mockCallbackService) Process(ctx context.Context, cb provider.Callback) (*core.Order, error) {
	m.calls++
	return m.order, m.err
}

func newCallbackContext(method, target, body, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestBorgunCallbackResponses(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"settled", nil, http.StatusOK},
		{"replay acknowledged", core.ErrAlreadyPaid, http.StatusOK},
		{"unknown order", core.ErrOrderNotFound, http.StatusNotFound},
		{"verification failed", &core.VerificationError{Provider: "borgun", Reason: "orderhash mismatch"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCallbackService{err: tt.serviceErr}
			h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

			c, rec := newCallbackContext(http.MethodPost,
				"/payments/borgun?orderid=1d4c5b6a7f80&orderhash=abc&reference=9a1b8e0e-3c7a-4b6d-9f2e-1d4c5b6a7f80",
				"", "")
			require.NoError(t, h.Borgun(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, 1, svc.calls)
		})
	}
}

func TestValitorCallbackMismatchIsServerError(t *testing.T) {
	svc := &mockCallbackService{err: &core.VerificationError{Provider: "valitor", Reason: "digital signature mismatch"}}
	h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

	c, rec := newCallbackContext(http.MethodGet, "/payments/valitor?ReferenceNumber=x&DigitalSignatureResponse=y", "", "")
	require.NoError(t, h.Valitor(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSiminnPayCallbackMismatchIsUnauthorized(t *testing.T) {
	svc := &mockCallbackService{err: &core.VerificationError{Provider: "siminnpay", Reason: "hmac mismatch"}}
	h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

	c, rec := newCallbackContext(http.MethodPost, "/payments/siminnpay",
		`{"orderKey":"ok-123","status":"PAYMENT_SUCCESSFUL","amount":2500}`, echo.MIMEApplicationJSON)
	require.NoError(t, h.SiminnPay(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAltaPayIgnoredCallbackIsAcknowledged(t *testing.T) {
	svc := &mockCallbackService{err: provider.ErrIgnoreCallback}
	h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

	c, rec := newCallbackContext(http.MethodPost, "/payments/altapay",
		`{"sessionId":"sess-42","paymentStatus":"FAILED"}`, echo.MIMEApplicationJSON)
	require.NoError(t, h.AltaPay(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment not Valid", rec.Body.String())
}

func TestStraumurCallbackResponses(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantBody   string
	}{
		{"settled", nil, http.StatusOK, "OK"},
		{"failed payment acknowledged", provider.ErrIgnoreCallback, http.StatusOK, "Payment not Valid"},
		{"unknown order", core.ErrOrderNotFound, http.StatusNotFound, "order not found"},
		{"signature mismatch", &core.VerificationError{Provider: "straumur", Reason: "hmac signature mismatch"}, http.StatusInternalServerError, "verification failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCallbackService{err: tt.serviceErr}
			h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

			c, rec := newCallbackContext(http.MethodPost, "/payments/straumur",
				`{"merchantReference":"9a1b8e0e-3c7a-4b6d-9f2e-1d4c5b6a7f80","success":"true","hmacSignature":"sig"}`,
				echo.MIMEApplicationJSON)
			require.NoError(t, h.Straumur(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestNetgiroCallbackSuccess(t *testing.T) {
	svc := &mockCallbackService{}
	h := NewCallbackHandler(zap.NewNop(), svc, nil, nil)

	c, rec := newCallbackContext(http.MethodPost, "/payments/netgiro",
		`{"Signature":"s","ReferenceNumber":"r","ConfirmationCode":"c","InvoiceNumber":"i"}`, echo.MIMEApplicationJSON)
	require.NoError(t, h.Netgiro(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
