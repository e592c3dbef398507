package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtixhq/showtix-backend/api/middleware"
	"github.com/showtixhq/showtix-backend/internal/payments"
	pkgauth "github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
)

type stubPayments struct {
	payParams   *payments.PayParams
	payErr      error
	ack         []byte
	notifyBody  []byte
	refundOrder *models.Order
	refundErr   error
}

func (s *stubPayments) CreatePayment(ctx context.Context, actor pkgauth.Identity, orderID uuid.UUID, clientIP string) (*payments.PayParams, error) {
	return s.payParams, s.payErr
}

func (s *stubPayments) HandleNotify(ctx context.Context, body []byte) []byte {
	s.notifyBody = body
	return s.ack
}

func (s *stubPayments) RequestRefund(ctx context.Context, actor pkgauth.Identity, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.refundOrder, s.refundErr
}

func testIdentity() pkgauth.Identity {
	return pkgauth.Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: pkgauth.RoleBuyer}
}

func newPaymentsRouter(svc *stubPayments) chi.Router {
	r := chi.NewRouter()
	r.Post("/orders/{orderId}/payment", CreatePayment(svc, nil))
	r.Post("/orders/{orderId}/refund", RequestRefund(svc, nil))
	r.Post("/payments/wechat/notify", PaymentNotify(svc, nil))
	return r
}

func TestCreatePaymentReturnsPayBundle(t *testing.T) {
	svc := &stubPayments{payParams: &payments.PayParams{
		AppID:    "wx-app",
		Package:  "prepay_id=wx123",
		SignType: "MD5",
	}}
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/payment", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), testIdentity()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "prepay_id=wx123")
}

func TestCreatePaymentRequiresIdentity(t *testing.T) {
	router := newPaymentsRouter(&stubPayments{})

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/payment", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreatePaymentRejectsMalformedOrderID(t *testing.T) {
	router := newPaymentsRouter(&stubPayments{})

	req := httptest.NewRequest(http.MethodPost, "/orders/not-a-uuid/payment", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), testIdentity()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPaymentNotifyAlwaysAcksXML(t *testing.T) {
	ack := []byte("<xml><return_code><![CDATA[SUCCESS]]></return_code><return_msg><![CDATA[OK]]></return_msg></xml>")
	svc := &stubPayments{ack: ack}
	router := newPaymentsRouter(svc)

	body := "<xml><out_trade_no><![CDATA[20260501100000123456]]></out_trade_no></xml>"
	req := httptest.NewRequest(http.MethodPost, "/payments/wechat/notify", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/xml", resp.Header().Get("Content-Type"))
	assert.Equal(t, string(ack), resp.Body.String())
	assert.Equal(t, body, string(svc.notifyBody))
}

func TestRequestRefundMapsPolicyErrors(t *testing.T) {
	svc := &stubPayments{refundErr: pkgerrors.New(pkgerrors.CodeWindowExpired, "refund window has closed")}
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/refund", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), testIdentity()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "WINDOW_EXPIRED")
}
