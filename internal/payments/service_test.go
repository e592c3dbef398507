package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/metrics"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

type stubOrders struct {
	order      *models.Order
	confirmed  []orders.ConfirmPaymentInput
	confirmErr error
	refundErr  error
}

func (s *stubOrders) Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrders) Get(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrders) List(ctx context.Context, actor auth.Identity, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrders) Cancel(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrders) ConfirmPayment(ctx context.Context, input orders.ConfirmPaymentInput) (*models.Order, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	s.confirmed = append(s.confirmed, input)
	return s.order, nil
}

func (s *stubOrders) Refund(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	s.order.Status = enums.OrderStatusRefunded
	return s.order, nil
}

func (s *stubOrders) Redeem(ctx context.Context, actor auth.Identity, scanCode string) (*models.Ticket, error) {
	return nil, nil
}

func (s *stubOrders) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

type stubGateway struct {
	prepayID   string
	unifiedErr error
	verifyErr  error
	requests   []UnifiedOrderRequest
}

func (s *stubGateway) UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (string, error) {
	if s.unifiedErr != nil {
		return "", s.unifiedErr
	}
	s.requests = append(s.requests, req)
	return s.prepayID, nil
}

func (s *stubGateway) PayParams(prepayID string) PayParams {
	return PayParams{AppID: "wx123", Package: "prepay_id=" + prepayID, SignType: "MD5", PaySign: "SIGNED"}
}

func (s *stubGateway) VerifyNotify(fields map[string]string) error {
	return s.verifyErr
}

type stubGuard struct {
	seen       map[string]bool
	released   []string
	err        error
	releaseErr error
}

func (s *stubGuard) CheckAndMark(ctx context.Context, transactionID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[transactionID] {
		return true, nil
	}
	s.seen[transactionID] = true
	return false, nil
}

func (s *stubGuard) Release(ctx context.Context, transactionID string) error {
	s.released = append(s.released, transactionID)
	if s.releaseErr != nil {
		return s.releaseErr
	}
	delete(s.seen, transactionID)
	return nil
}

type stubRepo struct {
	event *models.Event
	tier  *models.PriceOption
	user  *models.User
}

func (s *stubRepo) FindEventByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.event, nil
}

func (s *stubRepo) FindPriceOptionByID(ctx context.Context, id uuid.UUID) (*models.PriceOption, error) {
	return s.tier, nil
}

func (s *stubRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

type paymentsFixture struct {
	svc     *Service
	orders  *stubOrders
	gateway *stubGateway
	guard   *stubGuard
	actor   auth.Identity
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()
	tenant := uuid.New()
	buyer := auth.Identity{UserID: uuid.New(), TenantID: tenant, Role: auth.RoleBuyer}
	order := &models.Order{
		ID:          uuid.New(),
		OrderNo:     "20260501100000654321",
		TenantID:    tenant,
		UserID:      buyer.UserID,
		EventID:     uuid.New(),
		Quantity:    1,
		TotalAmount: decimal.RequireFromString("60.00"),
		Status:      enums.OrderStatusPending,
	}
	ordersStub := &stubOrders{order: order}
	gatewayStub := &stubGateway{prepayID: "prepay-xyz"}
	guardStub := &stubGuard{}
	repoStub := &stubRepo{
		event: &models.Event{ID: order.EventID, Title: "Jazz Night"},
		tier:  &models.PriceOption{ID: order.PriceOptionID, Name: "GA"},
		user:  &models.User{ID: order.UserID, OpenID: "openid-1"},
	}

	svc, err := NewService(
		ordersStub,
		repoStub,
		gatewayStub,
		guardStub,
		metrics.NewOrderMetrics(nil),
		logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.ErrorLevel}),
		"https://tickets.example.com/api/v1/payments/wechat/notify",
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &paymentsFixture{svc: svc, orders: ordersStub, gateway: gatewayStub, guard: guardStub, actor: buyer}
}

func signedNotify(t *testing.T, overrides map[string]string) []byte {
	t.Helper()
	fields := map[string]string{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"out_trade_no":   "20260501100000654321",
		"transaction_id": "wx-tx-001",
		"total_fee":      "6000",
	}
	for k, v := range overrides {
		fields[k] = v
	}
	fields["sign"] = signParams(fields, "sekrit")
	return []byte(encodeXML(fields))
}

func ackFields(t *testing.T, ack []byte) map[string]string {
	t.Helper()
	fields, err := decodeXML(ack)
	if err != nil {
		t.Fatalf("ack not parseable: %v", err)
	}
	return fields
}

func TestCreatePaymentBuildsPrepaySession(t *testing.T) {
	f := newPaymentsFixture(t)

	params, err := f.svc.CreatePayment(context.Background(), f.actor, f.orders.order.ID, "203.0.113.5")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if params.Package != "prepay_id=prepay-xyz" {
		t.Fatalf("unexpected package: %s", params.Package)
	}
	if len(f.gateway.requests) != 1 {
		t.Fatalf("expected one unified order call, got %d", len(f.gateway.requests))
	}
	req := f.gateway.requests[0]
	if req.OutTradeNo != f.orders.order.OrderNo {
		t.Fatalf("expected merchant trade number, got %s", req.OutTradeNo)
	}
	if req.TotalFee != 6000 {
		t.Fatalf("expected 6000 fen, got %d", req.TotalFee)
	}
	if req.Body != "Jazz Night - GA" {
		t.Fatalf("unexpected body: %s", req.Body)
	}
	if req.OpenID != "openid-1" {
		t.Fatalf("expected buyer openid, got %s", req.OpenID)
	}
}

func TestCreatePaymentRejectsNonPendingOrder(t *testing.T) {
	f := newPaymentsFixture(t)
	f.orders.order.Status = enums.OrderStatusPaid

	_, err := f.svc.CreatePayment(context.Background(), f.actor, f.orders.order.ID, "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatal("expected no provider call for non-pending order")
	}
}

func TestHandleNotifyAcceptsValidSettlement(t *testing.T) {
	f := newPaymentsFixture(t)

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if ack["return_code"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS ack, got %+v", ack)
	}
	if len(f.orders.confirmed) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(f.orders.confirmed))
	}
	input := f.orders.confirmed[0]
	if input.OrderNo != "20260501100000654321" || input.TransactionID != "wx-tx-001" {
		t.Fatalf("unexpected confirmation input: %+v", input)
	}
	if input.PayMethod != enums.PayMethodWeChat {
		t.Fatalf("expected wechat pay method, got %s", input.PayMethod)
	}
	if !input.Amount.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected 60.00 yuan, got %s", input.Amount)
	}
}

func TestHandleNotifyRedeliveryReconfirms(t *testing.T) {
	f := newPaymentsFixture(t)

	first := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	second := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if first["return_code"] != "SUCCESS" || second["return_code"] != "SUCCESS" {
		t.Fatalf("expected both deliveries acknowledged, got %+v / %+v", first, second)
	}
	// Redeliveries re-run the confirmation; the status precondition in the
	// order state machine makes the second pass a no-op.
	if len(f.orders.confirmed) != 2 {
		t.Fatalf("expected redelivery to re-run confirmation, got %d", len(f.orders.confirmed))
	}
}

func TestHandleNotifyStaleMarkDoesNotSwallowSettlement(t *testing.T) {
	f := newPaymentsFixture(t)
	f.orders.confirmErr = pkgerrors.New(pkgerrors.CodeInternal, "db down")
	f.guard.releaseErr = pkgerrors.New(pkgerrors.CodeDependency, "redis down")

	// First delivery: confirmation fails and the mark cannot be released,
	// so it lingers in redis despite the order still being pending.
	first := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if first["return_code"] != "FAIL" {
		t.Fatalf("expected FAIL ack while settlement unprocessed, got %+v", first)
	}
	if len(f.orders.confirmed) != 0 {
		t.Fatalf("expected no confirmation recorded, got %d", len(f.orders.confirmed))
	}
	if !f.guard.seen["wx-tx-001"] {
		t.Fatal("expected the idempotency mark to linger after failed release")
	}

	// Redelivery after recovery must still settle the order even though the
	// stale mark says the notification was already seen.
	f.orders.confirmErr = nil
	f.guard.releaseErr = nil
	second := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if second["return_code"] != "SUCCESS" {
		t.Fatalf("expected redelivery to settle the order, got %+v", second)
	}
	if len(f.orders.confirmed) != 1 {
		t.Fatalf("expected the redelivery to confirm payment, got %d", len(f.orders.confirmed))
	}
}

func TestHandleNotifyRejectsBadSignature(t *testing.T) {
	f := newPaymentsFixture(t)
	f.gateway.verifyErr = pkgerrors.New(pkgerrors.CodeSignatureInvalid, "notification signature mismatch")

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if ack["return_code"] != "FAIL" {
		t.Fatalf("expected FAIL ack, got %+v", ack)
	}
	if len(f.orders.confirmed) != 0 {
		t.Fatal("expected no confirmation on bad signature")
	}
}

func TestHandleNotifyRejectsFailedSettlement(t *testing.T) {
	f := newPaymentsFixture(t)

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, map[string]string{"result_code": "FAIL"})))
	if ack["return_code"] != "FAIL" {
		t.Fatalf("expected FAIL ack, got %+v", ack)
	}
	if len(f.orders.confirmed) != 0 {
		t.Fatal("expected no confirmation for failed settlement")
	}
}

func TestHandleNotifyMalformedBody(t *testing.T) {
	f := newPaymentsFixture(t)

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), []byte("definitely not xml")))
	if ack["return_code"] != "FAIL" {
		t.Fatalf("expected FAIL ack, got %+v", ack)
	}
}

func TestHandleNotifyReleasesGuardOnConfirmFailure(t *testing.T) {
	f := newPaymentsFixture(t)
	f.orders.confirmErr = pkgerrors.New(pkgerrors.CodeInternal, "db down")

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if ack["return_code"] != "FAIL" {
		t.Fatalf("expected FAIL ack, got %+v", ack)
	}
	if len(f.guard.released) != 1 || f.guard.released[0] != "wx-tx-001" {
		t.Fatalf("expected guard released for retry, got %+v", f.guard.released)
	}

	// The provider's redelivery succeeds once the database recovers.
	f.orders.confirmErr = nil
	retry := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if retry["return_code"] != "SUCCESS" {
		t.Fatalf("expected retry to succeed, got %+v", retry)
	}
}

func TestHandleNotifyGuardOutageDoesNotBlockSettlement(t *testing.T) {
	f := newPaymentsFixture(t)
	f.guard.err = pkgerrors.New(pkgerrors.CodeDependency, "redis down")

	ack := ackFields(t, f.svc.HandleNotify(context.Background(), signedNotify(t, nil)))
	if ack["return_code"] != "SUCCESS" {
		t.Fatalf("expected settlement to proceed without redis, got %+v", ack)
	}
	if len(f.orders.confirmed) != 1 {
		t.Fatalf("expected confirmation despite guard outage, got %d", len(f.orders.confirmed))
	}
}

func TestRequestRefundDelegatesToStateMachine(t *testing.T) {
	f := newPaymentsFixture(t)
	f.orders.order.Status = enums.OrderStatusPaid

	order, err := f.svc.RequestRefund(context.Background(), f.actor, f.orders.order.ID, "cannot attend")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if order.Status != enums.OrderStatusRefunded {
		t.Fatalf("expected REFUNDED, got %s", order.Status)
	}

	f.orders.refundErr = pkgerrors.New(pkgerrors.CodeWindowExpired, "refunds close before the event")
	_, err = f.svc.RequestRefund(context.Background(), f.actor, f.orders.order.ID, "too late")
	if !pkgerrors.HasCode(err, pkgerrors.CodeWindowExpired) {
		t.Fatalf("expected window expired, got %v", err)
	}
}
