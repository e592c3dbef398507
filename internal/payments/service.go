package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/metrics"
)

const (
	ackSuccess = "SUCCESS"
	ackFail    = "FAIL"
)

type gatewayAPI interface {
	UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (string, error)
	PayParams(prepayID string) PayParams
	VerifyNotify(fields map[string]string) error
}

type notifyGuard interface {
	CheckAndMark(ctx context.Context, transactionID string) (bool, error)
	Release(ctx context.Context, transactionID string) error
}

// Service fronts the payment provider: it opens prepay sessions for pending
// orders, absorbs settlement notifications, and routes refund requests
// through the order state machine.
type Service struct {
	orders    orders.Service
	repo      Repository
	gateway   gatewayAPI
	guard     notifyGuard
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	notifyURL string
}

func NewService(
	orderSvc orders.Service,
	repo Repository,
	gateway gatewayAPI,
	guard notifyGuard,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	notifyURL string,
) (*Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if notifyURL == "" {
		return nil, fmt.Errorf("notify url required")
	}
	return &Service{
		orders:    orderSvc,
		repo:      repo,
		gateway:   gateway,
		guard:     guard,
		metrics:   orderMetrics,
		logg:      logg,
		notifyURL: notifyURL,
	}, nil
}

// CreatePayment opens a prepay session for a pending order and returns the
// signed parameter bundle the buyer's client hands to the wallet.
func (s *Service) CreatePayment(ctx context.Context, actor auth.Identity, orderID uuid.UUID, clientIP string) (*PayParams, error) {
	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be paid").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	event, err := s.repo.FindEventByID(ctx, order.EventID)
	if err != nil {
		return nil, lookupErr(err, "event not found")
	}
	tier, err := s.repo.FindPriceOptionByID(ctx, order.PriceOptionID)
	if err != nil {
		return nil, lookupErr(err, "price option not found")
	}
	user, err := s.repo.FindUserByID(ctx, order.UserID)
	if err != nil {
		return nil, lookupErr(err, "user not found")
	}

	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	prepayID, err := s.gateway.UnifiedOrder(ctx, UnifiedOrderRequest{
		OutTradeNo: order.OrderNo,
		Body:       event.Title + " - " + tier.Name,
		TotalFee:   FenAmount(order.TotalAmount),
		OpenID:     user.OpenID,
		ClientIP:   clientIP,
		NotifyURL:  s.notifyURL,
	})
	if err != nil {
		return nil, err
	}

	params := s.gateway.PayParams(prepayID)
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "prepay session created")
	return &params, nil
}

// HandleNotify processes one settlement notification and always returns a
// well-formed acknowledgement document, whatever the outcome. SUCCESS tells
// the provider to stop redelivering; FAIL invites another attempt.
func (s *Service) HandleNotify(ctx context.Context, body []byte) []byte {
	fields, err := decodeXML(body)
	if err != nil {
		s.metrics.IncNotification("malformed")
		s.logg.Warn(ctx, "malformed settlement notification")
		return notifyAck(ackFail, "malformed notification")
	}

	if fields["return_code"] != ackSuccess || fields["result_code"] != ackSuccess {
		s.metrics.IncNotification("failed")
		s.logg.Warn(ctx, "provider reported failed settlement")
		return notifyAck(ackFail, "settlement not successful")
	}

	if err := s.gateway.VerifyNotify(fields); err != nil {
		s.metrics.IncNotification("signature_invalid")
		s.logg.Warn(ctx, "settlement notification failed signature check")
		return notifyAck(ackFail, "signature verification failed")
	}

	outTradeNo := fields["out_trade_no"]
	transactionID := fields["transaction_id"]
	totalFee, feeErr := strconv.ParseInt(fields["total_fee"], 10, 64)
	if outTradeNo == "" || transactionID == "" || feeErr != nil {
		s.metrics.IncNotification("malformed")
		s.logg.Warn(ctx, "settlement notification missing required fields")
		return notifyAck(ackFail, "missing required fields")
	}

	// The Redis mark only labels redeliveries; the status precondition in
	// ConfirmPayment is the authority either way. A stale mark (failed
	// Release, crash before it) must never ack a settlement that the order
	// state machine has not absorbed.
	seen, err := s.guard.CheckAndMark(ctx, transactionID)
	if err != nil {
		// Redis being down must not block settlements.
		s.logg.Error(ctx, "idempotency check failed", err)
		seen = false
	}

	_, err = s.orders.ConfirmPayment(ctx, orders.ConfirmPaymentInput{
		OrderNo:       outTradeNo,
		TransactionID: transactionID,
		PayMethod:     enums.PayMethodWeChat,
		Amount:        YuanAmount(totalFee),
	})
	if err != nil {
		if rerr := s.guard.Release(ctx, transactionID); rerr != nil {
			s.logg.Error(ctx, "releasing idempotency mark", rerr)
		}
		s.metrics.IncNotification("failed")
		s.logg.Error(ctx, "confirming settlement", err)
		return notifyAck(ackFail, "settlement processing failed")
	}

	logCtx := s.logg.WithField(ctx, "out_trade_no", outTradeNo)
	if seen {
		s.metrics.IncNotification("duplicate")
		s.logg.Info(logCtx, "settlement redelivery absorbed")
	} else {
		s.metrics.IncNotification("accepted")
		s.logg.Info(logCtx, "settlement accepted")
	}
	return notifyAck(ackSuccess, "OK")
}

// RequestRefund runs the refund policy through the order state machine. The
// provider-side money movement is fired after the state change; its
// confirmation arrives out of band.
func (s *Service) RequestRefund(ctx context.Context, actor auth.Identity, orderID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.orders.Refund(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"amount":   order.TotalAmount.String(),
		"reason":   reason,
	})
	s.logg.Info(logCtx, "refund requested")
	return order, nil
}

func lookupErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
