package orders

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/metrics"
	"github.com/showtixhq/showtix-backend/pkg/outbox"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

const expireBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger moves seat counts inside the order's transaction.
type InventoryLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, eventID, priceOptionID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, eventID, priceOptionID uuid.UUID, qty int) error
}

// TicketIssuer mints the tickets backing an order's quantity.
type TicketIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, qty int) ([]models.Ticket, error)
}

// RefundEligibility decides whether a paid order may still be refunded.
type RefundEligibility interface {
	Evaluate(order models.Order, eventStart time.Time, now time.Time) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory InventoryLedger
	tickets   TicketIssuer
	refunds   RefundEligibility
	outbox    outboxPublisher
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	window    time.Duration
	now       func() time.Time
}

// NewService wires the order state machine. window bounds how long a buyer
// may cancel a pending order; it also drives ExpireStale.
func NewService(
	repo Repository,
	tx txRunner,
	inventory InventoryLedger,
	tickets TicketIssuer,
	refunds RefundEligibility,
	ob outboxPublisher,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	window time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tickets == nil {
		return nil, fmt.Errorf("ticket issuer required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund policy required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
		tickets:   tickets,
		refunds:   refunds,
		outbox:    ob,
		metrics:   orderMetrics,
		logg:      logg,
		window:    window,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}
	if input.Actor.UserID == uuid.Nil || input.Actor.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}

	now := s.now()
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		event, err := repo.FindEventByID(ctx, input.EventID)
		if err != nil {
			return notFoundOr(err, "event not found")
		}
		if event.TenantID != input.Actor.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		if event.Status != enums.EventStatusOnSale {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event is not on sale").
				WithDetails(map[string]any{"eventStatus": event.Status.String()})
		}
		if !event.StartsAt().After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event has already started")
		}

		tier, err := repo.FindPriceOptionByID(ctx, input.PriceOptionID)
		if err != nil {
			return notFoundOr(err, "price option not found")
		}
		if tier.EventID != event.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "price option does not belong to event")
		}
		if tier.Status != enums.PriceOptionStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "price option is not purchasable").
				WithDetails(map[string]any{"priceOptionStatus": tier.Status.String()})
		}

		if err := s.inventory.Reserve(ctx, tx, event.ID, tier.ID, input.Quantity); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
				s.metrics.IncStockConflict()
			}
			return err
		}

		created := models.Order{
			ID:            uuid.New(),
			OrderNo:       newOrderNo(now),
			TenantID:      input.Actor.TenantID,
			UserID:        input.Actor.UserID,
			EventID:       event.ID,
			PriceOptionID: tier.ID,
			Quantity:      input.Quantity,
			TotalAmount:   tier.Price.Mul(decimal.NewFromInt(int64(input.Quantity))),
			BuyerName:     input.BuyerName,
			BuyerPhone:    input.BuyerPhone,
			Status:        enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, &created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}

		issued, err := s.tickets.Issue(ctx, tx, created.ID, input.Quantity)
		if err != nil {
			return err
		}
		created.Tickets = issued

		if err := s.outbox.Emit(ctx, tx, s.orderEvent(enums.EventOrderCreated, created, &input.Actor, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order event")
		}

		order = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.OrderStatusPending.String())
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	if err := authorizeOrderAccess(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, actor auth.Identity, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if actor.UserID == uuid.Nil || actor.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	list, err := s.repo.ListUserOrders(ctx, actor.TenantID, actor.UserID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

// Cancel voids a pending order and returns its seats to the tier. Buyers may
// cancel only within the configured window of creation; admins may cancel a
// pending order at any time.
func (s *service) Cancel(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	now := s.now()
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found")
		}
		if err := authorizeOrderAccess(actor, order); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
				WithDetails(map[string]any{"status": order.Status.String()})
		}
		if !actor.IsAdmin() && now.Sub(order.CreatedAt) > s.window {
			return pkgerrors.New(pkgerrors.CodeWindowExpired, "cancellation window has passed").
				WithDetails(map[string]any{"window": s.window.String()})
		}

		updated, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling order")
		}
		if !updated {
			// Lost the race with a settlement notification.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
		}

		if err := s.inventory.Release(ctx, tx, order.EventID, order.PriceOptionID, order.Quantity); err != nil {
			return err
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := s.outbox.Emit(ctx, tx, s.orderEvent(enums.EventOrderCancelled, *order, &actor, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order event")
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.OrderStatusCancelled.String())
	logCtx := s.logg.WithOrderID(ctx, cancelled.ID.String())
	s.logg.Info(logCtx, "order cancelled")
	return cancelled, nil
}

// ConfirmPayment settles a pending order. Redelivered settlements for an
// order that already left PENDING through payment are absorbed as no-op
// successes; the transaction id recorded by the first settlement wins.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	if input.OrderNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if !input.PayMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pay method")
	}

	now := s.now()
	var confirmed *models.Order
	transitioned := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByOrderNo(ctx, input.OrderNo)
		if err != nil {
			return notFoundOr(err, "order not found")
		}

		switch order.Status {
		case enums.OrderStatusPaid, enums.OrderStatusRefunded, enums.OrderStatusUsed:
			// Settlement already absorbed.
			confirmed = order
			return nil
		case enums.OrderStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was cancelled before settlement")
		}

		if !input.Amount.Equal(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "settled amount does not match order total").
				WithDetails(map[string]any{
					"expected": order.TotalAmount.String(),
					"settled":  input.Amount.String(),
				})
		}

		updated, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, map[string]any{
			"status":         enums.OrderStatusPaid,
			"transaction_id": input.TransactionID,
			"pay_method":     input.PayMethod,
			"paid_at":        now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming payment")
		}
		if !updated {
			reloaded, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
			}
			if reloaded.Status == enums.OrderStatusPaid {
				confirmed = reloaded
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
		}

		order.Status = enums.OrderStatusPaid
		order.TransactionID = &input.TransactionID
		method := input.PayMethod
		order.PayMethod = &method
		order.PaidAt = &now
		if err := s.outbox.Emit(ctx, tx, s.orderEvent(enums.EventOrderPaid, *order, nil, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order event")
		}
		confirmed = order
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.metrics.IncTransition(enums.OrderStatusPaid.String())
		logCtx := s.logg.WithOrderID(ctx, confirmed.ID.String())
		s.logg.Info(logCtx, "order paid")
	}
	return confirmed, nil
}

// Refund moves a paid order to REFUNDED when the policy allows it. Refunded
// seats deliberately stay off the market: close to the event they are
// unlikely to resell, and releasing them would let the tier oversell its
// original allocation after a reissue.
func (s *service) Refund(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error) {
	now := s.now()
	var refunded *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found")
		}
		if err := authorizeOrderAccess(actor, order); err != nil {
			return err
		}

		event, err := repo.FindEventByID(ctx, order.EventID)
		if err != nil {
			return notFoundOr(err, "event not found")
		}
		if err := s.refunds.Evaluate(*order, event.StartsAt(), now); err != nil {
			return err
		}

		updated, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPaid, map[string]any{
			"status":      enums.OrderStatusRefunded,
			"refunded_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refunding order")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer paid")
		}

		order.Status = enums.OrderStatusRefunded
		order.RefundedAt = &now
		if err := s.outbox.Emit(ctx, tx, s.orderEvent(enums.EventOrderRefunded, *order, &actor, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order event")
		}
		refunded = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.OrderStatusRefunded.String())
	logCtx := s.logg.WithOrderID(ctx, refunded.ID.String())
	s.logg.Info(logCtx, "order refunded")
	return refunded, nil
}

// Redeem marks one ticket used at the gate. When the order's last valid
// ticket is redeemed the order itself moves to USED.
func (s *service) Redeem(ctx context.Context, actor auth.Identity, scanCode string) (*models.Ticket, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can redeem tickets")
	}
	if scanCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan code required")
	}

	var redeemed *models.Ticket
	orderClosed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ticket, err := repo.FindTicketByScanCode(ctx, scanCode)
		if err != nil {
			return notFoundOr(err, "ticket not found")
		}
		order, err := repo.FindByID(ctx, ticket.OrderID)
		if err != nil {
			return notFoundOr(err, "order not found")
		}
		if order.TenantID != actor.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid").
				WithDetails(map[string]any{"status": order.Status.String()})
		}

		updated, err := repo.UpdateTicketStatusIf(ctx, ticket.ID, enums.TicketStatusValid, enums.TicketStatusUsed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeeming ticket")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket already redeemed").
				WithDetails(map[string]any{"ticketStatus": ticket.Status.String()})
		}
		ticket.Status = enums.TicketStatusUsed

		remaining, err := repo.CountTicketsByStatus(ctx, order.ID, enums.TicketStatusValid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting remaining tickets")
		}
		if remaining == 0 {
			if _, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPaid, map[string]any{
				"status": enums.OrderStatusUsed,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing order")
			}
			orderClosed = true
		}
		redeemed = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	if orderClosed {
		s.metrics.IncTransition(enums.OrderStatusUsed.String())
	}
	logCtx := s.logg.WithOrderID(ctx, redeemed.OrderID.String())
	s.logg.Info(logCtx, "ticket redeemed")
	return redeemed, nil
}

// ExpireStale cancels pending orders older than the cancellation window and
// returns their seats, one order per transaction so a poisoned row cannot
// wedge the whole sweep.
func (s *service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.window)
	stale, err := s.repo.FindPendingCreatedBefore(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stale orders")
	}

	expired := 0
	var errs error
	for _, order := range stale {
		order := order
		before := expired
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			updated, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			})
			if err != nil {
				return err
			}
			if !updated {
				// Paid or cancelled since the sweep listed it.
				return nil
			}
			if err := s.inventory.Release(ctx, tx, order.EventID, order.PriceOptionID, order.Quantity); err != nil {
				return err
			}
			order.Status = enums.OrderStatusCancelled
			order.CancelledAt = &now
			if err := s.outbox.Emit(ctx, tx, s.orderEvent(enums.EventOrderExpired, order, nil, now)); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expiring order %s: %w", order.ID, err))
			continue
		}
		if expired > before {
			s.metrics.IncTransition(enums.OrderStatusCancelled.String())
		}
	}

	return expired, errs
}

func (s *service) orderEvent(eventType enums.OutboxEventType, order models.Order, actor *auth.Identity, occurredAt time.Time) outbox.DomainEvent {
	var actorRef *outbox.ActorRef
	if actor != nil {
		actorRef = &outbox.ActorRef{UserID: actor.UserID, TenantID: actor.TenantID, Role: actor.Role}
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef,
		OccurredAt:    occurredAt,
		Data: map[string]any{
			"orderId":     order.ID.String(),
			"orderNo":     order.OrderNo,
			"eventId":     order.EventID.String(),
			"quantity":    order.Quantity,
			"totalAmount": order.TotalAmount.String(),
			"status":      order.Status.String(),
		},
	}
}

func authorizeOrderAccess(actor auth.Identity, order *models.Order) error {
	if actor.IsAdmin() && actor.TenantID == order.TenantID {
		return nil
	}
	if actor.UserID == order.UserID && actor.TenantID == order.TenantID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

// newOrderNo builds the merchant trade number sent to the payment provider:
// a second-resolution timestamp plus six random digits.
func newOrderNo(now time.Time) string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		binary.BigEndian.PutUint32(buf[:], uint32(now.UnixNano()))
	}
	suffix := binary.BigEndian.Uint32(buf[:]) % 1_000_000
	return fmt.Sprintf("%s%06d", now.Format("20060102150405"), suffix)
}
