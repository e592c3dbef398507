package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

// Repository persists orders and the rows they pull into their transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	// UpdateStatusIf applies updates only while the order still holds the
	// from status. It reports whether a row changed.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	ListUserOrders(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	FindPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	FindEventByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindPriceOptionByID(ctx context.Context, id uuid.UUID) (*models.PriceOption, error)

	FindTicketByScanCode(ctx context.Context, scanCode string) (*models.Ticket, error)
	UpdateTicketStatusIf(ctx context.Context, ticketID uuid.UUID, from, to enums.TicketStatus) (bool, error)
	CountTicketsByStatus(ctx context.Context, orderID uuid.UUID, status enums.TicketStatus) (int64, error)
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor auth.Identity, params pagination.Params, filters OrderFilters) (*OrderList, error)
	Cancel(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error)
	Refund(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*models.Order, error)
	Redeem(ctx context.Context, actor auth.Identity, scanCode string) (*models.Ticket, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}
