package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Tickets").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Tickets").
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListUserOrders(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Tickets").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{Orders: rows}
	if len(rows) > normalized {
		next := rows[normalized]
		list.Orders = rows[:normalized]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID})
	}
	return list, nil
}

func (r *repository) FindPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindEventByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindPriceOptionByID(ctx context.Context, id uuid.UUID) (*models.PriceOption, error) {
	var tier models.PriceOption
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *repository) FindTicketByScanCode(ctx context.Context, scanCode string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).Where("scan_code = ?", scanCode).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) UpdateTicketStatusIf(ctx context.Context, ticketID uuid.UUID, from, to enums.TicketStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticketID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CountTicketsByStatus(ctx context.Context, orderID uuid.UUID, status enums.TicketStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("order_id = ? AND status = ?", orderID, status).
		Count(&count).Error
	return count, err
}
