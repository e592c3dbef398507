package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

// Repository reads the event catalog. All writes go through admin tooling
// and migrations; this surface is read-only.
type Repository interface {
	ListOnSaleEvents(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.Event, string, error)
	FindEventWithTiers(ctx context.Context, tenantID, eventID uuid.UUID) (*models.Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListOnSaleEvents(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.Event, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("tenant_id = ? AND status = ?", tenantID, enums.EventStatusOnSale)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Event
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}), nil
	}
	return rows, "", nil
}

func (r *repository) FindEventWithTiers(ctx context.Context, tenantID, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Preload("PriceOptions", "status = ?", enums.PriceOptionStatusActive).
		Where("id = ? AND tenant_id = ?", eventID, tenantID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}
