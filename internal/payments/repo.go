package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
)

// Repository loads the rows a prepay request needs to describe the trade.
type Repository interface {
	FindEventByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindPriceOptionByID(ctx context.Context, id uuid.UUID) (*models.PriceOption, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindEventByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindPriceOptionByID(ctx context.Context, id uuid.UUID) (*models.PriceOption, error) {
	var tier models.PriceOption
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
