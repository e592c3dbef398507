package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/showtixhq/showtix-backend/pkg/enums"
)

// PriceOption is a purchasable tier of an event with its own price and
// independent stock count. 0 <= RemainingCount <= TotalCount holds on every
// mutation; disabled tiers are hidden from purchase and display but keep
// participating in ledger arithmetic.
type PriceOption struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	EventID        uuid.UUID               `gorm:"column:event_id;type:uuid;not null;index"`
	Name           string                  `gorm:"column:name;not null"`
	Price          decimal.Decimal         `gorm:"column:price;type:numeric(10,2);not null"`
	TotalCount     int                     `gorm:"column:total_count;not null"`
	RemainingCount int                     `gorm:"column:remaining_count;not null"`
	Status         enums.PriceOptionStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
