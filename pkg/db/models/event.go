package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/pkg/enums"
)

// Event is a scheduled show. RemainingSeats is a derived cache over the
// event's price tiers and is mutated only through the inventory ledger,
// always in the same transaction as the tier counts.
type Event struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	Title          string            `gorm:"column:title;not null"`
	Poster         string            `gorm:"column:poster"`
	Venue          string            `gorm:"column:venue"`
	Address        string            `gorm:"column:address"`
	EventDate      time.Time         `gorm:"column:event_date;not null"`
	EventTime      time.Time         `gorm:"column:event_time;not null"`
	TotalSeats     int               `gorm:"column:total_seats;not null"`
	RemainingSeats int               `gorm:"column:remaining_seats;not null"`
	Status         enums.EventStatus `gorm:"column:status;not null;default:'UPCOMING'"`
	PriceOptions   []PriceOption     `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// StartsAt combines the stored date and clock-time columns into the instant
// the doors open, in the date column's location.
func (e Event) StartsAt() time.Time {
	return time.Date(
		e.EventDate.Year(), e.EventDate.Month(), e.EventDate.Day(),
		e.EventTime.Hour(), e.EventTime.Minute(), e.EventTime.Second(), 0,
		e.EventDate.Location(),
	)
}
