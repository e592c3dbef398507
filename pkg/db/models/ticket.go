package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/pkg/enums"
)

// Ticket is one unit of an order's purchased quantity. ScanCode is a one-way
// code derived at issuance; it is compared only by exact match.
type Ticket struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	SeatNo    string             `gorm:"column:seat_no;not null"`
	ScanCode  string             `gorm:"column:scan_code;uniqueIndex;not null"`
	Status    enums.TicketStatus `gorm:"column:status;not null;default:'VALID'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
