package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/showtixhq/showtix-backend/pkg/enums"
)

// Order is a claim on Quantity units of one price tier. TotalAmount is fixed
// at creation; later tier price changes never affect an existing order.
// OrderNo is the merchant-side trade number exchanged with the payment
// provider (out_trade_no).
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNo       string            `gorm:"column:order_no;uniqueIndex;not null"`
	TenantID      uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	EventID       uuid.UUID         `gorm:"column:event_id;type:uuid;not null;index"`
	PriceOptionID uuid.UUID         `gorm:"column:price_option_id;type:uuid;not null"`
	Quantity      int               `gorm:"column:quantity;not null"`
	TotalAmount   decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	BuyerName     string            `gorm:"column:buyer_name"`
	BuyerPhone    string            `gorm:"column:buyer_phone"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	TransactionID *string           `gorm:"column:transaction_id"`
	PayMethod     *enums.PayMethod  `gorm:"column:pay_method"`
	PaidAt        *time.Time        `gorm:"column:paid_at"`
	CancelledAt   *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt    *time.Time        `gorm:"column:refunded_at"`
	Tickets       []Ticket          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
