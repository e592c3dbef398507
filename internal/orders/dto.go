package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
)

// CreateOrderInput captures a buyer's purchase request for one price tier.
type CreateOrderInput struct {
	Actor         auth.Identity
	EventID       uuid.UUID
	PriceOptionID uuid.UUID
	Quantity      int
	BuyerName     string
	BuyerPhone    string
}

// ConfirmPaymentInput carries a settlement reported by the payment provider.
type ConfirmPaymentInput struct {
	OrderNo       string
	TransactionID string
	PayMethod     enums.PayMethod
	// Amount is the settled total reported by the provider; a mismatch with
	// the order total rejects the confirmation.
	Amount decimal.Decimal
}

// OrderFilters narrows order listings.
type OrderFilters struct {
	Status *enums.OrderStatus
}

// OrderList is one page of a user's orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
