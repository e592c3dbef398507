package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/internal/catalog"
	internalorders "github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
)

// View types shape persistence rows for the wire. Monetary values render as
// fixed two-decimal strings.

type OrderView struct {
	ID            uuid.UUID    `json:"id"`
	OrderNo       string       `json:"order_no"`
	EventID       uuid.UUID    `json:"event_id"`
	PriceOptionID uuid.UUID    `json:"price_option_id"`
	Quantity      int          `json:"quantity"`
	TotalAmount   string       `json:"total_amount"`
	BuyerName     string       `json:"buyer_name,omitempty"`
	BuyerPhone    string       `json:"buyer_phone,omitempty"`
	Status        string       `json:"status"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	CancelledAt   *time.Time   `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time   `json:"refunded_at,omitempty"`
	Tickets       []TicketView `json:"tickets,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type TicketView struct {
	ID       uuid.UUID `json:"id"`
	SeatNo   string    `json:"seat_no"`
	ScanCode string    `json:"scan_code"`
	Status   string    `json:"status"`
}

type OrderListView struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type EventView struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Poster           string          `json:"poster,omitempty"`
	Venue            string          `json:"venue"`
	Address          string          `json:"address,omitempty"`
	StartsAt         time.Time       `json:"starts_at"`
	TotalSeats       int             `json:"total_seats"`
	RemainingSeats   int             `json:"remaining_seats"`
	Status           string          `json:"status"`
	DisplayRemaining *int            `json:"display_remaining,omitempty"`
	PriceOptions     []PriceTierView `json:"price_options,omitempty"`
}

type PriceTierView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Price          string    `json:"price"`
	TotalCount     int       `json:"total_count"`
	RemainingCount int       `json:"remaining_count"`
	Status         string    `json:"status"`
}

type EventListView struct {
	Events     []EventView `json:"events"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func newOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:            order.ID,
		OrderNo:       order.OrderNo,
		EventID:       order.EventID,
		PriceOptionID: order.PriceOptionID,
		Quantity:      order.Quantity,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		BuyerName:     order.BuyerName,
		BuyerPhone:    order.BuyerPhone,
		Status:        string(order.Status),
		PaidAt:        order.PaidAt,
		CancelledAt:   order.CancelledAt,
		RefundedAt:    order.RefundedAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, ticket := range order.Tickets {
		view.Tickets = append(view.Tickets, newTicketView(&ticket))
	}
	return view
}

func newTicketView(ticket *models.Ticket) TicketView {
	return TicketView{
		ID:       ticket.ID,
		SeatNo:   ticket.SeatNo,
		ScanCode: ticket.ScanCode,
		Status:   string(ticket.Status),
	}
}

func newOrderListView(list *internalorders.OrderList) OrderListView {
	view := OrderListView{
		Orders:     make([]OrderView, 0, len(list.Orders)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Orders {
		view.Orders = append(view.Orders, newOrderView(&list.Orders[i]))
	}
	return view
}

func newEventView(event *models.Event) EventView {
	view := EventView{
		ID:             event.ID,
		Title:          event.Title,
		Poster:         event.Poster,
		Venue:          event.Venue,
		Address:        event.Address,
		StartsAt:       event.StartsAt(),
		TotalSeats:     event.TotalSeats,
		RemainingSeats: event.RemainingSeats,
		Status:         string(event.Status),
	}
	for i := range event.PriceOptions {
		view.PriceOptions = append(view.PriceOptions, newPriceTierView(&event.PriceOptions[i]))
	}
	return view
}

func newPriceTierView(tier *models.PriceOption) PriceTierView {
	return PriceTierView{
		ID:             tier.ID,
		Name:           tier.Name,
		Price:          tier.Price.StringFixed(2),
		TotalCount:     tier.TotalCount,
		RemainingCount: tier.RemainingCount,
		Status:         string(tier.Status),
	}
}

func newEventDetailView(detail *catalog.EventDetail) EventView {
	view := newEventView(&detail.Event)
	remaining := detail.DisplayRemaining
	view.DisplayRemaining = &remaining
	return view
}

func newEventListView(list *catalog.EventList) EventListView {
	view := EventListView{
		Events:     make([]EventView, 0, len(list.Events)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Events {
		view.Events = append(view.Events, newEventView(&list.Events[i]))
	}
	return view
}
