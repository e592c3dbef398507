package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/api/middleware"
	"github.com/showtixhq/showtix-backend/api/responses"
	"github.com/showtixhq/showtix-backend/api/validators"
	internalorders "github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

type createOrderRequest struct {
	EventID       uuid.UUID `json:"event_id" validate:"required"`
	PriceOptionID uuid.UUID `json:"price_option_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,min=1,max=10"`
	BuyerName     string    `json:"buyer_name" validate:"required,max=100"`
	BuyerPhone    string    `json:"buyer_phone" validate:"required,max=20"`
}

// CreateOrder places a pending order, reserving stock and issuing tickets.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			Actor:         identity,
			EventID:       req.EventID,
			PriceOptionID: req.PriceOptionID,
			Quantity:      req.Quantity,
			BuyerName:     req.BuyerName,
			BuyerPhone:    req.BuyerPhone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}

// OrderDetail returns one order after the service's ownership check.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderView(order))
	}
}

// ListOrders pages through the caller's own orders, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var filters internalorders.OrderFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), identity, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListView(list))
	}
}

// CancelOrder voids a pending order and releases its seats.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderView(order))
	}
}

type redeemTicketRequest struct {
	ScanCode string `json:"scan_code" validate:"required,len=64"`
}

// RedeemTicket marks a scanned ticket as used. Staff only.
func RedeemTicket(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req redeemTicketRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ticket, err := svc.Redeem(r.Context(), identity, req.ScanCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTicketView(ticket))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
