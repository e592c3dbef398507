package controllers

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/api/middleware"
	"github.com/showtixhq/showtix-backend/api/responses"
	"github.com/showtixhq/showtix-backend/api/validators"
	"github.com/showtixhq/showtix-backend/internal/payments"
	pkgauth "github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

// maxNotifyBody bounds the provider callback payload.
const maxNotifyBody = 64 << 10

// PaymentsService is the slice of the payments layer the HTTP surface needs.
type PaymentsService interface {
	CreatePayment(ctx context.Context, actor pkgauth.Identity, orderID uuid.UUID, clientIP string) (*payments.PayParams, error)
	HandleNotify(ctx context.Context, body []byte) []byte
	RequestRefund(ctx context.Context, actor pkgauth.Identity, orderID uuid.UUID, reason string) (*models.Order, error)
}

// CreatePayment opens a prepay session with the provider for a pending order
// and returns the signed client-side payment bundle.
func CreatePayment(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
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

		params, err := svc.CreatePayment(r.Context(), identity, orderID, clientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, params)
	}
}

// PaymentNotify receives the provider's asynchronous settlement callback.
// The response is always a well-formed XML ack with HTTP 200; outcome
// signaling lives inside the body, as the provider protocol requires.
func PaymentNotify(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
		if err != nil {
			body = nil
		}

		ack := svc.HandleNotify(r.Context(), body)

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(ack); err != nil && logg != nil {
			logg.Error(r.Context(), "write notify ack", err)
		}
	}
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// RequestRefund refunds a paid order under the pre-event cutoff policy.
func RequestRefund(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
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

		var req refundRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.RequestRefund(r.Context(), identity, orderID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderView(order))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
