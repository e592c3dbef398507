package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/api/middleware"
	"github.com/showtixhq/showtix-backend/api/responses"
	"github.com/showtixhq/showtix-backend/api/validators"
	"github.com/showtixhq/showtix-backend/internal/catalog"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

// ListEvents pages through the tenant's on-sale events.
func ListEvents(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
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

		list, err := svc.ListEvents(r.Context(), identity.TenantID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newEventListView(list))
	}
}

// EventDetail returns one event with its purchasable tiers.
func EventDetail(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "eventId"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}
		eventID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		detail, err := svc.GetEvent(r.Context(), identity.TenantID, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newEventDetailView(detail))
	}
}
