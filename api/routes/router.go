package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/showtixhq/showtix-backend/api/controllers"
	"github.com/showtixhq/showtix-backend/api/middleware"
	"github.com/showtixhq/showtix-backend/internal/catalog"
	internalorders "github.com/showtixhq/showtix-backend/internal/orders"
	"github.com/showtixhq/showtix-backend/pkg/config"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	Catalog  *catalog.Service
	Orders   internalorders.Service
	Payments controllers.PaymentsService
	Gatherer prometheus.Gatherer
}

// NewRouter assembles the full route tree. The payment notify webhook stays
// outside the auth group: the provider calls it unauthenticated and is
// answered by signature verification instead.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/wechat/notify", controllers.PaymentNotify(p.Payments, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Logger))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", controllers.ListEvents(p.Catalog, p.Logger))
			r.Get("/{eventId}", controllers.EventDetail(p.Catalog, p.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(p.Orders, p.Logger))
			r.Get("/", controllers.ListOrders(p.Orders, p.Logger))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, p.Logger))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(p.Orders, p.Logger))
			r.Post("/{orderId}/payment", controllers.CreatePayment(p.Payments, p.Logger))
			r.Post("/{orderId}/refund", controllers.RequestRefund(p.Payments, p.Logger))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(p.Logger))
			r.Post("/tickets/redeem", controllers.RedeemTicket(p.Orders, p.Logger))
		})
	})

	return r
}
