package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dropship-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/dropship-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pingers map[string]controllers.Pinger

	Orders   *controllers.OrdersController
	Admin    *controllers.AdminFulfillmentsController
	Payments *webhookcontrollers.PaymentsController
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Pingers))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", params.Payments.HandlePaymentConfirmed)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/orders/{orderId}", params.Orders.GetOrder)
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/fulfillments", func(r chi.Router) {
			r.Get("/failed", params.Admin.ListFailed)
			r.Post("/records/{recordId}/retry", params.Admin.RetryRecord)
			r.Post("/retry-sweep", params.Admin.RetrySweep)
			r.Post("/reconcile", params.Admin.Reconcile)
		})
	})

	return r
}
