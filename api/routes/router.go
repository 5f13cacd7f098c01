package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ojalabs/oja-backend/api/controllers"
	webhookcontrollers "github.com/ojalabs/oja-backend/api/controllers/webhooks"
	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/internal/deliveries"
	"github.com/ojalabs/oja-backend/internal/disputes"
	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/internal/orders"
	"github.com/ojalabs/oja-backend/internal/payouts"
	"github.com/ojalabs/oja-backend/internal/wallet"
	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/redis"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      db.Pinger
	Redis   *redis.Client
	Courier *courier.Client
	Metrics prometheus.Gatherer

	Orders     orders.Service
	Escrow     escrow.Service
	Deliveries deliveries.Service
	Payouts    payouts.Service
	Wallet     wallet.Service
	Disputes   disputes.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	var idemStore redis.IdempotencyStore
	var redisPinger redis.Pinger
	if d.Redis != nil {
		idemStore = d.Redis
		redisPinger = d.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, redisPinger))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if d.Courier == nil {
			r.Post("/courier", webhookcontrollers.CourierWebhook(d.Deliveries, nil, idemStore, cfg.Courier.IdempotencyTTL, logg))
		} else {
			r.Post("/courier", webhookcontrollers.CourierWebhook(d.Deliveries, d.Courier, idemStore, cfg.Courier.IdempotencyTTL, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.UserRoleBuyer, logg)).Post("/", controllers.OrderCreate(d.Orders, logg))
			r.Get("/", controllers.OrderList(d.Orders, logg))
			r.Get("/number/{orderNumber}", controllers.OrderDetailByNumber(d.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(d.Orders, logg))
			r.With(middleware.RequireRole(enums.UserRoleBuyer, logg)).Post("/{orderId}/confirm", controllers.OrderConfirmDelivery(d.Escrow, logg))
			r.Get("/{orderId}/escrow", controllers.EscrowDetail(d.Escrow, logg))
			r.With(middleware.RequireRole(enums.UserRoleVendor, logg)).Post("/{orderId}/escrow/release", controllers.EscrowReleaseManual(d.Escrow, logg))
			r.Get("/{orderId}/delivery", controllers.DeliveryDetail(d.Deliveries, logg))
			r.Get("/{orderId}/delivery/history", controllers.DeliveryHistory(d.Deliveries, logg))
			r.Get("/{orderId}/delivery/track", controllers.DeliveryTrack(d.Deliveries, logg))
			r.With(middleware.RequireRole(enums.UserRoleVendor, logg)).Post("/{orderId}/delivery/proof", controllers.DeliveryProofUpload(d.Deliveries, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/quote", controllers.DeliveryQuote(d.Deliveries, logg))
			r.With(middleware.RequireRole(enums.UserRoleVendor, logg)).Post("/", controllers.DeliveryCreate(d.Deliveries, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", controllers.DisputeCreate(d.Escrow, logg))
			r.Get("/", controllers.DisputeList(d.Disputes, logg))
			r.Get("/{disputeId}", controllers.DisputeDetail(d.Disputes, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleVendor, logg))
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", controllers.WalletBalance(d.Wallet, logg))
				r.Get("/transactions", controllers.WalletStatement(d.Wallet, logg))
			})
			r.Post("/payouts", controllers.PayoutRequest(d.Payouts, logg))
			r.Get("/payouts", controllers.PayoutList(d.Payouts, logg))
		})
		r.Get("/payouts/{payoutId}", controllers.PayoutDetail(d.Payouts, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

		r.Post("/orders/{orderId}/payment", controllers.OrderPaymentUpdate(d.Orders, logg))
		r.Post("/orders/{orderId}/escrow/release", controllers.EscrowRelease(d.Escrow, logg))
		r.Post("/orders/{orderId}/escrow/refund", controllers.EscrowRefund(d.Escrow, logg))

		r.Post("/disputes/{disputeId}/investigate", controllers.DisputeStartInvestigation(d.Disputes, logg))
		r.Post("/disputes/{disputeId}/resolve", controllers.DisputeResolve(d.Disputes, logg))
		r.Post("/disputes/{disputeId}/close", controllers.DisputeClose(d.Disputes, logg))

		r.Post("/payouts/{payoutId}/processing", controllers.PayoutMarkProcessing(d.Payouts, logg))
		r.Post("/payouts/{payoutId}/complete", controllers.PayoutMarkCompleted(d.Payouts, logg))
		r.Post("/payouts/{payoutId}/fail", controllers.PayoutMarkFailed(d.Payouts, logg))
	})

	return r
}
