package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tundeajayi/storefront-backend/api/controllers"
	"github.com/tundeajayi/storefront-backend/api/middleware"
	"github.com/tundeajayi/storefront-backend/internal/deadletter"
	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/products"
	"github.com/tundeajayi/storefront-backend/internal/reservation"
	"github.com/tundeajayi/storefront-backend/internal/tasks"
	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	productService products.Service,
	orderService orders.Service,
	engine reservation.Engine,
	producer *tasks.Producer,
	deadLetterRepo *deadletter.Repository,
	replayer *deadletter.Replayer,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(productService, logg))
		r.Get("/{productId}", controllers.ProductsDetail(productService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))
		r.Post("/", controllers.OrdersCreate(engine, logg))
		r.Get("/", controllers.OrdersList(orderService, logg))
		r.Get("/{orderId}", controllers.OrdersDetail(orderService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", controllers.PaymentWebhook(producer, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.App.AdminToken, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductsCreate(productService, logg))
			r.Patch("/{productId}", controllers.AdminProductsUpdate(productService, logg))
			r.Delete("/{productId}", controllers.AdminProductsDeactivate(productService, logg))
		})

		r.Patch("/orders/{orderId}/status", controllers.AdminOrdersUpdateStatus(orderService, logg))

		r.Route("/failed-tasks", func(r chi.Router) {
			r.Get("/", controllers.AdminFailedTasksList(deadLetterRepo, logg))
			r.Post("/replay-all", controllers.AdminFailedTasksReplayAll(replayer, logg))
			r.Post("/{taskId}/replay", controllers.AdminFailedTaskReplay(replayer, logg))
		})
	})

	return r
}
