package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/electronics-store/internal/auth"
	"github.com/safar/electronics-store/internal/cache"
	"github.com/safar/electronics-store/internal/metrics"
	"github.com/safar/electronics-store/internal/storage"
	"go.uber.org/zap"
)

type Deps struct {
	DB             *sql.DB
	Catalog        *cache.Catalog
	Resolver       *auth.Resolver
	Linker         storage.Linker
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	h := NewHandler(d.DB, d.Catalog, d.Linker, d.Metrics, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(Instrument(d.Metrics))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}
		r.Use(Identify(d.Resolver))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.With(RequireAdmin).Post("/", h.CreateCategory)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Get("/featured", h.FeaturedItems)
			r.Get("/highest_selling", h.HighestSelling)
			r.Get("/{id}", h.GetItem)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", h.CreateItem)
				r.Patch("/{id}", h.UpdateItem)
				r.Patch("/{id}/stock", h.UpdateStock)
				r.Delete("/{id}", h.DeleteItem)
			})
		})

		r.Get("/carts", h.GetCart)

		r.Route("/cart-items", func(r chi.Router) {
			r.Get("/", h.ListCartItems)
			r.Post("/", h.AddCartItem)
			r.Get("/{id}", h.GetCartItem)
			r.Put("/{id}", h.UpdateCartItem)
			r.Patch("/{id}", h.UpdateCartItem)
			r.Delete("/{id}", h.DeleteCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", methodNotAllowed)
			r.Post("/place_order_from_cart", h.PlaceOrderFromCart)
			r.Get("/{id}", h.GetOrder)
			r.With(RequireAdmin).Patch("/{id}/status", h.UpdateOrderStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Get("/{id}", h.GetPayment)
			r.Post("/{id}/initiate_payment", h.InitiatePayment)
		})
		r.Get("/payment-methods", h.ListPaymentMethods)
		r.Get("/payment-history", h.ListPaymentHistory)

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", h.ListReceipts)
			r.Get("/{id}", h.GetReceipt)
			r.Get("/{id}/download", h.DownloadReceipt)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Get("/{id}", h.GetInvoice)
			r.Get("/{id}/download", h.DownloadInvoice)
		})

		r.Route("/performance-metrics", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.ListPerformanceMetrics)
			r.Get("/profitability", h.Profitability)
			r.Get("/summary", h.SalesSummary)
			r.Post("/refresh", h.RefreshMetrics)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.Me)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
			})
		})
	})

	return r
}
