package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Checkout *CheckoutHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
}

type RouterOptions struct {
	Logger         zerolog.Logger
	JWTSecret      []byte
	SecureCookies  bool
	RequestTimeout time.Duration
	SubmitLimiter  *SubmitLimiter
}

func NewRouter(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(opts.SecureCookies))
		r.Use(AuthMiddleware(opts.JWTSecret))

		r.Get("/checkout", h.Checkout.Show)
		r.With(opts.SubmitLimiter.Middleware).Post("/checkout", h.Checkout.Submit)
		r.Get(completePath, h.Checkout.Complete)
		r.Get("/thank-you/order/{order_id}", h.Checkout.ThankYou)

		r.Route("/api", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{order_id}", h.Orders.GetOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
