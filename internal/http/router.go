package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Auth               AuthConfig
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter builds the HTTP surface of the cart service. Every /cart route
// requires an authenticated caller.
func NewRouter(carts CartEngine, cfg RouterConfig, logger *slog.Logger) http.Handler {
	h := NewCartHandler(carts, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))
		r.Post("/add-to-cart", h.AddItem)
		r.Get("/get-cart", h.GetCart)
		r.Put("/update-cart", h.UpdateItem)
		r.Delete("/delete-cart/{lineId}", h.RemoveItem)
		r.Delete("/clear-cart", h.ClearCart)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
