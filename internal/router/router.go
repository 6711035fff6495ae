package router

import (
	"net/http"

	"workspace-commerce/internal/config"
	"workspace-commerce/internal/handler"
	"workspace-commerce/internal/metrics"
	"workspace-commerce/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
	m *metrics.Metrics,
	auth config.AuthConfig,
	cors config.CORSConfig,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Order matters: RequestID -> Recovery -> Logging -> CORS
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, m))
	r.Use(middleware.CORS(cors.AllowedOrigins))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity([]byte(auth.JWTSecret), auth.JWTIssuer, logger))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Place)
			r.Get("/", orderHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orderHandler.GetByID)
				r.Post("/cancel", orderHandler.Cancel)
				r.Get("/provisioning", orderHandler.Provisioning)
				r.Get("/invoice/archive", orderHandler.ArchivedInvoice)
				r.Get("/payments", paymentHandler.ListAttempts)
				r.Post("/reconcile", paymentHandler.Reconcile)
			})
		})

		r.Post("/payments/attempts", paymentHandler.RecordAttempt)
	})

	return r
}
