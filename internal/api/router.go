/**
 * @description
 * HTTP router setup for the freight billing service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers billing routes.
func NewRouter(h *Handler, auth AuthConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Freight billing service is healthy"))
	})

	r.Route("/internal/billing", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(auth.InternalAPIKey))
		r.Post("/dunning/run", h.handleRunDunningSweep)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(ClerkAuthMiddleware(NewJWKSCache(auth.JWKSURL), auth.Audience, auth.Issuer))

		r.Post("/margin/preview", h.handlePreviewMargin)

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/margin-configuration", h.handleGetMarginConfiguration)
			r.Put("/margin-configuration", h.handlePutMarginConfiguration)
			r.Post("/margin/resolve", h.handleResolveMargin)
			r.Get("/dunning-configuration", h.handleGetDunningConfiguration)
			r.Put("/dunning-configuration", h.handlePutDunningConfiguration)
			r.Get("/payment-terms", h.handleGetPaymentTerms)
		})

		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			r.Get("/overdue-status", h.handleGetOverdueStatus)
			r.Get("/dunning", h.handleEvaluateDunning)
			r.Post("/payment", h.handleRecordPayment)
			r.Get("/collection/next-action", h.handleNextCollectionAction)
			r.Get("/collection-attempts", h.handleListCollectionAttempts)
			r.Post("/collection-attempts", h.handleRecordCollectionAttempt)
		})
	})

	return r
}
