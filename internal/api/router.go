/**
 * @description
 * This file sets up the HTTP router for the rewards-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * middleware for logging, recovery, CORS and sessions.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling.
 * - github.com/prometheus/client_golang: Metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Verifier       TokenVerifier
	CookieName     string
	AllowedOrigins []string
}

// NewRouter creates a new Chi router and registers the rewards-service routes.
func NewRouter(h *RewardHandlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(opts.Verifier, opts.CookieName))

		// Scans come from a phone camera, so failures redirect instead of returning JSON.
		r.Get("/codes/scan/{companyId}/{campaignId}/{codeId}", h.ScanHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/codes/{codeId}", h.GetCodeHandler)
			r.Post("/codes/generate", h.GenerateCodesHandler)

			r.Post("/campaigns", h.CreateCampaignHandler)
			r.Get("/campaigns/types", h.ListCampaignTypesHandler)
			r.Post("/campaigns/giveaway-draw", h.DrawHandler)
			r.Get("/campaigns/{campaignId}", h.GetCampaignHandler)
			r.Patch("/campaigns/{campaignId}", h.UpdateCampaignHandler)

			r.Post("/account/redeem", h.RedeemHandler)
			r.Get("/account/campaign-participation/{accountId}", h.CampaignParticipationHandler)
		})
	})

	return r
}
