package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all cache routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cache", func(r chi.Router) {
		r.Get("/config", h.HandleGetConfig)
		r.Patch("/config", h.HandleUpdateConfig)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Delete("/", h.HandleInvalidateUser)
			r.Get("/symbols", h.HandleGetSymbols)
			r.Get("/statistics", h.HandleGetStatistics)
			r.Post("/preload", h.HandlePreload)
			r.Post("/refresh", h.HandleRefresh)

			r.Get("/records/{symbol}", h.HandleGetRecord)
			r.Delete("/records/{symbol}", h.HandleInvalidateRecord)
			r.Get("/records/{symbol}/cached", h.HandleIsCached)
		})
	})
}
