package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// RegisterRoutes mounts the flow and admin endpoints. adminAuth guards
// the admin surface; passing nil leaves it open (tests, trusted
// internal deployments).
func (h *Handle) RegisterRoutes(router chi.Router, adminAuth *jwtauth.JWTAuth) {
	router.Route("/external", func(r chi.Router) {
		r.Get("/flow-error", h.FlowError)
		r.Get("/{type}/start", h.Start)
		r.Get("/{type}/callback", h.Callback)
	})

	router.Route("/admin", func(r chi.Router) {
		if adminAuth != nil {
			r.Use(jwtauth.Verifier(adminAuth))
			r.Use(jwtauth.Authenticator(adminAuth))
		}

		r.Get("/providers/{type}", h.GetProvider)
		r.Put("/providers/{type}", h.PutProvider)
		r.Get("/customization", h.GetCustomization)
		r.Put("/customization", h.PutCustomization)
		r.Post("/ops", h.Ops)

		r.Route("/registrations", func(r chi.Router) {
			r.Get("/", h.ListRegistrations)
			r.Post("/", h.CreateRegistration)
			r.Delete("/", h.WipeRegistrations)
			r.Post("/import", h.ImportRegistrations)
			r.Get("/{id}", h.GetRegistration)
			r.Delete("/{id}", h.DeleteRegistration)
		})
	})
}
