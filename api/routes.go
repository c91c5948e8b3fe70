package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpupo63/metadata-catalog/errs"
)

// setupRoutes mounts every resource under /{plural}/v0. Reads are public; writes go through
// authentication and the write role check.
func setupRoutes(r chi.Router, handlers *routeHandlers, auth authMiddleware, gatherer prometheus.Gatherer) {
	r.Get("/health", handlers.healthHandler.getHealth())
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Get("/platforms", handlers.platformHandler.getAllPlatforms())
		r.Get("/connectors", handlers.connectorHandler.getAllConnectors())
		r.With(auth.authenticate, auth.authorize).
			Post("/connectors/{platform}/{resource}/{identifier}", handlers.connectorHandler.pullRecord())

		for _, h := range handlers.resourceHandlers {
			r.Route(h.basePath(), func(r chi.Router) {
				r.Get("/", h.listResources())
				r.Get("/schema", h.getSchema())
				r.Get("/{identifier}", h.getResource())

				r.Group(func(r chi.Router) {
					r.Use(auth.authenticate, auth.authorize)
					r.Post("/", h.createResource())
					r.Put("/{identifier}", h.updateResource())
					r.Delete("/{identifier}", h.deleteResource())
				})
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.healthHandler.responder.WriteError(w, errs.NewNotFound("route "+r.URL.Path))
	})
}
