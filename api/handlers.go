package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/services"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(db *database.Database, ingestor *services.Ingestor, defaultLimit int, startupTime time.Time) *routeHandlers {
	handlers := &routeHandlers{
		platformHandler:  newPlatformHandler(db),
		connectorHandler: newConnectorHandler(ingestor),
		healthHandler:    newHealthHandler(startupTime),
	}
	for _, store := range db.Stores() {
		handlers.resourceHandlers = append(handlers.resourceHandlers, newResourceHandler(store, defaultLimit))
	}
	return handlers
}

type healthHandler struct {
	responder   Responder
	startupTime time.Time
}

func newHealthHandler(startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()
	return healthHandler{
		responder:   NewResponder(logger),
		startupTime: startupTime,
	}
}

func (h healthHandler) getHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, HealthResponse{
			Status:      "ok",
			StartupTime: h.startupTime.UTC().Format(time.RFC3339),
			Uptime:      time.Since(h.startupTime).Round(time.Second).String(),
		})
	}
}
