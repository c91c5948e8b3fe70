package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rpupo63/metadata-catalog/database"
)

type platformHandler struct {
	responder Responder
	db        *database.Database
}

func newPlatformHandler(db *database.Database) platformHandler {
	logger := log.With().Str("handlerName", "platformHandler").Logger()
	return platformHandler{
		responder: NewResponder(logger),
		db:        db,
	}
}

// getAllPlatforms lists the platforms resources may be registered from
// @Summary List platforms
// @Produce json
// @Success 200 {array} models.Platform
// @Router /platforms [get]
func (h platformHandler) getAllPlatforms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platforms, err := h.db.Platforms(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, platforms)
	}
}
