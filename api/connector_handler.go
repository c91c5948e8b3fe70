package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/metadata-catalog/errs"
	"github.com/rpupo63/metadata-catalog/services"
)

type connectorHandler struct {
	responder Responder
	logger    zerolog.Logger
	ingestor  *services.Ingestor
}

func newConnectorHandler(ingestor *services.Ingestor) connectorHandler {
	logger := log.With().Str("handlerName", "connectorHandler").Logger()
	return connectorHandler{
		responder: NewResponder(logger),
		logger:    logger,
		ingestor:  ingestor,
	}
}

// getAllConnectors lists the configured connectors
// @Summary List connectors
// @Produce json
// @Success 200 {array} ConnectorResponse
// @Router /connectors [get]
func (h connectorHandler) getAllConnectors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []ConnectorResponse{}
		if h.ingestor != nil {
			for _, c := range h.ingestor.Connectors().All() {
				out = append(out, ConnectorResponse{Platform: c.Platform(), Resource: c.Resource()})
			}
		}
		h.responder.WriteJSON(w, out)
	}
}

// pullRecord retrieves one record from a platform and stores it in the catalog
// @Summary Pull a record from a platform
// @Produce json
// @Param platform path string true "Platform name"
// @Param resource path string true "Resource name"
// @Param identifier path string true "Identifier of the record on the platform"
// @Success 200 {object} services.PullResult
// @Failure 404 {object} ErrorResponse "No such connector or record"
// @Failure 502 {object} ErrorResponse "The platform failed to supply the record"
// @Router /connectors/{platform}/{resource}/{identifier} [post]
func (h connectorHandler) pullRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform := chi.URLParam(r, "platform")
		resource := chi.URLParam(r, "resource")
		identifier := chi.URLParam(r, "identifier")

		if h.ingestor == nil {
			h.responder.WriteError(w, errs.NewUnknownConnectorError(platform, resource))
			return
		}

		result, err := h.ingestor.Pull(r.Context(), platform, resource, identifier)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, result)
	}
}
