package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/errs"
)

const maxBodySize = 1 << 20

// TotalCountHeader carries the number of stored resources on list responses.
const TotalCountHeader = "X-Total-Count"

// resourceHandler serves one resource type from its Store.
type resourceHandler struct {
	responder    Responder
	logger       zerolog.Logger
	store        database.Store
	defaultLimit int
}

func newResourceHandler(store database.Store, defaultLimit int) resourceHandler {
	logger := log.With().
		Str("handlerName", "resourceHandler").
		Str("resource", store.Descriptor().Name).
		Logger()

	return resourceHandler{
		responder:    NewResponder(logger),
		logger:       logger,
		store:        store,
		defaultLimit: defaultLimit,
	}
}

// basePath is where the resource is mounted, e.g. /datasets/v0
func (h resourceHandler) basePath() string {
	return "/" + h.store.Descriptor().Plural + "/v0"
}

// listResources retrieves a page of resources
// @Summary List resources
// @Description Retrieves resources ordered by identifier. The total number of resources is sent in X-Total-Count.
// @Produce json
// @Param offset query int false "Number of resources to skip"
// @Param limit query int false "Maximum number of resources to return"
// @Success 200 {array} object "Resources in their read shape"
// @Failure 422 {object} ErrorResponse "Invalid offset or limit"
// @Router /{plural}/v0 [get]
func (h resourceHandler) listResources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		limit, err := queryInt(r, "limit", h.defaultLimit)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		page, err := h.store.Page(r.Context(), offset, limit)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		total, err := h.store.Count(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		w.Header().Set(TotalCountHeader, strconv.FormatInt(total, 10))
		h.responder.WriteJSON(w, page)
	}
}

// getResource retrieves a single resource
// @Summary Get resource
// @Produce json
// @Param identifier path int true "Resource identifier"
// @Success 200 {object} object "The resource in its read shape"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Router /{plural}/v0/{identifier} [get]
func (h resourceHandler) getResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier, err := pathIdentifier(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		resource, err := h.store.Get(r.Context(), identifier)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, resource)
	}
}

// createResource stores a new resource
// @Summary Create resource
// @Accept json
// @Produce json
// @Success 200 {object} IdentifierResponse "Identifier of the new resource"
// @Failure 409 {object} ErrorResponse "Same platform and platform_identifier as an existing resource"
// @Failure 422 {object} ErrorResponse "Validation error"
// @Router /{plural}/v0 [post]
func (h resourceHandler) createResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		identifier, err := h.store.CreateJSON(r.Context(), body)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Uint("identifier", identifier).Msg("Created resource")
		h.responder.WriteJSON(w, IdentifierResponse{Identifier: identifier})
	}
}

// updateResource replaces a resource
// @Summary Update resource
// @Description Replaces every field and relationship of the resource.
// @Accept json
// @Produce json
// @Param identifier path int true "Resource identifier"
// @Success 200 {object} object "The updated resource in its read shape"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Router /{plural}/v0/{identifier} [put]
func (h resourceHandler) updateResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier, err := pathIdentifier(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		resource, err := h.store.UpdateJSON(r.Context(), identifier, body)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, resource)
	}
}

// deleteResource removes a resource
// @Summary Delete resource
// @Param identifier path int true "Resource identifier"
// @Success 204
// @Failure 404 {object} ErrorResponse "Not Found"
// @Failure 409 {object} ErrorResponse "Still referenced by other resources"
// @Router /{plural}/v0/{identifier} [delete]
func (h resourceHandler) deleteResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier, err := pathIdentifier(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.store.Delete(r.Context(), identifier); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Uint("identifier", identifier).Msg("Deleted resource")
		w.WriteHeader(http.StatusNoContent)
	}
}

// getSchema describes the create and read shapes
// @Summary Resource schema
// @Produce json
// @Success 200 {object} SchemaResponse
// @Router /{plural}/v0/schema [get]
func (h resourceHandler) getSchema() http.HandlerFunc {
	descriptor := h.store.Descriptor()
	response := SchemaResponse{
		Resource: descriptor.Name,
		Plural:   descriptor.Plural,
		Create:   h.store.CreateFields(),
		Read:     h.store.ReadFields(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, response)
	}
}

func pathIdentifier(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "identifier")
	identifier, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || identifier == 0 {
		return 0, errs.NewInvalidFieldError("identifier", "must be a positive integer")
	}
	return uint(identifier), nil
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewInvalidFieldError(key, "must be an integer")
	}
	return value, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.NewApiErr(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return nil, errs.NewMalformedPayloadError("request", err)
	}
	return body, nil
}
