package api

import "github.com/rpupo63/metadata-catalog/catalog"

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	resourceHandlers []resourceHandler
	platformHandler  platformHandler
	connectorHandler connectorHandler
	healthHandler    healthHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"name"`
	Details string `json:"details,omitempty" example:"Additional error details"`
	Cause   string `json:"cause,omitempty" example:"Underlying error cause"`
}

// IdentifierResponse is returned by a successful create
type IdentifierResponse struct {
	Identifier uint `json:"identifier" example:"1"`
}

// SchemaResponse describes the create and read contracts of a resource
type SchemaResponse struct {
	Resource string              `json:"resource" example:"dataset"`
	Plural   string              `json:"plural" example:"datasets"`
	Create   []catalog.FieldSpec `json:"create"`
	Read     []catalog.FieldSpec `json:"read"`
}

// ConnectorResponse names a configured connector
type ConnectorResponse struct {
	Platform string `json:"platform" example:"example"`
	Resource string `json:"resource" example:"dataset"`
}

// HealthResponse reports the liveness of the service
type HealthResponse struct {
	Status      string `json:"status" example:"ok"`
	StartupTime string `json:"startup_time"`
	Uptime      string `json:"uptime"`
}
