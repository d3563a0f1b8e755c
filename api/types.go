// Package api - Wire types for the HTTP surface
// Response bodies for /v1/resolve and /v1/geo are the engine's own
// types; only envelopes the engine does not produce live here.
package api

import "time"

// ErrorDetail describes one rejected request
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Store   string    `json:"store"`
	Time    time.Time `json:"time"`
}

// VersionResponse is the body of GET /version
type VersionResponse struct {
	Version    string `json:"version"`
	Engine     string `json:"engine"`
	APIVersion string `json:"apiVersion"`
}

// Error codes returned to clients
const (
	CodeInvalidJSON      = "INVALID_JSON"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)
