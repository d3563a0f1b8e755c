// Package api - HTTP handlers for reference price resolution
// Handlers decode, delegate to the engine and encode. No pricing logic here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

// Resolver is the part of the engine the API needs
type Resolver interface {
	ResolveReferences(ctx context.Context, req types.ResolveRequest) (*types.ResolverOutput, error)
	ResolveGeo(ctx context.Context, zip, state string) *types.GeoResolution
	Ping(ctx context.Context) error
}

// maxBodyBytes bounds a resolve request body
const maxBodyBytes = 1 << 20

// Handler serves the resolution endpoints
type Handler struct {
	engine   Resolver
	logger   *zap.Logger
	version  string
	maxCodes int
}

// NewHandler creates a handler over engine
func NewHandler(engine Resolver, version string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:   engine,
		logger:   logger,
		version:  version,
		maxCodes: 500,
	}
}

// HandleResolve handles POST /v1/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req types.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeInvalidJSON, err.Error(), nil, http.StatusBadRequest)
		return
	}
	if len(req.Codes) > h.maxCodes {
		h.writeError(w, CodeInvalidRequest, "too many codes in one request", map[string]interface{}{
			"max": h.maxCodes, "got": len(req.Codes),
		}, http.StatusBadRequest)
		return
	}

	out, err := h.engine.ResolveReferences(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, out, http.StatusOK)
}

// HandleGeo handles GET /v1/geo?zip=&state=
func (h *Handler) HandleGeo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g := h.engine.ResolveGeo(r.Context(), q.Get("zip"), q.Get("state"))
	h.writeJSON(w, g, http.StatusOK)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Store:   "ok",
		Time:    time.Now().UTC(),
	}
	status := http.StatusOK
	if err := h.engine.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, resp, status)
}

// HandleVersion handles GET /version
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, VersionResponse{
		Version:    h.version,
		Engine:     "medicare-refprice",
		APIVersion: "v1",
	}, http.StatusOK)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	errors.As(err, &appErr)

	switch apperrors.TypeOf(err) {
	case apperrors.TypeInput:
		h.writeError(w, CodeInvalidRequest, appErr.Message, appErr.Context, http.StatusBadRequest)
	case apperrors.TypeStoreUnavailable:
		h.logger.Warn("reference store unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "5")
		h.writeError(w, CodeStoreUnavailable, appErr.Message, nil, http.StatusServiceUnavailable)
	default:
		h.logger.Error("resolve failed", zap.Error(err), zap.Bool("retryable", apperrors.Retryable(err)))
		h.writeError(w, CodeInternal, "internal error", nil, http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, ctx map[string]interface{}, status int) {
	h.writeJSON(w, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Context: ctx},
	}, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}
