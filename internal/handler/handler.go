// Package handler provides HTTP request handlers for the REST API.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
	"github.com/vyrodovalexey/storefront/internal/respond"
	"github.com/vyrodovalexey/storefront/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Products int    `json:"products"`
	Carts    int    `json:"carts"`
}

// Counter reports the size of a collection.
type Counter interface {
	Count() int
}

// HealthHandler serves liveness, readiness and ping endpoints.
type HealthHandler struct {
	products Counter
	carts    Counter
	responder
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(products, carts Counter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		products:  products,
		carts:     carts,
		responder: responder{logger: logger},
	}
}

// RegisterRoutes registers the health routes with the router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
}

// RegisterPing registers GET /ping.
func (h *HealthHandler) RegisterPing(router *mux.Router) {
	router.HandleFunc("/ping", h.Ping).Methods(http.MethodGet)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(HealthResponse{
		Status:  "healthy",
		Version: Version,
	}))
}

// Ready handles GET /ready requests.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{
		Status:   "ready",
		Products: h.products.Count(),
		Carts:    h.carts.Count(),
	}))
}

// Ping handles GET /ping requests.
func (h *HealthHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		h.logger.Debug("failed to write ping response", zap.Error(err))
	}
}

// responder holds the JSON writing helpers shared by the handlers.
type responder struct {
	logger *zap.Logger
}

// handleStoreError maps store errors to HTTP responses.
func (rs responder) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		rs.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrDuplicateCode):
		rs.logger.Warn("request rejected", zap.String("operation", operation), zap.Error(err))
		rs.writeError(w, http.StatusBadRequest, err.Error())
	default:
		rs.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		rs.writeError(w, http.StatusInternalServerError, respond.InternalErrorMessage)
	}
}

// writeJSON writes a JSON response with the given status code.
func (rs responder) writeJSON(w http.ResponseWriter, status int, data any) {
	respond.JSON(w, rs.logger, status, data)
}

func (rs responder) writeError(w http.ResponseWriter, status int, message string) {
	respond.Error(w, rs.logger, status, message)
}

// pathID reads a positive integer path variable.
func pathID(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// applyLimit truncates items to the limit query parameter. Missing,
// unparsable or negative limits are ignored.
func applyLimit[T any](r *http.Request, items []T) []T {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return items
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}
