package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
	"github.com/vyrodovalexey/storefront/internal/store"
)

// ProductHandler handles REST API requests for products.
type ProductHandler struct {
	store store.ProductStore
	responder
}

// NewProductHandler creates a new ProductHandler instance.
func NewProductHandler(s store.ProductStore, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		store:     s,
		responder: responder{logger: logger},
	}
}

// RegisterRoutes registers the product routes with the router.
func (h *ProductHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/products", h.ListProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/products", h.CreateProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/products/{id}", h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)
}

// ListProducts handles GET /api/v1/products requests.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list products")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(applyLimit(r, products)))
}

// GetProduct handles GET /api/v1/products/{id} requests.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(product))
}

// CreateProduct handles POST /api/v1/products requests.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input model.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.Create(r.Context(), &input)
	if err != nil {
		h.handleStoreError(w, err, "create product")
		return
	}

	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(product))
}

// UpdateProduct handles PUT /api/v1/products/{id} requests.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch model.ProductPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.Update(r.Context(), id, &patch)
	if err != nil {
		h.handleStoreError(w, err, "update product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(product))
}

// DeleteProduct handles DELETE /api/v1/products/{id} requests.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, "delete product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.MessageResponse{
		Message: "product deleted",
	}))
}
