package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
	"github.com/vyrodovalexey/storefront/internal/store"
)

// CartHandler handles REST API requests for carts and their lines.
type CartHandler struct {
	store store.CartStore
	responder
}

// NewCartHandler creates a new CartHandler instance.
func NewCartHandler(s store.CartStore, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		store:     s,
		responder: responder{logger: logger},
	}
}

// RegisterRoutes registers the cart routes with the router.
func (h *CartHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/carts", h.ListCarts).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/carts", h.CreateCart).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/carts/{id}", h.GetCart).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/carts/{id}", h.DeleteCart).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/carts/{cid}/products/{pid}", h.AddItem).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/carts/{cid}/products/{pid}", h.RemoveItem).Methods(http.MethodDelete)
}

// ListCarts handles GET /api/v1/carts requests.
func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list carts")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(applyLimit(r, carts)))
}

// CreateCart handles POST /api/v1/carts requests.
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.store.Create(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "create cart")
		return
	}

	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(cart))
}

// GetCart handles GET /api/v1/carts/{id} requests.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get cart")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(cart))
}

// DeleteCart handles DELETE /api/v1/carts/{id} requests.
func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, "delete cart")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.MessageResponse{
		Message: "cart deleted",
	}))
}

// AddItem handles POST /api/v1/carts/{cid}/products/{pid} requests.
// An empty body adds a single unit. Unknown carts and products are client
// errors on this route and answer 400.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, productID, ok := h.lineIDs(w, r)
	if !ok {
		return
	}

	var input model.AddItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.store.AddItem(r.Context(), cartID, productID, input.QuantityOrDefault())
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.handleStoreError(w, err, "add cart item")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.CartLineResponse{
		Message: fmt.Sprintf("product %d added to cart %d", productID, cartID),
		Cart:    cart,
	}))
}

// RemoveItem handles DELETE /api/v1/carts/{cid}/products/{pid} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, productID, ok := h.lineIDs(w, r)
	if !ok {
		return
	}

	cart, err := h.store.RemoveItem(r.Context(), cartID, productID)
	if err != nil {
		h.handleStoreError(w, err, "remove cart item")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.CartLineResponse{
		Message: fmt.Sprintf("product %d removed from cart %d", productID, cartID),
		Cart:    cart,
	}))
}

func (h *CartHandler) lineIDs(w http.ResponseWriter, r *http.Request) (cartID, productID int, ok bool) {
	cartID, err := pathID(r, "cid")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	productID, err = pathID(r, "pid")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return cartID, productID, true
}
