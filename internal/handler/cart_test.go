package handler

import (
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/storefront/internal/model"
)

func TestCartHandler_Lifecycle(t *testing.T) {
	// Arrange
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/products", productBody("P1", 10)).Code)

	// Act & Assert: create
	rr := api.do(t, http.MethodPost, "/api/v1/carts", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	cart := decodeData[model.Cart](t, rr)
	assert.Equal(t, model.Cart{ID: 1, Items: []model.CartItem{}, Total: 0}, cart)

	// add with empty body adds a single unit
	rr = api.do(t, http.MethodPost, "/api/v1/carts/1/products/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	line := decodeData[model.CartLineResponse](t, rr)
	assert.Equal(t, "product 1 added to cart 1", line.Message)
	cart = *line.Cart
	assert.Equal(t, []model.CartItem{{ProductID: 1, Quantity: 1}}, cart.Items)
	assert.InDelta(t, 10.0, cart.Total, 1e-9)

	// explicit quantity accumulates on the same line
	rr = api.do(t, http.MethodPost, "/api/v1/carts/1/products/1", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	cart = *decodeData[model.CartLineResponse](t, rr).Cart
	assert.Equal(t, []model.CartItem{{ProductID: 1, Quantity: 3}}, cart.Items)
	assert.InDelta(t, 30.0, cart.Total, 1e-9)

	// get
	rr = api.do(t, http.MethodGet, "/api/v1/carts/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, cart, decodeData[model.Cart](t, rr))

	// remove line
	rr = api.do(t, http.MethodDelete, "/api/v1/carts/1/products/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	line = decodeData[model.CartLineResponse](t, rr)
	assert.Equal(t, "product 1 removed from cart 1", line.Message)
	cart = *line.Cart
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	// removing a missing line is a no-op
	rr = api.do(t, http.MethodDelete, "/api/v1/carts/1/products/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	// delete cart
	rr = api.do(t, http.MethodDelete, "/api/v1/carts/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cart deleted", decodeData[model.MessageResponse](t, rr).Message)

	rr = api.do(t, http.MethodGet, "/api/v1/carts/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "cart with id 1 not found", decodeError(t, rr).Message)
}

func TestCartHandler_AddItemErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "unknown cart",
			path:       "/api/v1/carts/9/products/1",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "cart with id 9 not found",
		},
		{
			name:       "unknown product",
			path:       "/api/v1/carts/1/products/9",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "add item to cart 1: product with id 9 not found",
		},
		{
			name:       "zero quantity",
			path:       "/api/v1/carts/1/products/1",
			body:       `{"quantity":0}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "field 'quantity' must be greater than 0",
		},
		{
			name:       "negative quantity",
			path:       "/api/v1/carts/1/products/1",
			body:       `{"quantity":-4}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			path:       "/api/v1/carts/1/products/1",
			body:       `{"quantity":"many"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid request body",
		},
		{
			name:       "bad cart id",
			path:       "/api/v1/carts/x/products/1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad product id",
			path:       "/api/v1/carts/1/products/0",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			api := newTestAPI(t)
			api.do(t, http.MethodPost, "/api/v1/products", productBody("P1", 10))
			api.do(t, http.MethodPost, "/api/v1/carts", "")

			// Act
			rr := api.do(t, http.MethodPost, tt.path, tt.body)

			// Assert
			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decodeError(t, rr)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}

			cart, err := api.carts.Get(t.Context(), 1)
			require.NoError(t, err)
			assert.Empty(t, cart.Items)
		})
	}
}

func TestCartHandler_RemoveItemUnknownCart(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodDelete, "/api/v1/carts/3/products/1", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_ListOrderedWithLimit(t *testing.T) {
	api := newTestAPI(t)
	for range 3 {
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/carts", "").Code)
	}

	all := decodeData[[]model.Cart](t, api.do(t, http.MethodGet, "/api/v1/carts", ""))
	limited := decodeData[[]model.Cart](t, api.do(t, http.MethodGet, "/api/v1/carts?limit=1", ""))

	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, i+1, c.ID)
	}
	require.Len(t, limited, 1)
	assert.Equal(t, 1, limited[0].ID)
}

func TestCartHandler_DeleteUnknown(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodDelete, "/api/v1/carts/5", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_Get_TotalFollowsPrice(t *testing.T) {
	// Arrange
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/products", productBody("P1", 10)).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/carts", "").Code)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/carts/1/products/1", `{"quantity":2}`).Code)

	// Act
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPut, "/api/v1/products/1", `{"price":25}`).Code)
	rr := api.do(t, http.MethodGet, "/api/v1/carts/1", "")

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	assert.InDelta(t, 50.0, decodeData[model.Cart](t, rr).Total, 1e-9)

	rr = api.do(t, http.MethodGet, "/api/v1/carts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	carts := decodeData[[]model.Cart](t, rr)
	require.Len(t, carts, 1)
	assert.InDelta(t, 50.0, carts[0].Total, 1e-9)
}

func TestCartHandler_AddItem_QuantityOverflow(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/products", productBody("P1", 1)).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/carts", "").Code)
	body := fmt.Sprintf(`{"quantity":%d}`, math.MaxInt)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/carts/1/products/1", body).Code)

	rr := api.do(t, http.MethodPost, "/api/v1/carts/1/products/1", "")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Message, "would exceed the maximum")
}
