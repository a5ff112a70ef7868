package store

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

type cartFixture struct {
	products  *FileProductStore
	carts     *FileCartStore
	cartsPath string
	pub       *recordingPublisher
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	dir := t.TempDir()
	pub := &recordingPublisher{}
	products := NewFileProductStore(filepath.Join(dir, "products.json"), zap.NewNop())
	cartsPath := filepath.Join(dir, "carts.json")
	carts := NewFileCartStore(cartsPath, products, zap.NewNop(), WithPublisher(pub))
	return &cartFixture{products: products, carts: carts, cartsPath: cartsPath, pub: pub}
}

func (f *cartFixture) addProduct(t *testing.T, code string, price float64) *model.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), productInput(code, price))
	require.NoError(t, err)
	return p
}

func TestFileCartStore_Create(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()

	// Act
	first, err := f.carts.Create(ctx)
	require.NoError(t, err)
	second, err := f.carts.Create(ctx)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.NotNil(t, first.Items)
	assert.Empty(t, first.Items)
	assert.Zero(t, first.Total)

	raw, err := os.ReadFile(f.cartsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"items":[],"total":0},"2":{"items":[],"total":0}}`, string(raw))
	assert.Equal(t, []string{model.EventCartCreated, model.EventCartCreated}, f.pub.types())
}

func TestFileCartStore_Scenario(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 10)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cart.ID)

	// Act & Assert
	cart, err = f.carts.AddItem(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cart.Total)

	cart, err = f.carts.AddItem(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "repeated product accumulates on one line")
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 30.0, cart.Total)

	cart, err = f.carts.RemoveItem(ctx, cart.ID, product.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	got, err := f.carts.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, *cart, *got)
}

func TestFileCartStore_AddItem_MultipleProducts(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "a", 0.1)
	b := f.addProduct(t, "b", 2.35)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, cart.ID, a.ID, 3)
	require.NoError(t, err)
	cart, err = f.carts.AddItem(ctx, cart.ID, b.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, model.CartItem{ProductID: a.ID, Quantity: 3}, cart.Items[0])
	assert.Equal(t, model.CartItem{ProductID: b.ID, Quantity: 2}, cart.Items[1])
	assert.Equal(t, 5.0, cart.Total, "0.1*3 + 2.35*2 computed without float drift")
}

func TestFileCartStore_AddItem_UsesCurrentPrice(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "a", 10)
	b := f.addProduct(t, "b", 1)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)

	_, err = f.products.Update(ctx, a.ID, &model.ProductPatch{Price: ptr(15.0)})
	require.NoError(t, err)
	cart, err = f.carts.AddItem(ctx, cart.ID, b.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, 16.0, cart.Total)
}

func TestFileCartStore_AddItem_Errors(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 10)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)

	tests := []struct {
		name      string
		cartID    int
		productID int
		quantity  int
		wantErr   error
		resource  string
	}{
		{name: "unknown cart", cartID: 9, productID: product.ID, quantity: 1, wantErr: ErrNotFound, resource: model.ResourceCart},
		{name: "unknown product", cartID: cart.ID, productID: 9, quantity: 1, wantErr: ErrNotFound, resource: model.ResourceProduct},
		{name: "zero quantity", cartID: cart.ID, productID: product.ID, quantity: 0, wantErr: ErrValidation},
		{name: "negative quantity", cartID: cart.ID, productID: product.ID, quantity: -1, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got, err := f.carts.AddItem(ctx, tt.cartID, tt.productID, tt.quantity)

			// Assert
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
			if tt.resource != "" {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, tt.resource, nf.Resource)
			}

			unchanged, err := f.carts.Get(ctx, cart.ID)
			require.NoError(t, err)
			assert.Empty(t, unchanged.Items)
		})
	}
}

func TestFileCartStore_RemoveItem_MissingLineIsNoOp(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 10)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)
	eventsBefore := len(f.pub.types())
	require.NoError(t, os.Remove(f.cartsPath))

	// Act
	got, err := f.carts.RemoveItem(ctx, cart.ID, 777)

	// Assert
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 20.0, got.Total)
	assert.NoFileExists(t, f.cartsPath, "a no-op removal must not write")
	assert.Len(t, f.pub.types(), eventsBefore, "a no-op removal must not publish")
}

func TestFileCartStore_RemoveItem_UnknownCart(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.carts.RemoveItem(context.Background(), 5, 1)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileCartStore_DeletedProductContributesNothing(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "a", 10)
	b := f.addProduct(t, "b", 4)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, b.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.products.Delete(ctx, a.ID))
	cart, err = f.carts.AddItem(ctx, cart.ID, b.ID, 1)
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2, "lines are weak references and are kept")
	assert.Equal(t, 8.0, cart.Total)
}

func TestFileCartStore_Get_ReflectsPriceChange(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 10)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	cart, err = f.carts.AddItem(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 20.0, cart.Total)

	// Act
	_, err = f.products.Update(ctx, product.ID, &model.ProductPatch{Price: ptr(25.0)})
	require.NoError(t, err)
	got, err := f.carts.Get(ctx, cart.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Total)

	listed, err := f.carts.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 50.0, listed[0].Total)
}

func TestFileCartStore_Get_ReflectsDeletedProduct(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "a", 10)
	b := f.addProduct(t, "b", 4)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, b.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.products.Delete(ctx, a.ID))
	got, err := f.carts.Get(ctx, cart.ID)

	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, 8.0, got.Total)
}

func TestFileCartStore_RemoveItem_MissingLineReflectsPriceChange(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 3)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = f.products.Update(ctx, product.ID, &model.ProductPatch{Price: ptr(7.0)})
	require.NoError(t, err)

	got, err := f.carts.RemoveItem(ctx, cart.ID, 99)

	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Total)
}

func TestFileCartStore_AddItem_QuantityOverflow(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 1)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, product.ID, math.MaxInt-1)
	require.NoError(t, err)
	f.pub.reset()

	// Act
	_, err = f.carts.AddItem(ctx, cart.ID, product.ID, 2)

	// Assert
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "quantity")
	assert.Empty(t, f.pub.types(), "rejected add must not publish")

	got, err := f.carts.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.CartItem{{ProductID: product.ID, Quantity: math.MaxInt - 1}}, got.Items)

	_, err = f.carts.AddItem(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err, "reaching the maximum exactly is allowed")
}

func TestFileCartStore_List(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := f.carts.Create(ctx)
		require.NoError(t, err)
	}

	carts, err := f.carts.List(ctx)

	require.NoError(t, err)
	require.Len(t, carts, 12)
	for i, c := range carts {
		assert.Equal(t, i+1, c.ID, "carts are ordered by id")
	}
}

func TestFileCartStore_Delete(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.carts.Delete(ctx, cart.ID))

	assert.ErrorIs(t, f.carts.Delete(ctx, cart.ID), ErrNotFound)
	_, err = f.carts.Get(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.carts.Count())
	assert.Equal(t, model.EventCartDeleted, f.pub.types()[1])
}

func TestNewFileCartStore_LoadsExisting(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	products := NewFileProductStore(filepath.Join(dir, "products.json"), zap.NewNop())
	path := filepath.Join(dir, "carts.json")
	data := `{
  "3": {"items": [{"productId": 1, "quantity": 2}], "total": -999},
  "7": {"items": null, "total": 0}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	_, err := products.Create(context.Background(), productInput("c1", 10))
	require.NoError(t, err)

	// Act
	s := NewFileCartStore(path, products, zap.NewNop())

	// Assert
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 8, s.nextID)

	cart, err := s.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []model.CartItem{{ProductID: 1, Quantity: 2}}, cart.Items)
	assert.Equal(t, 20.0, cart.Total, "stored totals are recomputed, not trusted")

	empty, err := s.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)

	created, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)
}

func TestNewFileCartStore_InvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "array form", data: `[{"id":1,"items":[],"total":0}]`},
		{name: "non numeric key", data: `{"abc":{"items":[],"total":0}}`},
		{name: "non positive key", data: `{"0":{"items":[],"total":0}}`},
		{name: "garbage", data: `not json`},
		{name: "leading zero key", data: `{"01":{"items":[],"total":0}}`},
		{name: "colliding keys", data: `{"1":{"items":[],"total":0},"01":{"items":[],"total":0}}`},
		{name: "repeated key", data: `{"1":{"items":[],"total":0},"1":{"items":[],"total":0}}`},
		{name: "signed key", data: `{"+2":{"items":[],"total":0}}`},
		{name: "zero quantity line", data: `{"1":{"items":[{"productId":1,"quantity":0}],"total":0}}`},
		{name: "negative quantity line", data: `{"1":{"items":[{"productId":1,"quantity":-4}],"total":0}}`},
		{name: "repeated product line", data: `{"1":{"items":[{"productId":1,"quantity":1},{"productId":1,"quantity":2}],"total":0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "carts.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))
			products := NewFileProductStore(filepath.Join(dir, "products.json"), zap.NewNop())

			s := NewFileCartStore(path, products, zap.NewNop())

			assert.Equal(t, 0, s.Count())
			assert.Equal(t, 1, s.nextID)
		})
	}
}

func TestFileCartStore_ConcurrentAddItem(t *testing.T) {
	// Arrange
	f := newCartFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "c1", 1.5)
	cart, err := f.carts.Create(ctx)
	require.NoError(t, err)
	const workers = 30

	// Act
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.carts.AddItem(ctx, cart.ID, product.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Assert
	got, err := f.carts.Get(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, workers, got.Items[0].Quantity)
	assert.Equal(t, 45.0, got.Total)

	var onDisk map[string]cartRecord
	raw, err := os.ReadFile(f.cartsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, workers, onDisk["1"].Items[0].Quantity, "no lost update on disk")
}
