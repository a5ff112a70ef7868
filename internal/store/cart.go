package store

import (
	"cmp"
	"context"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// cartRecord is the on-disk body of a cart; the ID is the map key. Total is
// written for readers of the file and ignored on load.
type cartRecord struct {
	Items []model.CartItem `json:"items"`
	Total float64          `json:"total"`
}

// cartRecords is the decoded carts file. Keys must be canonical positive
// integers and may appear only once.
type cartRecords map[int]cartRecord

func (r *cartRecords) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("carts must be a JSON object, got %v", tok)
	}

	out := make(cartRecords)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 || strconv.Itoa(id) != key {
			return fmt.Errorf("invalid cart id %q", key)
		}
		if _, dup := out[id]; dup {
			return fmt.Errorf("duplicate cart id %q", key)
		}

		var rec cartRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("cart %d: %w", id, err)
		}
		if err := checkItems(rec.Items); err != nil {
			return fmt.Errorf("cart %d: %w", id, err)
		}
		out[id] = rec
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

// checkItems rejects lines a cart could never have been left with.
func checkItems(items []model.CartItem) error {
	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("product %d has quantity %d", item.ProductID, item.Quantity)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("product %d appears on more than one line", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// FileCartStore implements CartStore over a JSON object file keyed by cart ID.
// Totals are derived from current product prices whenever a cart is read or
// changed.
type FileCartStore struct {
	mu       sync.RWMutex
	path     string
	carts    map[int]model.Cart
	nextID   int
	products ProductLookup
	logger   *zap.Logger
	opts     options
}

// NewFileCartStore loads the carts stored at path. A missing or unreadable
// file yields an empty store.
func NewFileCartStore(path string, products ProductLookup, logger *zap.Logger, opts ...Option) *FileCartStore {
	s := &FileCartStore{
		path:     path,
		products: products,
		logger:   logger,
		opts:     buildOptions(opts),
	}
	s.carts = s.load()
	for id, c := range s.carts {
		if total, err := s.total(context.Background(), c.Items); err == nil {
			c.Total = total
			s.carts[id] = c
		}
	}
	s.nextID = nextCartID(s.carts)
	storeRecords.WithLabelValues(cartStoreName).Set(float64(len(s.carts)))

	return s
}

func (s *FileCartStore) load() map[int]model.Cart {
	carts, err := s.decode()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to load carts, starting empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return make(map[int]model.Cart)
	}
	return carts
}

func (s *FileCartStore) decode() (map[int]model.Cart, error) {
	var records cartRecords
	if err := readJSONFile(s.path, &records); err != nil {
		return nil, err
	}

	carts := make(map[int]model.Cart, len(records))
	for id, rec := range records {
		items := rec.Items
		if items == nil {
			items = []model.CartItem{}
		}
		carts[id] = model.Cart{ID: id, Items: items}
	}

	return carts, nil
}

func nextCartID(carts map[int]model.Cart) int {
	maxID := 0
	for id := range carts {
		maxID = max(maxID, id)
	}
	return maxID + 1
}

// List returns all carts ordered by ID.
func (s *FileCartStore) List(ctx context.Context) (carts []model.Cart, err error) {
	ctx, span := startOperation(ctx, cartStoreName, "list")
	defer func() { endOperation(span, cartStoreName, "list", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	carts = make([]model.Cart, 0, len(s.carts))
	for _, c := range s.carts {
		out := c.Clone()
		if out.Total, err = s.total(ctx, out.Items); err != nil {
			return nil, err
		}
		carts = append(carts, out)
	}
	slices.SortFunc(carts, func(a, b model.Cart) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return carts, nil
}

// Get retrieves a cart by its ID.
func (s *FileCartStore) Get(ctx context.Context, id int) (cart *model.Cart, err error) {
	ctx, span := startOperation(ctx, cartStoreName, "get")
	defer func() { endOperation(span, cartStoreName, "get", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return nil, &NotFoundError{Resource: model.ResourceCart, ID: id}
	}

	out := c.Clone()
	if out.Total, err = s.total(ctx, out.Items); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create persists a new empty cart.
func (s *FileCartStore) Create(ctx context.Context) (cart *model.Cart, err error) {
	ctx, span := startOperation(ctx, cartStoreName, "create")
	defer func() { endOperation(span, cartStoreName, "create", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := model.Cart{ID: s.nextID, Items: []model.CartItem{}, Total: 0}
	if err := s.commit(ctx, created); err != nil {
		return nil, err
	}

	s.nextID++
	s.opts.publish(model.EventCartCreated, model.ResourceCart, created.ID)

	out := created.Clone()
	return &out, nil
}

// AddItem adds quantity units of a product to a cart. Adding a product that
// is already in the cart increases the quantity of its existing line.
func (s *FileCartStore) AddItem(ctx context.Context, cartID, productID, quantity int) (cart *model.Cart, err error) {
	ctx, span := startOperation(ctx, cartStoreName, "add_item")
	defer func() { endOperation(span, cartStoreName, "add_item", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("add item to cart: %w", err)
	}

	if err := model.ValidateQuantity(quantity); err != nil {
		return nil, newValidationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.carts[cartID]
	if !ok {
		return nil, &NotFoundError{Resource: model.ResourceCart, ID: cartID}
	}

	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, fmt.Errorf("add item to cart %d: %w", cartID, err)
	}

	updated := current.Clone()
	if idx := updated.ItemIndex(productID); idx >= 0 {
		if updated.Items[idx].Quantity > math.MaxInt-quantity {
			return nil, &ValidationError{
				fields:  map[string]string{"quantity": "would exceed the maximum line quantity"},
				message: fmt.Sprintf("quantity of product %d in cart %d would exceed the maximum", productID, cartID),
			}
		}
		updated.Items[idx].Quantity += quantity
	} else {
		updated.Items = append(updated.Items, model.CartItem{ProductID: productID, Quantity: quantity})
	}

	if updated.Total, err = s.total(ctx, updated.Items); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, err
	}

	s.opts.publish(model.EventCartUpdated, model.ResourceCart, cartID)

	out := updated.Clone()
	return &out, nil
}

// RemoveItem drops the line for a product from a cart. Removing a product
// that is not in the cart changes nothing and is not an error.
func (s *FileCartStore) RemoveItem(ctx context.Context, cartID, productID int) (cart *model.Cart, err error) {
	ctx, span := startOperation(ctx, cartStoreName, "remove_item")
	defer func() { endOperation(span, cartStoreName, "remove_item", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("remove item from cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.carts[cartID]
	if !ok {
		return nil, &NotFoundError{Resource: model.ResourceCart, ID: cartID}
	}

	idx := current.ItemIndex(productID)
	if idx < 0 {
		out := current.Clone()
		if out.Total, err = s.total(ctx, out.Items); err != nil {
			return nil, err
		}
		return &out, nil
	}

	updated := current.Clone()
	updated.Items = slices.Delete(updated.Items, idx, idx+1)

	if updated.Total, err = s.total(ctx, updated.Items); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, err
	}

	s.opts.publish(model.EventCartUpdated, model.ResourceCart, cartID)

	out := updated.Clone()
	return &out, nil
}

// Delete removes a cart by its ID.
func (s *FileCartStore) Delete(ctx context.Context, id int) (err error) {
	ctx, span := startOperation(ctx, cartStoreName, "delete")
	defer func() { endOperation(span, cartStoreName, "delete", err) }()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carts[id]; !ok {
		return &NotFoundError{Resource: model.ResourceCart, ID: id}
	}

	next := make(map[int]model.Cart, len(s.carts))
	for cid, c := range s.carts {
		if cid != id {
			next[cid] = c
		}
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.carts = next
	s.opts.publish(model.EventCartDeleted, model.ResourceCart, id)

	return nil
}

// Count returns the number of stored carts.
func (s *FileCartStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

// total sums quantity times current price over the items. Lines whose
// product no longer exists contribute nothing.
func (s *FileCartStore) total(ctx context.Context, items []model.CartItem) (float64, error) {
	sum := decimal.Zero
	for _, item := range items {
		p, err := s.products.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.logger.Debug("cart references a missing product",
					zap.Int("product_id", item.ProductID),
				)
				continue
			}
			return 0, fmt.Errorf("price product %d: %w", item.ProductID, err)
		}
		line := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}

	return sum.InexactFloat64(), nil
}

// commit persists the collection with c inserted or replaced, then swaps it
// in. Callers must hold the write lock.
func (s *FileCartStore) commit(ctx context.Context, c model.Cart) error {
	next := make(map[int]model.Cart, len(s.carts)+1)
	for id, existing := range s.carts {
		next[id] = existing
	}
	next[c.ID] = c

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.carts = next
	return nil
}

// persist rewrites the carts file. Callers must hold the write lock.
func (s *FileCartStore) persist(ctx context.Context, carts map[int]model.Cart) error {
	_, span := startOperation(ctx, cartStoreName, "persist")
	start := time.Now()

	records := make(map[string]cartRecord, len(carts))
	for id, c := range carts {
		records[strconv.Itoa(id)] = cartRecord{Items: c.Items, Total: c.Total}
	}

	err := writeJSONFile(s.path, records)
	storePersistDuration.WithLabelValues(cartStoreName).Observe(time.Since(start).Seconds())
	if err != nil {
		err = fmt.Errorf("%w: carts: %w", ErrPersist, err)
		s.logger.Error("failed to persist carts", zap.String("path", s.path), zap.Error(err))
	} else {
		storeRecords.WithLabelValues(cartStoreName).Set(float64(len(carts)))
	}
	endOperation(span, cartStoreName, "persist", err)

	return err
}
