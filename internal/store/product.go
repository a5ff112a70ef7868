package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// FileProductStore implements ProductStore over a JSON array file.
// The whole collection is rewritten after every mutation.
type FileProductStore struct {
	mu       sync.RWMutex
	path     string
	products []model.Product
	nextID   int
	logger   *zap.Logger
	opts     options
}

// NewFileProductStore loads the products stored at path. A missing or
// unreadable file yields an empty store.
func NewFileProductStore(path string, logger *zap.Logger, opts ...Option) *FileProductStore {
	s := &FileProductStore{
		path:   path,
		logger: logger,
		opts:   buildOptions(opts),
	}
	s.products = s.load()
	s.nextID = nextProductID(s.products)
	storeRecords.WithLabelValues(productStoreName).Set(float64(len(s.products)))

	return s
}

func (s *FileProductStore) load() []model.Product {
	var products []model.Product
	if err := readJSONFile(s.path, &products); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to load products, starting empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return []model.Product{}
	}
	if products == nil {
		products = []model.Product{}
	}
	return products
}

func nextProductID(products []model.Product) int {
	maxID := 0
	for _, p := range products {
		maxID = max(maxID, p.ID)
	}
	return maxID + 1
}

// List returns all products in insertion order.
func (s *FileProductStore) List(ctx context.Context) (products []model.Product, err error) {
	ctx, span := startOperation(ctx, productStoreName, "list")
	defer func() { endOperation(span, productStoreName, "list", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products = make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p.Clone())
	}

	return products, nil
}

// Get retrieves a product by its ID.
func (s *FileProductStore) Get(ctx context.Context, id int) (product *model.Product, err error) {
	ctx, span := startOperation(ctx, productStoreName, "get")
	defer func() { endOperation(span, productStoreName, "get", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &NotFoundError{Resource: model.ResourceProduct, ID: id}
	}

	p := s.products[idx].Clone()
	return &p, nil
}

// Create validates the input, assigns the next ID and persists the new product.
func (s *FileProductStore) Create(ctx context.Context, in *model.ProductInput) (product *model.Product, err error) {
	ctx, span := startOperation(ctx, productStoreName, "create")
	defer func() { endOperation(span, productStoreName, "create", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if in == nil {
		return nil, &ValidationError{message: "product cannot be nil"}
	}

	if err := in.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfCode(*in.Code, 0) >= 0 {
		return nil, &DuplicateCodeError{Code: *in.Code}
	}

	created := in.Product(s.nextID)
	next := make([]model.Product, len(s.products), len(s.products)+1)
	copy(next, s.products)
	next = append(next, created)

	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}

	s.products = next
	s.nextID++
	s.opts.publish(model.EventProductCreated, model.ResourceProduct, created.ID)

	out := created.Clone()
	return &out, nil
}

// Update merges the patch over an existing product and persists it.
// The product ID is never changed.
func (s *FileProductStore) Update(
	ctx context.Context,
	id int,
	patch *model.ProductPatch,
) (product *model.Product, err error) {
	ctx, span := startOperation(ctx, productStoreName, "update")
	defer func() { endOperation(span, productStoreName, "update", err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if patch == nil {
		return nil, &ValidationError{message: "product patch cannot be nil"}
	}

	if err := patch.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, &NotFoundError{Resource: model.ResourceProduct, ID: id}
	}

	if patch.Code != nil && s.indexOfCode(*patch.Code, id) >= 0 {
		return nil, &DuplicateCodeError{Code: *patch.Code}
	}

	merged := patch.Apply(s.products[idx])
	merged.ID = id

	next := make([]model.Product, len(s.products))
	copy(next, s.products)
	next[idx] = merged

	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}

	s.products = next
	s.opts.publish(model.EventProductUpdated, model.ResourceProduct, id)

	out := merged.Clone()
	return &out, nil
}

// Delete removes a product by its ID.
func (s *FileProductStore) Delete(ctx context.Context, id int) (err error) {
	ctx, span := startOperation(ctx, productStoreName, "delete")
	defer func() { endOperation(span, productStoreName, "delete", err) }()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return &NotFoundError{Resource: model.ResourceProduct, ID: id}
	}

	next := make([]model.Product, 0, len(s.products)-1)
	next = append(next, s.products[:idx]...)
	next = append(next, s.products[idx+1:]...)

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.products = next
	s.opts.publish(model.EventProductDeleted, model.ResourceProduct, id)

	return nil
}

// Count returns the number of stored products.
func (s *FileProductStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// persist rewrites the products file. Callers must hold the write lock.
func (s *FileProductStore) persist(ctx context.Context, products []model.Product) error {
	_, span := startOperation(ctx, productStoreName, "persist")
	start := time.Now()

	err := writeJSONFile(s.path, products)
	storePersistDuration.WithLabelValues(productStoreName).Observe(time.Since(start).Seconds())
	if err != nil {
		err = fmt.Errorf("%w: products: %w", ErrPersist, err)
		s.logger.Error("failed to persist products", zap.String("path", s.path), zap.Error(err))
	} else {
		storeRecords.WithLabelValues(productStoreName).Set(float64(len(products)))
	}
	endOperation(span, productStoreName, "persist", err)

	return err
}

func (s *FileProductStore) indexOf(id int) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// indexOfCode finds the product holding code, ignoring the product exceptID.
func (s *FileProductStore) indexOfCode(code string, exceptID int) int {
	for i, p := range s.products {
		if p.Code == code && p.ID != exceptID {
			return i
		}
	}
	return -1
}
