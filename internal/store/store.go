// Package store provides data storage interfaces and implementations.
package store

import (
	"context"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// ProductStore defines the operations on the product collection.
type ProductStore interface {
	// List returns all products in insertion order.
	List(ctx context.Context) ([]model.Product, error)

	// Get retrieves a product by its ID.
	Get(ctx context.Context, id int) (*model.Product, error)

	// Create validates the input, assigns the next ID and persists the new product.
	Create(ctx context.Context, in *model.ProductInput) (*model.Product, error)

	// Update merges the patch over an existing product and persists it.
	Update(ctx context.Context, id int, patch *model.ProductPatch) (*model.Product, error)

	// Delete removes a product by its ID.
	Delete(ctx context.Context, id int) error

	// Count returns the number of stored products.
	Count() int
}

// CartStore defines the operations on the cart collection.
type CartStore interface {
	// List returns all carts ordered by ID.
	List(ctx context.Context) ([]model.Cart, error)

	// Get retrieves a cart by its ID.
	Get(ctx context.Context, id int) (*model.Cart, error)

	// Create persists a new empty cart.
	Create(ctx context.Context) (*model.Cart, error)

	// AddItem adds quantity units of a product to a cart.
	AddItem(ctx context.Context, cartID, productID, quantity int) (*model.Cart, error)

	// RemoveItem drops the line for a product from a cart.
	RemoveItem(ctx context.Context, cartID, productID int) (*model.Cart, error)

	// Delete removes a cart by its ID.
	Delete(ctx context.Context, id int) error

	// Count returns the number of stored carts.
	Count() int
}

// ProductLookup is the read-only view of products the cart store depends on.
type ProductLookup interface {
	Get(ctx context.Context, id int) (*model.Product, error)
}

// Publisher receives change events after successful mutations.
type Publisher interface {
	Publish(ev model.Event)
}

// Option configures a file-backed store.
type Option func(*options)

type options struct {
	publisher Publisher
}

// WithPublisher makes the store publish change events to p.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(eventType, resource string, id int) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(model.NewEvent(eventType, resource, id))
}
