package model

import "time"

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// CartLineResponse confirms a cart line change and carries the updated cart.
type CartLineResponse struct {
	Message string `json:"message"`
	Cart    *Cart  `json:"cart"`
}

// Event types published after a successful store mutation.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
	EventCartCreated    = "cart.created"
	EventCartUpdated    = "cart.updated"
	EventCartDeleted    = "cart.deleted"
)

// Event resources.
const (
	ResourceProduct = "product"
	ResourceCart    = "cart"
)

// Event describes a change to a stored record. It is also the message
// format pushed to WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	Resource  string    `json:"resource"`
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, resource string, id int) Event {
	return Event{
		Type:      eventType,
		Resource:  resource,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}
