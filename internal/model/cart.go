package model

// CartItem is a line in a cart: a weak reference to a product and a quantity.
type CartItem struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// Cart is a shopping cart. Total is derived from the items and the current
// product prices; it is recomputed by the cart store after every mutation.
type Cart struct {
	ID    int        `json:"id"`
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	cp := c
	cp.Items = append([]CartItem{}, c.Items...)
	return cp
}

// ItemIndex returns the position of the line for productID, or -1.
func (c *Cart) ItemIndex(productID int) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItemInput is the request body for adding a product to a cart.
// A missing quantity means one unit.
type AddItemInput struct {
	Quantity *int `json:"quantity,omitempty"`
}

// QuantityOrDefault returns the requested quantity, or 1 when absent.
func (in *AddItemInput) QuantityOrDefault() int {
	if in.Quantity == nil {
		return 1
	}
	return *in.Quantity
}

// ValidateQuantity checks that a line quantity is positive.
func ValidateQuantity(quantity int) error {
	line := struct {
		Quantity int `json:"quantity" validate:"gt=0"`
	}{Quantity: quantity}
	return validate.Struct(line)
}
