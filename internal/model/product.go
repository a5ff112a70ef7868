// Package model defines data structures used throughout the application.
package model

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Product is a catalog entry persisted in the products file.
type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Code        string   `json:"code"`
	Stock       int      `json:"stock"`
	Status      bool     `json:"status"`
	Category    string   `json:"category,omitempty"`
	Thumbnails  []string `json:"thumbnails"`
}

// UnmarshalJSON decodes a product, defaulting status to true and
// thumbnails to an empty list when the record omits them.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	decoded := plain{Status: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Thumbnails == nil {
		decoded.Thumbnails = []string{}
	}
	*p = Product(decoded)
	return nil
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	c := p
	c.Thumbnails = append([]string{}, p.Thumbnails...)
	return c
}

// ProductInput carries the fields of a product to be created.
// Pointer fields distinguish an absent field from a zero value.
type ProductInput struct {
	Title       *string  `json:"title" validate:"required,min=1"`
	Description *string  `json:"description" validate:"required,min=1"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Image       *string  `json:"image" validate:"required,min=1"`
	Code        *string  `json:"code" validate:"required,min=1"`
	Stock       *int     `json:"stock" validate:"required,gte=0"`
	Status      *bool    `json:"status,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Thumbnails  []string `json:"thumbnails,omitempty" validate:"omitempty,dive,min=1"`
}

// Validate checks that every required field is present and well-formed.
func (in *ProductInput) Validate() error {
	return validate.Struct(in)
}

// Product builds the product record for the given identifier.
// The input must have passed Validate.
func (in *ProductInput) Product(id int) Product {
	p := Product{
		ID:          id,
		Title:       *in.Title,
		Description: *in.Description,
		Price:       *in.Price,
		Image:       *in.Image,
		Code:        *in.Code,
		Stock:       *in.Stock,
		Status:      true,
		Thumbnails:  append([]string{}, in.Thumbnails...),
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	return p
}

// ProductPatch carries a partial update. Only non-nil fields are applied.
// It has no identifier field, so an update can never change a product's ID.
type ProductPatch struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string   `json:"description,omitempty" validate:"omitempty,min=1"`
	Price       *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Image       *string   `json:"image,omitempty" validate:"omitempty,min=1"`
	Code        *string   `json:"code,omitempty" validate:"omitempty,min=1"`
	Stock       *int      `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Status      *bool     `json:"status,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Thumbnails  *[]string `json:"thumbnails,omitempty" validate:"omitempty,dive,min=1"`
}

// Validate checks the fields present in the patch.
func (pp *ProductPatch) Validate() error {
	return validate.Struct(pp)
}

// Apply shallow-merges the patch over p and returns the result.
func (pp *ProductPatch) Apply(p Product) Product {
	merged := p.Clone()
	if pp.Title != nil {
		merged.Title = *pp.Title
	}
	if pp.Description != nil {
		merged.Description = *pp.Description
	}
	if pp.Price != nil {
		merged.Price = *pp.Price
	}
	if pp.Image != nil {
		merged.Image = *pp.Image
	}
	if pp.Code != nil {
		merged.Code = *pp.Code
	}
	if pp.Stock != nil {
		merged.Stock = *pp.Stock
	}
	if pp.Status != nil {
		merged.Status = *pp.Status
	}
	if pp.Category != nil {
		merged.Category = *pp.Category
	}
	if pp.Thumbnails != nil {
		merged.Thumbnails = append([]string{}, (*pp.Thumbnails)...)
	}
	return merged
}
