package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType distinguishes shipped goods from downloads.
type ProductType string

const (
	ProductPhysical ProductType = "physical"
	ProductDigital  ProductType = "digital"
)

// Image is a hosted product asset.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Images      []Image         `json:"images"`
	Type        ProductType     `json:"type"`
	Stock       *int            `json:"stock,omitempty"`
	File        *Image          `json:"file,omitempty"`
	Sizes       []string        `json:"sizes,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return invalidf("product id is empty")
	}
	if strings.TrimSpace(p.Title) == "" {
		return invalidf("product %s has no title", p.ID)
	}
	if p.Price.IsNegative() {
		return invalidf("product %s has negative price %s", p.ID, p.Price)
	}
	switch p.Type {
	case "", ProductPhysical, ProductDigital:
	default:
		return invalidf("product %s has unknown type %q", p.ID, p.Type)
	}
	return nil
}

// InStock reports whether the product can be added to a cart.
// Digital products and products without stock tracking are always available.
func (p *Product) InStock() bool {
	if p.Type == ProductDigital || p.Stock == nil {
		return true
	}
	return *p.Stock > 0
}

// AcceptsVariant reports whether size and color are valid choices for p.
// An empty choice is only valid when the product offers no options.
func (p *Product) AcceptsVariant(size, color string) bool {
	return acceptsOption(p.Sizes, size) && acceptsOption(p.Colors, color)
}

func acceptsOption(options []string, choice string) bool {
	if len(options) == 0 {
		return choice == ""
	}
	return slices.Contains(options, choice)
}

// Ref returns the cart-facing projection of the product.
func (p *Product) Ref() ProductRef {
	return ProductRef{
		ID:     p.ID,
		Title:  p.Title,
		Price:  p.Price,
		Images: slices.Clone(p.Images),
	}
}
