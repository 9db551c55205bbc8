package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef is the product as embedded in a cart line.
type ProductRef struct {
	ID     string          `json:"_id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Images []Image         `json:"images,omitempty"`
}

// VariantKey identifies a cart line: a product plus its optional size and color.
type VariantKey struct {
	ProductID string
	Size      string
	Color     string
}

// CartItem is one line of the cart.
type CartItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	Size     string     `json:"size,omitempty"`
	Color    string     `json:"color,omitempty"`
}

// Key returns the variant identity of the line.
func (i CartItem) Key() VariantKey {
	return VariantKey{ProductID: i.Product.ID, Size: i.Size, Color: i.Color}
}

// LineTotal is unit price × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the server-owned shopping cart of one user.
type Cart struct {
	ID        string     `json:"_id"`
	UserRef   string     `json:"user"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks line quantities and that every variant appears once.
func (c *Cart) Validate() error {
	if c == nil {
		return invalidf("cart is missing")
	}
	seen := make(map[VariantKey]bool, len(c.Items))
	for i, item := range c.Items {
		if strings.TrimSpace(item.Product.ID) == "" {
			return invalidf("cart item %d has no product id", i)
		}
		if item.Quantity < 1 {
			return invalidf("cart item %s has quantity %d", item.Product.ID, item.Quantity)
		}
		if item.Product.Price.IsNegative() {
			return invalidf("cart item %s has negative price", item.Product.ID)
		}
		k := item.Key()
		if seen[k] {
			return invalidf("cart has duplicate rows for %s (size %q, color %q)", k.ProductID, k.Size, k.Color)
		}
		seen[k] = true
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Product.Images = slices.Clone(item.Product.Images)
		out.Items[i] = item
	}
	return &out
}

// Totals are the values derived from the cart lines.
type Totals struct {
	ItemCount int
	Subtotal  decimal.Decimal
}

// Totals sums quantities and line totals over the current lines.
// A nil cart has zero totals.
func (c *Cart) Totals() Totals {
	t := Totals{Subtotal: decimal.Zero}
	if c == nil {
		return t
	}
	for _, item := range c.Items {
		t.ItemCount += item.Quantity
		t.Subtotal = t.Subtotal.Add(item.LineTotal())
	}
	return t
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// Lines returns every line for productID, across variants.
func (c *Cart) Lines(productID string) []CartItem {
	if c == nil {
		return nil
	}
	var out []CartItem
	for _, item := range c.Items {
		if item.Product.ID == productID {
			out = append(out, item)
		}
	}
	return out
}

// WithoutProduct returns a copy of c with every line of productID removed.
func (c *Cart) WithoutProduct(productID string) *Cart {
	out := c.Clone()
	if out == nil {
		return nil
	}
	out.Items = slices.DeleteFunc(out.Items, func(item CartItem) bool {
		return item.Product.ID == productID
	})
	return out
}

// Emptied returns a copy of c with no lines.
func (c *Cart) Emptied() *Cart {
	out := c.Clone()
	if out == nil {
		return &Cart{Items: []CartItem{}}
	}
	out.Items = []CartItem{}
	return out
}

// WithQuantity returns a copy of c where the line matching key has the given
// quantity. When no line matches exactly, the first line of the product is
// moved to the requested variant. A cart without the product is returned
// unchanged.
func (c *Cart) WithQuantity(key VariantKey, quantity int) *Cart {
	out := c.Clone()
	if out == nil {
		return nil
	}
	idx := slices.IndexFunc(out.Items, func(item CartItem) bool { return item.Key() == key })
	if idx < 0 {
		idx = slices.IndexFunc(out.Items, func(item CartItem) bool { return item.Product.ID == key.ProductID })
		if idx < 0 {
			return out
		}
		out.Items[idx].Size = key.Size
		out.Items[idx].Color = key.Color
	}
	out.Items[idx].Quantity = quantity
	return out
}

// AddItemRequest is the body of POST /cart.
type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func (r AddItemRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return invalidf("product id is empty")
	}
	if r.Quantity < 1 {
		return invalidf("quantity must be at least 1, got %d", r.Quantity)
	}
	return nil
}

// UpdateItemRequest is the body of PUT /cart/:productId.
type UpdateItemRequest struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
}

func (r UpdateItemRequest) Validate() error {
	if r.Quantity < 1 {
		return invalidf("quantity must be at least 1, got %d", r.Quantity)
	}
	return nil
}
