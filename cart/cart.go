package cart

import "github.com/shopsphere/storefront-core/pkg/money"

// DefaultShippingFee is the flat shipping surcharge assumed until a store
// stamps its configured fee onto the cart.
var DefaultShippingFee = money.MustParse("99.00")

// Item is a single line in the cart. PricePerUnit is the snapshot taken
// when the cart was fetched; the line total is always derived from it,
// never stored on its own.
type Item struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	PricePer  money.Money `json:"price_per_unit"`
	Quantity  int         `json:"quantity"`
	ImageURL  string      `json:"image_url,omitempty"`
}

// TotalPrice returns pricePerUnit x quantity.
func (i Item) TotalPrice() money.Money {
	return i.PricePer.Mul(i.Quantity)
}

// Cart is the client-held mirror of one user's server-side cart. Item
// order is the server-reported order and carries no meaning.
type Cart struct {
	Owner       string      `json:"owner"`
	Items       []Item      `json:"items"`
	ShippingFee money.Money `json:"shipping_fee"`
}

// NewEmpty returns an empty cart for the given owner. A user who has never
// added anything is represented this way, never as "not found".
func NewEmpty(owner string) *Cart {
	return &Cart{
		Owner:       owner,
		Items:       []Item{},
		ShippingFee: DefaultShippingFee,
	}
}

// Subtotal recomputes the sum of line totals from the current items.
// It is never cached: a mutation can never leave a stale subtotal behind.
func (c *Cart) Subtotal() money.Money {
	sum := money.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.TotalPrice())
	}
	return sum
}

// GrandTotal returns subtotal + shipping fee.
func (c *Cart) GrandTotal() money.Money {
	return c.Subtotal().Add(c.ShippingFee)
}

// ItemCount returns the number of distinct line items. This is the badge
// count: two units of one product are still one line.
func (c *Cart) ItemCount() int {
	return len(c.Items)
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItemIndex returns the index of the line for the given product, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy. Snapshot consumers get one of these so the
// live mirror can keep mutating underneath them.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]Item, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
