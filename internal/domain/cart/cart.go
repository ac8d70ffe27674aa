// Package cart holds the per-session shopping cart aggregate and the
// persisted per-(user, product) record it is mirrored to.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
)

// Line is one product-and-quantity entry. UnitPrice is the price snapshot
// taken when the product was added; checkout charges this price.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Name      string
	ImageURL  string
}

// Subtotal returns Quantity * UnitPrice
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Change describes the resulting quantity of one line after a mutation.
// Quantity 0 means the line no longer exists.
type Change struct {
	ProductID uuid.UUID
	Quantity  int
}

// Removed reports whether the change deleted the line
func (c Change) Removed() bool {
	return c.Quantity <= 0
}

// Summary is a read-only snapshot of the cart
type Summary struct {
	UserID        uuid.UUID
	Lines         []Line
	TotalQuantity int
	TotalPrice    decimal.Decimal
}

// Cart is the in-memory cart of one user. It performs no I/O. Every mutation
// returns the Change the caller should mirror to persistence; no-ops return ok=false.
// Cart is not safe for concurrent use; the owning session serialises access.
type Cart struct {
	userID        uuid.UUID
	lines         []Line
	totalQuantity int
	totalPrice    decimal.Decimal
}

// New creates an empty cart for userID
func New(userID uuid.UUID) *Cart {
	return &Cart{
		userID:     userID,
		lines:      make([]Line, 0),
		totalPrice: decimal.Zero,
	}
}

// UserID returns the owning user
func (c *Cart) UserID() uuid.UUID {
	return c.userID
}

// SetCart replaces all lines wholesale. Lines with quantity < 1 are dropped
// and duplicate product ids are merged.
func (c *Cart) SetCart(lines []Line) {
	c.lines = make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i := c.indexOf(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	c.recalculateTotals()
}

// AddLine adds one unit of product, creating the line with a price snapshot if needed.
func (c *Cart) AddLine(product *catalog.Product) Change {
	if i := c.indexOf(product.ID); i >= 0 {
		c.lines[i].Quantity++
		c.recalculateTotals()
		return Change{ProductID: product.ID, Quantity: c.lines[i].Quantity}
	}

	c.lines = append(c.lines, Line{
		ProductID: product.ID,
		Quantity:  1,
		UnitPrice: product.Price,
		Name:      product.Name,
		ImageURL:  product.ImageURL,
	})
	c.recalculateTotals()
	return Change{ProductID: product.ID, Quantity: 1}
}

// Increment adds one unit to an existing line. Absent products are a no-op.
func (c *Cart) Increment(productID uuid.UUID) (Change, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return Change{}, false
	}
	c.lines[i].Quantity++
	c.recalculateTotals()
	return Change{ProductID: productID, Quantity: c.lines[i].Quantity}, true
}

// Decrement removes one unit; a line reaching zero is removed.
// Absent products are a no-op.
func (c *Cart) Decrement(productID uuid.UUID) (Change, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return Change{}, false
	}
	c.lines[i].Quantity--
	quantity := c.lines[i].Quantity
	if quantity <= 0 {
		c.removeAt(i)
		quantity = 0
	}
	c.recalculateTotals()
	return Change{ProductID: productID, Quantity: quantity}, true
}

// Remove deletes the line regardless of its quantity
func (c *Cart) Remove(productID uuid.UUID) (Change, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return Change{}, false
	}
	c.removeAt(i)
	c.recalculateTotals()
	return Change{ProductID: productID}, true
}

// Clear empties the cart and returns a removal change per former line
func (c *Cart) Clear() []Change {
	changes := make([]Change, 0, len(c.lines))
	for _, l := range c.lines {
		changes = append(changes, Change{ProductID: l.ProductID})
	}
	c.lines = make([]Line, 0)
	c.recalculateTotals()
	return changes
}

// Line returns the line for productID
func (c *Cart) Line(productID uuid.UUID) (Line, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalQuantity returns the sum of line quantities
func (c *Cart) TotalQuantity() int {
	return c.totalQuantity
}

// TotalPrice returns the sum of line subtotals
func (c *Cart) TotalPrice() decimal.Decimal {
	return c.totalPrice
}

// ProductIDs returns the distinct product ids in line order
func (c *Cart) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.lines))
	for _, l := range c.lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Summary returns a snapshot of the cart
func (c *Cart) Summary() Summary {
	return Summary{
		UserID:        c.userID,
		Lines:         c.Lines(),
		TotalQuantity: c.totalQuantity,
		TotalPrice:    c.totalPrice,
	}
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// recalculateTotals recomputes both totals from the lines
func (c *Cart) recalculateTotals() {
	quantity := 0
	price := decimal.Zero
	for _, l := range c.lines {
		quantity += l.Quantity
		price = price.Add(l.Subtotal())
	}
	c.totalQuantity = quantity
	c.totalPrice = price
}
