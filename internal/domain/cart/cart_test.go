package cart

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/catalog"
)

func newProduct(t *testing.T, name string, price string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name, decimal.RequireFromString(price), 10)
	require.NoError(t, err)
	return p
}

// assertTotals checks the totals against a fresh sum over the lines
func assertTotals(t *testing.T, c *Cart) {
	t.Helper()
	quantity := 0
	price := decimal.Zero
	for _, l := range c.Lines() {
		assert.GreaterOrEqual(t, l.Quantity, 1, "zero-quantity line present")
		quantity += l.Quantity
		price = price.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.Equal(t, quantity, c.TotalQuantity())
	assert.True(t, price.Equal(c.TotalPrice()), "total price %s != %s", c.TotalPrice(), price)
	assert.GreaterOrEqual(t, c.TotalQuantity(), 0)
	assert.False(t, c.TotalPrice().IsNegative())
}

func TestCart_AddLine(t *testing.T) {
	c := New(uuid.New())
	lamp := newProduct(t, "Lamp", "12.50")

	t.Run("adds new line with quantity one", func(t *testing.T) {
		change := c.AddLine(lamp)

		assert.Equal(t, Change{ProductID: lamp.ID, Quantity: 1}, change)
		line, ok := c.Line(lamp.ID)
		require.True(t, ok)
		assert.Equal(t, "Lamp", line.Name)
		assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("12.50")))
		assertTotals(t, c)
	})

	t.Run("increments existing line", func(t *testing.T) {
		change := c.AddLine(lamp)

		assert.Equal(t, 2, change.Quantity)
		assert.Len(t, c.Lines(), 1)
		assert.Equal(t, 2, c.TotalQuantity())
		assert.True(t, c.TotalPrice().Equal(decimal.RequireFromString("25")))
	})

	t.Run("keeps the price snapshot when the product is repriced", func(t *testing.T) {
		lamp.Price = decimal.RequireFromString("99")
		c.AddLine(lamp)

		line, _ := c.Line(lamp.ID)
		assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("12.50")))
		assertTotals(t, c)
	})
}

func TestCart_Decrement(t *testing.T) {
	t.Run("decrement at quantity one removes the line", func(t *testing.T) {
		c := New(uuid.New())
		p := newProduct(t, "Mug", "4")
		c.AddLine(p)

		change, ok := c.Decrement(p.ID)

		require.True(t, ok)
		assert.True(t, change.Removed())
		assert.True(t, c.IsEmpty())
		assert.Equal(t, 0, c.TotalQuantity())
		assert.True(t, c.TotalPrice().IsZero())
	})

	t.Run("decrement reduces quantity", func(t *testing.T) {
		c := New(uuid.New())
		p := newProduct(t, "Mug", "4")
		c.AddLine(p)
		c.AddLine(p)

		change, ok := c.Decrement(p.ID)

		require.True(t, ok)
		assert.Equal(t, 1, change.Quantity)
		assertTotals(t, c)
	})

	t.Run("absent product is a no-op", func(t *testing.T) {
		c := New(uuid.New())
		c.AddLine(newProduct(t, "Mug", "4"))

		_, ok := c.Decrement(uuid.New())

		assert.False(t, ok)
		assert.Equal(t, 1, c.TotalQuantity())
		assertTotals(t, c)
	})

	t.Run("empty cart never goes negative", func(t *testing.T) {
		c := New(uuid.New())
		for i := 0; i < 3; i++ {
			_, ok := c.Decrement(uuid.New())
			assert.False(t, ok)
		}
		assert.Equal(t, 0, c.TotalQuantity())
		assert.True(t, c.TotalPrice().IsZero())
	})
}

func TestCart_Increment(t *testing.T) {
	c := New(uuid.New())
	p := newProduct(t, "Pen", "1.25")

	_, ok := c.Increment(p.ID)
	assert.False(t, ok, "increment of absent product must be a no-op")
	assert.True(t, c.IsEmpty())

	c.AddLine(p)
	change, ok := c.Increment(p.ID)
	require.True(t, ok)
	assert.Equal(t, 2, change.Quantity)
	assert.True(t, c.TotalPrice().Equal(decimal.RequireFromString("2.5")))
}

func TestCart_Remove(t *testing.T) {
	c := New(uuid.New())
	a := newProduct(t, "A", "3")
	b := newProduct(t, "B", "5")
	c.AddLine(a)
	c.AddLine(a)
	c.AddLine(a)
	c.AddLine(b)

	change, ok := c.Remove(a.ID)

	require.True(t, ok)
	assert.True(t, change.Removed())
	assert.Equal(t, 1, c.TotalQuantity())
	assert.True(t, c.TotalPrice().Equal(decimal.NewFromInt(5)))

	_, ok = c.Remove(a.ID)
	assert.False(t, ok)
}

func TestCart_Clear(t *testing.T) {
	c := New(uuid.New())
	a := newProduct(t, "A", "3")
	b := newProduct(t, "B", "5")
	c.AddLine(a)
	c.AddLine(b)

	changes := c.Clear()

	assert.ElementsMatch(t, []Change{{ProductID: a.ID}, {ProductID: b.ID}}, changes)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.TotalQuantity())
	assert.True(t, c.TotalPrice().IsZero())
}

func TestCart_SetCart(t *testing.T) {
	c := New(uuid.New())
	c.AddLine(newProduct(t, "Old", "100"))
	a, b := uuid.New(), uuid.New()

	c.SetCart([]Line{
		{ProductID: a, Quantity: 2, UnitPrice: decimal.NewFromInt(3)},
		{ProductID: b, Quantity: 0, UnitPrice: decimal.NewFromInt(7)},
		{ProductID: a, Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
	})

	require.Len(t, c.Lines(), 1)
	line, ok := c.Line(a)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3, c.TotalQuantity())
	assert.True(t, c.TotalPrice().Equal(decimal.NewFromInt(9)))
}

func TestCart_TotalsHoldForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	products := []*catalog.Product{
		newProduct(t, "A", "0.10"),
		newProduct(t, "B", "2.35"),
		newProduct(t, "C", "19.99"),
		newProduct(t, "D", "7"),
	}
	absent := uuid.New()

	for run := 0; run < 50; run++ {
		c := New(uuid.New())
		for step := 0; step < 200; step++ {
			p := products[rng.Intn(len(products))]
			id := p.ID
			if rng.Intn(10) == 0 {
				id = absent
			}
			switch rng.Intn(4) {
			case 0:
				c.AddLine(p)
			case 1:
				c.Increment(id)
			case 2:
				c.Decrement(id)
			case 3:
				c.Remove(id)
			}
			assertTotals(t, c)
		}
	}
}

func TestCart_SummaryIsACopy(t *testing.T) {
	c := New(uuid.New())
	p := newProduct(t, "A", "1")
	c.AddLine(p)

	summary := c.Summary()
	summary.Lines[0].Quantity = 99

	line, _ := c.Line(p.ID)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, c.UserID(), summary.UserID)
}
