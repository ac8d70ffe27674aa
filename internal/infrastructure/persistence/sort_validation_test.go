package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortSpec_Clause(t *testing.T) {
	tests := []struct {
		name     string
		orderBy  string
		orderDir string
		want     string
	}{
		{"defaults to name ascending", "", "", "name ASC, id ASC"},
		{"explicit direction on name", "name", "desc", "name DESC, id ASC"},
		{"numeric column defaults to descending", "price", "", "price DESC, id ASC"},
		{"lowercase asc", "stock", "asc", "stock ASC, id ASC"},
		{"whitespace is trimmed", "  price  ", "  asc  ", "price ASC, id ASC"},
		{"unknown column falls back", "colour", "asc", "name ASC, id ASC"},
		{"columns are case sensitive", "PRICE", "", "name ASC, id ASC"},
		{"unknown direction is descending", "price", "sideways", "price DESC, id ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, productSort.clause(tt.orderBy, tt.orderDir))
		})
	}
}

func TestSortSpec_RejectsInjection(t *testing.T) {
	payloads := []string{
		"price; DROP TABLE products;--",
		"price' OR '1'='1",
		"price\"; DROP TABLE products;--",
		"price UNION SELECT * FROM orders",
		"price, (SELECT user_id FROM orders)",
		"CASE WHEN 1=1 THEN price ELSE name END",
		"price/**/;DROP TABLE products",
		"price\n; DROP TABLE products",
	}

	for _, payload := range payloads {
		t.Run("column "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "name ASC, id ASC", productSort.clause(payload, ""))
		})
		t.Run("direction "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "price DESC, id ASC", productSort.clause("price", payload))
		})
	}
}
