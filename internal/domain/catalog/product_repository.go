package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductReader is the batch lookup checkout and cart reconciliation depend on.
// Missing ids are simply absent from the result.
type ProductReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Product, error)
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	ProductReader

	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// List returns one page of products matching filter and the total number of matches
	List(ctx context.Context, filter ProductFilter) ([]*Product, int64, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error
}

// ProductFilter selects a page of the catalog. OrderBy and OrderDir are
// checked against a whitelist by the repository.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	InStock    bool
	OrderBy    string
	OrderDir   string
	Page       int
	PageSize   int
}

// Offset is the number of matches skipped before the page
func (f ProductFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// IndexByID maps products by id.
func IndexByID(products []*Product) map[uuid.UUID]*Product {
	index := make(map[uuid.UUID]*Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}
