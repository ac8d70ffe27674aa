// Package catalog serves read-only product browsing for shoppers.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// Catalog paging
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ProductService answers catalog queries. It never writes.
type ProductService struct {
	products catalog.ProductRepository
	log      *zap.Logger
}

func NewProductService(products catalog.ProductRepository, log *zap.Logger) *ProductService {
	return &ProductService{products: products, log: log.Named("catalog")}
}

func (s *ProductService) GetByID(ctx context.Context, productID uuid.UUID) (*ProductResponse, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// List returns one page of the catalog along with the number of matching
// products. Page and size are clamped rather than rejected.
func (s *ProductService) List(ctx context.Context, filter ProductListFilter) ([]ProductResponse, int64, error) {
	q := catalog.ProductFilter{
		Search:   filter.Search,
		InStock:  filter.InStock,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Page:     max(filter.Page, 1),
		PageSize: DefaultPageSize,
	}
	if filter.PageSize > 0 {
		q.PageSize = min(filter.PageSize, MaxPageSize)
	}
	if filter.CategoryID != "" {
		id, err := uuid.Parse(filter.CategoryID)
		if err != nil {
			return nil, 0, shared.NewDomainError("INVALID_INPUT", "category_id must be a UUID")
		}
		q.CategoryID = &id
	}

	found, total, err := s.products.List(ctx, q)
	if err != nil {
		s.log.Error("failed to list products", zap.Error(err))
		return nil, 0, err
	}
	return ToProductResponses(found), total, nil
}
