package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
)

// ProductModel is a row of products. The stock check constraint is what
// turns an over-sold checkout decrement into a failed statement.
type ProductModel struct {
	BaseModel
	Name       string          `gorm:"type:varchar(200);not null"`
	Price      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Stock      int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	ImageURL   string          `gorm:"type:varchar(500)"`
}

func (ProductModel) TableName() string { return "products" }

func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseEntity: m.entity(),
		Name:       m.Name,
		Price:      m.Price,
		Stock:      m.Stock,
		CategoryID: m.CategoryID,
		ImageURL:   m.ImageURL,
	}
}

func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{
		Name:       p.Name,
		Price:      p.Price,
		Stock:      p.Stock,
		CategoryID: p.CategoryID,
		ImageURL:   p.ImageURL,
	}
	m.setEntity(p.BaseEntity)
	return m
}
