package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/cart"
)

// LineResponse is one cart line
type LineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartResponse is the cart summary returned by every cart operation
type CartResponse struct {
	UserID        uuid.UUID       `json:"user_id"`
	Lines         []LineResponse  `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// AddLineRequest is the body of an add-to-cart request
type AddLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

// ToCartResponse converts a cart summary
func ToCartResponse(s cart.Summary) *CartResponse {
	lines := make([]LineResponse, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, LineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			ImageURL:  l.ImageURL,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}
	return &CartResponse{
		UserID:        s.UserID,
		Lines:         lines,
		TotalQuantity: s.TotalQuantity,
		TotalPrice:    s.TotalPrice,
	}
}
