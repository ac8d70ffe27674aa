// Package cart serves the per-user shopping cart: the in-memory aggregate
// held in a session, mirrored to the database by the Synchronizer.
package cart

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// ErrProductNotFound is returned when adding a product that does not exist
var ErrProductNotFound = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")

// Service runs cart operations against the user's session
type Service struct {
	sessions *Sessions
	products catalog.ProductReader
	sync     *Synchronizer
	logger   *zap.Logger
}

// NewService creates a new cart Service
func NewService(sessions *Sessions, products catalog.ProductReader, sync *Synchronizer, logger *zap.Logger) *Service {
	return &Service{
		sessions: sessions,
		products: products,
		sync:     sync,
		logger:   logger,
	}
}

// WithCart runs fn holding the user's session. The cart is loaded from the
// persisted records the first time a session is used.
func (s *Service) WithCart(ctx context.Context, userID uuid.UUID, fn func(c *cart.Cart) error) error {
	session := s.sessions.Acquire(userID)
	defer session.Release()

	if !session.loaded {
		s.load(ctx, userID, session)
	}
	return fn(session.Cart)
}

func (s *Service) load(ctx context.Context, userID uuid.UUID, session *Session) {
	// a failed load still marks the session loaded so later reads never
	// overwrite changes made in the meantime
	session.loaded = true

	lines, err := s.sync.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load persisted cart, starting empty",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	}
	session.Cart.SetCart(lines)
}

// Summary returns the user's cart
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	var resp *CartResponse
	err := s.WithCart(ctx, userID, func(c *cart.Cart) error {
		resp = ToCartResponse(c.Summary())
		return nil
	})
	return resp, err
}

// AddLine adds one unit of productID, taking the current price as the line's snapshot
func (s *Service) AddLine(ctx context.Context, userID, productID uuid.UUID) (*CartResponse, error) {
	products, err := s.products.FindByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}

	var resp *CartResponse
	err = s.WithCart(ctx, userID, func(c *cart.Cart) error {
		s.sync.Apply(userID, c.AddLine(products[0]))
		resp = ToCartResponse(c.Summary())
		return nil
	})
	return resp, err
}

// Increment adds one unit to an existing line
func (s *Service) Increment(ctx context.Context, userID, productID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) (cart.Change, bool) {
		return c.Increment(productID)
	})
}

// Decrement removes one unit, dropping the line at zero
func (s *Service) Decrement(ctx context.Context, userID, productID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) (cart.Change, bool) {
		return c.Decrement(productID)
	})
}

// Remove drops the line
func (s *Service) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartResponse, error) {
	return s.mutate(ctx, userID, func(c *cart.Cart) (cart.Change, bool) {
		return c.Remove(productID)
	})
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	var resp *CartResponse
	err := s.WithCart(ctx, userID, func(c *cart.Cart) error {
		s.sync.ApplyAll(userID, c.Clear())
		resp = ToCartResponse(c.Summary())
		return nil
	})
	return resp, err
}

// Reconcile replaces the in-memory cart with the persisted one
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	var resp *CartResponse
	err := s.WithCart(ctx, userID, func(c *cart.Cart) error {
		lines, err := s.sync.Load(ctx, userID)
		if err != nil {
			return err
		}
		c.SetCart(lines)
		resp = ToCartResponse(c.Summary())
		return nil
	})
	return resp, err
}

// ClearUser removes the user's persisted records once in-flight writes land
func (s *Service) ClearUser(ctx context.Context, userID uuid.UUID) {
	s.sync.ClearUser(ctx, userID)
}

func (s *Service) mutate(ctx context.Context, userID uuid.UUID, op func(c *cart.Cart) (cart.Change, bool)) (*CartResponse, error) {
	var resp *CartResponse
	err := s.WithCart(ctx, userID, func(c *cart.Cart) error {
		if change, ok := op(c); ok {
			s.sync.Apply(userID, change)
		}
		resp = ToCartResponse(c.Summary())
		return nil
	})
	return resp, err
}
